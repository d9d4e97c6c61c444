package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestDefaultsWithoutFile(t *testing.T) {
	c, err := NewConfig(&CmdEnv{})
	require.NoError(t, err)

	assert.Equal(t, "logrus", c.GetLoggerType())
	assert.Equal(t, "warn", c.GetLoggerLevel())

	cc := c.GetControllerConfig()
	assert.Equal(t, 1000, cc.HeapCapacity)
	assert.Equal(t, uint64(2000), cc.MinPeriod)
	assert.Equal(t, uint64(200000), cc.MaxPeriod)
	assert.Equal(t, uint64(50000), cc.GlobalOverheadBudget)
	assert.Equal(t, 10*time.Second, time.Duration(cc.TickInterval))
	assert.Equal(t, int32(-1000), cc.WeightOverhead)
}

func TestLoadYAML(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
General:
  LoggerLevel: debug
Controller:
  HeapCapacity: 10
  TickInterval: 2s
  PinnedClasses:
    - l2_hit
    - l2_miss
`)
	c, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.NoError(t, err)

	assert.Equal(t, "debug", c.GetLoggerLevel())
	cc := c.GetControllerConfig()
	assert.Equal(t, 10, cc.HeapCapacity)
	assert.Equal(t, 2*time.Second, time.Duration(cc.TickInterval))
	// untouched fields still get defaults
	assert.Equal(t, uint64(200000), cc.MaxPeriod)

	pinned, err := cc.ParsePinnedClasses()
	require.NoError(t, err)
	assert.Len(t, pinned, 2)
}

func TestLoadTOML(t *testing.T) {
	path := writeTempConfig(t, "config.toml", `
[Controller]
HeapCapacity = 7
MinPeriod = 4000
`)
	c, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.NoError(t, err)
	assert.Equal(t, 7, c.GetControllerConfig().HeapCapacity)
	assert.Equal(t, uint64(4000), c.GetControllerConfig().MinPeriod)
}

func TestUnknownKeySuggestion(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
Controller:
  HeapCapasity: 10
`)
	_, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HeapCapasity")
	assert.Contains(t, err.Error(), "HeapCapacity")
}

func TestUnknownKeySuggestionTOML(t *testing.T) {
	// TOML files go through the same key validation as YAML
	path := writeTempConfig(t, "config.toml", `
[Controller]
HeapCapasity = 10
`)
	_, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HeapCapasity")
	assert.Contains(t, err.Error(), "HeapCapacity")
}

func TestInvalidBounds(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
Controller:
  MinPeriod: 300000
`)
	_, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MinPeriod")
}

func TestLogLevelOverride(t *testing.T) {
	c, err := NewConfig(&CmdEnv{LogLevel: "debug"})
	require.NoError(t, err)
	assert.Equal(t, "debug", c.GetLoggerLevel())
}

func TestReloadCallback(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", "Controller:\n  HeapCapacity: 5\n")
	c, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.NoError(t, err)

	fired := false
	c.RegisterReloadCallback(func() { fired = true })
	require.NoError(t, c.Reload())
	assert.True(t, fired)
}

func TestUnknownPinnedClassRejected(t *testing.T) {
	path := writeTempConfig(t, "config.yaml", `
Controller:
  PinnedClasses:
    - l9_hit
`)
	_, err := NewConfig(&CmdEnv{ConfigLocation: path})
	require.Error(t, err)
}
