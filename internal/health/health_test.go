package health

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHealth(t *testing.T) (*Health, *clockwork.FakeClock) {
	t.Helper()
	cl := clockwork.NewFakeClock()
	h := &Health{Clock: cl}
	require.NoError(t, h.Start())
	return h, cl
}

func TestEmptyHealthIsAliveNotReady(t *testing.T) {
	h, _ := newTestHealth(t)
	defer h.Stop()

	assert.True(t, h.IsAlive())
	assert.False(t, h.IsReady())
}

func TestSilentSubsystemStaysAlive(t *testing.T) {
	h, cl := newTestHealth(t)
	defer h.Stop()

	// a registered subsystem that never reports does not count against
	// liveness; its deadline only starts on the first report
	h.Register("ingest", 1500*time.Millisecond)
	cl.Advance(time.Minute)

	assert.True(t, h.IsAlive())
	assert.False(t, h.IsReady())
}

func TestReadyAndDeadlineExpiry(t *testing.T) {
	h, cl := newTestHealth(t)
	defer h.Stop()

	h.Register("ingest", 1500*time.Millisecond)
	h.Ready("ingest", true)
	assert.True(t, h.IsAlive())
	assert.True(t, h.IsReady())

	// periodic reports keep it healthy
	for i := 0; i < 5; i++ {
		cl.Advance(500 * time.Millisecond)
		h.Ready("ingest", true)
	}
	assert.True(t, h.IsAlive())
	assert.True(t, h.IsReady())

	// then it goes quiet past the deadline
	cl.Advance(2 * time.Second)
	assert.False(t, h.IsAlive())
	assert.False(t, h.IsReady())

	// a late report revives it
	h.Ready("ingest", true)
	assert.True(t, h.IsAlive())
	assert.True(t, h.IsReady())
}

func TestNotReadySubsystemIsStillAlive(t *testing.T) {
	h, _ := newTestHealth(t)
	defer h.Stop()

	h.Register("ingest", time.Second)
	h.Register("control", time.Second)
	h.Ready("ingest", true)
	h.Ready("control", false)

	assert.True(t, h.IsAlive())
	assert.False(t, h.IsReady())

	h.Ready("control", true)
	assert.True(t, h.IsReady())
}

func TestUnregisteredSubsystemPinsNotReady(t *testing.T) {
	h, cl := newTestHealth(t)
	defer h.Stop()

	h.Register("control", time.Second)
	h.Ready("control", true)
	require.True(t, h.IsReady())

	// unregistering marks it permanently not ready, which is how a
	// draining subsystem takes the process out of rotation
	h.Unregister("control")
	assert.False(t, h.IsReady())
	assert.True(t, h.IsAlive())

	// late reports are ignored rather than resurrecting it
	h.Ready("control", true)
	cl.Advance(time.Minute)
	assert.False(t, h.IsReady())
	assert.True(t, h.IsAlive())
}

func TestReadyForUnknownSubsystem(t *testing.T) {
	h, _ := newTestHealth(t)
	defer h.Stop()

	h.Ready("nonexistent", true)
	assert.False(t, h.IsReady())
}
