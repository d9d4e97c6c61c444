package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/creasty/defaults"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// configContents is the on-disk shape of the config file.
type configContents struct {
	General    GeneralConfig    `yaml:"General" toml:"General"`
	Controller ControllerConfig `yaml:"Controller" toml:"Controller"`
}

type GeneralConfig struct {
	LoggerType        string `yaml:"LoggerType" toml:"LoggerType" default:"logrus"`
	LoggerLevel       string `yaml:"LoggerLevel" toml:"LoggerLevel" default:"warn"`
	MetricsType       string `yaml:"MetricsType" toml:"MetricsType" default:"prometheus"`
	MetricsListenAddr string `yaml:"MetricsListenAddr" toml:"MetricsListenAddr" default:"localhost:2112"`
	DebugServiceAddr  string `yaml:"DebugServiceAddr" toml:"DebugServiceAddr" default:"localhost:6060"`
}

type fileConfig struct {
	opts      *CmdEnv
	contents  configContents
	callbacks []func()
	mux       sync.RWMutex
}

// NewConfig loads the config file named by opts (YAML or TOML, decided by
// extension), fills in defaults, validates it, and applies command line
// overrides. An empty ConfigLocation yields a default config.
func NewConfig(opts *CmdEnv) (Config, error) {
	cfg := &fileConfig{opts: opts}
	if err := cfg.load(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f *fileConfig) load() error {
	contents := configContents{}

	if f.opts.ConfigLocation != "" {
		data, err := os.ReadFile(f.opts.ConfigLocation)
		if err != nil {
			return fmt.Errorf("unable to read config: %w", err)
		}
		// key validation runs on a generic decode of the same bytes; a
		// document too malformed for that is left to the typed decoder's
		// error message
		switch ext := filepath.Ext(f.opts.ConfigLocation); ext {
		case ".yaml", ".yml":
			var raw map[string]any
			if yaml.Unmarshal(data, &raw) == nil {
				if failures := validateConfigKeys(raw); len(failures) > 0 {
					return fmt.Errorf("invalid config: %v", failures)
				}
			}
			if err := yaml.Unmarshal(data, &contents); err != nil {
				return fmt.Errorf("unable to parse config: %w", err)
			}
		case ".toml":
			var raw map[string]any
			if toml.Unmarshal(data, &raw) == nil {
				if failures := validateConfigKeys(raw); len(failures) > 0 {
					return fmt.Errorf("invalid config: %v", failures)
				}
			}
			if err := toml.Unmarshal(data, &contents); err != nil {
				return fmt.Errorf("unable to parse config: %w", err)
			}
		default:
			return fmt.Errorf("unsupported config format %q", ext)
		}
	}

	if err := defaults.Set(&contents); err != nil {
		return fmt.Errorf("unable to apply config defaults: %w", err)
	}

	// command line and environment win over the file
	if f.opts.LogLevel != "" {
		contents.General.LoggerLevel = f.opts.LogLevel
	}

	if err := contents.Controller.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	f.mux.Lock()
	f.contents = contents
	callbacks := make([]func(), len(f.callbacks))
	copy(callbacks, f.callbacks)
	f.mux.Unlock()

	for _, cb := range callbacks {
		cb()
	}
	return nil
}

func (f *fileConfig) Reload() error {
	return f.load()
}

func (f *fileConfig) RegisterReloadCallback(cb func()) {
	f.mux.Lock()
	defer f.mux.Unlock()
	f.callbacks = append(f.callbacks, cb)
}

func (f *fileConfig) GetLoggerType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.General.LoggerType
}

func (f *fileConfig) GetLoggerLevel() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.General.LoggerLevel
}

func (f *fileConfig) GetMetricsType() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.General.MetricsType
}

func (f *fileConfig) GetMetricsListenAddr() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.General.MetricsListenAddr
}

func (f *fileConfig) GetDebugServiceAddr() string {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.General.DebugServiceAddr
}

func (f *fileConfig) GetControllerConfig() ControllerConfig {
	f.mux.RLock()
	defer f.mux.RUnlock()
	return f.contents.Controller
}
