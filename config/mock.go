package config

import "time"

// MockConfig will respond with whatever config it's set to do during
// initialization.
type MockConfig struct {
	LoggerTypeVal        string
	LoggerLevelVal       string
	MetricsTypeVal       string
	MetricsListenAddrVal string
	DebugServiceAddrVal  string
	ControllerConfigVal  ControllerConfig

	callbacks []func()
}

func (m *MockConfig) Reload() error {
	for _, cb := range m.callbacks {
		cb()
	}
	return nil
}

func (m *MockConfig) RegisterReloadCallback(cb func()) {
	m.callbacks = append(m.callbacks, cb)
}

func (m *MockConfig) GetLoggerType() string        { return m.LoggerTypeVal }
func (m *MockConfig) GetLoggerLevel() string       { return m.LoggerLevelVal }
func (m *MockConfig) GetMetricsType() string       { return m.MetricsTypeVal }
func (m *MockConfig) GetMetricsListenAddr() string { return m.MetricsListenAddrVal }
func (m *MockConfig) GetDebugServiceAddr() string  { return m.DebugServiceAddrVal }

func (m *MockConfig) GetControllerConfig() ControllerConfig {
	return m.ControllerConfigVal
}

// DefaultControllerConfig returns a ControllerConfig with the shipped
// defaults, for tests that want a valid starting point to tweak.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		HeapCapacity:         1000,
		EvictionFloor:        1,
		PageStoreCapacity:    65536,
		MinPeriod:            2000,
		MaxPeriod:            200000,
		InitialPeriod:        20000,
		EMANumerator:         3,
		EMADenominator:       10,
		TickInterval:         Duration(10 * time.Second),
		GlobalOverheadBudget: 50000,
		AssumedEventRate:     10_000_000,
		FluctuationCeiling:   20_000_000_000_000_000,
		HitCeiling:           100,
		OverheadCeiling:      10000,
		WeightVolatility:     4000,
		WeightHotness:        5000,
		WeightOverhead:       -1000,
	}
}
