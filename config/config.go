package config

import (
	"fmt"
	"time"

	"github.com/tieredmem/thermostat/types"
)

// Config is the interface the rest of the code uses to read configuration.
// Implementations must be safe for concurrent use.
type Config interface {
	// Reload re-reads the backing source. On success all registered reload
	// callbacks are invoked.
	Reload() error
	RegisterReloadCallback(cb func())

	GetLoggerType() string
	GetLoggerLevel() string
	GetMetricsType() string
	GetMetricsListenAddr() string
	GetDebugServiceAddr() string
	GetControllerConfig() ControllerConfig
}

// Duration is a time.Duration that marshals as a human-readable string
// ("10s", "1m30s") in YAML, TOML, and default tags.
type Duration time.Duration

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	dur, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(dur)
	return nil
}

// ControllerConfig holds every knob of the adaptive sampling controller.
// The defaults reproduce the tuning the controller shipped with.
type ControllerConfig struct {
	// HeapCapacity is the per-event-class bound on tracked pages.
	HeapCapacity int `yaml:"HeapCapacity" default:"1000"`
	// EvictionFloor is the admission policy for a full tracker: a new page
	// replaces the current minimum only if the minimum's hit count is below
	// this value. At the default of 1 a full tracker never evicts, since
	// every resident page has been hit at least once.
	EvictionFloor uint32 `yaml:"EvictionFloor" default:"1"`
	// PageStoreCapacity bounds the number of pages with live statistics.
	PageStoreCapacity int `yaml:"PageStoreCapacity" default:"65536"`

	// MinPeriod and MaxPeriod bound the hardware sampling period. A lower
	// period means more frequent sampling.
	MinPeriod     uint64 `yaml:"MinPeriod" default:"2000"`
	MaxPeriod     uint64 `yaml:"MaxPeriod" default:"200000"`
	InitialPeriod uint64 `yaml:"InitialPeriod" default:"20000"`

	// EMANumerator/EMADenominator form the smoothing factor applied to the
	// target period each tick (default 3/10, i.e. alpha=0.3). Integer ratio
	// so the period pipeline stays in fixed point.
	EMANumerator   uint64 `yaml:"EMANumerator" default:"3"`
	EMADenominator uint64 `yaml:"EMADenominator" default:"10"`

	// TickInterval is the control loop cadence.
	TickInterval Duration `yaml:"TickInterval" default:"10s"`

	// GlobalOverheadBudget caps the expected number of samples across all
	// event classes per tick interval.
	GlobalOverheadBudget uint64 `yaml:"GlobalOverheadBudget" default:"50000"`
	// AssumedEventRate is the hardware event volume per class per tick
	// interval used to estimate sample rates from periods for the budget
	// check. The default keeps the estimate under the default budget even
	// with every class at MinPeriod, so the budget guard stays a last
	// resort until a deployment measures its real rates.
	AssumedEventRate uint64 `yaml:"AssumedEventRate" default:"10000000"`

	// Normalization ceilings for the three sub-scores.
	FluctuationCeiling uint64 `yaml:"FluctuationCeiling" default:"20000000000000000"`
	HitCeiling         uint64 `yaml:"HitCeiling" default:"100"`
	OverheadCeiling    uint64 `yaml:"OverheadCeiling" default:"10000"`

	// Scalarization weights, in score scale (10000 = 1.0). Overhead is a
	// penalty and is normally negative.
	WeightVolatility int32 `yaml:"WeightVolatility" default:"4000"`
	WeightHotness    int32 `yaml:"WeightHotness" default:"5000"`
	WeightOverhead   int32 `yaml:"WeightOverhead" default:"-1000"`

	// PinnedClasses names event classes whose period is never retuned.
	PinnedClasses []string `yaml:"PinnedClasses"`
}

// Validate checks the cross-field constraints that defaults can't express.
func (c *ControllerConfig) Validate() error {
	if c.HeapCapacity <= 0 {
		return fmt.Errorf("HeapCapacity must be positive, got %d", c.HeapCapacity)
	}
	if c.PageStoreCapacity <= 0 {
		return fmt.Errorf("PageStoreCapacity must be positive, got %d", c.PageStoreCapacity)
	}
	if c.MinPeriod == 0 || c.MinPeriod >= c.MaxPeriod {
		return fmt.Errorf("period bounds must satisfy 0 < MinPeriod < MaxPeriod, got [%d, %d]", c.MinPeriod, c.MaxPeriod)
	}
	if c.InitialPeriod < c.MinPeriod || c.InitialPeriod > c.MaxPeriod {
		return fmt.Errorf("InitialPeriod %d outside period bounds [%d, %d]", c.InitialPeriod, c.MinPeriod, c.MaxPeriod)
	}
	if c.EMADenominator == 0 || c.EMANumerator > c.EMADenominator {
		return fmt.Errorf("EMA ratio %d/%d must be in (0, 1]", c.EMANumerator, c.EMADenominator)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("TickInterval must be positive, got %v", time.Duration(c.TickInterval))
	}
	if c.FluctuationCeiling == 0 || c.HitCeiling == 0 || c.OverheadCeiling == 0 {
		return fmt.Errorf("score ceilings must be positive")
	}
	if _, err := c.ParsePinnedClasses(); err != nil {
		return err
	}
	return nil
}

// ParsePinnedClasses resolves the configured class names.
func (c *ControllerConfig) ParsePinnedClasses() ([]types.EventClass, error) {
	classes := make([]types.EventClass, 0, len(c.PinnedClasses))
	for _, name := range c.PinnedClasses {
		class, err := types.ParseEventClass(name)
		if err != nil {
			return nil, fmt.Errorf("PinnedClasses: %w", err)
		}
		classes = append(classes, class)
	}
	return classes, nil
}
