package metrics

import (
	"fmt"

	"github.com/tieredmem/thermostat/config"
)

type MetricType string

const (
	Counter   MetricType = "counter"
	Gauge     MetricType = "gauge"
	Histogram MetricType = "histogram"
)

type Unit string

const (
	Dimensionless  Unit = "dimensionless"
	Nanoseconds    Unit = "nanoseconds"
	HardwareEvents Unit = "hardware_events"
)

// Metadata describes a metric so implementations can register it with their
// backend before the first observation arrives.
type Metadata struct {
	Name        string
	Type        MetricType
	Unit        Unit
	Description string
}

// Metrics is the interface components use to report their internal counters
// and gauges. Metrics must be registered before use.
type Metrics interface {
	Register(metadata Metadata)
	Increment(name string)                  // for counters
	Count(name string, n interface{})       // for counters
	Gauge(name string, val interface{})     // for gauges
	Histogram(name string, obs interface{}) // for histograms
	Get(name string) (float64, bool)        // for reading back a counter or a gauge
	Store(name string, val float64)         // for storing a rarely-changing value not sent as a metric
}

// GetMetricsImplementation returns the configured Metrics implementation.
func GetMetricsImplementation(c config.Config) (Metrics, error) {
	switch typ := c.GetMetricsType(); typ {
	case "prometheus":
		return &PromMetrics{}, nil
	case "none":
		return &NullMetrics{}, nil
	default:
		return nil, fmt.Errorf("unknown metrics type %q", typ)
	}
}

func ConvertNumeric(val interface{}) float64 {
	switch n := val.(type) {
	case int:
		return float64(n)
	case uint:
		return float64(n)
	case int64:
		return float64(n)
	case uint64:
		return float64(n)
	case int32:
		return float64(n)
	case uint32:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	default:
		return 0
	}
}
