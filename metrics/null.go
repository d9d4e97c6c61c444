package metrics

type NullMetrics struct{}

func (n *NullMetrics) Start() error                           { return nil }
func (n *NullMetrics) Register(metadata Metadata)             {}
func (n *NullMetrics) Increment(name string)                  {}
func (n *NullMetrics) Count(name string, num interface{})     {}
func (n *NullMetrics) Gauge(name string, val interface{})     {}
func (n *NullMetrics) Histogram(name string, obs interface{}) {}
func (n *NullMetrics) Get(name string) (float64, bool)        { return 0, false }
func (n *NullMetrics) Store(name string, val float64)         {}
