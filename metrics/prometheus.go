package metrics

import (
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/logger"
)

type PromMetrics struct {
	Config config.Config `inject:""`
	Logger logger.Logger `inject:""`

	// metrics keeps a record of all the registered metrics so we can update
	// them by name
	metrics map[string]interface{}
	// values shadows counter/gauge values so Get can read them back
	values map[string]float64
	lock   sync.RWMutex
}

func (p *PromMetrics) Start() error {
	p.Logger.Debug().Logf("Starting PromMetrics")
	defer func() { p.Logger.Debug().Logf("Finished starting PromMetrics") }()

	p.metrics = make(map[string]interface{})
	p.values = make(map[string]float64)

	if addr := p.Config.GetMetricsListenAddr(); addr != "" {
		muxxer := mux.NewRouter()
		muxxer.Handle("/metrics", promhttp.Handler())
		go http.ListenAndServe(addr, muxxer)
	}
	return nil
}

func (p *PromMetrics) Register(metadata Metadata) {
	p.lock.Lock()
	defer p.lock.Unlock()

	// don't attempt to add the metric again as this will cause a panic
	if _, exists := p.metrics[metadata.Name]; exists {
		return
	}

	var newmet interface{}
	switch metadata.Type {
	case Counter:
		newmet = promauto.NewCounter(prometheus.CounterOpts{
			Name: metadata.Name,
			Help: metadata.Description,
		})
	case Gauge:
		newmet = promauto.NewGauge(prometheus.GaugeOpts{
			Name: metadata.Name,
			Help: metadata.Description,
		})
	case Histogram:
		newmet = promauto.NewHistogram(prometheus.HistogramOpts{
			Name: metadata.Name,
			Help: metadata.Description,
			// 16 buckets, first upper bound of 1, each following upper bound
			// is 4x the previous; covers everything from counts to periods
			Buckets: prometheus.ExponentialBuckets(1, 4, 16),
		})
	}

	p.metrics[metadata.Name] = newmet
}

func (p *PromMetrics) Increment(name string) {
	p.Count(name, 1)
}

func (p *PromMetrics) Count(name string, n interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if counter, ok := p.metrics[name].(prometheus.Counter); ok {
		counter.Add(ConvertNumeric(n))
		p.values[name] += ConvertNumeric(n)
	}
}

func (p *PromMetrics) Gauge(name string, val interface{}) {
	p.lock.Lock()
	defer p.lock.Unlock()

	if gauge, ok := p.metrics[name].(prometheus.Gauge); ok {
		gauge.Set(ConvertNumeric(val))
		p.values[name] = ConvertNumeric(val)
	}
}

func (p *PromMetrics) Histogram(name string, obs interface{}) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	if hist, ok := p.metrics[name].(prometheus.Histogram); ok {
		hist.Observe(ConvertNumeric(obs))
	}
}

func (p *PromMetrics) Get(name string) (float64, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	v, ok := p.values[name]
	return v, ok
}

func (p *PromMetrics) Store(name string, val float64) {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.values[name] = val
}
