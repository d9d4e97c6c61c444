// Package collect wires the sampling pipeline together: every hardware
// sample flows through OnSample into the per-page statistics and per-class
// trackers, and a periodic control tick turns the accumulated signals into
// new hardware sampling periods.
package collect

import (
	"sync"
	"time"

	"github.com/facebookgo/startstop"
	"github.com/jonboulle/clockwork"

	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/hardware"
	"github.com/tieredmem/thermostat/internal/health"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/pagestore"
	"github.com/tieredmem/thermostat/score"
	"github.com/tieredmem/thermostat/tracker"
	"github.com/tieredmem/thermostat/tune"
	"github.com/tieredmem/thermostat/types"
)

const healthSource = "control_loop"

var orchestratorMetrics = []metrics.Metadata{
	{Name: "ingest_samples", Type: metrics.Counter, Unit: metrics.HardwareEvents, Description: "The number of samples accepted into the pipeline"},
	{Name: "ingest_invalid_class", Type: metrics.Counter, Unit: metrics.HardwareEvents, Description: "The number of samples dropped for an unknown event class"},
	{Name: "ingest_stale_timestamps", Type: metrics.Counter, Unit: metrics.HardwareEvents, Description: "The number of samples dropped for a non-increasing timestamp"},
	{Name: "collect_tick_duration_ms", Type: metrics.Histogram, Unit: metrics.Dimensionless, Description: "How long one control tick takes"},
	{Name: "collect_ticks", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of control ticks completed"},
}

// State is a point-in-time view of the whole controller for introspection.
type State struct {
	Scores  []score.ClassScore `json:"scores"`
	Periods []tune.ClassState  `json:"periods"`
	Pages   int                `json:"pages"`
}

// Orchestrator owns the ingestion path and the control loop. Ingestion is
// safe for concurrent callers; the control loop is a single goroutine on a
// fixed cadence.
type Orchestrator struct {
	Config   config.Config         `inject:""`
	Logger   logger.Logger         `inject:""`
	Metrics  metrics.Metrics       `inject:""`
	Clock    clockwork.Clock       `inject:""`
	Health   health.Recorder       `inject:""`
	Hardware hardware.PeriodSetter `inject:""`

	pages      *pagestore.Store
	trackers   [types.NumEventClasses]*tracker.Tracker
	overhead   tracker.OverheadCounter
	engine     *score.Engine
	controller *tune.Controller

	tickInterval time.Duration

	mut        sync.RWMutex
	lastScores []score.ClassScore

	done chan struct{}
	wg   sync.WaitGroup

	startstop.Starter
	startstop.Stopper
}

// Start builds the whole pipeline from configuration. Construction is all or
// nothing; on any error the orchestrator is unusable and Start returns the
// error without leaving goroutines behind.
func (o *Orchestrator) Start() error {
	cc := o.Config.GetControllerConfig()
	o.tickInterval = time.Duration(cc.TickInterval)

	for _, metadata := range orchestratorMetrics {
		o.Metrics.Register(metadata)
	}

	pages, err := pagestore.NewStore(cc.PageStoreCapacity, o.Metrics, o.Logger)
	if err != nil {
		return err
	}
	o.pages = pages

	for _, class := range types.AllEventClasses() {
		tr, err := tracker.NewTracker(class, cc.HeapCapacity, cc.EvictionFloor, o.Metrics, o.Logger)
		if err != nil {
			return err
		}
		o.trackers[class] = tr
	}
	// a reclaimed page must drop out of every tracker, not just the class
	// that happened to sample it last
	o.pages.OnInvalidate(func(page types.PageID) {
		for _, tr := range o.trackers {
			tr.Invalidate(page)
		}
	})

	o.engine, err = score.NewEngine(cc, o.Logger)
	if err != nil {
		return err
	}
	o.controller, err = tune.NewController(cc, o.Hardware, o.Metrics, o.Logger)
	if err != nil {
		return err
	}

	// liveness allows a couple of missed ticks before the process reads as
	// dead
	o.Health.Register(healthSource, 3*o.tickInterval)

	o.controller.ApplyInitial()
	o.Health.Ready(healthSource, true)

	o.done = make(chan struct{})
	o.wg.Add(1)
	go o.watchTicks()

	o.Logger.Info().
		WithField("tick_interval", o.tickInterval).
		Logf("sampling controller started")
	return nil
}

func (o *Orchestrator) Stop() error {
	select {
	case <-o.done:
		// already stopped
		return nil
	default:
	}
	o.Health.Ready(healthSource, false)
	close(o.done)
	o.wg.Wait()
	o.Health.Unregister(healthSource)
	return nil
}

// OnSample is the ingestion entry point, called once per accepted hardware
// sample, possibly from many hardware contexts at once. Samples with an
// unknown class or a non-increasing per-page timestamp are counted and
// dropped; neither is an error worth surfacing on this path.
func (o *Orchestrator) OnSample(class types.EventClass, page types.PageID, timestamp uint64) {
	if !class.IsValid() {
		o.Metrics.Increment("ingest_invalid_class")
		o.Logger.Debug().WithField("class", int(class)).Logf("dropping sample with unknown event class")
		return
	}

	ps := o.pages.Upsert(page)
	if !ps.Observe(timestamp) {
		o.Metrics.Increment("ingest_stale_timestamps")
		return
	}

	o.trackers[class].AdmitOrBump(page, ps)
	if _, ok := o.pages.Lookup(page); !ok {
		// a concurrent Upsert evicted the page while its admission was in
		// flight. The eviction hook may have run before the entry existed, so
		// re-mark it; any later eviction finds the entry and marks it itself.
		o.trackers[class].Invalidate(page)
	}
	o.overhead.Increment(class)
	o.Metrics.Increment("ingest_samples")
}

// OnSamples ingests a batch, typically everything drained from a hardware
// ring buffer in one go.
func (o *Orchestrator) OnSamples(batch []types.Sample) {
	for _, s := range batch {
		o.OnSample(s.Class, s.Page, s.Timestamp)
	}
}

func (o *Orchestrator) watchTicks() {
	defer o.wg.Done()
	ticker := o.Clock.NewTicker(o.tickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-o.done:
			return
		case <-ticker.Chan():
			o.tick()
		}
	}
}

// tick runs one control cycle: score every class from its tracker snapshot
// and overhead counter, retune all periods, then open a fresh overhead
// window. Ticks are idempotent; a delayed tick only delays convergence.
func (o *Orchestrator) tick() {
	start := o.Clock.Now()

	scores := make([]score.ClassScore, 0, types.NumEventClasses)
	for _, class := range types.AllEventClasses() {
		snap := o.trackers[class].Snapshot()
		scores = append(scores, o.engine.Score(snap, o.overhead.Load(class)))
	}

	o.controller.Retune(scores)
	o.overhead.ResetAll()

	o.mut.Lock()
	o.lastScores = scores
	o.mut.Unlock()

	o.Metrics.Increment("collect_ticks")
	o.Metrics.Histogram("collect_tick_duration_ms", float64(o.Clock.Since(start).Milliseconds()))
	o.Health.Ready(healthSource, true)
}

// State reports the scores from the latest tick and the committed periods.
func (o *Orchestrator) State() State {
	o.mut.RLock()
	scores := make([]score.ClassScore, len(o.lastScores))
	copy(scores, o.lastScores)
	o.mut.RUnlock()

	return State{
		Scores:  scores,
		Periods: o.controller.State(),
		Pages:   o.pages.Len(),
	}
}
