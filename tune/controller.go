// Package tune converts normalized class values into hardware sampling
// periods. A higher value means the class is worth sampling harder, which
// means a shorter period. Period moves are smoothed so a single noisy tick
// cannot slam the hardware between extremes.
package tune

import (
	"fmt"
	"sync"

	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/generics"
	"github.com/tieredmem/thermostat/hardware"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/score"
	"github.com/tieredmem/thermostat/types"
)

var controllerMetrics = []metrics.Metadata{
	{Name: "tune_hardware_errors", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of rejected period updates"},
	{Name: "tune_budget_clamps", Type: metrics.Counter, Unit: metrics.Dimensionless, Description: "The number of ticks where the global overhead budget forced periods up"},
}

// ClassState is the controller's view of one event class.
type ClassState struct {
	Class         types.EventClass
	CurrentPeriod uint64
	TargetPeriod  uint64
	Pinned        bool
}

// Controller owns the committed sampling period for every event class and
// moves each one toward its score-mapped target on every tick.
type Controller struct {
	Hardware hardware.PeriodSetter
	Metrics  metrics.Metrics
	Logger   logger.Logger

	minPeriod uint64
	maxPeriod uint64
	emaNum    uint64
	emaDen    uint64

	overheadBudget   uint64
	assumedEventRate uint64
	pinned           generics.Set[types.EventClass]

	mut     sync.Mutex
	periods [types.NumEventClasses]uint64
	targets [types.NumEventClasses]uint64
}

// NewController builds a Controller with every class at the initial period.
// Nothing is pushed to hardware until ApplyInitial or Retune.
func NewController(cc config.ControllerConfig, hw hardware.PeriodSetter, met metrics.Metrics, lgr logger.Logger) (*Controller, error) {
	pinnedClasses, err := cc.ParsePinnedClasses()
	if err != nil {
		return nil, err
	}
	if hw == nil {
		return nil, fmt.Errorf("period controller needs a hardware setter")
	}

	for _, metadata := range controllerMetrics {
		met.Register(metadata)
	}
	for _, class := range types.AllEventClasses() {
		met.Register(metrics.Metadata{
			Name:        periodMetric(class),
			Type:        metrics.Gauge,
			Unit:        metrics.Nanoseconds,
			Description: "The committed sampling period for " + class.String(),
		})
	}

	c := &Controller{
		Hardware:         hw,
		Metrics:          met,
		Logger:           lgr,
		minPeriod:        cc.MinPeriod,
		maxPeriod:        cc.MaxPeriod,
		emaNum:           cc.EMANumerator,
		emaDen:           cc.EMADenominator,
		overheadBudget:   cc.GlobalOverheadBudget,
		assumedEventRate: cc.AssumedEventRate,
		pinned:           generics.NewSet(pinnedClasses...),
	}
	for _, class := range types.AllEventClasses() {
		c.periods[class] = cc.InitialPeriod
		c.targets[class] = cc.InitialPeriod
	}
	return c, nil
}

func periodMetric(class types.EventClass) string {
	return "tune_period_" + class.String()
}

// ApplyInitial pushes the cold-start period for every class. Classes the
// hardware rejects keep running at whatever the hardware was left with; the
// next tick retries implicitly.
func (c *Controller) ApplyInitial() {
	c.mut.Lock()
	defer c.mut.Unlock()
	for _, class := range types.AllEventClasses() {
		c.pushLocked(class, c.periods[class], c.periods[class])
	}
}

// MapScoreToPeriod is the inverse-linear map from normalized value to target
// period: the full scale lands on MinPeriod, zero lands on MaxPeriod.
func (c *Controller) MapScoreToPeriod(vNormalized int64) uint64 {
	if vNormalized < 0 {
		vNormalized = 0
	}
	if vNormalized > score.ScoreScale {
		vNormalized = score.ScoreScale
	}
	return c.maxPeriod - uint64(vNormalized)*(c.maxPeriod-c.minPeriod)/score.ScoreScale
}

// smooth moves current toward target by the configured EMA ratio, in integer
// arithmetic, then clamps to the period bounds.
func (c *Controller) smooth(current, target uint64) uint64 {
	step := (int64(target) - int64(current)) * int64(c.emaNum) / int64(c.emaDen)
	return c.clampPeriod(uint64(int64(current) + step))
}

func (c *Controller) clampPeriod(p uint64) uint64 {
	if p < c.minPeriod {
		return c.minPeriod
	}
	if p > c.maxPeriod {
		return c.maxPeriod
	}
	return p
}

// Retune computes and commits a new period for every scored class. Pinned
// classes keep their period but still count against the overhead budget.
// The budget guard runs last: if the summed expected sample rate exceeds the
// budget, every unpinned period is scaled up proportionally and re-clamped.
func (c *Controller) Retune(scores []score.ClassScore) {
	c.mut.Lock()
	defer c.mut.Unlock()

	proposed := c.periods
	for _, s := range scores {
		if !s.Class.IsValid() || c.pinned.Contains(s.Class) {
			continue
		}
		c.targets[s.Class] = c.MapScoreToPeriod(s.VNormalized)
		proposed[s.Class] = c.smooth(c.periods[s.Class], c.targets[s.Class])
	}

	c.applyBudgetLocked(&proposed)

	for _, class := range types.AllEventClasses() {
		if c.pinned.Contains(class) || proposed[class] == c.periods[class] {
			continue
		}
		c.pushLocked(class, proposed[class], c.periods[class])
	}
}

// applyBudgetLocked estimates the sample volume of the proposed periods and
// slows every unpinned class proportionally when the sum busts the budget.
// The estimate assumes a fixed event rate per class per tick; an event class
// at period P then delivers rate/P samples in a tick.
func (c *Controller) applyBudgetLocked(proposed *[types.NumEventClasses]uint64) {
	var sum uint64
	for _, class := range types.AllEventClasses() {
		sum += c.assumedEventRate / proposed[class]
	}
	if sum <= c.overheadBudget {
		return
	}

	c.Metrics.Increment("tune_budget_clamps")
	c.Logger.Warn().
		WithField("expected_samples", sum).
		WithField("budget", c.overheadBudget).
		Logf("overhead budget exceeded, slowing all classes")

	for _, class := range types.AllEventClasses() {
		if c.pinned.Contains(class) {
			continue
		}
		// scaling by sum/budget restores the budget exactly when nothing
		// clamps; the max bound may still win, which is acceptable for a
		// last-resort guard
		proposed[class] = c.clampPeriod(proposed[class] * sum / c.overheadBudget)
	}
}

// pushLocked commits a period to hardware. Rejection keeps the previous
// period; state persists so the next tick retries naturally.
func (c *Controller) pushLocked(class types.EventClass, period, previous uint64) {
	if err := c.Hardware.SetPeriod(class, period); err != nil {
		c.Metrics.Increment("tune_hardware_errors")
		c.Logger.Warn().
			WithField("class", class.String()).
			WithField("period", period).
			WithField("error", err.Error()).
			Logf("hardware rejected sampling period, keeping previous")
		c.periods[class] = previous
		return
	}
	c.periods[class] = period
	c.Metrics.Gauge(periodMetric(class), period)
}

// Period returns the committed period for class.
func (c *Controller) Period(class types.EventClass) uint64 {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.periods[class]
}

// State returns the controller's view of every class for introspection.
func (c *Controller) State() []ClassState {
	c.mut.Lock()
	defer c.mut.Unlock()
	out := make([]ClassState, 0, types.NumEventClasses)
	for _, class := range types.AllEventClasses() {
		out = append(out, ClassState{
			Class:         class,
			CurrentPeriod: c.periods[class],
			TargetPeriod:  c.targets[class],
			Pinned:        c.pinned.Contains(class),
		})
	}
	return out
}
