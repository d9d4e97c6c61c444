package tune

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/hardware"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
	"github.com/tieredmem/thermostat/score"
	"github.com/tieredmem/thermostat/types"
)

func newTestController(t *testing.T, cc config.ControllerConfig) (*Controller, *hardware.MockHardware, *metrics.MockMetrics) {
	t.Helper()
	hw := &hardware.MockHardware{}
	met := &metrics.MockMetrics{}
	met.Start()
	c, err := NewController(cc, hw, met, &logger.NullLogger{})
	require.NoError(t, err)
	return c, hw, met
}

func scoreFor(class types.EventClass, vNormalized int64) score.ClassScore {
	return score.ClassScore{Class: class, VNormalized: vNormalized}
}

func TestMapScoreToPeriodEndpoints(t *testing.T) {
	c, _, _ := newTestController(t, config.DefaultControllerConfig())

	// full value means sample as hard as allowed, zero means as little
	assert.Equal(t, uint64(2000), c.MapScoreToPeriod(10000))
	assert.Equal(t, uint64(200000), c.MapScoreToPeriod(0))
	assert.Equal(t, uint64(101000), c.MapScoreToPeriod(5000))

	// out-of-range values clamp rather than wrap
	assert.Equal(t, uint64(200000), c.MapScoreToPeriod(-50))
	assert.Equal(t, uint64(2000), c.MapScoreToPeriod(99999))
}

func TestApplyInitialPushesEveryClass(t *testing.T) {
	cc := config.DefaultControllerConfig()
	c, hw, _ := newTestController(t, cc)

	c.ApplyInitial()

	calls := hw.Calls()
	require.Len(t, calls, types.NumEventClasses)
	for _, call := range calls {
		assert.Equal(t, cc.InitialPeriod, call.Period)
	}
}

func TestRetuneSmoothsTowardTarget(t *testing.T) {
	cc := config.DefaultControllerConfig()
	c, hw, _ := newTestController(t, cc)

	// one EMA step of 3/10 from 20000 toward 2000
	c.Retune([]score.ClassScore{scoreFor(types.L3Miss, 10000)})
	assert.Equal(t, uint64(14600), c.Period(types.L3Miss))

	p, ok := hw.LastPeriod(types.L3Miss)
	require.True(t, ok)
	assert.Equal(t, uint64(14600), p)

	// unscored classes are untouched
	assert.Equal(t, cc.InitialPeriod, c.Period(types.L1Hit))
	_, ok = hw.LastPeriod(types.L1Hit)
	assert.False(t, ok)
}

func TestRetuneConvergesToTarget(t *testing.T) {
	c, _, _ := newTestController(t, config.DefaultControllerConfig())

	for i := 0; i < 50; i++ {
		c.Retune([]score.ClassScore{scoreFor(types.DRAMRead, 10000)})
	}
	// integer EMA stalls once the step truncates to zero, within a few
	// units of the target
	assert.InDelta(t, 2000, float64(c.Period(types.DRAMRead)), 3)

	for i := 0; i < 50; i++ {
		c.Retune([]score.ClassScore{scoreFor(types.DRAMRead, 0)})
	}
	assert.InDelta(t, 200000, float64(c.Period(types.DRAMRead)), 3)
}

func TestHardwareRejectionKeepsPreviousPeriod(t *testing.T) {
	cc := config.DefaultControllerConfig()
	c, hw, met := newTestController(t, cc)
	hw.FailFor = map[types.EventClass]error{
		types.L1Miss: errors.New("invalid period"),
	}

	c.Retune([]score.ClassScore{scoreFor(types.L1Miss, 10000)})

	assert.Equal(t, cc.InitialPeriod, c.Period(types.L1Miss))
	assert.Equal(t, 1, met.CounterIncrements["tune_hardware_errors"])

	// state persisted, so the next tick retries from where it left off
	hw.FailFor = nil
	c.Retune([]score.ClassScore{scoreFor(types.L1Miss, 10000)})
	assert.Equal(t, uint64(14600), c.Period(types.L1Miss))
}

func TestPinnedClassIsNeverRetuned(t *testing.T) {
	cc := config.DefaultControllerConfig()
	cc.PinnedClasses = []string{"l2_hit"}
	c, hw, _ := newTestController(t, cc)

	c.Retune([]score.ClassScore{
		scoreFor(types.L2Hit, 10000),
		scoreFor(types.L2Miss, 10000),
	})

	assert.Equal(t, cc.InitialPeriod, c.Period(types.L2Hit))
	_, ok := hw.LastPeriod(types.L2Hit)
	assert.False(t, ok)
	assert.Equal(t, uint64(14600), c.Period(types.L2Miss))

	for _, s := range c.State() {
		if s.Class == types.L2Hit {
			assert.True(t, s.Pinned)
		}
	}
}

func TestBudgetGuardSlowsAllClasses(t *testing.T) {
	cc := config.DefaultControllerConfig()
	// a rate this high makes the initial periods cost 450000 expected
	// samples against a budget of 50000
	cc.AssumedEventRate = 1_000_000_000
	c, _, met := newTestController(t, cc)

	c.Retune(nil)

	// 20000 * 450000/50000, still under the max bound
	for _, class := range types.AllEventClasses() {
		assert.Equal(t, uint64(180000), c.Period(class))
	}
	assert.Equal(t, 1, met.CounterIncrements["tune_budget_clamps"])
}

func TestBudgetGuardStaysIdleAtDefaults(t *testing.T) {
	c, _, met := newTestController(t, config.DefaultControllerConfig())

	// even with every class demanding maximum sampling, the default rate
	// estimate stays inside the budget
	var scores []score.ClassScore
	for _, class := range types.AllEventClasses() {
		scores = append(scores, scoreFor(class, 10000))
	}
	for i := 0; i < 50; i++ {
		c.Retune(scores)
	}
	assert.Equal(t, 0, met.CounterIncrements["tune_budget_clamps"])
	assert.InDelta(t, 2000, float64(c.Period(types.L1Hit)), 3)
}
