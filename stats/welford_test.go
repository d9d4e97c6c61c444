package stats

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// floatWelford mirrors the fixed-point recurrence in floating point,
// including the cold-start convention that the first sample contributes an
// implicit zero-length interval.
type floatWelford struct {
	last uint64
	n    int
	mean float64
	m2   float64
}

func (w *floatWelford) observe(now uint64) {
	if w.last == 0 {
		w.last = now
		w.n = 1
		return
	}
	if now <= w.last {
		return
	}
	x := float64(now - w.last)
	w.last = now
	w.n++
	delta := x - w.mean
	w.mean += delta / float64(w.n)
	w.m2 += delta * (x - w.mean)
}

func TestObserveColdStart(t *testing.T) {
	p := &PageStats{}
	assert.True(t, p.Observe(100))

	s := p.Snapshot()
	assert.Equal(t, uint64(100), s.LastHitTime)
	assert.Equal(t, uint64(1), s.SampleCount)
	assert.Equal(t, uint64(0), s.MeanInterval)
	assert.Equal(t, uint64(0), s.Fluctuation)
	assert.Equal(t, uint64(0), s.VarianceScaled())
}

func TestObserveScenario(t *testing.T) {
	// the worked scenario: samples at t = 100, 200, 350, 600
	p := &PageStats{}
	for _, ts := range []uint64{100, 200, 350, 600} {
		require.True(t, p.Observe(ts))
	}

	s := p.Snapshot()
	assert.Equal(t, uint64(600), s.LastHitTime)
	assert.Equal(t, uint64(4), s.SampleCount)

	// exact fixed-point results of the recurrence
	assert.Equal(t, uint64(127999), s.MeanInterval)
	assert.Equal(t, uint64(33280241), s.Fluctuation)

	// and they descale to the float reference within rounding error
	ref := &floatWelford{}
	for _, ts := range []uint64{100, 200, 350, 600} {
		ref.observe(ts)
	}
	assert.InDelta(t, ref.mean, float64(s.MeanInterval)/IntervalScale, 1.0)
	assert.InDelta(t, ref.m2, float64(s.Fluctuation)/IntervalScale, 1.0)
	assert.InDelta(t, ref.m2/3, float64(s.VarianceScaled())/IntervalScale, 1.0)
}

func TestObserveMatchesFloatReference(t *testing.T) {
	// a longer strictly increasing series with irregular gaps
	series := []uint64{7}
	for i := 1; i < 200; i++ {
		series = append(series, series[i-1]+uint64(3+(i*i*37)%911))
	}

	p := &PageStats{}
	ref := &floatWelford{}
	for _, ts := range series {
		p.Observe(ts)
		ref.observe(ts)
	}

	s := p.Snapshot()
	gotMean := float64(s.MeanInterval) / IntervalScale
	gotM2 := float64(s.Fluctuation) / IntervalScale

	// fixed-point truncation error grows with n but stays tiny relative to
	// the magnitudes involved
	assert.InEpsilon(t, ref.mean, gotMean, 0.01)
	assert.InEpsilon(t, ref.m2, gotM2, 0.01)
	assert.False(t, math.IsNaN(ref.mean))
}

func TestObserveRejectsNonMonotonic(t *testing.T) {
	p := &PageStats{}
	require.True(t, p.Observe(100))
	require.True(t, p.Observe(200))

	before := p.Snapshot()

	// equal and rewound timestamps are dropped with no state change
	assert.False(t, p.Observe(200))
	assert.False(t, p.Observe(150))

	assert.Equal(t, before, p.Snapshot())
}

func TestObserveConcurrent(t *testing.T) {
	// concurrent observers never corrupt the recurrence: with per-page
	// locking the accepted samples always form a strictly increasing
	// subsequence, so count stays consistent with lastHitTime
	p := &PageStats{}
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(base uint64) {
			defer wg.Done()
			for i := uint64(1); i <= 1000; i++ {
				p.Observe(base + i*10)
			}
		}(uint64(g))
	}
	wg.Wait()

	s := p.Snapshot()
	assert.LessOrEqual(t, s.SampleCount, uint64(8*1000))
	assert.Greater(t, s.SampleCount, uint64(0))
}

func TestVarianceScaledFewSamples(t *testing.T) {
	p := &PageStats{}
	p.Observe(10)
	assert.Equal(t, uint64(0), p.Snapshot().VarianceScaled())
	p.Observe(20)
	// n=2: variance divides by n-1=1
	assert.Equal(t, p.Snapshot().Fluctuation, p.Snapshot().VarianceScaled())
}
