// Package stats maintains per-page streaming statistics over inter-sample
// intervals. The estimator is Welford's online mean/variance algorithm in
// fixed-point integer arithmetic: runs must be bit-exact reproducible, so
// nothing in this path may touch floating point.
package stats

import "sync"

// IntervalScaleShift is the fixed-point scale for interval statistics:
// intervals are scaled by 1024 (left shift by 10) to keep fractional
// precision through the integer divisions.
const IntervalScaleShift = 10

// IntervalScale is 2^IntervalScaleShift.
const IntervalScale = 1 << IntervalScaleShift

// PageStats accumulates the access-interval statistics for one page. Several
// event classes can sample the same page concurrently, so every update and
// read goes through the page's own lock.
type PageStats struct {
	mu sync.Mutex

	// lastHitTime is the timestamp of the previous accepted sample;
	// 0 means uninitialized.
	lastHitTime uint64
	// sampleCount is the number of accepted samples.
	sampleCount uint64
	// meanInterval is the streaming mean of inter-sample intervals,
	// scaled by IntervalScale.
	meanInterval uint64
	// fluctuation is the streaming sum of squared deviations (Welford's M2),
	// scaled by IntervalScale. fluctuation/(sampleCount-1) approximates the
	// interval variance; a high value flags an access pattern that has not
	// settled yet.
	fluctuation uint64
}

// Snapshot is a consistent copy of a page's statistics.
type Snapshot struct {
	LastHitTime  uint64
	SampleCount  uint64
	MeanInterval uint64
	Fluctuation  uint64
}

// VarianceScaled returns fluctuation/(n-1), the sample variance of the
// inter-access interval at IntervalScale precision. Zero until two intervals
// have been observed.
func (s Snapshot) VarianceScaled() uint64 {
	if s.SampleCount < 2 {
		return 0
	}
	return s.Fluctuation / (s.SampleCount - 1)
}

// Observe folds the timestamp of a new sample into the statistics. It
// returns false when the sample is rejected: timestamps must be strictly
// increasing per page, and a non-increasing one indicates reordering between
// hardware contexts. Rejected samples mutate nothing; clamping them instead
// would corrupt the variance recurrence.
func (p *PageStats) Observe(now uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.lastHitTime == 0 {
		// cold start: no interval to measure yet
		p.lastHitTime = now
		p.sampleCount = 1
		p.meanInterval = 0
		p.fluctuation = 0
		return true
	}

	if now <= p.lastHitTime {
		return false
	}

	interval := now - p.lastHitTime
	scaled := interval << IntervalScaleShift

	p.lastHitTime = now
	p.sampleCount++
	n := int64(p.sampleCount)

	// mean_n = mean_{n-1} + (x - mean_{n-1}) / n
	delta := int64(scaled) - int64(p.meanInterval)
	p.meanInterval = uint64(int64(p.meanInterval) + delta/n)

	// M2_n = M2_{n-1} + (x - mean_{n-1}) * (x - mean_n)
	// the product carries scale^2, shift once to get back to scale
	delta2 := int64(scaled) - int64(p.meanInterval)
	p.fluctuation += uint64((delta * delta2) >> IntervalScaleShift)

	return true
}

// Snapshot returns a consistent copy of the current statistics.
func (p *PageStats) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Snapshot{
		LastHitTime:  p.lastHitTime,
		SampleCount:  p.sampleCount,
		MeanInterval: p.meanInterval,
		Fluctuation:  p.fluctuation,
	}
}
