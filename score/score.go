// Package score turns the raw signals for one event class, tracked pages,
// interval fluctuation and sample overhead, into a single normalized value
// that the period controller can act on. Everything here is fixed-point
// integer arithmetic so results are bit-exact across runs.
package score

import (
	"fmt"
	"math/bits"

	"github.com/tieredmem/thermostat/config"
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/tracker"
	"github.com/tieredmem/thermostat/types"
)

// ScoreScale is the fixed-point scale for all scores: sub-scores and the
// normalized value live in [0, ScoreScale].
const ScoreScale = 10000

// ClassScore is the scoring output for one event class at one control tick.
type ClassScore struct {
	Class       types.EventClass
	Volatility  int64
	Hotness     int64
	Overhead    int64
	VRaw        int64
	VNormalized int64
}

// Engine computes ClassScores. It is a pure function of the snapshots it is
// handed; it mutates nothing and resets nothing.
type Engine struct {
	Logger logger.Logger

	fluctuationCeiling uint64
	hitCeiling         uint64
	overheadCeiling    uint64

	wVolatility int64
	wHotness    int64
	wOverhead   int64

	// vMin and vMax are the reachable bounds of VRaw, derived from the
	// weights; negative weights contribute to vMin, positive to vMax
	vMin int64
	vMax int64
}

// NewEngine derives an Engine from the controller configuration.
func NewEngine(cc config.ControllerConfig, lgr logger.Logger) (*Engine, error) {
	e := &Engine{
		Logger:             lgr,
		fluctuationCeiling: cc.FluctuationCeiling,
		hitCeiling:         cc.HitCeiling,
		overheadCeiling:    cc.OverheadCeiling,
		wVolatility:        int64(cc.WeightVolatility),
		wHotness:           int64(cc.WeightHotness),
		wOverhead:          int64(cc.WeightOverhead),
	}
	for _, w := range []int64{e.wVolatility, e.wHotness, e.wOverhead} {
		if w < 0 {
			e.vMin += w
		} else {
			e.vMax += w
		}
	}
	if e.vMin >= e.vMax {
		return nil, fmt.Errorf("score weights give an empty value range [%d, %d]", e.vMin, e.vMax)
	}
	return e, nil
}

// Bounds returns the reachable [min, max] interval of VRaw.
func (e *Engine) Bounds() (int64, int64) { return e.vMin, e.vMax }

// Score computes the ClassScore for one event class from its tracker
// snapshot and the samples accepted since the last tick.
func (e *Engine) Score(snap tracker.Snapshot, overheadCount uint64) ClassScore {
	s := ClassScore{
		Class:      snap.Class,
		Volatility: e.volatilityScore(snap),
		Hotness:    e.hotnessScore(snap),
		Overhead:   scaleLinear(overheadCount, e.overheadCeiling),
	}

	s.VRaw = (e.wVolatility*s.Volatility + e.wHotness*s.Hotness + e.wOverhead*s.Overhead) / ScoreScale
	s.VNormalized = clamp((s.VRaw-e.vMin)*ScoreScale/(e.vMax-e.vMin), 0, ScoreScale)

	e.Logger.Debug().WithFields(map[string]interface{}{
		"class":        snap.Class.String(),
		"volatility":   s.Volatility,
		"hotness":      s.Hotness,
		"overhead":     s.Overhead,
		"v_raw":        s.VRaw,
		"v_normalized": s.VNormalized,
	}).Logf("scored event class")

	return s
}

// volatilityScore is the average interval fluctuation across tracked pages,
// scaled against the ceiling. An empty tracker scores zero.
func (e *Engine) volatilityScore(snap tracker.Snapshot) int64 {
	if len(snap.Entries) == 0 {
		return 0
	}
	// each term saturates at the ceiling, but a heap's worth of ceiling-sized
	// terms can still exceed 64 bits, so the sum is accumulated in 128 bits
	var hi, lo uint64
	for _, entry := range snap.Entries {
		f := entry.Stats.Fluctuation
		if f > e.fluctuationCeiling {
			f = e.fluctuationCeiling
		}
		var carry uint64
		lo, carry = bits.Add64(lo, f, 0)
		hi += carry
	}
	// sum <= n*ceiling guarantees hi < n and an average that fits in 64 bits
	n := uint64(len(snap.Entries))
	avg, _ := bits.Div64(hi, lo, n)
	return scaleLinear(avg, e.fluctuationCeiling)
}

// hotnessScore is the average hit count scaled against the ceiling, plus a
// small density bonus for a full tracker. A broad hot set at high average
// count is worth slightly more than the raw average alone.
func (e *Engine) hotnessScore(snap tracker.Snapshot) int64 {
	if len(snap.Entries) == 0 {
		return 0
	}
	var sum uint64
	for _, entry := range snap.Entries {
		sum += uint64(entry.HitCount)
	}
	base := scaleLinear(sum/uint64(len(snap.Entries)), e.hitCeiling)
	density := int64(len(snap.Entries)) * 100 / int64(snap.Capacity)
	if base+density > ScoreScale {
		return ScoreScale
	}
	return base + density
}

// scaleLinear maps value linearly onto [0, ScoreScale] against ceiling,
// saturating at the top. The widening multiply keeps value*ScoreScale from
// overflowing for large ceilings.
func scaleLinear(value, ceiling uint64) int64 {
	if value >= ceiling {
		return ScoreScale
	}
	hi, lo := bits.Mul64(value, ScoreScale)
	// value < ceiling bounds the quotient below ScoreScale, so Div64 cannot
	// overflow here
	q, _ := bits.Div64(hi, lo, ceiling)
	return int64(q)
}

func clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
