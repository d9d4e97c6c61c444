package tracker

import (
	"sync/atomic"

	"github.com/tieredmem/thermostat/types"
)

// OverheadCounter counts accepted samples per event class between control
// ticks. Increment sits on the hot sampling path, so the counters are plain
// atomics with no locking.
type OverheadCounter struct {
	counts [types.NumEventClasses]atomic.Uint64
}

func (o *OverheadCounter) Increment(class types.EventClass) {
	o.counts[class].Add(1)
}

func (o *OverheadCounter) Load(class types.EventClass) uint64 {
	return o.counts[class].Load()
}

// Reset zeroes one class's counter at the start of a new control window.
func (o *OverheadCounter) Reset(class types.EventClass) {
	o.counts[class].Store(0)
}

func (o *OverheadCounter) ResetAll() {
	for _, class := range types.AllEventClasses() {
		o.counts[class].Store(0)
	}
}
