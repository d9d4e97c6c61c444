package tracker

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tieredmem/thermostat/types"
)

func TestOverheadCounter(t *testing.T) {
	var o OverheadCounter

	o.Increment(types.L3Miss)
	o.Increment(types.L3Miss)
	o.Increment(types.DRAMRead)

	assert.Equal(t, uint64(2), o.Load(types.L3Miss))
	assert.Equal(t, uint64(1), o.Load(types.DRAMRead))
	assert.Equal(t, uint64(0), o.Load(types.L1Hit))

	o.Reset(types.L3Miss)
	assert.Equal(t, uint64(0), o.Load(types.L3Miss))
	assert.Equal(t, uint64(1), o.Load(types.DRAMRead))

	o.ResetAll()
	for _, class := range types.AllEventClasses() {
		assert.Equal(t, uint64(0), o.Load(class))
	}
}

func TestOverheadCounterConcurrent(t *testing.T) {
	var o OverheadCounter
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				o.Increment(types.MemWrite)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, uint64(8000), o.Load(types.MemWrite))
}
