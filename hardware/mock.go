package hardware

import (
	"sync"

	"github.com/tieredmem/thermostat/types"
)

// SetCall is one recorded SetPeriod invocation.
type SetCall struct {
	Class  types.EventClass
	Period uint64
}

// MockHardware records every SetPeriod call and can be told to fail for
// specific classes. Only for use in tests.
type MockHardware struct {
	// FailFor makes SetPeriod return the given error for that class.
	FailFor map[types.EventClass]error

	mut   sync.Mutex
	calls []SetCall
}

func (m *MockHardware) SetPeriod(class types.EventClass, period uint64) error {
	if err, ok := m.FailFor[class]; ok {
		return err
	}
	m.mut.Lock()
	defer m.mut.Unlock()
	m.calls = append(m.calls, SetCall{Class: class, Period: period})
	return nil
}

// Calls returns a copy of the recorded calls in order.
func (m *MockHardware) Calls() []SetCall {
	m.mut.Lock()
	defer m.mut.Unlock()
	out := make([]SetCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// LastPeriod returns the most recently accepted period for class.
func (m *MockHardware) LastPeriod(class types.EventClass) (uint64, bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	for i := len(m.calls) - 1; i >= 0; i-- {
		if m.calls[i].Class == class {
			return m.calls[i].Period, true
		}
	}
	return 0, false
}
