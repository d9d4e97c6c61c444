package health

import "sync"

// MockReporter is a settable Reporter for tests.
type MockReporter struct {
	mut     sync.Mutex
	isAlive bool
	isReady bool
}

func (m *MockReporter) SetAlive(alive bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.isAlive = alive
}

func (m *MockReporter) IsAlive() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.isAlive
}

func (m *MockReporter) SetReady(ready bool) {
	m.mut.Lock()
	defer m.mut.Unlock()
	m.isReady = ready
}

func (m *MockReporter) IsReady() bool {
	m.mut.Lock()
	defer m.mut.Unlock()
	return m.isReady
}
