package logger

import (
	"fmt"
	"strings"
	"sync"
)

// MockLogger records all log events so tests can assert on them.
type MockLogger struct {
	Events []*MockLoggerEvent

	lock sync.Mutex
}

type MockLoggerEvent struct {
	l      *MockLogger
	Level  string
	Fields map[string]interface{}
	Msg    string
}

func (l *MockLogger) Debug() Entry { return l.event("debug") }
func (l *MockLogger) Info() Entry  { return l.event("info") }
func (l *MockLogger) Warn() Entry  { return l.event("warn") }
func (l *MockLogger) Error() Entry { return l.event("error") }

func (l *MockLogger) SetLevel(level string) error { return nil }

func (l *MockLogger) event(level string) *MockLoggerEvent {
	return &MockLoggerEvent{
		l:      l,
		Level:  level,
		Fields: make(map[string]interface{}),
	}
}

// CountMessagesContaining returns the number of recorded messages containing s.
func (l *MockLogger) CountMessagesContaining(s string) int {
	l.lock.Lock()
	defer l.lock.Unlock()
	n := 0
	for _, e := range l.Events {
		if strings.Contains(e.Msg, s) {
			n++
		}
	}
	return n
}

func (e *MockLoggerEvent) WithField(key string, value interface{}) Entry {
	e.Fields[key] = value
	return e
}

func (e *MockLoggerEvent) WithFields(fields map[string]interface{}) Entry {
	for k, v := range fields {
		e.Fields[k] = v
	}
	return e
}

func (e *MockLoggerEvent) Logf(f string, args ...interface{}) {
	e.Msg = fmt.Sprintf(f, args...)
	e.l.lock.Lock()
	defer e.l.lock.Unlock()
	e.l.Events = append(e.l.Events, e)
}
