// Package health tracks liveness and readiness of the controller's
// subsystems. Subsystems register with the interval they promise to report
// at; a subsystem that goes quiet past its deadline takes the whole process
// to not-alive. Ready is weaker than alive: a subsystem can report in while
// declining traffic, which is how shutdown drains look from the outside.
package health

import (
	"sync"
	"time"

	"github.com/facebookgo/startstop"
	"github.com/jonboulle/clockwork"

	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/metrics"
)

// Recorder is the write side: subsystems report their own status through it.
type Recorder interface {
	Register(subsystem string, timeout time.Duration)
	Unregister(subsystem string)
	Ready(subsystem string, ready bool)
}

// Reporter is the read side, used wherever process health gets served.
type Reporter interface {
	IsAlive() bool
	IsReady() bool
}

var healthMetrics = []metrics.Metadata{
	{Name: "is_ready", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "Whether the whole process is ready"},
	{Name: "is_alive", Type: metrics.Gauge, Unit: metrics.Dimensionless, Description: "Whether the whole process is alive"},
}

// Health is the shared implementation of both sides. Liveness is judged by
// deadline: every Ready call pushes the subsystem's deadline out by its
// registered timeout, and the checks compare deadlines against the clock at
// read time. There is no background goroutine to keep alive.
type Health struct {
	Clock   clockwork.Clock `inject:""`
	Metrics metrics.Metrics `inject:""`
	Logger  logger.Logger   `inject:""`

	mut       sync.RWMutex
	timeouts  map[string]time.Duration
	deadlines map[string]time.Time
	readies   map[string]bool

	startstop.Starter
	startstop.Stopper
	Recorder
	Reporter
}

func (h *Health) Start() error {
	if h.Logger == nil {
		h.Logger = &logger.NullLogger{}
	}
	if h.Metrics == nil {
		h.Metrics = &metrics.NullMetrics{}
	}
	if h.Clock == nil {
		h.Clock = clockwork.NewRealClock()
	}
	for _, metadata := range healthMetrics {
		h.Metrics.Register(metadata)
	}
	h.timeouts = make(map[string]time.Duration)
	h.deadlines = make(map[string]time.Time)
	h.readies = make(map[string]bool)
	return nil
}

func (h *Health) Stop() error {
	return nil
}

// Register adds a subsystem. The deadline clock only starts on its first
// Ready call, so a slow-starting subsystem is not dead on arrival.
func (h *Health) Register(subsystem string, timeout time.Duration) {
	h.mut.Lock()
	defer h.mut.Unlock()
	h.timeouts[subsystem] = timeout
	h.readies[subsystem] = false
	h.Logger.Debug().WithFields(map[string]any{
		"subsystem": subsystem,
		"timeout":   timeout,
	}).Logf("registered health reporting")
}

// Unregister removes a subsystem from liveness tracking and pins it not
// ready. Late reports from it are ignored.
func (h *Health) Unregister(subsystem string) {
	h.mut.Lock()
	defer h.mut.Unlock()
	delete(h.timeouts, subsystem)
	delete(h.deadlines, subsystem)
	h.readies[subsystem] = false
}

// Ready records a report from a subsystem and refreshes its deadline.
// Reporting keeps a subsystem alive whether or not it is ready.
func (h *Health) Ready(subsystem string, ready bool) {
	h.mut.Lock()
	defer h.mut.Unlock()
	timeout, ok := h.timeouts[subsystem]
	if !ok {
		if _, known := h.readies[subsystem]; !known {
			h.Logger.Error().WithField("subsystem", subsystem).Logf("Ready called for unregistered subsystem")
		}
		return
	}
	if h.readies[subsystem] != ready {
		h.Logger.Info().WithFields(map[string]any{
			"subsystem": subsystem,
			"ready":     ready,
		}).Logf("subsystem changed readiness")
	}
	h.readies[subsystem] = ready
	h.deadlines[subsystem] = h.Clock.Now().Add(timeout)
	h.Metrics.Gauge("is_ready", h.checkReady())
	h.Metrics.Gauge("is_alive", h.checkAlive())
}

// IsAlive returns true while every registered subsystem that has started
// reporting is inside its deadline.
func (h *Health) IsAlive() bool {
	h.mut.RLock()
	defer h.mut.RUnlock()
	return h.checkAlive()
}

// checkAlive needs at least a read lock held.
func (h *Health) checkAlive() bool {
	now := h.Clock.Now()
	for subsystem, deadline := range h.deadlines {
		if now.After(deadline) {
			h.Logger.Error().WithField("subsystem", subsystem).Logf("subsystem dead due to timeout")
			return false
		}
	}
	return true
}

// IsReady returns true once every registered subsystem has reported ready
// and none has gone quiet.
func (h *Health) IsReady() bool {
	h.mut.RLock()
	defer h.mut.RUnlock()
	return h.checkReady()
}

// checkReady needs at least a read lock held.
func (h *Health) checkReady() bool {
	if len(h.readies) == 0 {
		return false
	}
	if !h.checkAlive() {
		return false
	}
	for subsystem, ready := range h.readies {
		if !ready {
			h.Logger.Debug().WithField("subsystem", subsystem).Logf("not ready")
			return false
		}
		if _, reported := h.deadlines[subsystem]; !reported {
			return false
		}
	}
	return true
}
