// Package hardware is the boundary to the event counter hardware. The
// controller only ever asks it one thing: set the sampling period for an
// event class. Everything behind that call, PMU drivers, MSR writes, is
// outside this module.
package hardware

import (
	"github.com/tieredmem/thermostat/logger"
	"github.com/tieredmem/thermostat/types"
)

// PeriodSetter pushes a sampling period to the hardware for one event class.
// A failed set must leave the previous period in effect.
type PeriodSetter interface {
	SetPeriod(class types.EventClass, period uint64) error
}

// LoggingSetter is the stand-in used when no real hardware binding is
// compiled in. It records nothing and never fails; it exists so the full
// control loop can run end to end on a development machine.
type LoggingSetter struct {
	Logger logger.Logger `inject:""`
}

func (l *LoggingSetter) SetPeriod(class types.EventClass, period uint64) error {
	l.Logger.Debug().
		WithField("class", class.String()).
		WithField("period", period).
		Logf("set sampling period")
	return nil
}
