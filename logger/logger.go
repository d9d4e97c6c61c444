package logger

import (
	"fmt"

	"github.com/tieredmem/thermostat/config"
)

// Logger is a structured leveled logger. Components get one injected and emit
// through level-scoped entries so that expensive field construction can be
// skipped when the level is disabled.
type Logger interface {
	Debug() Entry
	Info() Entry
	Warn() Entry
	Error() Entry
	// SetLevel sets the logging level (debug, info, warn, error)
	SetLevel(level string) error
}

// Entry is a log entry under construction.
type Entry interface {
	WithField(key string, value interface{}) Entry
	WithFields(fields map[string]interface{}) Entry
	Logf(f string, args ...interface{})
}

// GetLoggerImplementation returns the configured Logger implementation.
func GetLoggerImplementation(c config.Config) (Logger, error) {
	switch typ := c.GetLoggerType(); typ {
	case "logrus", "stdout":
		return &LogrusLogger{}, nil
	case "none":
		return &NullLogger{}, nil
	default:
		return nil, fmt.Errorf("unknown logger type %q", typ)
	}
}
