package logger

import (
	"github.com/sirupsen/logrus"
)

// LogrusLogger sends all logs to stdout using the Logrus package to get nice
// formatting.
type LogrusLogger struct {
	logger *logrus.Logger
	level  *logrus.Level
}

type logrusEntry struct {
	entry *logrus.Entry
	level logrus.Level
}

func (l *LogrusLogger) Start() error {
	l.logger = logrus.New()
	if l.level != nil {
		l.logger.SetLevel(*l.level)
	}
	return nil
}

func (l *LogrusLogger) Debug() Entry {
	return l.entryAt(logrus.DebugLevel)
}

func (l *LogrusLogger) Info() Entry {
	return l.entryAt(logrus.InfoLevel)
}

func (l *LogrusLogger) Warn() Entry {
	return l.entryAt(logrus.WarnLevel)
}

func (l *LogrusLogger) Error() Entry {
	return l.entryAt(logrus.ErrorLevel)
}

func (l *LogrusLogger) entryAt(level logrus.Level) Entry {
	if l.logger == nil || !l.logger.IsLevelEnabled(level) {
		return nullEntry
	}
	return &logrusEntry{
		entry: logrus.NewEntry(l.logger),
		level: level,
	}
}

func (l *LogrusLogger) SetLevel(level string) error {
	logrusLevel, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	// record the choice and set it if we're already initialized
	l.level = &logrusLevel
	if l.logger != nil {
		l.logger.SetLevel(logrusLevel)
	}
	return nil
}

func (e *logrusEntry) WithField(key string, value interface{}) Entry {
	return &logrusEntry{
		entry: e.entry.WithField(key, value),
		level: e.level,
	}
}

func (e *logrusEntry) WithFields(fields map[string]interface{}) Entry {
	return &logrusEntry{
		entry: e.entry.WithFields(fields),
		level: e.level,
	}
}

func (e *logrusEntry) Logf(f string, args ...interface{}) {
	e.entry.Logf(e.level, f, args...)
}
