package logger

// NullLogger swallows everything; it is the default for tests.
type NullLogger struct{}

type nullLoggerEntry struct{}

var nullEntry = &nullLoggerEntry{}

func (n *NullLogger) Debug() Entry                { return nullEntry }
func (n *NullLogger) Info() Entry                 { return nullEntry }
func (n *NullLogger) Warn() Entry                 { return nullEntry }
func (n *NullLogger) Error() Entry                { return nullEntry }
func (n *NullLogger) SetLevel(level string) error { return nil }

func (n *nullLoggerEntry) WithField(key string, value interface{}) Entry  { return n }
func (n *nullLoggerEntry) WithFields(fields map[string]interface{}) Entry { return n }
func (n *nullLoggerEntry) Logf(f string, args ...interface{})             {}
