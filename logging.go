// logging.go: the engine's logging surface.
package shapelang

// Logger is the minimal leveled, key-value logging interface the runtime
// emits through. It matches the call shape of charmbracelet/log, which the
// shape CLI plugs in; embedders can pass any implementation, and the default
// discards everything.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// NopLogger returns a Logger that discards all records.
func NopLogger() Logger { return nopLogger{} }
