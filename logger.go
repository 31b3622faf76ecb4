package realtime

// Logger is the logging seam of the package. Implementations must be safe
// for concurrent use. WithField returns a derived logger carrying the extra
// key/value pair on every line.
type Logger interface {
	WithField(key string, value any) Logger
	Debug(args ...any)
	Debugf(format string, args ...any)
	Info(args ...any)
	Infof(format string, args ...any)
	Warn(args ...any)
	Warnf(format string, args ...any)
	Error(args ...any)
	Errorf(format string, args ...any)
}
