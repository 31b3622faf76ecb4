package realtime

import (
	"fmt"
	"log/slog"
)

// slogLogger adapts a *slog.Logger to the package Logger interface.
type slogLogger struct {
	inner *slog.Logger
}

// NewSlogLogger wraps an *slog.Logger. Passing nil uses slog.Default().
func NewSlogLogger(l *slog.Logger) Logger {
	if l == nil {
		l = slog.Default()
	}
	return &slogLogger{inner: l}
}

func (l *slogLogger) WithField(key string, value any) Logger {
	return &slogLogger{inner: l.inner.With(key, value)}
}

func (l *slogLogger) Debug(args ...any) { l.inner.Debug(fmt.Sprint(args...)) }
func (l *slogLogger) Info(args ...any)  { l.inner.Info(fmt.Sprint(args...)) }
func (l *slogLogger) Warn(args ...any)  { l.inner.Warn(fmt.Sprint(args...)) }
func (l *slogLogger) Error(args ...any) { l.inner.Error(fmt.Sprint(args...)) }

func (l *slogLogger) Debugf(format string, args ...any) {
	l.inner.Debug(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Infof(format string, args ...any) {
	l.inner.Info(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Warnf(format string, args ...any) {
	l.inner.Warn(fmt.Sprintf(format, args...))
}

func (l *slogLogger) Errorf(format string, args ...any) {
	l.inner.Error(fmt.Sprintf(format, args...))
}
