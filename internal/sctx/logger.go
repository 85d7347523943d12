package sctx

import (
	"context"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"
)

var (
	defaultLogger   = logrus.StandardLogger().WithField("go.version", runtime.Version())
	defaultLoggerMu sync.RWMutex
)

// Logger is the leveled-logging interface every scint component logs
// through. It is satisfied by *logrus.Entry.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})
	Info(args ...interface{})
	Infof(format string, args ...interface{})
	Warn(args ...interface{})
	Warnf(format string, args ...interface{})
	Error(args ...interface{})
	Errorf(format string, args ...interface{})
	WithError(err error) *logrus.Entry
}

type loggerKey struct{}

// WithLogger attaches logger to ctx, to be retrieved with GetLogger.
func WithLogger(ctx context.Context, logger Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// SetDefaultLogger replaces the package-wide fallback logger used when a
// context carries none.
func SetDefaultLogger(entry *logrus.Entry) {
	defaultLoggerMu.Lock()
	defaultLogger = entry
	defaultLoggerMu.Unlock()
}

// GetLogger returns the logger attached to ctx, falling back to the default
// logger annotated with the context's instance id. If keys are given, each
// is resolved against ctx (via Value) and included as a field.
func GetLogger(ctx context.Context, keys ...string) Logger {
	return getEntry(ctx, keys...)
}

// GetLoggerWithField is a convenience wrapper returning a logger with one
// extra field set, without mutating ctx.
func GetLoggerWithField(ctx context.Context, key string, value interface{}, keys ...string) Logger {
	return getEntry(ctx, keys...).WithField(key, value)
}

// Entry returns the concrete *logrus.Entry backing ctx's logger, for
// callers (like fswatch) that need logrus's full API rather than the
// Logger interface's leveled subset.
func Entry(ctx context.Context, keys ...string) *logrus.Entry {
	return getEntry(ctx, keys...)
}

func getEntry(ctx context.Context, keys ...string) *logrus.Entry {
	var entry *logrus.Entry
	if v := ctx.Value(loggerKey{}); v != nil {
		if e, ok := v.(*logrus.Entry); ok {
			entry = e
		} else if l, ok := v.(Logger); ok {
			if e, ok := l.(*logrus.Entry); ok {
				entry = e
			}
		}
	}

	if entry == nil {
		fields := logrus.Fields{}
		if id := InstanceID(ctx); id != "" {
			fields["instance.id"] = id
		}
		defaultLoggerMu.RLock()
		entry = defaultLogger.WithFields(fields)
		defaultLoggerMu.RUnlock()
	}

	extra := logrus.Fields{}
	for _, k := range keys {
		if v := Value(ctx, k); v != nil {
			extra[k] = v
		}
	}
	if len(extra) == 0 {
		return entry
	}
	return entry.WithFields(extra)
}
