// Package upnplog provides the context-aware leveled logging used across
// the UPnP stack. Every engine logs through these helpers instead of
// calling logrus directly, so call sites read "what happened" without
// repeating the logger plumbing.
package upnplog

import (
	"context"

	"github.com/sirupsen/logrus"
)

type ctxKey int

const fieldsKey ctxKey = 0

var std = logrus.New()

// SetLevel adjusts the package-wide log level (debug, info, warn, error).
func SetLevel(level logrus.Level) {
	std.SetLevel(level)
}

// WithFields returns a derived context that carries structured fields
// (e.g. "udn", "interface") applied to every subsequent log call made
// with that context.
func WithFields(ctx context.Context, kv ...interface{}) context.Context {
	fields := fieldsFrom(ctx)
	merged := make(logrus.Fields, len(fields)+len(kv)/2)
	for k, v := range fields {
		merged[k] = v
	}
	for k, v := range kvToFields(kv) {
		merged[k] = v
	}
	return context.WithValue(ctx, fieldsKey, merged)
}

func fieldsFrom(ctx context.Context) logrus.Fields {
	if ctx == nil {
		return logrus.Fields{}
	}
	if f, ok := ctx.Value(fieldsKey).(logrus.Fields); ok {
		return f
	}
	return logrus.Fields{}
}

func kvToFields(kv []interface{}) logrus.Fields {
	fields := make(logrus.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		fields[key] = kv[i+1]
	}
	return fields
}

func entry(ctx context.Context, kv []interface{}) *logrus.Entry {
	fields := fieldsFrom(ctx)
	extra := kvToFields(kv)
	merged := make(logrus.Fields, len(fields)+len(extra))
	for k, v := range fields {
		merged[k] = v
	}
	for k, v := range extra {
		merged[k] = v
	}
	return std.WithFields(merged)
}

func Debug(ctx context.Context, msg string, kv ...interface{}) {
	entry(ctx, kv).Debug(msg)
}

func Info(ctx context.Context, msg string, kv ...interface{}) {
	entry(ctx, kv).Info(msg)
}

func Warn(ctx context.Context, msg string, err error, kv ...interface{}) {
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Warn(msg)
}

func Error(ctx context.Context, msg string, err error, kv ...interface{}) {
	e := entry(ctx, kv)
	if err != nil {
		e = e.WithError(err)
	}
	e.Error(msg)
}
