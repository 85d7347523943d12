// Package sctx provides the context-scoped logger, values, and tracing
// helpers shared by every package in scint, threading a logger and
// instance id through context.Context instead of passing a
// *logrus.Logger around explicitly.
package sctx

import (
	"context"

	"github.com/google/uuid"
)

type instanceIDKey struct{}

// WithInstanceID attaches a process-wide run identifier to ctx. GetLogger
// adds it as a field when the context carries no logger of its own.
func WithInstanceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, instanceIDKey{}, id)
}

// InstanceID returns the run identifier attached to ctx, or "" if none.
func InstanceID(ctx context.Context) string {
	v, _ := ctx.Value(instanceIDKey{}).(string)
	return v
}

// Background returns a context carrying a freshly generated instance
// id, for use as the root context of a scint run.
func Background() context.Context {
	return WithInstanceID(context.Background(), uuid.NewString())
}

type valuesKey struct{}

type valueMap map[string]interface{}

// WithValues returns a context that resolves string keys from m before
// falling back to parent. Used to attach ad hoc structured fields (job id,
// phase, full name) without minting a new context key type for each one.
func WithValues(ctx context.Context, m map[string]interface{}) context.Context {
	merged := make(valueMap, len(m))
	if existing, ok := ctx.Value(valuesKey{}).(valueMap); ok {
		for k, v := range existing {
			merged[k] = v
		}
	}
	for k, v := range m {
		merged[k] = v
	}
	return context.WithValue(ctx, valuesKey{}, merged)
}

// Value resolves a string key set via WithValues.
func Value(ctx context.Context, key string) interface{} {
	m, ok := ctx.Value(valuesKey{}).(valueMap)
	if !ok {
		return nil
	}
	return m[key]
}
