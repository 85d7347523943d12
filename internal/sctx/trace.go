package sctx

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/kraklabs/scint")

// StartSpan opens a span named name as a child of whatever tracer is
// currently registered with the global otel TracerProvider. Installations
// that don't configure an exporter get the otel no-op tracer for free, so
// this is always safe to call on the hot dispatch path.
func StartSpan(ctx context.Context, name string, kvs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(kvs...))
}
