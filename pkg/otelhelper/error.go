package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks a span as failed: the error is recorded, the span status is
// set, and the identifying attributes (session id, run id) are attached to
// the failure event so blocked commands stay searchable by id.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent("command_failed", trace.WithAttributes(
		attrs...,
	))
}
