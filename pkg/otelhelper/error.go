package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	StatusKey = "flowhost.status"

	faultEvent = "flowhost.fault"
)

// SetError records err on span and marks the span failed. attrs are attached
// to a fault event so the failing activity or workflow can be found.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.AddEvent(faultEvent, trace.WithAttributes(attrs...))
}

// SetStatus tags span with the status a pass ended in. Any status other
// than completed or blocked marks the span failed.
func SetStatus(span trace.Span, status string) {
	span.SetAttributes(attribute.String(StatusKey, status))

	switch status {
	case "completed", "blocked":
		span.SetStatus(codes.Ok, "")
	default:
		span.SetStatus(codes.Error, status)
	}
}
