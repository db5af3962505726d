package instrumentation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithProvider("google").
		WithOperation(OperationStart).
		WithSkill("skill-gmail").
		WithOrg("org-1").
		Build()

	want := []attribute.KeyValue{
		attribute.String(SpanAttrProvider, "google"),
		attribute.String(SpanAttrOperation, OperationStart),
		attribute.String(SpanAttrSkill, "skill-gmail"),
		attribute.String(SpanAttrOrg, "org-1"),
	}
	assert.Equal(t, want, attrs)
}

func TestSpanAttributeBuilder_SkipsEmptyOptionals(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithProvider("google").
		WithSkill("").
		WithOrg("").
		Build()

	assert.Len(t, attrs, 1)
}

func TestStartFlowSpan(t *testing.T) {
	ctx, span := StartFlowSpan(context.Background(), OperationStart, "google")
	defer span.End()

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
	assert.Empty(t, GetSpanID(context.Background()))
}

func TestSetSpanError_NilSafe(t *testing.T) {
	_, span := StartSpan(context.Background(), "test")
	defer span.End()

	assert.NotPanics(t, func() {
		SetSpanError(span, nil)
		SetSpanSuccess(span)
	})
}
