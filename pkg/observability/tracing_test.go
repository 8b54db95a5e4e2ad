package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestStartSpan(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "embedding_cache.store",
		attribute.String("cache_key", "abc123"))

	assert.NotNil(t, ctx)
	assert.NotNil(t, span)

	// With no tracer provider installed the span is a noop; ending it
	// must still be safe.
	span.End()
}

func TestStartSpanPreservesContextValues(t *testing.T) {
	type ctxKey struct{}
	parent := context.WithValue(context.Background(), ctxKey{}, "kept")

	ctx, span := StartSpan(parent, "embedding_cache.retrieve")
	defer span.End()

	assert.Equal(t, "kept", ctx.Value(ctxKey{}))
}
