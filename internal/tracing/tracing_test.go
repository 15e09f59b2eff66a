package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartSpanRecordsError(t *testing.T) {
	tracer := mocktracer.New()
	prev := opentracing.GlobalTracer()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(prev)

	span, ctx := StartSpan(context.Background(), "session.start")
	child, _ := StartSpan(ctx, "stage.camera_permission")
	SetTag(child, "session_id", "sess-1")
	LogError(child, errors.New("denied"))
	FinishSpan(child)
	FinishSpan(span)

	finished := tracer.FinishedSpans()
	require.Len(t, finished, 2)
	assert.Equal(t, "stage.camera_permission", finished[0].OperationName)
	assert.Equal(t, true, finished[0].Tag("error"))
	assert.Equal(t, "sess-1", finished[0].Tag("session_id"))
	assert.Equal(t, finished[1].SpanContext.SpanID, finished[0].ParentID)
}

func TestSetupDisabled(t *testing.T) {
	closer, err := Setup(false, "ark-api", "")
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
}

func TestNilSpanHelpers(t *testing.T) {
	FinishSpan(nil)
	LogError(nil, errors.New("ignored"))
	SetTag(nil, "k", "v")
}
