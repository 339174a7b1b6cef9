package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_NoDSNIsNoop(t *testing.T) {
	shutdown, err := Init(Config{})
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	shutdown()
}

func TestStartSpan_WithoutClient(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "retriever.retrieve", SpanAttributes{
		Operation: "retrieve",
		TopK:      5,
	})
	require.NotNil(t, ctx)
	require.NotNil(t, span)

	span.SetData("results", 3)
	span.SetError(errors.New("boom"))
	span.End()
}

func TestTrace_PropagatesResultAndError(t *testing.T) {
	n, err := Trace(context.Background(), "stage", SpanAttributes{}, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 7, n)

	want := errors.New("generation failed")
	_, err = Trace(context.Background(), "stage", SpanAttributes{}, func(ctx context.Context) (string, error) {
		return "", want
	})
	assert.ErrorIs(t, err, want)
}

func TestNilSpanMethods(t *testing.T) {
	var s Span
	s.End()
	s.SetData("k", "v")
	s.SetError(errors.New("x"))
	assert.NotNil(t, s.Context())
}
