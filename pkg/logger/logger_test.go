package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestContextHandler_Handle(t *testing.T) {
	traceID := trace.TraceID{0x01, 0x02}
	spanID := trace.SpanID{0x03}
	spanCtx := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})

	testCases := []struct {
		name      string
		ctx       context.Context
		wantAttrs map[string]string
		noAttrs   []string
	}{
		{
			name:    "plain context",
			ctx:     context.Background(),
			noAttrs: []string{"trace_id", "span_id", "request_id"},
		},
		{
			name:      "span context",
			ctx:       trace.ContextWithSpanContext(context.Background(), spanCtx),
			wantAttrs: map[string]string{"trace_id": traceID.String(), "span_id": spanID.String()},
			noAttrs:   []string{"request_id"},
		},
		{
			name:      "request id",
			ctx:       context.WithValue(context.Background(), middleware.RequestIDKey, "req-42"),
			wantAttrs: map[string]string{"request_id": "req-42"},
			noAttrs:   []string{"trace_id"},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// given
			var buf bytes.Buffer
			log := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil))).With("service", "pos_svc")

			// when
			log.InfoContext(tc.ctx, "Sale paid")

			// then
			var rec map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
			assert.Equal(t, "Sale paid", rec["msg"])
			assert.Equal(t, "pos_svc", rec["service"])
			for k, v := range tc.wantAttrs {
				assert.Equal(t, v, rec[k], k)
			}
			for _, k := range tc.noAttrs {
				assert.NotContains(t, rec, k)
			}
		})
	}
}

func TestContextHandler_Enabled(t *testing.T) {
	h := NewContextHandler(slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}))
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelError))
	assert.IsType(t, &ContextHandler{}, h.WithGroup("g"))
}
