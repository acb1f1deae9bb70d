package logging_test

import (
	"bytes"
	"context"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/stretchr/testify/require"
	"log/slog"
	"testing"
)

func TestContextHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&buf, slog.LevelInfo).With("source", "test")

	ctx := logging.WithAttrs(context.Background(), slog.String("case_id", "SEPPATRI_1_2_2024"))
	ctx = logging.WithAttrs(ctx, slog.String("event", "finish_collection"))
	logger.LogAttrs(ctx, slog.LevelInfo, "handled")

	out := buf.String()
	require.Contains(t, out, "case_id=SEPPATRI_1_2_2024")
	require.Contains(t, out, "event=finish_collection")
	require.Contains(t, out, "source=test")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{in: "debug", want: slog.LevelDebug},
		{in: " WARN ", want: slog.LevelWarn},
		{in: "error", want: slog.LevelError},
		{in: "", want: slog.LevelInfo},
		{in: "verbose", want: slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			require.Equal(t, tt.want, logging.ParseLevel(tt.in))
		})
	}
}
