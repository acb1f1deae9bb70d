package errors

import (
	"fmt"
	"github.com/stretchr/testify/require"
	"log/slog"
	"slices"
	"testing"
)

func TestAnnotatedError(t *testing.T) {
	err := New("test error", slog.String("id", "123"))
	require.Equal(t, "test error", err.Error())

	// Assert that wrapping sentinel errors work as expected.
	sentinel := NewSentinel("test error")
	require.NotErrorIs(t, err, NewSentinel("test error"))
	wrapped := Wrap(sentinel, "load case", slog.String("case_id", "C1"))
	require.ErrorIs(t, wrapped, sentinel)
	require.Equal(t, "load case: test error", wrapped.Error())

	// Ensure log values are coming through.
	var annotated AnnotatedError
	require.True(t, As(err, &annotated))
	group := annotated.LogValue().Group()
	require.Contains(t, group, slog.String("id", "123"))

	// Assert there's a valid source
	sourceIdx := slices.IndexFunc(group, func(attr slog.Attr) bool {
		return attr.Key == "source"
	})
	require.GreaterOrEqual(t, sourceIdx, 0)
	source := group[sourceIdx]
	require.Contains(t, source.Value.String(), "annotatederror_test.go")
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		require.NoError(t, Wrap(nil, "nothing"))
	})

	t.Run("nested attributes are collected", func(t *testing.T) {
		inner := Wrap(ErrPersistence, "write metadata", slog.String("path", "/tmp/x"))
		outer := Wrap(inner, "append evidence", slog.String("case_id", "C1"))
		require.ErrorIs(t, outer, ErrPersistence)

		var annotated AnnotatedError
		require.True(t, As(outer, &annotated))
		group := annotated.LogValue().Group()
		require.Contains(t, group, slog.String("case_id", "C1"))
		require.Contains(t, group, slog.String("path", "/tmp/x"))
	})

	t.Run("stdlib wrapping keeps the category", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", Wrap(ErrService, "transcribe"))
		require.ErrorIs(t, err, ErrService)
		require.Equal(t, "error", SlogError(err).Key)
	})
}
