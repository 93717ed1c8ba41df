package domainerrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestCodeOf(t *testing.T) {
	t.Run("extracts code from a coded error", func(t *testing.T) {
		err := New(CodeStateConflict, "milestone already resolved")
		if CodeOf(err) != CodeStateConflict {
			t.Fatalf("expected %s, got %s", CodeStateConflict, CodeOf(err))
		}
	})

	t.Run("extracts code through wrapping", func(t *testing.T) {
		inner := New(CodeNotFound, "quest missing")
		err := fmt.Errorf("load quest: %w", inner)
		if !Is(err, CodeNotFound) {
			t.Fatalf("expected CodeNotFound through fmt wrap, got %s", CodeOf(err))
		}
	})

	t.Run("unknown errors map to internal", func(t *testing.T) {
		if CodeOf(errors.New("boom")) != CodeInternal {
			t.Fatalf("expected CodeInternal for uncoded error")
		}
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil stays nil", func(t *testing.T) {
		if Wrap(CodeInternal, "noop", nil) != nil {
			t.Fatal("expected nil for nil cause")
		}
	})

	t.Run("preserves cause for errors.Is", func(t *testing.T) {
		cause := errors.New("row gone")
		err := Wrap(CodeNotFound, "milestone not found", cause)
		if !errors.Is(err, cause) {
			t.Fatal("expected wrapped cause to satisfy errors.Is")
		}
		if !Is(err, CodeNotFound) {
			t.Fatal("expected wrap code to be visible")
		}
	})
}
