package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "heirloom/pkg/domain-errors"
)

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
		body := decode(t, w)
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("uncoded error maps to internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("raw failure"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})

	t.Run("validation includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeValidation, "milestone 2: prerequisite cycle"))

		if w.Code != http.StatusUnprocessableEntity {
			t.Fatalf("expected status %d, got %d", http.StatusUnprocessableEntity, w.Code)
		}
		body := decode(t, w)
		if body["error_description"] != "milestone 2: prerequisite cycle" {
			t.Fatalf("expected validation description, got %q", body["error_description"])
		}
	})

	t.Run("not found and permission denied are indistinguishable", func(t *testing.T) {
		nf := httptest.NewRecorder()
		WriteError(nf, dErrors.New(dErrors.CodeNotFound, "quest 123 missing"))

		pd := httptest.NewRecorder()
		WriteError(pd, dErrors.New(dErrors.CodePermissionDenied, "actor is not the estate owner"))

		if nf.Code != pd.Code {
			t.Fatalf("expected identical status, got %d and %d", nf.Code, pd.Code)
		}
		if nf.Body.String() != pd.Body.String() {
			t.Fatalf("expected identical bodies, got %q and %q", nf.Body.String(), pd.Body.String())
		}
	})

	t.Run("state conflict reads as already processed", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeStateConflict, "milestone already completed"))

		if w.Code != http.StatusConflict {
			t.Fatalf("expected status %d, got %d", http.StatusConflict, w.Code)
		}
		body := decode(t, w)
		if body["error_description"] != "already processed" {
			t.Fatalf("expected retryable description, got %q", body["error_description"])
		}
	})
}
