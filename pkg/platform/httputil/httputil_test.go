package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	dErrors "onlinemon/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "store failed"))

		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "internal_error" {
			t.Fatalf("expected error code internal_error, got %q", body["error"])
		}
		if _, ok := body["error_description"]; ok {
			t.Fatalf("expected error_description to be omitted for internal errors")
		}
	})

	t.Run("not found includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := fmt.Errorf("lookup: %w", dErrors.New(dErrors.CodeNotFound, "histogram not registered"))
		WriteError(w, err)

		if w.Code != http.StatusNotFound {
			t.Fatalf("expected status %d, got %d", http.StatusNotFound, w.Code)
		}

		var body map[string]string
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if body["error"] != "not_found" {
			t.Fatalf("expected error code not_found, got %q", body["error"])
		}
		if body["error_description"] != "histogram not registered" {
			t.Fatalf("unexpected error_description %q", body["error_description"])
		}
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("boom"))
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
		}
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeBadRequest:         http.StatusBadRequest,
		dErrors.CodeValidation:         http.StatusBadRequest,
		dErrors.CodeInvalidInput:       http.StatusBadRequest,
		dErrors.CodeNotFound:           http.StatusNotFound,
		dErrors.CodeConflict:           http.StatusConflict,
		dErrors.CodeInvariantViolation: http.StatusConflict,
		dErrors.CodeUnauthorized:       http.StatusUnauthorized,
		dErrors.CodeUnavailable:        http.StatusServiceUnavailable,
		dErrors.CodeInternal:           http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
