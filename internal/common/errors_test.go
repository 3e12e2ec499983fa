package common

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("device: %w", ErrNotFoundOrForbidden), http.StatusNotFound},
		{fmt.Errorf("selection: %w", ErrInvalidSelection), http.StatusBadRequest},
		{ErrValidation, http.StatusBadRequest},
		{ErrInvalidImage, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{ErrPlanLimitReached, http.StatusForbidden},
		{ErrShrinkInstalled, http.StatusConflict},
		{ErrConflict, http.StatusConflict},
		{ErrInvalidTransition, http.StatusUnprocessableEntity},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Fatalf("%v: expected %d, got %d", tt.err, tt.want, got)
		}
	}
}

func TestRespondErrorConflictMessage(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondError(c, fmt.Errorf("installed aa batteries do not fit d: %w", ErrConflict))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if want := "installed aa batteries do not fit d: conflict"; body["error"] != want {
		t.Fatalf("expected %q, got %q", want, body["error"])
	}
}

func TestRespondErrorHidesInternalErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	RespondError(c, fmt.Errorf("dial tcp 10.0.0.1:5432: refused"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("expected generic message, got %q", body["error"])
	}
}
