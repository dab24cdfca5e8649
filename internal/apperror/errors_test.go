package apperror

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fekuna/omnipos-margin-service/internal/pkg/logger"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func TestWriteError_AppError(t *testing.T) {
	rec := httptest.NewRecorder()
	err := fmt.Errorf("create sale: %w", NotFound("option not found"))

	WriteError(rec, logger.NewNop(), err, "req-1")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != false {
		t.Fatalf("success = %v", body["success"])
	}
	e := body["error"].(map[string]any)
	if e["code"] != string(CodeNotFound) || e["request_id"] != "req-1" {
		t.Fatalf("error body = %v", e)
	}
}

func TestWriteError_HidesInternalCause(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, logger.NewNop(), errors.New("pq: connection refused"), "")

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	e := decode(t, rec)["error"].(map[string]any)
	if e["message"] != "An unexpected error occurred" {
		t.Fatalf("message = %v", e["message"])
	}
}

func TestWriteCreated(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteCreated(rec, map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", rec.Code)
	}
	body := decode(t, rec)
	if body["success"] != true {
		t.Fatalf("success = %v", body["success"])
	}
}

func TestAppError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := ServiceUnavailable(cause, "search is down")

	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to find the cause")
	}
	if err.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("status = %d", err.StatusCode)
	}
}
