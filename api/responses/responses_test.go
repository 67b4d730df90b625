package responses

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/craftline/storefront-backend/pkg/errors"
	"github.com/craftline/storefront-backend/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return payload
}

func TestWriteSuccessWrapsData(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]any{"id": "abc"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected json content type, got %q", ct)
	}
	payload := decodeBody(t, rec)
	data, ok := payload["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data envelope, got %v", payload)
	}
	if data["id"] != "abc" {
		t.Errorf("expected id in data, got %v", data)
	}
}

func TestWriteSuccessStatusUsesStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccessStatus(rec, http.StatusCreated, "ok")

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
}

func TestWriteErrorPassesValidationMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "qty must be positive").
		WithDetails(map[string]any{"field": "qty"})

	WriteError(context.Background(), testLogger(), rec, err)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	apiErr := payload["error"].(map[string]any)
	if apiErr["code"] != string(pkgerrors.CodeValidation) {
		t.Errorf("expected validation code, got %v", apiErr["code"])
	}
	if apiErr["message"] != "qty must be positive" {
		t.Errorf("expected message passthrough, got %v", apiErr["message"])
	}
	details, ok := apiErr["details"].(map[string]any)
	if !ok || details["field"] != "qty" {
		t.Errorf("expected details, got %v", apiErr["details"])
	}
}

func TestWriteErrorHidesInternalMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeInternal, "pool exhausted on shard 3")

	WriteError(context.Background(), testLogger(), rec, err)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	apiErr := payload["error"].(map[string]any)
	if apiErr["message"] == "pool exhausted on shard 3" {
		t.Errorf("internal message leaked to client")
	}
	if _, ok := apiErr["details"]; ok {
		t.Errorf("internal errors must not carry details")
	}
}

func TestWriteErrorWrapsUntypedError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(context.Background(), testLogger(), rec, errors.New("boom"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	payload := decodeBody(t, rec)
	apiErr := payload["error"].(map[string]any)
	if apiErr["code"] != string(pkgerrors.CodeInternal) {
		t.Errorf("expected internal code, got %v", apiErr["code"])
	}
}
