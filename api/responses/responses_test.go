package responses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/maxmove/maxmove-backend/pkg/errors"
)

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return payload
}

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type = %s", ct)
	}
	payload := decodeBody(t, rec)
	data, ok := payload["data"].(map[string]any)
	if !ok || data["hello"] != "world" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	cases := []struct {
		code       pkgerrors.Code
		wantStatus int
	}{
		{pkgerrors.CodeValidation, http.StatusBadRequest},
		{pkgerrors.CodeUnauthorized, http.StatusUnauthorized},
		{pkgerrors.CodeForbidden, http.StatusForbidden},
		{pkgerrors.CodeNotFound, http.StatusNotFound},
		{pkgerrors.CodePrecondition, http.StatusConflict},
		{pkgerrors.CodeSignature, http.StatusBadRequest},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, pkgerrors.New(tc.code, "boom"))
		if rec.Code != tc.wantStatus {
			t.Fatalf("%s: status = %d, want %d", tc.code, rec.Code, tc.wantStatus)
		}
		payload := decodeBody(t, rec)
		errObj := payload["error"].(map[string]any)
		if errObj["code"] != string(tc.code) {
			t.Fatalf("%s: code = %v", tc.code, errObj["code"])
		}
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInternal, "connection string leaked"))

	payload := decodeBody(t, rec)
	errObj := payload["error"].(map[string]any)
	if errObj["message"] == "connection string leaked" {
		t.Fatal("internal message must not reach the client")
	}
}

func TestWriteErrorPassesClientSafeMessage(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodePrecondition, "order is already paid"))

	payload := decodeBody(t, rec)
	errObj := payload["error"].(map[string]any)
	if errObj["message"] != "order is already paid" {
		t.Fatalf("message = %v", errObj["message"])
	}
}

func TestWriteErrorWrapsUntypedErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, context.DeadlineExceeded)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
}
