package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/platinummonkey/plughost/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"message": "success"}

	err := WriteJSON(w, http.StatusOK, data)

	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "success")
}

func TestWriteError(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(observability.WithRequestID(r.Context(), "req-123"))
	w := httptest.NewRecorder()

	WriteError(w, r, http.StatusBadRequest, errors.New("test error"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "test error", resp.Error)
	assert.Equal(t, "req-123", resp.RequestID)
}

func TestWriteErrorMessage_NilRequest(t *testing.T) {
	w := httptest.NewRecorder()

	WriteErrorMessage(w, nil, http.StatusNotFound, "resource not found")

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"resource not found"}`, w.Body.String())
}

func TestStatusHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(w http.ResponseWriter, r *http.Request)
		status int
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) { WriteBadRequest(w, r, "msg") }, http.StatusBadRequest},
		{"not found", func(w http.ResponseWriter, r *http.Request) { WriteNotFound(w, r, "msg") }, http.StatusNotFound},
		{"not implemented", func(w http.ResponseWriter, r *http.Request) { WriteNotImplemented(w, r, "msg") }, http.StatusNotImplemented},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { WriteServiceUnavailable(w, r, "msg") }, http.StatusServiceUnavailable},
		{"internal", func(w http.ResponseWriter, r *http.Request) { WriteInternalError(w, r, errors.New("msg")) }, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.write(w, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error":"msg"`)
		})
	}
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()

	require.NoError(t, WriteSuccess(w, []string{"a", "b"}))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["a","b"]`, w.Body.String())
}
