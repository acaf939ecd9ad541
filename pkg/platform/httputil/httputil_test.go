package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rosterclaim/pkg/platform/sentinel"
)

func decodeError(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("db failed"))

		assert.Equal(t, http.StatusInternalServerError, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("not found includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, fmt.Errorf("load shadow user ntp:u1: %w", sentinel.ErrNotFound))

		assert.Equal(t, http.StatusNotFound, w.Code)
		body := decodeError(t, w)
		assert.Equal(t, "not_found", body["error"])
		assert.Contains(t, body["error_description"], "ntp:u1")
	})

	t.Run("conflict", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, sentinel.ErrConflict)
		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestWriteFailure(t *testing.T) {
	w := httptest.NewRecorder()
	WriteFailure(w, http.StatusInternalServerError, "please retry")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decodeError(t, w)
	assert.Equal(t, "internal_error", body["error"])
	assert.Equal(t, "please retry", body["error_description"])
}

func TestDecode(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	t.Run("valid body", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"asha"}`))
		got, err := Decode[payload](r)
		require.NoError(t, err)
		assert.Equal(t, "asha", got.Name)
	})

	t.Run("unknown field", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"nom":"asha"}`))
		_, err := Decode[payload](r)
		assert.ErrorIs(t, err, ErrBadRequest)
	})

	t.Run("trailing data", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"a"}{"name":"b"}`))
		_, err := Decode[payload](r)
		assert.ErrorIs(t, err, ErrBadRequest)
	})
}
