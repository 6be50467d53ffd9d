package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	t.Run("successful write", func(t *testing.T) {
		w := httptest.NewRecorder()
		data := map[string]string{"message": "test"}

		err := WriteJSON(w, http.StatusOK, data)
		require.NoError(t, err)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

		var response map[string]string
		err = json.NewDecoder(w.Body).Decode(&response)
		require.NoError(t, err)
		assert.Equal(t, "test", response["message"])
	})

	t.Run("nil data", func(t *testing.T) {
		w := httptest.NewRecorder()

		err := WriteJSON(w, http.StatusNoContent, nil)
		require.NoError(t, err)

		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, w.Body.String())
	})
}

func TestWriteList(t *testing.T) {
	w := httptest.NewRecorder()
	rows := []map[string]interface{}{{"id": "1"}, {"id": "2"}}

	err := WriteList(w, rows, 42, 10, 2)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)

	var response ListResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	assert.EqualValues(t, 42, response.Count)
	assert.Equal(t, 10, response.Skip)
	assert.Equal(t, 2, response.Limit)
	assert.Len(t, response.Data.([]interface{}), 2)
}

func TestWriteCreated(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"id": "123"}

	err := WriteCreated(w, data)
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, w.Code)

	var response SuccessResponse
	err = json.NewDecoder(w.Body).Decode(&response)
	require.NoError(t, err)

	dataMap := response.Data.(map[string]interface{})
	assert.Equal(t, "123", dataMap["id"])
}

func TestErrorWriters(t *testing.T) {
	tests := []struct {
		name      string
		write     func(w http.ResponseWriter) error
		status    int
		errorType string
	}{
		{
			name:      "bad request",
			write:     func(w http.ResponseWriter) error { return WriteBadRequest(w, "bad", nil) },
			status:    http.StatusBadRequest,
			errorType: "bad_request",
		},
		{
			name:      "unauthorized default message",
			write:     func(w http.ResponseWriter) error { return WriteUnauthorized(w, "") },
			status:    http.StatusUnauthorized,
			errorType: "unauthorized",
		},
		{
			name:      "payment required",
			write:     func(w http.ResponseWriter) error { return WritePaymentRequired(w, "upgrade to Growth") },
			status:    http.StatusPaymentRequired,
			errorType: "payment_required",
		},
		{
			name:      "forbidden",
			write:     func(w http.ResponseWriter) error { return WriteForbidden(w, "no") },
			status:    http.StatusForbidden,
			errorType: "forbidden",
		},
		{
			name:      "not found",
			write:     func(w http.ResponseWriter) error { return WriteNotFound(w, "") },
			status:    http.StatusNotFound,
			errorType: "not_found",
		},
		{
			name:      "service unavailable",
			write:     func(w http.ResponseWriter) error { return WriteServiceUnavailable(w, "") },
			status:    http.StatusServiceUnavailable,
			errorType: "service_unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			require.NoError(t, tt.write(w))

			assert.Equal(t, tt.status, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.errorType, response.Error)
			assert.NotEmpty(t, response.Message)
		})
	}
}

func TestWriteErrorStatusMapping(t *testing.T) {
	tests := []struct {
		status    int
		errorType string
	}{
		{http.StatusBadRequest, "bad_request"},
		{http.StatusUnauthorized, "unauthorized"},
		{http.StatusPaymentRequired, "payment_required"},
		{http.StatusForbidden, "forbidden"},
		{http.StatusNotFound, "not_found"},
		{http.StatusConflict, "conflict"},
		{http.StatusServiceUnavailable, "service_unavailable"},
		{http.StatusInternalServerError, "internal_error"},
		{http.StatusTeapot, "internal_error"},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		require.NoError(t, WriteError(w, tt.status, "msg", nil))

		assert.Equal(t, tt.status, w.Code)

		var response ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
		assert.Equal(t, tt.errorType, response.Error)
	}
}
