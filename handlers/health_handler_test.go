package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/utils"
)

type stubChecker struct{ err error }

func (s *stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHandleHealth(t *testing.T) {
	h := NewHealthHandler(&stubChecker{}, zap.NewNop())

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadiness(t *testing.T) {
	t.Run("healthy database", func(t *testing.T) {
		h := NewHealthHandler(&stubChecker{}, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unreachable database", func(t *testing.T) {
		h := NewHealthHandler(&stubChecker{err: errors.New("connection refused")}, zap.NewNop())

		w := httptest.NewRecorder()
		h.HandleReadiness(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp utils.SuccessResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "unhealthy", data["status"])
	})
}
