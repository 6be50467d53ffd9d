package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

type stubBilling struct {
	plan   models.PlanType
	unpaid bool
	err    error
}

func (s *stubBilling) ProjectBilling(context.Context, uuid.UUID) (models.PlanType, bool, error) {
	return s.plan, s.unpaid, s.err
}

func callerCapture(captured **accesscontrol.CallerContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*captured = GetCallerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestResolveCaller(t *testing.T) {
	validator := NewTokenValidator("test-secret", "statusplatform")
	userID := uuid.New()
	projectID := uuid.New()

	issueToken := func(t *testing.T) string {
		t.Helper()
		token, err := validator.IssueToken(userID, Claims{
			ProjectIDs: []string{projectID.String()},
			Grants: map[string][]GrantClaim{
				projectID.String(): {{Permission: "ProjectMember"}},
			},
		}, time.Hour)
		require.NoError(t, err)
		return token
	}

	t.Run("no token resolves anonymous", func(t *testing.T) {
		m := NewAuthMiddleware(validator, nil, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/status_pages/get-list", nil)
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, caller)
		assert.Equal(t, accesscontrol.CallerAnonymous, caller.Kind)
		assert.False(t, caller.IsLoggedIn())
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		m := NewAuthMiddleware(validator, nil, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/monitors/get-list", nil)
		r.Header.Set("Authorization", "Bearer garbage")
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Nil(t, caller)
	})

	t.Run("valid token pins tenant from header", func(t *testing.T) {
		m := NewAuthMiddleware(validator, nil, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/monitors/get-list", nil)
		r.Header.Set("Authorization", "Bearer "+issueToken(t))
		r.Header.Set(ProjectIDHeader, projectID.String())
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, caller)
		assert.Equal(t, userID, *caller.UserID)
		require.NotNil(t, caller.ProjectID)
		assert.Equal(t, projectID, *caller.ProjectID)
		assert.False(t, caller.IsMultiTenantRequest)
		require.NotNil(t, caller.ProjectGrants[projectID])
	})

	t.Run("multi-tenant header", func(t *testing.T) {
		m := NewAuthMiddleware(validator, nil, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/monitors/get-list", nil)
		r.Header.Set("Authorization", "Bearer "+issueToken(t))
		r.Header.Set(MultiTenantHeader, "true")
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, caller)
		assert.True(t, caller.IsMultiTenantRequest)
		assert.Nil(t, caller.ProjectID)
	})

	t.Run("billing resolved for pinned tenant", func(t *testing.T) {
		m := NewAuthMiddleware(validator, &stubBilling{plan: models.PlanGrowth, unpaid: true}, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/monitors/get-list", nil)
		r.Header.Set("Authorization", "Bearer "+issueToken(t))
		r.Header.Set(ProjectIDHeader, projectID.String())
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, caller)
		require.NotNil(t, caller.Plan)
		assert.Equal(t, models.PlanGrowth, *caller.Plan)
		assert.True(t, caller.SubscriptionUnpaid)
	})

	t.Run("billing lookup failure leaves plan unset", func(t *testing.T) {
		m := NewAuthMiddleware(validator, &stubBilling{err: assert.AnError}, zap.NewNop())
		var caller *accesscontrol.CallerContext

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/monitors/get-list", nil)
		r.Header.Set("Authorization", "Bearer "+issueToken(t))
		r.Header.Set(ProjectIDHeader, projectID.String())
		m.ResolveCaller(callerCapture(&caller)).ServeHTTP(w, r)

		assert.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, caller)
		assert.Nil(t, caller.Plan)
	})
}

func TestRequireAuth(t *testing.T) {
	m := NewAuthMiddleware(NewTokenValidator("test-secret", ""), nil, zap.NewNop())

	t.Run("anonymous rejected", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/monitors", nil)
		m.RequireAuth(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not run")
		})).ServeHTTP(w, r)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("logged-in passes", func(t *testing.T) {
		userID := uuid.New()
		caller := &accesscontrol.CallerContext{
			UserID: &userID,
			Kind:   accesscontrol.CallerUser,
		}

		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/monitors", nil)
		r = r.WithContext(WithCaller(r.Context(), caller))

		called := false
		m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			called = true
			w.WriteHeader(http.StatusOK)
		})).ServeHTTP(w, r)

		assert.True(t, called)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestRequestID(t *testing.T) {
	t.Run("generates when absent", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)

		var seen string
		RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestIDFromContext(r.Context())
		})).ServeHTTP(w, r)

		assert.NotEmpty(t, seen)
		assert.Equal(t, seen, w.Header().Get(RequestIDHeader))
	})

	t.Run("honors inbound id", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodGet, "/health", nil)
		r.Header.Set(RequestIDHeader, "req-123")

		var seen string
		RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
			seen = GetRequestIDFromContext(r.Context())
		})).ServeHTTP(w, r)

		assert.Equal(t, "req-123", seen)
	})
}
