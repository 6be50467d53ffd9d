package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/models"
	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
	"github.com/koroglumert/oneuptimelocal-sub000/utils"
)

// ProjectIDHeader selects the current tenant for the request.
const ProjectIDHeader = "X-Project-ID"

// MultiTenantHeader marks a query spanning every project the caller can reach.
const MultiTenantHeader = "X-Is-Multi-Tenant-Query"

// Validator defines the interface for validating bearer tokens
type Validator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// BillingResolver loads the billing state of a tenant. Implemented by the
// application layer over the projects table.
type BillingResolver interface {
	ProjectBilling(ctx context.Context, projectID uuid.UUID) (plan models.PlanType, unpaid bool, err error)
}

// AuthMiddleware resolves the caller context for every request.
type AuthMiddleware struct {
	validator Validator
	billing   BillingResolver
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware. billing may be nil when
// billing is disabled.
func NewAuthMiddleware(validator Validator, billing BillingResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		billing:   billing,
		logger:    logger,
	}
}

// ResolveCaller builds the caller context from the bearer token when one is
// present, and an anonymous caller otherwise. A present but invalid token is
// rejected rather than downgraded to anonymous.
func (m *AuthMiddleware) ResolveCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractBearerToken(r)
		if token == "" {
			caller := &accesscontrol.CallerContext{Kind: accesscontrol.CallerAnonymous}
			m.applyTenantHeaders(r, caller)
			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
			return
		}

		claims, err := m.validator.ValidateToken(ctx, token)
		if err != nil {
			m.logger.Warn("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid or expired token")
			return
		}

		caller, err := CallerFromClaims(claims)
		if err != nil {
			m.logger.Warn("malformed claims",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteUnauthorized(w, "Invalid token claims")
			return
		}
		m.applyTenantHeaders(r, caller)

		if err := m.resolveBilling(ctx, caller); err != nil {
			m.logger.Warn("billing lookup failed",
				zap.String("request_id", requestID),
				zap.Error(err))
		}

		m.logger.Debug("caller resolved",
			zap.String("request_id", requestID),
			zap.String("user_id", claims.Subject),
			zap.Bool("is_root", caller.IsRoot))

		next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
	})
}

// RequireAuth rejects requests whose caller is not logged in. Must run after
// ResolveCaller.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := GetCallerFromContext(r.Context())
		if !caller.IsLoggedIn() {
			_ = utils.WriteUnauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// CallerFromClaims converts validated token claims into a caller context.
func CallerFromClaims(claims *Claims) (*accesscontrol.CallerContext, error) {
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, err
	}

	global := &accesscontrol.PermissionGrant{}
	for _, raw := range claims.ProjectIDs {
		pid, err := uuid.Parse(raw)
		if err != nil {
			return nil, err
		}
		global.ProjectIDs = append(global.ProjectIDs, pid)
	}

	projectGrants := make(map[uuid.UUID]*accesscontrol.PermissionGrant, len(claims.Grants))
	for rawProject, grantClaims := range claims.Grants {
		pid, err := uuid.Parse(rawProject)
		if err != nil {
			return nil, err
		}
		grant := &accesscontrol.PermissionGrant{}
		for _, gc := range grantClaims {
			gp := accesscontrol.GrantedPermission{Permission: models.Permission(gc.Permission)}
			for _, rawLabel := range gc.LabelIDs {
				labelID, err := uuid.Parse(rawLabel)
				if err != nil {
					return nil, err
				}
				gp.LabelIDs = append(gp.LabelIDs, labelID)
			}
			grant.Permissions = append(grant.Permissions, gp)
		}
		projectGrants[pid] = grant
	}

	return &accesscontrol.CallerContext{
		UserID:        &userID,
		Kind:          accesscontrol.CallerUser,
		GlobalGrant:   global,
		ProjectGrants: projectGrants,
		IsRoot:        claims.IsMasterAdmin,
	}, nil
}

// applyTenantHeaders pins the tenant or marks the request multi-tenant based
// on request headers.
func (m *AuthMiddleware) applyTenantHeaders(r *http.Request, caller *accesscontrol.CallerContext) {
	if strings.EqualFold(r.Header.Get(MultiTenantHeader), "true") {
		caller.IsMultiTenantRequest = true
		return
	}
	if raw := r.Header.Get(ProjectIDHeader); raw != "" {
		if pid, err := uuid.Parse(raw); err == nil {
			caller.ProjectID = &pid
		} else {
			m.logger.Warn("invalid project id header", zap.String("project_id", raw))
		}
	}
}

// resolveBilling loads the pinned tenant's plan onto the caller. A lookup
// failure leaves the plan unset; billing gates then do not apply.
func (m *AuthMiddleware) resolveBilling(ctx context.Context, caller *accesscontrol.CallerContext) error {
	if m.billing == nil || caller.ProjectID == nil {
		return nil
	}
	plan, unpaid, err := m.billing.ProjectBilling(ctx, *caller.ProjectID)
	if err != nil {
		return err
	}
	caller.Plan = &plan
	caller.SubscriptionUnpaid = unpaid
	return nil
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
