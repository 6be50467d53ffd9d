package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/koroglumert/oneuptimelocal-sub000/services/accesscontrol"
)

// Context key type to avoid collisions
type contextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey contextKey = "request_id"

	// CallerKey is the context key for the resolved caller context
	CallerKey contextKey = "caller"
)

// RequestIDHeader carries the request id in responses and inbound requests.
const RequestIDHeader = "X-Request-ID"

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	if val := ctx.Value(RequestIDKey); val != nil {
		if requestID, ok := val.(string); ok {
			return requestID
		}
	}
	return ""
}

// WithRequestID adds a request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetCallerFromContext retrieves the caller context. Returns an anonymous
// caller when none was resolved.
func GetCallerFromContext(ctx context.Context) *accesscontrol.CallerContext {
	if val := ctx.Value(CallerKey); val != nil {
		if caller, ok := val.(*accesscontrol.CallerContext); ok {
			return caller
		}
	}
	return &accesscontrol.CallerContext{Kind: accesscontrol.CallerAnonymous}
}

// WithCaller adds a caller context to the context
func WithCaller(ctx context.Context, caller *accesscontrol.CallerContext) context.Context {
	return context.WithValue(ctx, CallerKey, caller)
}

// RequestID assigns each request an id, honoring an inbound X-Request-ID.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(WithRequestID(r.Context(), requestID)))
	})
}

// RequestLogger logs one structured line per request.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request received",
				zap.String("request_id", GetRequestIDFromContext(r.Context())),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path))
			next.ServeHTTP(w, r)
		})
	}
}
