package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"studytrail/internal/security"
	"studytrail/internal/service"
	"studytrail/internal/validation"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

const RequestIDContextKey ContextKey = "request_id"

// Authorizer checks that a token grants writes to a username
type Authorizer interface {
	Authorize(token, username string) error
}

// Middleware holds dependencies for middleware functions
type Middleware struct {
	auth        Authorizer
	claimLimits *security.RateLimiter
	logger      *zap.Logger
}

// NewMiddleware creates a new middleware instance
func NewMiddleware(auth Authorizer, claimLimits *security.RateLimiter, logger *zap.Logger) *Middleware {
	return &Middleware{auth: auth, claimLimits: claimLimits, logger: logger}
}

// RequireWriteToken rejects requests whose bearer token is not for the {username} path value
func (m *Middleware) RequireWriteToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := security.BearerToken(r)
		if !ok {
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		username := validation.NormalizeUsername(r.PathValue("username"))
		if err := m.auth.Authorize(token, username); err != nil {
			if !errors.Is(err, service.ErrForbidden) {
				respondWithError(w, m.logger, http.StatusInternalServerError, ErrInternalServerError, "authorization failed", err)
				return
			}
			m.logger.Info("write token refused", zap.String("username", username), zap.String("request_id", GetRequestID(r.Context())))
			respondWithError(w, m.logger, http.StatusUnauthorized, ErrUnauthorized, "", nil)
			return
		}

		next(w, r)
	}
}

// RateLimitClaims limits claim attempts per client IP
func (m *Middleware) RateLimitClaims(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.claimLimits != nil && !m.claimLimits.Allow(security.GetClientIP(r)) {
			respondWithError(w, m.logger, http.StatusTooManyRequests, ErrTooManyRequests, "", nil)
			return
		}
		next(w, r)
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Logging middleware assigns a request id and logs every request
func Logging(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := security.RequestID(r)
		w.Header().Set(security.RequestIDHeader, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		ctx := context.WithValue(r.Context(), RequestIDContextKey, requestID)
		next.ServeHTTP(rec, r.WithContext(ctx))

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", requestID))
	})
}

// Recover turns a panicking handler into a 500 response
func Recover(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				logger.Error("handler panicked", zap.Any("panic", v), zap.String("path", r.URL.Path))
				respondWithError(w, logger, http.StatusInternalServerError, ErrInternalServerError, "", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// GetRequestID retrieves the request id from the request context
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(RequestIDContextKey).(string)
	return id
}
