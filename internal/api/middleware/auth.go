package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
	"github.com/buildswift/orchestrator/internal/auth"
)

type contextKey string

// SubjectKey is the context key for the authenticated operator.
const SubjectKey contextKey = "subject"

// GetSubject extracts the authenticated operator from the request context.
func GetSubject(ctx context.Context) string {
	if v, ok := ctx.Value(SubjectKey).(string); ok {
		return v
	}
	return ""
}

// AdminAuth guards the admin read endpoints with a bearer token.
type AdminAuth struct {
	authService *auth.Service
	logger      *slog.Logger
}

// NewAdminAuth creates the middleware. A nil service disables the check.
func NewAdminAuth(authService *auth.Service, logger *slog.Logger) *AdminAuth {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminAuth{authService: authService, logger: logger}
}

// Authenticate rejects requests without a valid admin token.
func (m *AdminAuth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.authService == nil {
			next.ServeHTTP(w, r)
			return
		}

		requestID := middleware.GetReqID(r.Context())
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			apierrors.WriteErrorWithRequestID(w, apierrors.NewUnauthorizedError("Missing authentication"), requestID)
			return
		}

		claims, err := m.authService.RequireAdmin(token)
		if err != nil {
			m.logger.Debug("admin token rejected", "error", err, "request_id", requestID)
			msg := "Invalid token"
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				msg = "Token has expired"
			case errors.Is(err, auth.ErrNotAdmin):
				msg = "Admin access required"
			}
			apierrors.WriteErrorWithRequestID(w, apierrors.NewUnauthorizedError(msg), requestID)
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
