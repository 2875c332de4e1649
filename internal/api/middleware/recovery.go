package middleware

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	apierrors "github.com/buildswift/orchestrator/internal/api/errors"
	"github.com/buildswift/orchestrator/pkg/logger"
)

// Recovery turns a handler panic into a logged internal_error response that
// carries the request ID. If the handler already started the response, only
// the log entry is written. http.ErrAbortHandler is re-raised.
func Recovery(log *slog.Logger) func(http.Handler) http.Handler {
	base := logger.Wrap(log)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				requestID := middleware.GetReqID(r.Context())
				entry := apierrors.NewErrorLogEntry(requestID, apierrors.CodeInternalError, fmt.Sprint(rec))
				attrs := append(entry.ToSlogAttrs(),
					"method", r.Method,
					"path", r.URL.Path,
					"response_started", ww.Status() != 0,
				)
				base.WithContext(r.Context()).Error("panic recovered", attrs...)

				if ww.Status() != 0 {
					return
				}
				apierrors.WriteErrorWithRequestID(ww,
					apierrors.NewInternalError("An unexpected error occurred"), requestID)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
