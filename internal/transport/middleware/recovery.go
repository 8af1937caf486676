package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/middleware"
)

// RecoveryMiddleware converts panics into a 500. The panic value and stack
// stay in the log; the response body carries only the request id so nothing
// internal leaks to an unauthenticated caller.
func RecoveryMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					reqID := middleware.GetReqID(r.Context())
					logger.Error("panic recovered",
						"request_id", reqID,
						"error", err,
						"method", r.Method,
						"url", r.URL.String(),
						"stack", string(debug.Stack()))

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"code":500,"message":"internal server error","request_id":"` + reqID + `"}`))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
