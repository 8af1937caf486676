package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
)

// redactedFields are payload and header names that never reach the log.
// Login and refresh bodies carry credentials, responses carry tokens.
var redactedFields = []string{
	"password",
	"password_hash",
	"token",
	"access_token",
	"refresh_token",
	"authorization",
	"secret",
	"cookie",
}

// LoggingMiddleware logs one line per request. Request bodies are logged
// with credential fields redacted; response bodies are never logged because
// the auth endpoints return tokens in theirs.
func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := middleware.GetReqID(r.Context())

			var body []byte
			if r.Body != nil {
				body, _ = io.ReadAll(r.Body)
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			ww := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(ww, r)

			status := ww.status
			if status == 0 {
				status = http.StatusOK
			}
			level := slog.LevelInfo
			switch {
			case status >= 500:
				level = slog.LevelError
			case status >= 400:
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http request",
				"request_id", reqID,
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"status", status,
				"duration_ms", time.Since(start).Milliseconds(),
				"remote_addr", r.RemoteAddr,
				"body", redactBody(body),
			)
		})
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func isRedactedName(name string) bool {
	lower := strings.ToLower(name)
	for _, field := range redactedFields {
		if strings.Contains(lower, field) {
			return true
		}
	}
	return false
}

// redactBody replaces credential fields in a JSON payload with a marker.
// Non-JSON bodies are dropped wholesale rather than scanned.
func redactBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var payload interface{}
	if err := json.Unmarshal(body, &payload); err != nil {
		return "[non-json body omitted]"
	}

	redacted, err := json.Marshal(redactValue(payload))
	if err != nil {
		return "[unloggable body]"
	}
	return string(redacted)
}

func redactValue(data interface{}) interface{} {
	switch v := data.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, value := range v {
			if isRedactedName(key) {
				out[key] = "[REDACTED]"
				continue
			}
			out[key] = redactValue(value)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = redactValue(item)
		}
		return out
	default:
		return v
	}
}
