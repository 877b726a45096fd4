package middleware

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// sensitiveHeaders are masked before request details reach the logs.
// Webhook signatures are included: leaking one would let anyone replay a
// callback.
var sensitiveHeaders = []string{
	"authorization",
	"x-api-key",
	"x-lipana-signature",
	"cookie",
	"token",
	"secret",
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.statusCode = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	n, err := rec.ResponseWriter.Write(b)
	rec.written += n
	return n, err
}

func LoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger.Info("incoming request",
				"method", r.Method,
				"path", r.URL.Path,
				"query", r.URL.RawQuery,
				"remote_addr", r.RemoteAddr,
				"user_agent", r.UserAgent(),
				"headers", maskHeaders(r.Header),
			)

			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			statusCode := rec.statusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}

			level := slog.LevelInfo
			if statusCode >= 500 {
				level = slog.LevelError
			} else if statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "response",
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", statusCode,
				"duration_ms", time.Since(start).Milliseconds(),
				"response_size", rec.written,
			)
		})
	}
}

func maskHeaders(headers http.Header) map[string]string {
	masked := make(map[string]string, len(headers))
	for name, values := range headers {
		lowerName := strings.ToLower(name)
		sensitive := false
		for _, field := range sensitiveHeaders {
			if strings.Contains(lowerName, field) {
				sensitive = true
				break
			}
		}
		if sensitive {
			masked[name] = "[FILTERED]"
		} else {
			masked[name] = strings.Join(values, ", ")
		}
	}
	return masked
}
