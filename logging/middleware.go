package logging

import (
	"context"
	"net/http"
	"time"

	"github.com/Seeker220/letswatch/metrics"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// RequestIDHeader carries the request id back to the client
const RequestIDHeader = "X-Request-ID"

type ctxKeyLogger struct{}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware logs every request and records request metrics. The request
// scoped logger is available to handlers through FromContext.
func Middleware(logger *logrus.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.NewString()
			}
			w.Header().Set(RequestIDHeader, requestID)

			route := r.URL.Path
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}

			entry := logger.WithField("request_id", requestID)
			ctx := context.WithValue(r.Context(), ctxKeyLogger{}, entry)

			// Wrap response writer to capture status code
			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r.WithContext(ctx))

			elapsed := time.Since(start)
			metrics.ObserveHTTP(r.Method, route, wrapped.statusCode, elapsed)

			entry.WithFields(logrus.Fields{
				"method":      r.Method,
				"route":       route,
				"status":      wrapped.statusCode,
				"duration_ms": elapsed.Milliseconds(),
				"remote_addr": r.RemoteAddr,
			}).Info("HTTP request")
		})
	}
}

// FromContext returns the request logger, or fallback outside a request
func FromContext(ctx context.Context, fallback logrus.FieldLogger) logrus.FieldLogger {
	if entry, ok := ctx.Value(ctxKeyLogger{}).(*logrus.Entry); ok {
		return entry
	}
	return fallback
}
