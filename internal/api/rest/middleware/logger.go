package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/glowdesk/automations/pkg/logger"
)

// Logger logs one line per HTTP request after the handler returns. Server
// errors log at error level so they surface in filtered log streams; the
// X-Business-ID header, when the caller sets it, ties the line back to the
// tenant that made the call.
func Logger(log *logger.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			defer func() {
				fields := []zap.Field{
					logger.String("method", r.Method),
					logger.String("path", r.URL.Path),
					logger.String("remote_addr", r.RemoteAddr),
					logger.Int("status", ww.Status()),
					logger.Int("bytes", ww.BytesWritten()),
					logger.Duration("duration", time.Since(start)),
					logger.String("request_id", middleware.GetReqID(r.Context())),
				}
				if businessID := r.Header.Get("X-Business-ID"); businessID != "" {
					fields = append(fields, logger.String("business_id", businessID))
				}

				if ww.Status() >= http.StatusInternalServerError {
					log.Error("HTTP request", fields...)
				} else {
					log.Info("HTTP request", fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
