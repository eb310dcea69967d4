package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ayurkart/storefront-backend/pkg/logger"
)

// Logging writes one line per request once the response is done. Server
// errors log at warn so they stand out from routine traffic.
func Logging(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if logg == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			ctx := logg.WithFields(r.Context(), map[string]any{
				"method": r.Method,
				"path":   r.URL.Path,
			})
			r = r.WithContext(ctx)

			defer func() {
				status := ww.Status()
				if status == 0 {
					status = http.StatusOK
				}
				done := logg.WithFields(r.Context(), map[string]any{
					"status":      status,
					"bytes":       ww.BytesWritten(),
					"duration_ms": time.Since(start).Milliseconds(),
				})
				if status >= http.StatusInternalServerError {
					logg.Warn(done, "request completed")
					return
				}
				logg.Info(done, "request completed")
			}()

			next.ServeHTTP(ww, r)
		})
	}
}
