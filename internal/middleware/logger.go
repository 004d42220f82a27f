package middleware

import (
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// Logger attaches l to the request context, tagged with the request id, and
// writes one access line per request. Mount it after RequestID.
func Logger(l zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		access := hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
			logger := hlog.FromRequest(r)
			evt := logger.Info()
			switch {
			case status >= http.StatusInternalServerError:
				evt = logger.Error()
			case status >= http.StatusBadRequest:
				evt = logger.Warn()
			}
			evt.Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", status).
				Int("size", size).
				Dur("duration", duration).
				Msg("http request")
		})(next)

		tagged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if rid := RequestIDFromContext(r.Context()); rid != "" {
				logger := zerolog.Ctx(r.Context()).With().Str("request_id", rid).Logger()
				r = r.WithContext(logger.WithContext(r.Context()))
			}
			access.ServeHTTP(w, r)
		})
		return hlog.NewHandler(l)(tagged)
	}
}
