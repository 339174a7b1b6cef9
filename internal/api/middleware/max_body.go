package middleware

import (
	"net/http"

	"github.com/cloo-solutions/regassist/internal/api"
	"github.com/cloo-solutions/regassist/internal/domain"
	"github.com/cloo-solutions/regassist/internal/logger"
)

// MaxBodyBytes caps question bodies at limit bytes. A declared length over the
// limit is refused with 413 BODY_TOO_LARGE before the handler runs; bodies
// without a length are cut off by http.MaxBytesReader and the handler reports
// the same error when decoding fails. GET requests such as /health and /ready
// pass through untouched. A limit of zero or less disables the check.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body == nil || r.Body == http.NoBody || r.Method == http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			if r.ContentLength > limit {
				logger.FromContext(r.Context()).Warn("request body over limit",
					"path", r.URL.Path,
					"content_length", r.ContentLength,
					"limit", limit,
				)
				api.HandleError(w, domain.BodyTooLarge(limit))
				return
			}

			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
