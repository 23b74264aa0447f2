package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "carebridge/pkg/domain-errors"
	"carebridge/pkg/httputil"
)

const adminTokenHeader = "X-Admin-Token"

// RequireAdminToken guards the review surface with a shared operator secret.
// An empty configured token disables the surface entirely rather than
// leaving it open.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	expected := []byte(expectedToken)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			supplied := []byte(r.Header.Get(adminTokenHeader))
			if len(expected) == 0 || subtle.ConstantTimeCompare(supplied, expected) != 1 {
				logger.WarnContext(r.Context(), "admin token rejected",
					"request_id", GetRequestID(r.Context()),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
