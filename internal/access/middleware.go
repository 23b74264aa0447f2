package access

import (
	"encoding/json"
	"net/http"

	"carebridge/pkg/requestcontext"
)

// RequireCapability gates a route subtree behind an access capability. The
// request must already carry an authenticated user in its context; requests
// without one are rejected rather than evaluated.
//
// Denials return 403 with the denial metadata in the body so clients can
// route the user to the right onboarding page.
func RequireCapability(enforcer *Enforcer, capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := requestcontext.UserID(r.Context())
			if userID.IsZero() {
				writeDenied(w, http.StatusUnauthorized, DenyMetadata{Reason: "unauthenticated"})
				return
			}
			role := requestcontext.Role(r.Context())

			decision := enforcer.Authorize(r.Context(), Caller{UserID: userID, Role: role}, capability, r.URL.Path)
			if !decision.Allowed {
				writeDenied(w, http.StatusForbidden, decision.Meta)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeDenied(w http.ResponseWriter, status int, meta DenyMetadata) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		Error DenyMetadata `json:"error"`
	}{Error: meta})
}
