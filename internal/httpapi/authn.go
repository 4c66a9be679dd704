package httpapi

import (
	"net/http"

	"crisisdesk.org/internal/auth"
)

// requireSession validates the session cookie and attaches the resolved user
// to the request context. Requests without a live session are rejected with
// the same response regardless of why the token failed.
func (a *API) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := sessionToken(r)
		user, err := a.auth.ValidateSession(r.Context(), token)
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		ctx := auth.ContextWithUser(r.Context(), user)
		ctx = auth.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ensurePermission gates a handler on a capability of the authenticated
// user's role, writing a 403 when the check fails. Fail closed: no user in
// context means denied.
func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, perm auth.Permission) bool {
	user, _ := auth.UserFromContext(r.Context())
	if !auth.HasPermission(user, perm) {
		writeError(w, r, http.StatusForbidden, "permission denied")
		return false
	}
	return true
}
