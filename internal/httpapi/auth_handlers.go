package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"crisisdesk.org/internal/audit"
	"crisisdesk.org/internal/auth"
	"crisisdesk.org/internal/obs"
	"crisisdesk.org/internal/stream"
)

const sessionCookieName = "session_token"

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "username and password are required")
		return
	}

	ip := clientIP(r)
	user, err := a.auth.Authenticate(r.Context(), username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			a.auth.LogActivity(r.Context(), nil, auth.ActionLoginFailed,
				"failed login attempt for username: "+username, ip)
			_ = audit.LogEvent(r.Context(), "auth.login.failed", map[string]any{
				"username": username,
			})
			a.events.Publish(stream.Event{
				Action:    auth.ActionLoginFailed,
				Details:   "failed login attempt for username: " + username,
				IPAddress: ip,
			})
			obs.ObserveLogin("invalid")
		} else {
			obs.ObserveLogin("error")
		}
		handleAuthError(w, r, err)
		return
	}

	token, err := a.auth.CreateSession(r.Context(), user.ID)
	if err != nil {
		obs.ObserveLogin("error")
		handleAuthError(w, r, err)
		return
	}

	a.auth.LogActivity(r.Context(), &user.ID, auth.ActionLoginSuccess,
		"user logged in successfully", ip)
	_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user), "auth.login", map[string]any{
		"username": user.Username,
	})
	a.events.Publish(stream.Event{
		UserID:    &user.ID,
		Username:  user.Username,
		Role:      string(user.Role),
		Action:    auth.ActionLoginSuccess,
		Details:   "user logged in successfully",
		IPAddress: ip,
	})
	obs.ObserveLogin("success")

	a.setSessionCookie(w, token)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(user),
	})
}

func (a *API) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}

	// Absent and invalid tokens produce the same response so callers cannot
	// tell whether a token was ever issued.
	token := sessionToken(r)
	user, err := a.auth.ValidateSession(r.Context(), token)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"user":    userPayload(user),
	})
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	if token := sessionToken(r); token != "" {
		// Resolve the user first so the logout can be attributed; a token
		// that no longer resolves is logged out all the same.
		user, _ := a.auth.ValidateSession(r.Context(), token)
		if err := a.auth.DeleteSession(r.Context(), token); err != nil {
			handleAuthError(w, r, err)
			return
		}
		if user != nil {
			a.auth.LogActivity(r.Context(), &user.ID, auth.ActionLogout,
				"user logged out", clientIP(r))
			_ = audit.LogEvent(auth.ContextWithUser(r.Context(), user), "auth.logout", nil)
			a.events.Publish(stream.Event{
				UserID:    &user.ID,
				Username:  user.Username,
				Role:      string(user.Role),
				Action:    auth.ActionLogout,
				Details:   "user logged out",
				IPAddress: clientIP(r),
			})
		}
	}

	a.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "logged out successfully",
	})
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (a *API) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(a.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *API) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
