package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"crisisdesk.org/internal/audit"
	"crisisdesk.org/internal/auth"
)

type createUserRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Role         string `json:"role"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Organization string `json:"organization"`
}

func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, auth.PermManageUsers) {
			return
		}
		users, err := a.auth.ListUsers(r.Context())
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})

	case http.MethodPost:
		if !a.ensurePermission(w, r, auth.PermManageUsers) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		role := auth.Role(req.Role)
		if !role.Valid() {
			writeError(w, r, http.StatusBadRequest, "unknown role")
			return
		}
		id, err := a.auth.CreateUser(r.Context(), auth.NewUser{
			Username:     req.Username,
			Password:     req.Password,
			Role:         role,
			Name:         req.Name,
			Email:        req.Email,
			Phone:        req.Phone,
			Organization: req.Organization,
		})
		if err != nil {
			handleAuthError(w, r, err)
			return
		}
		_ = audit.LogEvent(r.Context(), "auth.user.created", map[string]any{
			"created_user_id": id,
			"username":        req.Username,
			"user_role":       req.Role,
		})
		writeJSON(w, http.StatusCreated, map[string]any{"id": id})

	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

// handleUserScoped routes /v1/users/{id}/... paths. The only scoped
// operation is bulk session revocation.
func (a *API) handleUserScoped(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/v1/users/"), "/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[1] != "sessions" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	if r.Method != http.MethodDelete {
		methodNotAllowed(w, r, http.MethodDelete)
		return
	}
	if !a.ensurePermission(w, r, auth.PermManageUsers) {
		return
	}

	n, err := a.auth.DeleteUserSessions(r.Context(), userID)
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "auth.sessions.revoked", map[string]any{
		"target_user_id": userID,
		"revoked":        n,
	})
	writeJSON(w, http.StatusOK, map[string]any{"revoked": n})
}

func (a *API) handleActivity(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	if !a.ensurePermission(w, r, auth.PermViewReports) {
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		val, err := strconv.Atoi(raw)
		if err != nil || val < 1 || val > 500 {
			writeError(w, r, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = val
	}

	var (
		entries []*auth.ActivityEntry
		err     error
	)
	if raw := r.URL.Query().Get("user_id"); raw != "" {
		userID, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil {
			writeError(w, r, http.StatusBadRequest, "user_id must be an integer")
			return
		}
		entries, err = a.auth.ActivityForUser(r.Context(), userID, limit)
	} else {
		entries, err = a.auth.RecentActivity(r.Context(), limit)
	}
	if err != nil {
		handleAuthError(w, r, err)
		return
	}
	if entries == nil {
		entries = []*auth.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}
