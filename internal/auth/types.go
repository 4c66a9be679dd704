package auth

import "time"

// Role is one of the fixed user categories. Each role maps to a static
// bundle of permissions, see permissions.go.
type Role string

const (
	RoleAdmin          Role = "admin"
	RoleDispatcher     Role = "dispatcher"
	RoleHospitalWorker Role = "hospital_worker"
	RoleFirstResponder Role = "first_responder"
	RoleUser           Role = "user"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleDispatcher, RoleHospitalWorker, RoleFirstResponder, RoleUser:
		return true
	}
	return false
}

// User is an identity record. PasswordHash is never serialized and is
// stripped from every value the service hands back to callers.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         Role       `json:"role"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Organization string     `json:"organization,omitempty"`
	Active       bool       `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

// Public returns a copy of the user without the password hash.
func (u *User) Public() *User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.PasswordHash = ""
	return &cp
}

// Session is a bearer credential proving a user is currently authenticated.
// A session is live iff now < ExpiresAt; expiry is evaluated lazily on every
// validation rather than by deleting rows.
type Session struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Activity log action codes.
const (
	ActionLoginSuccess = "LOGIN_SUCCESS"
	ActionLoginFailed  = "LOGIN_FAILED"
	ActionLogout       = "LOGOUT"
)

// ActivityEntry is one append-only audit row. UserID is nil when the subject
// is unauthenticated, e.g. a failed login for an unknown username.
type ActivityEntry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id,omitempty"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	IPAddress string    `json:"ip_address,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
