package auth

import (
	"context"
	"time"
)

// Store describes the persistence operations the auth core requires. The
// credential store and session store are the only shared mutable state in
// the system; implementations must enforce uniqueness on username, email and
// session token.
type Store interface {
	Users() UserStore
	Sessions() SessionStore
	Activity() ActivityStore
}

// UserStore manages identity records. Lookups only ever return active users;
// deactivated rows are invisible to the auth path.
type UserStore interface {
	// Create inserts a user and fills in its assigned ID. A username or
	// email collision returns ErrConflict.
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	// List returns all active users with password hashes omitted.
	List(ctx context.Context) ([]*User, error)
	// TouchLastLogin stamps last_login with the current time.
	TouchLastLogin(ctx context.Context, id int64, at time.Time) error
}

// SessionStore manages session rows keyed by opaque token.
type SessionStore interface {
	// Create inserts a session. A token uniqueness violation returns
	// ErrTokenExists so the caller can retry with a fresh token.
	Create(ctx context.Context, s *Session) error
	// FindLive returns the session for a token whose expiry is after now,
	// or ErrNotFound. Expired rows are filtered, never deleted here.
	FindLive(ctx context.Context, token string, now time.Time) (*Session, error)
	// Delete removes the session for a token. Deleting an absent token is
	// a no-op success.
	Delete(ctx context.Context, token string) error
	// DeleteByUser removes every session owned by a user and returns the
	// number of rows removed.
	DeleteByUser(ctx context.Context, userID int64) (int64, error)
	// PurgeExpired removes rows with expires_at <= now and returns the
	// number removed. Storage hygiene only; validation never depends on it.
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

// ActivityStore appends and reads audit rows. Entries are never mutated.
type ActivityStore interface {
	Append(ctx context.Context, e *ActivityEntry) error
	Recent(ctx context.Context, limit int) ([]*ActivityEntry, error)
	ForUser(ctx context.Context, userID int64, limit int) ([]*ActivityEntry, error)
}
