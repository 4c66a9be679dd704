package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"crisisdesk.org/internal/obs"
)

const (
	// DefaultSessionTTL is the fixed session lifetime. No sliding renewal:
	// a token expires seven days after issuance regardless of activity.
	DefaultSessionTTL = 7 * 24 * time.Hour

	// sessionTokenBytes gives 256 bits of entropy per token.
	sessionTokenBytes = 32

	// tokenMintAttempts bounds retries after the astronomically unlikely
	// token uniqueness violation.
	tokenMintAttempts = 3
)

// Service implements credential verification, session lifecycle and the
// auxiliary user/activity operations on top of a Store.
type Service struct {
	store      Store
	now        func() time.Time
	sessionTTL time.Duration
	bcryptCost int
}

// ServiceOption configures Service behavior.
type ServiceOption func(*Service) error

// WithClock overrides the time source (useful for expiry tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) error {
		if fn != nil {
			s.now = fn
		}
		return nil
	}
}

// WithSessionTTL overrides the session lifetime.
func WithSessionTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) error {
		if ttl <= 0 {
			return errors.New("session ttl must be positive")
		}
		s.sessionTTL = ttl
		return nil
	}
}

// WithBcryptCost sets the hashing work factor used for user provisioning.
// Costs below the floor are raised to it at hash time.
func WithBcryptCost(cost int) ServiceOption {
	return func(s *Service) error {
		s.bcryptCost = cost
		return nil
	}
}

// NewService constructs a Service over the given store.
func NewService(store Store, opts ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, errors.New("auth store is required")
	}
	svc := &Service{
		store:      store,
		now:        time.Now,
		sessionTTL: DefaultSessionTTL,
		bcryptCost: MinBcryptCost,
	}
	for _, opt := range opts {
		if err := opt(svc); err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// SessionTTL returns the configured session lifetime. The transport layer
// uses it for the cookie max age so cookie and session expire together.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// Authenticate verifies a username/password pair against the credential
// store. Unknown username, wrong password and inactive account all collapse
// into ErrInvalidCredentials; only infrastructure failures surface
// differently. On success the user's last_login is stamped (best effort) and
// the user is returned without its password hash.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	user, err := s.store.Users().FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if err := VerifyPassword(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}
	now := s.now().UTC()
	if err := s.store.Users().TouchLastLogin(ctx, user.ID, now); err != nil {
		// A lost last_login update is tolerable and must not fail the login.
		obs.Warn("last_login update failed", map[string]any{
			"user_id": user.ID,
			"error":   err.Error(),
		})
	} else {
		user.LastLogin = &now
	}
	return user.Public(), nil
}

// CreateSession mints an opaque random token for the user, valid for the
// configured TTL. On a token collision the store rejects the insert and a
// fresh token is generated.
func (s *Service) CreateSession(ctx context.Context, userID int64) (string, error) {
	now := s.now().UTC()
	for attempt := 0; attempt < tokenMintAttempts; attempt++ {
		token, err := generateSessionToken()
		if err != nil {
			return "", fmt.Errorf("generate token: %w", err)
		}
		sess := &Session{
			UserID:    userID,
			Token:     token,
			ExpiresAt: now.Add(s.sessionTTL),
		}
		err = s.store.Sessions().Create(ctx, sess)
		if err == nil {
			return token, nil
		}
		if errors.Is(err, ErrTokenExists) {
			continue
		}
		return "", fmt.Errorf("create session: %w", err)
	}
	return "", fmt.Errorf("create session: %w", ErrTokenExists)
}

// ValidateSession resolves a token to its owning user. A token that was
// never issued, has expired or was logged out yields the same
// ErrInvalidSession; callers cannot tell which. Expired rows are left in
// place for the purge loop.
func (s *Service) ValidateSession(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrInvalidSession
	}
	sess, err := s.store.Sessions().FindLive(ctx, token, s.now().UTC())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	user, err := s.store.Users().FindByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidSession
		}
		return nil, fmt.Errorf("find session user: %w", err)
	}
	return user.Public(), nil
}

// DeleteSession removes the session row for a token. Deleting an absent or
// already-deleted token is a no-op success, so logout is safe to repeat.
func (s *Service) DeleteSession(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.store.Sessions().Delete(ctx, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteUserSessions revokes every session belonging to a user and returns
// how many were removed.
func (s *Service) DeleteUserSessions(ctx context.Context, userID int64) (int64, error) {
	n, err := s.store.Sessions().DeleteByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}
	return n, nil
}

// PurgeExpiredSessions physically removes expired rows. Validation filters
// on expiry already, so this is storage hygiene only.
func (s *Service) PurgeExpiredSessions(ctx context.Context) (int64, error) {
	n, err := s.store.Sessions().PurgeExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}
	obs.ObservePurgedSessions(n)
	return n, nil
}

// LogActivity appends one audit row. It never fails the caller: a persistence
// error is reported through the shared logger and swallowed, because audit
// completeness is best effort while login and logout must succeed or fail on
// their own merits.
func (s *Service) LogActivity(ctx context.Context, userID *int64, action, details, ipAddress string) {
	entry := &ActivityEntry{
		UserID:    userID,
		Action:    action,
		Details:   details,
		IPAddress: ipAddress,
	}
	if err := s.store.Activity().Append(ctx, entry); err != nil {
		obs.Warn("activity log append failed", map[string]any{
			"action": action,
			"error":  err.Error(),
		})
	}
}

// NewUser carries the fields needed to provision an account.
type NewUser struct {
	Username     string
	Password     string
	Role         Role
	Name         string
	Email        string
	Phone        string
	Organization string
}

// CreateUser provisions an account and returns its assigned id. The
// plaintext password is hashed immediately and never stored.
func (s *Service) CreateUser(ctx context.Context, nu NewUser) (int64, error) {
	nu.Username = strings.TrimSpace(nu.Username)
	nu.Email = strings.TrimSpace(nu.Email)
	if nu.Username == "" || nu.Password == "" || nu.Name == "" || nu.Email == "" {
		return 0, errors.New("username, password, name and email are required")
	}
	if !nu.Role.Valid() {
		return 0, fmt.Errorf("unknown role %q", nu.Role)
	}
	hash, err := HashPassword(nu.Password, s.bcryptCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	user := &User{
		Username:     nu.Username,
		PasswordHash: hash,
		Role:         nu.Role,
		Name:         nu.Name,
		Email:        nu.Email,
		Phone:        nu.Phone,
		Organization: nu.Organization,
	}
	if err := s.store.Users().Create(ctx, user); err != nil {
		return 0, err
	}
	return user.ID, nil
}

// GetUserByID returns an active user's public fields.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*User, error) {
	user, err := s.store.Users().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Public(), nil
}

// ListUsers returns all active users, public fields only.
func (s *Service) ListUsers(ctx context.Context) ([]*User, error) {
	return s.store.Users().List(ctx)
}

// RecentActivity returns the newest audit entries, most recent first.
func (s *Service) RecentActivity(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	return s.store.Activity().Recent(ctx, normalizeLimit(limit))
}

// ActivityForUser returns a user's newest audit entries, most recent first.
func (s *Service) ActivityForUser(ctx context.Context, userID int64, limit int) ([]*ActivityEntry, error) {
	return s.store.Activity().ForUser(ctx, userID, normalizeLimit(limit))
}

func normalizeLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 50
	}
	return limit
}

// generateSessionToken returns 256 bits from the system CSPRNG, hex encoded.
// Tokens are opaque: not derivable from user id, time or sequence.
func generateSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
