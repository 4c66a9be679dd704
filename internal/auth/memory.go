package auth

import (
	"context"
	"sort"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-memory Store used by tests and by the server's
// storage-free demo mode. It enforces the same uniqueness invariants as the
// SQL store.
type MemoryStore struct {
	mu       sync.Mutex
	users    map[int64]*User
	sessions map[string]*Session
	activity []*ActivityEntry

	nextUserID     int64
	nextSessionID  int64
	nextActivityID int64
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[int64]*User),
		sessions: make(map[string]*Session),
	}
}

func (m *MemoryStore) Users() UserStore        { return (*memUserStore)(m) }
func (m *MemoryStore) Sessions() SessionStore  { return (*memSessionStore)(m) }
func (m *MemoryStore) Activity() ActivityStore { return (*memActivityStore)(m) }

// User store ---------------------------------------------------------------

type memUserStore MemoryStore

func (m *memUserStore) Create(_ context.Context, u *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username || existing.Email == u.Email {
			return ErrConflict
		}
	}
	m.nextUserID++
	u.ID = m.nextUserID
	u.Active = true
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memUserStore) FindByID(_ context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.Active {
		return nil, ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *memUserStore) FindByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username && u.Active {
			cp := *u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memUserStore) List(_ context.Context) ([]*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var users []*User
	for _, u := range m.users {
		if !u.Active {
			continue
		}
		users = append(users, u.Public())
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (m *memUserStore) TouchLastLogin(_ context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		t := at
		u.LastLogin = &t
	}
	return nil
}

// Session store ------------------------------------------------------------

type memSessionStore MemoryStore

func (m *memSessionStore) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[s.Token]; exists {
		return ErrTokenExists
	}
	m.nextSessionID++
	s.ID = m.nextSessionID
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	cp := *s
	m.sessions[s.Token] = &cp
	return nil
}

func (m *memSessionStore) FindLive(_ context.Context, token string, now time.Time) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[token]
	if !ok || !now.Before(s.ExpiresAt) {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memSessionStore) Delete(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, token)
	return nil
}

func (m *memSessionStore) DeleteByUser(_ context.Context, userID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for token, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

func (m *memSessionStore) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed int64
	for token, s := range m.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(m.sessions, token)
			removed++
		}
	}
	return removed, nil
}

// Activity store -----------------------------------------------------------

type memActivityStore MemoryStore

func (m *memActivityStore) Append(_ context.Context, e *ActivityEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextActivityID++
	e.ID = m.nextActivityID
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	cp := *e
	m.activity = append(m.activity, &cp)
	return nil
}

func (m *memActivityStore) Recent(_ context.Context, limit int) ([]*ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastEntries(m.activity, limit, nil), nil
}

func (m *memActivityStore) ForUser(_ context.Context, userID int64, limit int) ([]*ActivityEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return lastEntries(m.activity, limit, &userID), nil
}

// lastEntries returns up to limit entries newest-first, optionally filtered
// by user.
func lastEntries(entries []*ActivityEntry, limit int, userID *int64) []*ActivityEntry {
	var out []*ActivityEntry
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		e := entries[i]
		if userID != nil && (e.UserID == nil || *e.UserID != *userID) {
			continue
		}
		cp := *e
		out = append(out, &cp)
	}
	return out
}
