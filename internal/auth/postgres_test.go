package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
)

func newMockStore(t *testing.T) (*PGStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewPGStore(db), mock
}

var userRowColumns = []string{
	"id", "username", "password_hash", "role", "name", "email",
	"phone", "organization", "is_active", "created_at", "last_login",
}

func TestPGFindByUsernameMapsRow(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectQuery("select .* from users where username").
		WithArgs("admin").
		WillReturnRows(sqlmock.NewRows(userRowColumns).
			AddRow(1, "admin", "$2a$10$hash", "admin", "System Administrator",
				"admin@crisis-mgmt.local", "555-0100", "Crisis Management HQ",
				true, created, nil))

	u, err := store.Users().FindByUsername(context.Background(), "admin")
	if err != nil {
		t.Fatalf("FindByUsername: %v", err)
	}
	if u.ID != 1 || u.Role != RoleAdmin || u.Email != "admin@crisis-mgmt.local" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if u.LastLogin != nil {
		t.Fatalf("expected nil last_login for never-logged-in user")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGFindByUsernameMiss(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("select .* from users where username").
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Users().FindByUsername(context.Background(), "ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGCreateUserConflict(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into users").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"})

	err := store.Users().Create(context.Background(), &User{
		Username: "admin", PasswordHash: "h", Role: RoleAdmin,
		Name: "Dup", Email: "dup@example.com",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestPGSessionCreateTokenCollision(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("insert into sessions").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "sessions_token_key"})

	err := store.Sessions().Create(context.Background(), &Session{
		UserID: 1, Token: "t", ExpiresAt: time.Now().Add(time.Hour),
	})
	if !errors.Is(err, ErrTokenExists) {
		t.Fatalf("expected ErrTokenExists, got %v", err)
	}
}

func TestPGFindLiveFiltersExpiry(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("select .* from sessions where token").
		WithArgs("deadbeef", now).
		WillReturnError(sql.ErrNoRows)

	if _, err := store.Sessions().FindLive(context.Background(), "deadbeef", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for expired token, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPGDeleteMissingTokenIsNoop(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("delete from sessions where token").
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := store.Sessions().Delete(context.Background(), "gone"); err != nil {
		t.Fatalf("delete of missing token must succeed, got %v", err)
	}
}

func TestPGPurgeExpiredReturnsCount(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Now().UTC()

	mock.ExpectExec("delete from sessions where expires_at").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := store.Sessions().PurgeExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 purged rows, got %d", n)
	}
}

func TestPGActivityAppendUnauthenticatedSubject(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Now().UTC()

	mock.ExpectQuery("insert into activity_log").
		WithArgs(nil, ActionLoginFailed, "failed login attempt for username: ghost", "10.0.0.9").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(7, created))

	entry := &ActivityEntry{
		Action:    ActionLoginFailed,
		Details:   "failed login attempt for username: ghost",
		IPAddress: "10.0.0.9",
	}
	if err := store.Activity().Append(context.Background(), entry); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if entry.ID != 7 {
		t.Fatalf("expected assigned id 7, got %d", entry.ID)
	}
}
