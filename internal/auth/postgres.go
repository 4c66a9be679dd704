package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var _ Store = (*PGStore)(nil)

// PGStore implements Store on PostgreSQL. The handle is opened once at
// process start, injected into the service, and closed on shutdown.
type PGStore struct {
	db *sql.DB
}

// Open connects to PostgreSQL via the pgx stdlib driver.
func Open(dsn string) (*PGStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return &PGStore{db: db}, nil
}

// NewPGStore wraps an existing handle; used by tests.
func NewPGStore(db *sql.DB) *PGStore {
	return &PGStore{db: db}
}

func (s *PGStore) Close() error { return s.db.Close() }

func (s *PGStore) DB() *sql.DB { return s.db }

func (s *PGStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *PGStore) Users() UserStore         { return &pgUserStore{db: s.db} }
func (s *PGStore) Sessions() SessionStore   { return &pgSessionStore{db: s.db} }
func (s *PGStore) Activity() ActivityStore  { return &pgActivityStore{db: s.db} }

// EnsureSchema creates the three tables and their indexes if missing. The
// CHECK constraint on role and the unique constraints on username, email and
// token back the invariants the service relies on.
func (s *PGStore) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`create table if not exists users (
			id bigserial primary key,
			username text unique not null,
			password_hash text not null,
			role text not null check (role in ('admin','dispatcher','hospital_worker','first_responder','user')),
			name text not null,
			email text unique not null,
			phone text,
			organization text,
			is_active boolean not null default true,
			created_at timestamptz not null default now(),
			last_login timestamptz
		)`,
		`create table if not exists sessions (
			id bigserial primary key,
			user_id bigint not null references users(id) on delete cascade,
			token text unique not null,
			expires_at timestamptz not null,
			created_at timestamptz not null default now()
		)`,
		`create table if not exists activity_log (
			id bigserial primary key,
			user_id bigint references users(id) on delete set null,
			action text not null,
			details text,
			ip_address text,
			created_at timestamptz not null default now()
		)`,
		`create index if not exists idx_users_username on users(username)`,
		`create index if not exists idx_users_email on users(email)`,
		`create index if not exists idx_sessions_token on sessions(token)`,
		`create index if not exists idx_sessions_user_id on sessions(user_id)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// User store ---------------------------------------------------------------

type pgUserStore struct{ db *sql.DB }

const userColumns = `id, username, password_hash, role, name, email,
	coalesce(phone, ''), coalesce(organization, ''), is_active, created_at, last_login`

func scanUser(row interface{ Scan(...any) error }) (*User, error) {
	var (
		u         User
		lastLogin sql.NullTime
	)
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.Name,
		&u.Email, &u.Phone, &u.Organization, &u.Active, &u.CreatedAt, &lastLogin)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		u.LastLogin = &t
	}
	return &u, nil
}

func (s *pgUserStore) Create(ctx context.Context, u *User) error {
	row := s.db.QueryRowContext(ctx,
		`insert into users (username, password_hash, role, name, email, phone, organization)
		 values ($1,$2,$3,$4,$5, nullif($6,''), nullif($7,''))
		 returning id, created_at`,
		u.Username, u.PasswordHash, u.Role, u.Name, u.Email, u.Phone, u.Organization,
	)
	if err := row.Scan(&u.ID, &u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return err
	}
	u.Active = true
	return nil
}

func (s *pgUserStore) FindByID(ctx context.Context, id int64) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id = $1 and is_active`, id))
}

func (s *pgUserStore) FindByUsername(ctx context.Context, username string) (*User, error) {
	return scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where username = $1 and is_active`, username))
}

func (s *pgUserStore) List(ctx context.Context) ([]*User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select id, username, role, name, email, coalesce(phone, ''),
			coalesce(organization, ''), is_active, created_at, last_login
		 from users where is_active order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		var (
			u         User
			lastLogin sql.NullTime
		)
		if err := rows.Scan(&u.ID, &u.Username, &u.Role, &u.Name, &u.Email,
			&u.Phone, &u.Organization, &u.Active, &u.CreatedAt, &lastLogin); err != nil {
			return nil, err
		}
		if lastLogin.Valid {
			t := lastLogin.Time
			u.LastLogin = &t
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

func (s *pgUserStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`update users set last_login = $2 where id = $1`, id, at)
	return err
}

// Session store ------------------------------------------------------------

type pgSessionStore struct{ db *sql.DB }

func (s *pgSessionStore) Create(ctx context.Context, sess *Session) error {
	row := s.db.QueryRowContext(ctx,
		`insert into sessions (user_id, token, expires_at)
		 values ($1,$2,$3) returning id, created_at`,
		sess.UserID, sess.Token, sess.ExpiresAt,
	)
	if err := row.Scan(&sess.ID, &sess.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return ErrTokenExists
		}
		return err
	}
	return nil
}

func (s *pgSessionStore) FindLive(ctx context.Context, token string, now time.Time) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`select id, user_id, token, expires_at, created_at
		 from sessions where token = $1 and expires_at > $2`, token, now)
	var sess Session
	if err := row.Scan(&sess.ID, &sess.UserID, &sess.Token, &sess.ExpiresAt, &sess.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sess, nil
}

func (s *pgSessionStore) Delete(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `delete from sessions where token = $1`, token)
	return err
}

func (s *pgSessionStore) DeleteByUser(ctx context.Context, userID int64) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where user_id = $1`, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (s *pgSessionStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `delete from sessions where expires_at <= $1`, now)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Activity store -----------------------------------------------------------

type pgActivityStore struct{ db *sql.DB }

func (s *pgActivityStore) Append(ctx context.Context, e *ActivityEntry) error {
	row := s.db.QueryRowContext(ctx,
		`insert into activity_log (user_id, action, details, ip_address)
		 values ($1,$2, nullif($3,''), nullif($4,'')) returning id, created_at`,
		e.UserID, e.Action, e.Details, e.IPAddress,
	)
	return row.Scan(&e.ID, &e.CreatedAt)
}

const activityColumns = `id, user_id, action, coalesce(details, ''), coalesce(ip_address, ''), created_at`

func (s *pgActivityStore) Recent(ctx context.Context, limit int) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+activityColumns+` from activity_log order by created_at desc, id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivity(rows)
}

func (s *pgActivityStore) ForUser(ctx context.Context, userID int64, limit int) ([]*ActivityEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+activityColumns+` from activity_log where user_id = $1
		 order by created_at desc, id desc limit $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectActivity(rows)
}

func collectActivity(rows *sql.Rows) ([]*ActivityEntry, error) {
	var entries []*ActivityEntry
	for rows.Next() {
		var (
			e      ActivityEntry
			userID sql.NullInt64
		)
		if err := rows.Scan(&e.ID, &userID, &e.Action, &e.Details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, err
		}
		if userID.Valid {
			id := userID.Int64
			e.UserID = &id
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
