package auth

import "errors"

// Expected outcomes. Anything the store returns that does not match one of
// these sentinels is an infrastructure failure and surfaces to the transport
// layer as an internal error, never as a credential problem.
var (
	// ErrInvalidCredentials covers unknown username, wrong password and
	// inactive account alike, so failures do not reveal which identifiers
	// exist.
	ErrInvalidCredentials = errors.New("auth: invalid username or password")

	// ErrInvalidSession covers absent, unknown, expired and logged-out
	// tokens alike.
	ErrInvalidSession = errors.New("auth: invalid or expired session")

	// ErrConflict is returned when a username or email is already taken.
	ErrConflict = errors.New("auth: username or email already in use")

	// ErrTokenExists is returned by a session store on a token uniqueness
	// violation; the service retries with a fresh token.
	ErrTokenExists = errors.New("auth: session token already exists")

	// ErrNotFound is the store-level miss for direct lookups.
	ErrNotFound = errors.New("auth: not found")
)
