package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinBcryptCost is the floor for the password hashing work factor.
const MinBcryptCost = 10

// HashPassword hashes a plaintext password with bcrypt. The embedded random
// salt makes repeated hashes of the same plaintext differ. Costs below the
// floor are raised to it.
func HashPassword(password string, cost int) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares a plaintext password with a stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
