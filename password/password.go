// Package password salts, hashes and verifies account passwords with bcrypt.
package password

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MaxLength is the longest password bcrypt accepts, in bytes.
const MaxLength = 72

var ErrTooLong = errors.New("password is longer than 72 bytes")

// Hash returns a salted bcrypt hash of plain. A cost outside bcrypt's
// accepted range falls back to bcrypt.DefaultCost. Passwords over MaxLength
// bytes return ErrTooLong.
func Hash(plain string, cost int) (string, error) {
	if len(plain) > MaxLength {
		return "", ErrTooLong
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify reports whether plain matches the stored hash.
func Verify(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
