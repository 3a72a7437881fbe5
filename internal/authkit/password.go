package authkit

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// HashPassword derives a salted bcrypt hash from the plaintext password.
func HashPassword(plaintextPassword string) (string, error) {
	hashed, hashErr := bcrypt.GenerateFromPassword([]byte(plaintextPassword), bcryptCost)
	if hashErr != nil {
		return "", fmt.Errorf("auth.hash_password: %w", hashErr)
	}
	return string(hashed), nil
}

// VerifyPassword reports whether the plaintext password matches the stored hash.
// Any comparison error, including a malformed stored hash, counts as not verified.
func VerifyPassword(plaintextPassword string, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(plaintextPassword)) == nil
}
