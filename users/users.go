package users

import (
	"golang.org/x/crypto/bcrypt"
)

// User is a stored account. PasswordHash is never serialized.
type User struct {
	ID           int64  `json:"id,omitempty"`    // Unique identifier, assigned by the store
	Name         string `json:"name,omitempty"`  // Unique-ish username (the store does not enforce uniqueness)
	Email        string `json:"email,omitempty"` // User's email address
	PasswordHash string `json:"-"`
	IsAdmin      bool   `json:"is_admin,omitempty"` // Administrator flag, set only via the bootstrap flow
}

// SetPassword hashes the plaintext password onto the user.
func (u *User) SetPassword(password string) error {
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
