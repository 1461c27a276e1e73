package identity

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Identity is the authenticated user's account record. It is owned by
// the identity service: the client replaces it wholesale from server
// responses and never computes or mutates its fields locally.
type Identity struct {
	ID       int    `json:"id"`       // Unique identifier for the user
	Username string `json:"username"` // Unique username
	Score    int    `json:"score"`    // Comparison score, server-computed
}

// Credentials carry login/registration input. They exist only for the
// duration of a submit operation and are never persisted.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Username and password bounds enforced client-side before any
// network call. The service applies its own limits on top.
const (
	MinUsernameLength = 3
	MaxUsernameLength = 30
	MinPasswordLength = 6
	MaxPasswordLength = 100
)

// ValidateUsername checks a username against the shared identity schema
func ValidateUsername(username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("username is required")
	}
	// Bounds are in characters, not bytes.
	if utf8.RuneCountInString(username) < MinUsernameLength {
		return fmt.Errorf("username must be at least %d characters long", MinUsernameLength)
	}
	if utf8.RuneCountInString(username) > MaxUsernameLength {
		return fmt.Errorf("username must be at most %d characters long", MaxUsernameLength)
	}
	for _, char := range username {
		if unicode.IsSpace(char) {
			return fmt.Errorf("username must not contain spaces")
		}
	}
	return nil
}

// ValidatePassword checks a password against the shared identity schema
func ValidatePassword(password string) error {
	if password == "" {
		return fmt.Errorf("password is required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if utf8.RuneCountInString(password) > MaxPasswordLength {
		return fmt.Errorf("password must be at most %d characters long", MaxPasswordLength)
	}
	return nil
}

// Validate checks both credential fields, failing on the first violation
func (c Credentials) Validate() error {
	if err := ValidateUsername(c.Username); err != nil {
		return err
	}
	return ValidatePassword(c.Password)
}
