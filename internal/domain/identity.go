package domain

import (
	"errors"
	"time"
)

// ErrIdentityNotFound is returned by identity stores when no identity matches the subject.
var ErrIdentityNotFound = errors.New("identity not found")

// ErrIdentityExists is returned when creating an identity whose username or email is taken.
var ErrIdentityExists = errors.New("identity already exists")

// Identity is an account that can present bearer tokens. The subject id is the username.
type Identity struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	Roles        []RoleName
	CreatedAt    time.Time
}

// SubjectID returns the identifier embedded in issued tokens.
func (i *Identity) SubjectID() string {
	return i.Username
}

// HasRole reports whether the identity holds role.
func (i *Identity) HasRole(role RoleName) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}
