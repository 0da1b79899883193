package auth

import (
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// HashPassword hashes a plaintext password, clamping cost into bcrypt's accepted range.
func HashPassword(password string, cost int) (string, error) {
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// ComparePassword verifies a password against its hashed value.
func ComparePassword(hashed, plain string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain))
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// ComparePasswordUnknownUser spends the same bcrypt work as ComparePassword so
// sign-in latency does not reveal whether a username exists. It always fails.
func ComparePasswordUnknownUser(plain string, cost int) error {
	dummyHashOnce.Do(func() {
		h, err := HashPassword("unknown-user-placeholder", cost)
		if err == nil {
			dummyHash = []byte(h)
		}
	})
	if dummyHash != nil {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(plain))
	}
	return bcrypt.ErrMismatchedHashAndPassword
}
