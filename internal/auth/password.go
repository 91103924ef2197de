package auth

import (
	"crypto/subtle"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"bookgraph/pkg/models"
)

// compareHash is swapped in tests to count bcrypt work.
var compareHash = bcrypt.CompareHashAndPassword

// decoyHash stands in for a stored hash when there is none, so every login
// attempt pays for one bcrypt comparison.
var decoyHash = sync.OnceValue(func() []byte {
	h, err := bcrypt.GenerateFromPassword([]byte("bookgraph decoy"), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	return h
})

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// PasswordChecker verifies login passwords. Users with a stored hash are
// checked against it; users without one fall back to the shared password,
// and an empty shared password disables that fallback.
type PasswordChecker struct {
	Shared string
}

func (p PasswordChecker) Verify(u models.User, password string) bool {
	if u.PasswordHash != "" {
		return compareHash([]byte(u.PasswordHash), []byte(password)) == nil
	}
	_ = compareHash(decoyHash(), []byte(password))
	if p.Shared == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(p.Shared), []byte(password)) == 1
}

// VerifyUnknown is called when no user matched the login. It always fails
// but costs the same as checking a real user.
func (p PasswordChecker) VerifyUnknown(password string) bool {
	_ = compareHash(decoyHash(), []byte(password))
	return false
}
