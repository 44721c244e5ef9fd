package auth

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

var dummyHash = sync.OnceValue(func() string {
	hash, _ := bcrypt.GenerateFromPassword([]byte("arabia-dummy-password"), bcrypt.DefaultCost)
	return string(hash)
})

// HashPassword hashes plaintext password using bcrypt.
func HashPassword(password string) (string, error) {
	if len(password) == 0 {
		return "", errors.New("password is empty")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword compares plaintext password with stored hash.
func VerifyPassword(hash, password string) error {
	if hash == "" {
		return errors.New("password hash is empty")
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// burnPasswordCheck spends one bcrypt comparison so unknown accounts take as
// long to reject as wrong passwords.
func burnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword([]byte(dummyHash()), []byte(password))
}
