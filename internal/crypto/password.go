package crypto

import (
	"errors"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

// bcrypt ignores input past 72 bytes, so longer secrets are refused instead of
// silently truncated.
const maxPasswordBytes = 72

var ErrPasswordTooLong = errors.New("password_too_long")

func HashPassword(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

var (
	decoyOnce sync.Once
	decoyHash []byte
)

func decoy() []byte {
	decoyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("studyhub-unknown-account"), bcrypt.DefaultCost)
		if err != nil {
			panic(err)
		}
		decoyHash = hash
	})
	return decoyHash
}

// CheckUnknownPassword costs the same bcrypt work as CheckPassword for an
// account that does not exist, so login latency does not tell registered
// emails apart. It always fails.
func CheckUnknownPassword(password string) error {
	_ = bcrypt.CompareHashAndPassword(decoy(), []byte(password))
	return bcrypt.ErrMismatchedHashAndPassword
}
