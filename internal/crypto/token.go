package crypto

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken derives a fixed-length storage key from a client supplied value.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
