package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// DefaultLength is the opaque token length used when none is configured.
const DefaultLength = 32

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// New generates an opaque alphanumeric token of the given length from a
// cryptographically secure source. Guessability is a security property here,
// so math/rand is never acceptable.
func New(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}
	buf := make([]byte, length)
	max := big.NewInt(int64(len(alphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("token generation failed: %w", err)
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

// NewNumeric generates a numeric one-time code (phone/gate fallback codes).
func NewNumeric(length int) (string, error) {
	if length <= 0 {
		return "", fmt.Errorf("code length must be positive")
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("code generation failed: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
