package lockbox

import (
	"crypto/rand"
	"fmt"
	"io"
)

// RandomBytes returns n cryptographically random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// GenerateKey returns a fresh random key of KeySize bytes, suitable as a
// master key or a secondary key.
func GenerateKey() ([]byte, error) {
	return RandomBytes(KeySize)
}
