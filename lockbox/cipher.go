package lockbox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/nacl/secretbox"
)

// CipherAlgorithm names an authenticated encryption algorithm.
type CipherAlgorithm string

const (
	AES256GCM         CipherAlgorithm = "aes-256-gcm"
	ChaCha20Poly1305  CipherAlgorithm = "chacha20-poly1305"
	XChaCha20Poly1305 CipherAlgorithm = "xchacha20-poly1305"
	XSalsa20Poly1305  CipherAlgorithm = "xsalsa20-poly1305"
	// AES256GCMHKDF1MB is Tink's segmented streaming AEAD. The nonce prefix
	// and per-stream salt are written into the ciphertext, so it takes no IV.
	AES256GCMHKDF1MB CipherAlgorithm = "aes256-gcm-hkdf-1mb"
)

const (
	// KeySize is the key length of every supported algorithm (256 bits).
	KeySize = 32

	gcmNonceSize       = 12
	secretboxNonceSize = 24
)

// IVLength returns the IV length required by the algorithm.
func (a CipherAlgorithm) IVLength() (int, error) {
	switch a {
	case AES256GCM:
		return gcmNonceSize, nil
	case ChaCha20Poly1305:
		return chacha20poly1305.NonceSize, nil
	case XChaCha20Poly1305:
		return chacha20poly1305.NonceSizeX, nil
	case XSalsa20Poly1305:
		return secretboxNonceSize, nil
	case AES256GCMHKDF1MB:
		return 0, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(a))
	}
}

// Cipher is the encryption context for a single lock operation: the algorithm
// and the IV it will be used with. An IV must never be reused under the same
// key.
type Cipher struct {
	Algorithm CipherAlgorithm `json:"algorithm"`
	IV        []byte          `json:"iv,omitempty"`
}

// NewCipher returns a Cipher after checking the IV length against the algorithm.
func NewCipher(algorithm CipherAlgorithm, iv []byte) (Cipher, error) {
	n, err := algorithm.IVLength()
	if err != nil {
		return Cipher{}, err
	}
	if len(iv) != n {
		return Cipher{}, fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(iv), n)
	}

	ivCopy := make([]byte, len(iv))
	copy(ivCopy, iv)

	return Cipher{Algorithm: algorithm, IV: ivCopy}, nil
}

// Seal encrypts plaintext under key.
func (c Cipher) Seal(key, plaintext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	if err := c.checkIV(); err != nil {
		return nil, err
	}

	switch c.Algorithm {
	case XSalsa20Poly1305:
		var k [KeySize]byte
		var nonce [secretboxNonceSize]byte
		copy(k[:], key)
		copy(nonce[:], c.IV)
		defer Zero(k[:])
		return secretbox.Seal(nil, plaintext, &nonce, &k), nil
	case AES256GCMHKDF1MB:
		return sealStreaming(key, plaintext)
	}

	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}

	return aead.Seal(nil, c.IV, plaintext, nil), nil
}

// Open decrypts ciphertext produced by Seal with the same key and IV.
func (c Cipher) Open(key, ciphertext []byte) ([]byte, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidKeySize, len(key), KeySize)
	}
	if err := c.checkIV(); err != nil {
		return nil, err
	}

	switch c.Algorithm {
	case XSalsa20Poly1305:
		var k [KeySize]byte
		var nonce [secretboxNonceSize]byte
		copy(k[:], key)
		copy(nonce[:], c.IV)
		defer Zero(k[:])
		plaintext, ok := secretbox.Open(nil, ciphertext, &nonce, &k)
		if !ok {
			return nil, ErrUnlockFailed
		}
		return plaintext, nil
	case AES256GCMHKDF1MB:
		return openStreaming(key, ciphertext)
	}

	aead, err := c.aead(key)
	if err != nil {
		return nil, err
	}

	plaintext, err := aead.Open(nil, c.IV, ciphertext, nil)
	if err != nil {
		return nil, ErrUnlockFailed
	}

	return plaintext, nil
}

func (c Cipher) checkIV() error {
	n, err := c.Algorithm.IVLength()
	if err != nil {
		return err
	}
	if len(c.IV) != n {
		return fmt.Errorf("%w: got %d, want %d", ErrInvalidIVSize, len(c.IV), n)
	}
	return nil
}

func (c Cipher) aead(key []byte) (cipher.AEAD, error) {
	switch c.Algorithm {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("failed to create GCM: %w", err)
		}
		return gcm, nil
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, string(c.Algorithm))
	}
}
