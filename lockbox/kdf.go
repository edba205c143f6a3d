package lockbox

import (
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/pbkdf2"
	"golang.org/x/crypto/scrypt"
)

// KDFAlgorithm names a password-based key derivation function.
type KDFAlgorithm string

const (
	Argon2id     KDFAlgorithm = "argon2id"
	Scrypt       KDFAlgorithm = "scrypt"
	PBKDF2SHA256 KDFAlgorithm = "pbkdf2-sha256"
)

// Upper bounds on cost parameters. KeyDerivation values are read from
// capsules that may be untrusted, so every cost is capped.
const (
	MaxKeyLength        = 64
	MaxArgon2Time       = 64
	MaxArgon2Memory     = 4 * 1024 * 1024 // 4 GiB, in KiB
	MaxScryptMemory     = 1 << 30         // 128*N*r bytes
	MaxScryptRP         = 1 << 30
	MaxPBKDF2Iterations = 10000000
)

// KeyDerivation holds everything needed to turn a password back into the
// same key: the algorithm, its salt and its cost parameters. Only the cost
// fields of the selected algorithm are used.
type KeyDerivation struct {
	Algorithm KDFAlgorithm `json:"algorithm"`
	Salt      []byte       `json:"salt"`
	KeyLength uint32       `json:"key_length"`

	// Argon2id
	Time    uint32 `json:"time,omitempty"`
	Memory  uint32 `json:"memory,omitempty"` // in KiB
	Threads uint8  `json:"threads,omitempty"`

	// scrypt
	N int `json:"n,omitempty"`
	R int `json:"r,omitempty"`
	P int `json:"p,omitempty"`

	// PBKDF2
	Iterations int `json:"iterations,omitempty"`
}

// Validate checks the parameters against the selected algorithm.
func (k KeyDerivation) Validate() error {
	if len(k.Salt) == 0 {
		return fmt.Errorf("%w: empty salt", ErrInvalidKDFParameters)
	}
	if k.KeyLength == 0 || k.KeyLength > MaxKeyLength {
		return fmt.Errorf("%w: key length must be between 1 and %d", ErrInvalidKDFParameters, MaxKeyLength)
	}

	switch k.Algorithm {
	case Argon2id:
		if k.Time < 1 || k.Time > MaxArgon2Time {
			return fmt.Errorf("%w: argon2id time must be between 1 and %d", ErrInvalidKDFParameters, MaxArgon2Time)
		}
		if k.Threads < 1 {
			return fmt.Errorf("%w: argon2id threads must be at least 1", ErrInvalidKDFParameters)
		}
		if k.Memory < 8*uint32(k.Threads) {
			return fmt.Errorf("%w: argon2id memory must be at least 8KiB per thread", ErrInvalidKDFParameters)
		}
		if k.Memory > MaxArgon2Memory {
			return fmt.Errorf("%w: argon2id memory must be at most %dKiB", ErrInvalidKDFParameters, MaxArgon2Memory)
		}
	case Scrypt:
		if k.N <= 1 || k.N&(k.N-1) != 0 {
			return fmt.Errorf("%w: scrypt N must be a power of two greater than 1", ErrInvalidKDFParameters)
		}
		if k.R < 1 || k.P < 1 {
			return fmt.Errorf("%w: scrypt r and p must be at least 1", ErrInvalidKDFParameters)
		}
		if uint64(k.N) > MaxScryptMemory/128/uint64(k.R) {
			return fmt.Errorf("%w: scrypt 128*N*r must be at most %d bytes", ErrInvalidKDFParameters, MaxScryptMemory)
		}
		if k.P >= MaxScryptRP || uint64(k.R)*uint64(k.P) >= MaxScryptRP {
			return fmt.Errorf("%w: scrypt r*p must be below %d", ErrInvalidKDFParameters, MaxScryptRP)
		}
	case PBKDF2SHA256:
		if k.Iterations < 1 || k.Iterations > MaxPBKDF2Iterations {
			return fmt.Errorf("%w: pbkdf2 iterations must be between 1 and %d", ErrInvalidKDFParameters, MaxPBKDF2Iterations)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedKDF, string(k.Algorithm))
	}

	return nil
}

// DeriveKey derives a key from password. Identical parameters and password
// always produce the identical key.
func DeriveKey(params KeyDerivation, password []byte) ([]byte, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}

	switch params.Algorithm {
	case Argon2id:
		return argon2.IDKey(password, params.Salt, params.Time, params.Memory, params.Threads, params.KeyLength), nil
	case Scrypt:
		key, err := scrypt.Key(password, params.Salt, params.N, params.R, params.P, int(params.KeyLength))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidKDFParameters, err)
		}
		return key, nil
	case PBKDF2SHA256:
		return pbkdf2.Key(password, params.Salt, params.Iterations, int(params.KeyLength), sha256.New), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKDF, string(params.Algorithm))
	}
}
