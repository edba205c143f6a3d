package lockbox

import (
	"errors"
	"fmt"
)

const (
	// Argon2id defaults
	DefaultArgon2Time    = 3
	DefaultArgon2Memory  = 64 * 1024 // 64 MB, in KiB
	DefaultArgon2Threads = 4

	DefaultScryptN = 1 << 15
	DefaultScryptR = 8
	DefaultScryptP = 1

	DefaultPBKDF2Iterations = 600000

	DefaultSaltLength = 16
)

// CipherConfiguration selects the cipher used for new lockboxes.
type CipherConfiguration struct {
	Algorithm CipherAlgorithm `json:"algorithm"`
}

// IVLength returns the number of random bytes a fresh IV needs.
func (c CipherConfiguration) IVLength() int {
	n, err := c.Algorithm.IVLength()
	if err != nil {
		return 0
	}
	return n
}

// KeyDerivationConfiguration selects the KDF and its cost for new password
// challenges. The salt is drawn per challenge.
type KeyDerivationConfiguration struct {
	Algorithm  KDFAlgorithm `json:"algorithm"`
	SaltLength int          `json:"salt_length"`
	KeyLength  uint32       `json:"key_length"`

	Time    uint32 `json:"time,omitempty"`
	Memory  uint32 `json:"memory,omitempty"`
	Threads uint8  `json:"threads,omitempty"`

	N int `json:"n,omitempty"`
	R int `json:"r,omitempty"`
	P int `json:"p,omitempty"`

	Iterations int `json:"iterations,omitempty"`
}

// Configuration groups the cipher and key derivation settings used by the
// random generation helpers.
type Configuration struct {
	Cipher        CipherConfiguration        `json:"cipher"`
	KeyDerivation KeyDerivationConfiguration `json:"key_derivation"`
}

// DefaultConfiguration returns AES-256-GCM with Argon2id.
func DefaultConfiguration() Configuration {
	return Configuration{
		Cipher: CipherConfiguration{Algorithm: AES256GCM},
		KeyDerivation: KeyDerivationConfiguration{
			Algorithm:  Argon2id,
			SaltLength: DefaultSaltLength,
			KeyLength:  KeySize,
			Time:       DefaultArgon2Time,
			Memory:     DefaultArgon2Memory,
			Threads:    DefaultArgon2Threads,
		},
	}
}

// DefaultKeyDerivation returns default cost parameters for algorithm.
func DefaultKeyDerivation(algorithm KDFAlgorithm) (KeyDerivationConfiguration, error) {
	cfg := KeyDerivationConfiguration{
		Algorithm:  algorithm,
		SaltLength: DefaultSaltLength,
		KeyLength:  KeySize,
	}

	switch algorithm {
	case Argon2id:
		cfg.Time = DefaultArgon2Time
		cfg.Memory = DefaultArgon2Memory
		cfg.Threads = DefaultArgon2Threads
	case Scrypt:
		cfg.N = DefaultScryptN
		cfg.R = DefaultScryptR
		cfg.P = DefaultScryptP
	case PBKDF2SHA256:
		cfg.Iterations = DefaultPBKDF2Iterations
	default:
		return KeyDerivationConfiguration{}, fmt.Errorf("%w: %q", ErrUnsupportedKDF, string(algorithm))
	}

	return cfg, nil
}

// Validate reports every problem with the configuration.
func (c Configuration) Validate() error {
	var errs []error

	if _, err := c.Cipher.Algorithm.IVLength(); err != nil {
		errs = append(errs, err)
	}
	if c.KeyDerivation.SaltLength < 8 {
		errs = append(errs, errors.New("salt length must be at least 8 bytes"))
	}
	if c.KeyDerivation.KeyLength != KeySize {
		errs = append(errs, fmt.Errorf("key length must be %d bytes", KeySize))
	}

	// Validate cost parameters with a placeholder salt of the configured length.
	sample := c.KeyDerivation.build(make([]byte, max(c.KeyDerivation.SaltLength, 1)))
	if err := sample.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfiguration, errors.Join(errs...))
	}
	return nil
}

// BuildCipher returns the cipher for cfg using iv.
func BuildCipher(cfg CipherConfiguration, iv []byte) (Cipher, error) {
	return NewCipher(cfg.Algorithm, iv)
}

// BuildKeyDerivation returns key derivation parameters for cfg using salt.
func BuildKeyDerivation(cfg KeyDerivationConfiguration, salt []byte) (KeyDerivation, error) {
	if len(salt) != cfg.SaltLength {
		return KeyDerivation{}, fmt.Errorf("%w: salt length got %d, want %d", ErrInvalidKDFParameters, len(salt), cfg.SaltLength)
	}

	params := cfg.build(salt)
	if err := params.Validate(); err != nil {
		return KeyDerivation{}, err
	}
	return params, nil
}

func (cfg KeyDerivationConfiguration) build(salt []byte) KeyDerivation {
	saltCopy := make([]byte, len(salt))
	copy(saltCopy, salt)

	return KeyDerivation{
		Algorithm:  cfg.Algorithm,
		Salt:       saltCopy,
		KeyLength:  cfg.KeyLength,
		Time:       cfg.Time,
		Memory:     cfg.Memory,
		Threads:    cfg.Threads,
		N:          cfg.N,
		R:          cfg.R,
		P:          cfg.P,
		Iterations: cfg.Iterations,
	}
}
