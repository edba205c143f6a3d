package capsule

import (
	"fmt"

	"timecapsule/lockbox"
)

// ChallengeType is the discriminator of a challenge. It decides which
// recovery algorithm applies and is never inferred from the secret.
type ChallengeType string

const (
	ChallengeTypeKey      ChallengeType = "key"
	ChallengeTypePassword ChallengeType = "password"
)

// Challenge recovers a capsule's master key from a secret. The set of
// implementations is closed: KeyChallenge, PasswordChallenge, and
// UnknownChallenge for discriminators this version cannot solve.
type Challenge interface {
	Type() ChallengeType
	accept(v challengeVisitor) ([]byte, error)
}

// challengeVisitor has one method per challenge kind. Adding a kind means
// adding a method here, which every visitor must then implement.
type challengeVisitor interface {
	visitKey(c *KeyChallenge) ([]byte, error)
	visitPassword(c *PasswordChallenge) ([]byte, error)
	visitUnknown(c *UnknownChallenge) ([]byte, error)
}

// KeyChallenge holds the master key encrypted directly under a secondary key.
type KeyChallenge struct {
	EncryptedMasterKey lockbox.Lockbox
}

func (*KeyChallenge) Type() ChallengeType { return ChallengeTypeKey }

func (c *KeyChallenge) accept(v challengeVisitor) ([]byte, error) { return v.visitKey(c) }

// PasswordChallenge holds the master key encrypted under a key derived from
// a password, and the parameters needed to derive that key again.
type PasswordChallenge struct {
	EncryptionKeyDerivation lockbox.KeyDerivation
	EncryptedMasterKey      lockbox.Lockbox
}

func (*PasswordChallenge) Type() ChallengeType { return ChallengeTypePassword }

func (c *PasswordChallenge) accept(v challengeVisitor) ([]byte, error) { return v.visitPassword(c) }

// UnknownChallenge is a decoded challenge whose discriminator is not
// recognized. It is kept verbatim so that re-encoding a capsule does not lose
// it, but it can never be solved.
type UnknownChallenge struct {
	Kind ChallengeType
	Raw  []byte
}

func (c *UnknownChallenge) Type() ChallengeType { return c.Kind }

func (c *UnknownChallenge) accept(v challengeVisitor) ([]byte, error) { return v.visitUnknown(c) }

// CreateKeyChallenge encrypts masterKey under secondaryKey with cipher. The
// IV comes from cipher, so the result is reproducible for every algorithm
// except lockbox.AES256GCMHKDF1MB, whose salt and nonce prefix Tink draws
// internally on each encryption.
func CreateKeyChallenge(cipher lockbox.Cipher, secondaryKey, masterKey []byte) (*KeyChallenge, error) {
	encrypted, err := lockbox.Lock(cipher, secondaryKey, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create key challenge: %w", err)
	}

	return &KeyChallenge{EncryptedMasterKey: encrypted}, nil
}

// CreatePasswordChallenge derives a secondary key from password, then
// encrypts masterKey under it with cipher. The derived key is always the same
// for the same kdf and password; the wrapped master key is reproducible under
// the same conditions as CreateKeyChallenge.
func CreatePasswordChallenge(cipher lockbox.Cipher, kdf lockbox.KeyDerivation, password, masterKey []byte) (*PasswordChallenge, error) {
	key, err := lockbox.DeriveKey(kdf, password)
	if err != nil {
		return nil, fmt.Errorf("failed to create password challenge: %w", err)
	}
	defer lockbox.Zero(key)

	encrypted, err := lockbox.Lock(cipher, key, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create password challenge: %w", err)
	}

	return &PasswordChallenge{
		EncryptionKeyDerivation: kdf,
		EncryptedMasterKey:      encrypted,
	}, nil
}

// GenerateRandomKeyChallenge is CreateKeyChallenge with a fresh random IV.
func GenerateRandomKeyChallenge(cfg lockbox.Configuration, secondaryKey, masterKey []byte) (*KeyChallenge, error) {
	cipher, err := randomCipher(cfg.Cipher)
	if err != nil {
		return nil, err
	}

	return CreateKeyChallenge(cipher, secondaryKey, masterKey)
}

// GenerateRandomPasswordChallenge is CreatePasswordChallenge with a fresh
// random IV and salt.
func GenerateRandomPasswordChallenge(cfg lockbox.Configuration, password, masterKey []byte) (*PasswordChallenge, error) {
	cipher, err := randomCipher(cfg.Cipher)
	if err != nil {
		return nil, err
	}

	salt, err := lockbox.RandomBytes(cfg.KeyDerivation.SaltLength)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	kdf, err := lockbox.BuildKeyDerivation(cfg.KeyDerivation, salt)
	if err != nil {
		return nil, err
	}

	return CreatePasswordChallenge(cipher, kdf, password, masterKey)
}

// NewRandomKeyChallenge generates a fresh secondary key and wraps masterKey
// under it. The caller must hand the returned key to its holder; it is not
// stored anywhere else.
func NewRandomKeyChallenge(cfg lockbox.Configuration, masterKey []byte) (*KeyChallenge, []byte, error) {
	secondaryKey, err := lockbox.GenerateKey()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate secondary key: %w", err)
	}

	challenge, err := GenerateRandomKeyChallenge(cfg, secondaryKey, masterKey)
	if err != nil {
		lockbox.Zero(secondaryKey)
		return nil, nil, err
	}

	return challenge, secondaryKey, nil
}

// SolveKeyChallenge recovers the master key using secondaryKey.
func SolveKeyChallenge(c *KeyChallenge, secondaryKey []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidChallenge
	}
	return lockbox.Unlock(c.EncryptedMasterKey, secondaryKey)
}

// SolvePasswordChallenge re-derives the secondary key from password with the
// challenge's stored parameters and recovers the master key.
func SolvePasswordChallenge(c *PasswordChallenge, password []byte) ([]byte, error) {
	if c == nil {
		return nil, ErrInvalidChallenge
	}
	key, err := lockbox.DeriveKey(c.EncryptionKeyDerivation, password)
	if err != nil {
		return nil, err
	}
	defer lockbox.Zero(key)

	return lockbox.Unlock(c.EncryptedMasterKey, key)
}

// SolveChallenge recovers the master key from secret, interpreting secret by
// the challenge's discriminator: a raw key for key challenges, a password
// for password challenges. A wrong secret returns ErrUnlockFailed; a
// challenge kind this version cannot solve returns ErrUnsupportedChallenge.
func SolveChallenge(challenge Challenge, secret []byte) ([]byte, error) {
	if challenge == nil {
		return nil, ErrInvalidChallenge
	}
	return challenge.accept(solver{secret: secret})
}

type solver struct {
	secret []byte
}

func (s solver) visitKey(c *KeyChallenge) ([]byte, error) {
	return SolveKeyChallenge(c, s.secret)
}

func (s solver) visitPassword(c *PasswordChallenge) ([]byte, error) {
	return SolvePasswordChallenge(c, s.secret)
}

func (s solver) visitUnknown(c *UnknownChallenge) ([]byte, error) {
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedChallenge, string(c.Kind))
}

func randomCipher(cfg lockbox.CipherConfiguration) (lockbox.Cipher, error) {
	n, err := cfg.Algorithm.IVLength()
	if err != nil {
		return lockbox.Cipher{}, err
	}

	iv, err := lockbox.RandomBytes(n)
	if err != nil {
		return lockbox.Cipher{}, fmt.Errorf("failed to generate iv: %w", err)
	}

	return lockbox.BuildCipher(cfg, iv)
}
