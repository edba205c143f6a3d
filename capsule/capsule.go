package capsule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"timecapsule/lockbox"
)

// Capsule is a payload locked under a master key, a public value stored in
// the clear, and the challenges that can each recover the master key.
//
// A Capsule is immutable once created and holds no plaintext key material.
type Capsule[P any] struct {
	lockbox.Lockbox
	Public     P          `json:"public"`
	Challenges Challenges `json:"challenges"`
}

// Validate checks that a decoded capsule is well formed.
func (c *Capsule[P]) Validate() error {
	if c == nil {
		return errors.New("capsule is nil")
	}
	if err := checkChallenges(c.Challenges); err != nil {
		return err
	}
	if _, err := c.Cipher.Algorithm.IVLength(); err != nil {
		return err
	}
	return nil
}

// Find returns the capsule's challenges of the given kind, in order.
func (c *Capsule[P]) Find(kind ChallengeType) []Challenge {
	var out []Challenge
	for _, ch := range c.Challenges {
		if ch.Type() == kind {
			out = append(out, ch)
		}
	}
	return out
}

// Contains reports whether challenge is one of the capsule's challenges,
// either as the same value or as an identical encoding of one.
func (c *Capsule[P]) Contains(challenge Challenge) bool {
	if challenge == nil {
		return false
	}

	var encoded []byte
	for _, ch := range c.Challenges {
		if ch == challenge {
			return true
		}
		if ch.Type() != challenge.Type() {
			continue
		}
		if encoded == nil {
			b, err := json.Marshal(challenge)
			if err != nil {
				return false
			}
			encoded = b
		}
		other, err := json.Marshal(ch)
		if err == nil && bytes.Equal(encoded, other) {
			return true
		}
	}
	return false
}

// Lock encrypts data under masterKey and returns a capsule carrying public and
// challenges verbatim. The caller must have wrapped the same masterKey into
// every challenge. At least one challenge is required; this is checked before
// any encryption happens.
func Lock[P any](cipher lockbox.Cipher, challenges []Challenge, masterKey, data []byte, public P) (*Capsule[P], error) {
	if err := checkChallenges(challenges); err != nil {
		return nil, err
	}

	locked, err := lockbox.Lock(cipher, masterKey, data)
	if err != nil {
		return nil, err
	}

	return newCapsule(locked, challenges, public), nil
}

// LockModel is Lock for a structured payload encoded with codec.
func LockModel[P any](cipher lockbox.Cipher, challenges []Challenge, masterKey []byte, codec lockbox.Codec, model any, public P) (*Capsule[P], error) {
	if err := checkChallenges(challenges); err != nil {
		return nil, err
	}

	locked, err := lockbox.LockModel(cipher, masterKey, codec, model)
	if err != nil {
		return nil, err
	}

	return newCapsule(locked, challenges, public), nil
}

// Unlock recovers the master key through challenge using secret and returns
// the capsule's payload. challenge must be one of capsule.Challenges;
// otherwise ErrChallengeNotFound is returned without attempting to solve it.
func Unlock[P any](capsule *Capsule[P], challenge Challenge, secret []byte) ([]byte, error) {
	masterKey, err := solveMember(capsule, challenge, secret)
	if err != nil {
		return nil, err
	}
	defer lockbox.Zero(masterKey)

	return UnlockWithMasterKey(capsule, masterKey)
}

// UnlockWithMasterKey returns the capsule's payload for a caller that already
// holds the master key.
func UnlockWithMasterKey[P any](capsule *Capsule[P], masterKey []byte) ([]byte, error) {
	if capsule == nil {
		return nil, errors.New("capsule is nil")
	}
	return lockbox.Unlock(capsule.Lockbox, masterKey)
}

// UnlockModel is Unlock for a payload locked with LockModel.
func UnlockModel[T, P any](capsule *Capsule[P], challenge Challenge, secret []byte, codec lockbox.Codec) (T, error) {
	masterKey, err := solveMember(capsule, challenge, secret)
	if err != nil {
		var zero T
		return zero, err
	}
	defer lockbox.Zero(masterKey)

	return UnlockModelWithMasterKey[T](capsule, masterKey, codec)
}

// UnlockModelWithMasterKey is UnlockWithMasterKey for a payload locked with
// LockModel.
func UnlockModelWithMasterKey[T, P any](capsule *Capsule[P], masterKey []byte, codec lockbox.Codec) (T, error) {
	if capsule == nil {
		var zero T
		return zero, errors.New("capsule is nil")
	}
	return lockbox.UnlockModel[T](capsule.Lockbox, masterKey, codec)
}

// Secret is a credential handed to Generate: a raw secondary key or a password.
type Secret struct {
	Type  ChallengeType
	Value []byte
}

// KeySecret returns a Secret for a key challenge.
func KeySecret(key []byte) Secret { return Secret{Type: ChallengeTypeKey, Value: key} }

// PasswordSecret returns a Secret for a password challenge.
func PasswordSecret(password []byte) Secret {
	return Secret{Type: ChallengeTypePassword, Value: password}
}

// Generate creates a capsule with system-chosen randomness: a fresh master
// key, a random IV for the payload and one random challenge per secret.
func Generate[P any](cfg lockbox.Configuration, data []byte, public P, secrets ...Secret) (*Capsule[P], error) {
	if len(secrets) == 0 {
		return nil, ErrNoChallenges
	}

	masterKey, err := lockbox.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate master key: %w", err)
	}
	defer lockbox.Zero(masterKey)

	challenges := make([]Challenge, 0, len(secrets))
	for i, s := range secrets {
		var ch Challenge
		switch s.Type {
		case ChallengeTypeKey:
			ch, err = GenerateRandomKeyChallenge(cfg, s.Value, masterKey)
		case ChallengeTypePassword:
			ch, err = GenerateRandomPasswordChallenge(cfg, s.Value, masterKey)
		default:
			err = fmt.Errorf("%w: %q", ErrUnsupportedChallenge, string(s.Type))
		}
		if err != nil {
			return nil, fmt.Errorf("secret %d: %w", i, err)
		}
		challenges = append(challenges, ch)
	}

	cipher, err := randomCipher(cfg.Cipher)
	if err != nil {
		return nil, err
	}

	return Lock(cipher, challenges, masterKey, data, public)
}

func newCapsule[P any](locked lockbox.Lockbox, challenges []Challenge, public P) *Capsule[P] {
	set := make(Challenges, len(challenges))
	copy(set, challenges)

	return &Capsule[P]{
		Lockbox:    locked,
		Public:     public,
		Challenges: set,
	}
}

func solveMember[P any](capsule *Capsule[P], challenge Challenge, secret []byte) ([]byte, error) {
	if capsule == nil {
		return nil, errors.New("capsule is nil")
	}
	if isNilChallenge(challenge) {
		return nil, ErrInvalidChallenge
	}
	if !capsule.Contains(challenge) {
		return nil, ErrChallengeNotFound
	}
	return SolveChallenge(challenge, secret)
}

func checkChallenges(challenges []Challenge) error {
	if len(challenges) == 0 {
		return ErrNoChallenges
	}
	for i, c := range challenges {
		if isNilChallenge(c) {
			return fmt.Errorf("%w: challenge %d is nil", ErrInvalidChallenge, i)
		}
	}
	return nil
}

func isNilChallenge(c Challenge) bool {
	switch v := c.(type) {
	case nil:
		return true
	case *KeyChallenge:
		return v == nil
	case *PasswordChallenge:
		return v == nil
	case *UnknownChallenge:
		return v == nil
	}
	return false
}
