package capsule

import (
	"errors"

	"timecapsule/lockbox"
)

var (
	// ErrNoChallenges is returned when a capsule would be created without any
	// challenge. Such a capsule could never be opened.
	ErrNoChallenges = errors.New("capsule requires at least one challenge")

	// ErrInvalidChallenge is returned for a nil or malformed challenge.
	ErrInvalidChallenge = errors.New("invalid challenge")

	// ErrUnsupportedChallenge is returned when solving a challenge whose
	// discriminator has no known recovery algorithm. It indicates a version or
	// schema mismatch, not a wrong secret.
	ErrUnsupportedChallenge = errors.New("unsupported challenge type")

	// ErrChallengeNotFound is returned when the challenge passed to Unlock is
	// not one of the capsule's challenges.
	ErrChallengeNotFound = errors.New("challenge does not belong to capsule")

	// ErrUnlockFailed is returned when the secret does not open the challenge
	// or the capsule data is corrupted. The two cases are not distinguished.
	ErrUnlockFailed = lockbox.ErrUnlockFailed

	// ErrPayloadFormat is returned when unlocked bytes do not decode into the
	// requested model.
	ErrPayloadFormat = lockbox.ErrPayloadFormat
)
