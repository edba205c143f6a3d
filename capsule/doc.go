// Package capsule implements multi-credential envelope encryption.
//
// A [Capsule] holds a payload encrypted once under a random master key. The
// master key itself is wrapped by one or more challenges, each under a
// different secondary key:
//
//   - [KeyChallenge]: the secondary key is a raw 256-bit key.
//   - [PasswordChallenge]: the secondary key is derived from a password with
//     the stored key derivation parameters.
//
// Any one challenge and its secret are enough to recover the master key and
// the payload. Holders never need each other's secrets.
//
// # Creating a capsule
//
// Generate the master key first and use the same key for every challenge and
// for the payload:
//
//	masterKey, _ := lockbox.GenerateKey()
//	pc, _ := capsule.GenerateRandomPasswordChallenge(cfg, password, masterKey)
//	kc, recoveryKey, _ := capsule.NewRandomKeyChallenge(cfg, masterKey)
//	c, _ := capsule.Lock(cipher, []capsule.Challenge{pc, kc}, masterKey, data, public)
//
// [Generate] does all of this in one call.
//
// # Errors
//
// A wrong secret and a corrupted capsule both return [ErrUnlockFailed].
// [ErrUnsupportedChallenge], [ErrNoChallenges], [ErrChallengeNotFound] and
// [ErrPayloadFormat] identify the other failure kinds.
package capsule
