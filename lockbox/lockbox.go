package lockbox

import (
	"errors"
	"fmt"
)

// Lockbox is data encrypted under a key, together with the cipher context
// needed to decrypt it again.
type Lockbox struct {
	Cipher     Cipher `json:"cipher"`
	Ciphertext []byte `json:"ciphertext"`
}

// Lock encrypts data under key with cipher.
func Lock(cipher Cipher, key, data []byte) (Lockbox, error) {
	ciphertext, err := cipher.Seal(key, data)
	if err != nil {
		return Lockbox{}, fmt.Errorf("failed to lock data: %w", err)
	}

	return Lockbox{Cipher: cipher, Ciphertext: ciphertext}, nil
}

// Unlock decrypts the lockbox under key. Every decryption failure is reported
// as ErrUnlockFailed, whatever its cause.
func Unlock(lockbox Lockbox, key []byte) ([]byte, error) {
	if _, err := lockbox.Cipher.Algorithm.IVLength(); err != nil {
		return nil, err
	}

	data, err := lockbox.Cipher.Open(key, lockbox.Ciphertext)
	if err != nil {
		return nil, ErrUnlockFailed
	}

	return data, nil
}

// LockModel encodes model with codec and locks the resulting bytes.
func LockModel(cipher Cipher, key []byte, codec Codec, model any) (Lockbox, error) {
	data, err := codec.Marshal(model)
	if err != nil {
		return Lockbox{}, fmt.Errorf("failed to encode model: %w", err)
	}
	defer Zero(data)

	return Lock(cipher, key, data)
}

// UnlockModel unlocks the lockbox and decodes the bytes into a T.
func UnlockModel[T any](lockbox Lockbox, key []byte, codec Codec) (T, error) {
	var model T

	data, err := Unlock(lockbox, key)
	if err != nil {
		return model, err
	}
	defer Zero(data)

	if err := codec.Unmarshal(data, &model); err != nil {
		return model, errors.Join(ErrPayloadFormat, err)
	}

	return model, nil
}
