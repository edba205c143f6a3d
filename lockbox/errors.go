package lockbox

import "errors"

var (
	// ErrUnlockFailed is returned when a lockbox cannot be opened. A wrong key,
	// a truncated ciphertext and a failed authentication tag all produce this
	// same error.
	ErrUnlockFailed = errors.New("unlock failed")

	// ErrUnsupportedAlgorithm is returned when a cipher algorithm is not known.
	ErrUnsupportedAlgorithm = errors.New("unsupported cipher algorithm")

	// ErrInvalidKeySize is returned when a key of the wrong length is used to lock data.
	ErrInvalidKeySize = errors.New("invalid key size")

	// ErrInvalidIVSize is returned when the IV does not match the algorithm.
	ErrInvalidIVSize = errors.New("invalid iv size")

	// ErrUnsupportedKDF is returned when a key derivation algorithm is not known.
	ErrUnsupportedKDF = errors.New("unsupported key derivation algorithm")

	// ErrInvalidKDFParameters is returned when key derivation parameters are
	// out of range for their algorithm.
	ErrInvalidKDFParameters = errors.New("invalid key derivation parameters")

	// ErrPayloadFormat is returned when decrypted bytes cannot be decoded into
	// the requested model. Decryption itself succeeded.
	ErrPayloadFormat = errors.New("invalid payload format")

	// ErrInvalidConfiguration is returned by Configuration.Validate.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
