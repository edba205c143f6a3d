// Package lockbox provides the primitives that capsules are built from:
// authenticated encryption of opaque bytes, password key derivation, random
// key material and payload codecs.
//
// # Ciphers
//
// A [Cipher] is the context of a single encryption: an algorithm and the IV
// it is used with. Supported algorithms are AES-256-GCM, ChaCha20-Poly1305,
// XChaCha20-Poly1305, NaCl secretbox (XSalsa20-Poly1305) and Tink's
// AES256-GCM-HKDF-1MB streaming AEAD. All of them take 256-bit keys.
//
// IVs MUST be unique for each encryption with the same key. Use
// [BuildCipher] with bytes from [RandomBytes] unless a fixed IV is needed
// for a reproducible test.
//
// # Key Derivation
//
// [DeriveKey] turns a password into a key with Argon2id, scrypt or
// PBKDF2-SHA256. The [KeyDerivation] parameters are stored next to the
// ciphertext they protect; they are not secret.
//
// # Errors
//
// [Unlock] never says why it failed. A wrong key and corrupted ciphertext
// both return [ErrUnlockFailed], which avoids acting as a decryption oracle.
package lockbox
