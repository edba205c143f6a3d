package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"os"

	"timecapsule/lockbox"
)

// readKeyFile reads a base64 encoded 256-bit key.
func readKeyFile(path string) ([]byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	defer lockbox.Zero(raw)

	encoded := bytes.TrimSpace(raw)
	key := make([]byte, base64.StdEncoding.DecodedLen(len(encoded)))
	n, err := base64.StdEncoding.Decode(key, encoded)
	if err != nil {
		lockbox.Zero(key)
		return nil, fmt.Errorf("invalid key file %s: not base64", path)
	}
	if n != lockbox.KeySize {
		lockbox.Zero(key)
		return nil, fmt.Errorf("invalid key file %s: key must be %d bytes, got %d", path, lockbox.KeySize, n)
	}

	return key[:n], nil
}

// writeKeyFile writes key base64 encoded to a new file readable only by the
// owner. It refuses to overwrite an existing file.
func writeKeyFile(path string, key []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create key file: %w", err)
	}

	encoded := make([]byte, base64.StdEncoding.EncodedLen(len(key))+1)
	defer lockbox.Zero(encoded)
	base64.StdEncoding.Encode(encoded, key)
	encoded[len(encoded)-1] = '\n'

	if _, err := f.Write(encoded); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	return nil
}
