package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"timecapsule/capsule"
)

// FormatVersion is written into every capsule this tool produces.
const FormatVersion = 1

// Metadata is the public part of a capsule. It is stored unencrypted.
type Metadata struct {
	Version   int               `json:"version"`
	CreatedAt time.Time         `json:"created_at"`
	Labels    map[string]string `json:"labels,omitempty"`
}

type sealedCapsule = capsule.Capsule[Metadata]

func readCapsule(r io.Reader) (*sealedCapsule, error) {
	var c sealedCapsule
	if err := json.NewDecoder(r).Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse capsule (is it a valid timecapsule file?): %w", err)
	}

	if c.Public.Version == 0 {
		return nil, fmt.Errorf("invalid capsule: missing version")
	}
	if c.Public.Version > FormatVersion {
		return nil, fmt.Errorf("unsupported capsule version: %d", c.Public.Version)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid capsule: %w", err)
	}

	return &c, nil
}

func writeCapsule(w io.Writer, c *sealedCapsule) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to write capsule: %w", err)
	}
	return nil
}
