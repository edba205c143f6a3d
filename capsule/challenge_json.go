package capsule

import (
	"encoding/json"
	"errors"
	"fmt"

	"timecapsule/lockbox"
)

// Challenges is an ordered challenge set. It encodes to JSON as an array of
// objects tagged by their "type" field.
type Challenges []Challenge

type keyChallengeJSON struct {
	Type               ChallengeType   `json:"type"`
	EncryptedMasterKey lockbox.Lockbox `json:"encrypted_master_key"`
}

type passwordChallengeJSON struct {
	Type                    ChallengeType         `json:"type"`
	EncryptionKeyDerivation lockbox.KeyDerivation `json:"encryption_key_derivation"`
	EncryptedMasterKey      lockbox.Lockbox       `json:"encrypted_master_key"`
}

func (c *KeyChallenge) MarshalJSON() ([]byte, error) {
	return json.Marshal(keyChallengeJSON{
		Type:               ChallengeTypeKey,
		EncryptedMasterKey: c.EncryptedMasterKey,
	})
}

func (c *KeyChallenge) UnmarshalJSON(data []byte) error {
	var v keyChallengeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != ChallengeTypeKey {
		return fmt.Errorf("%w: expected %q challenge, got %q", ErrInvalidChallenge, ChallengeTypeKey, v.Type)
	}
	if len(v.EncryptedMasterKey.Ciphertext) == 0 {
		return fmt.Errorf("%w: key challenge missing encrypted_master_key", ErrInvalidChallenge)
	}

	c.EncryptedMasterKey = v.EncryptedMasterKey
	return nil
}

func (c *PasswordChallenge) MarshalJSON() ([]byte, error) {
	return json.Marshal(passwordChallengeJSON{
		Type:                    ChallengeTypePassword,
		EncryptionKeyDerivation: c.EncryptionKeyDerivation,
		EncryptedMasterKey:      c.EncryptedMasterKey,
	})
}

func (c *PasswordChallenge) UnmarshalJSON(data []byte) error {
	var v passwordChallengeJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	if v.Type != ChallengeTypePassword {
		return fmt.Errorf("%w: expected %q challenge, got %q", ErrInvalidChallenge, ChallengeTypePassword, v.Type)
	}
	if v.EncryptionKeyDerivation.Algorithm == "" {
		return fmt.Errorf("%w: password challenge missing encryption_key_derivation", ErrInvalidChallenge)
	}
	if len(v.EncryptedMasterKey.Ciphertext) == 0 {
		return fmt.Errorf("%w: password challenge missing encrypted_master_key", ErrInvalidChallenge)
	}

	c.EncryptionKeyDerivation = v.EncryptionKeyDerivation
	c.EncryptedMasterKey = v.EncryptedMasterKey
	return nil
}

func (c *UnknownChallenge) MarshalJSON() ([]byte, error) {
	if len(c.Raw) == 0 {
		return json.Marshal(struct {
			Type ChallengeType `json:"type"`
		}{c.Kind})
	}
	return c.Raw, nil
}

// MarshalJSON encodes each challenge with its discriminator.
func (cs Challenges) MarshalJSON() ([]byte, error) {
	raw := make([]json.RawMessage, 0, len(cs))
	for i, c := range cs {
		if c == nil {
			return nil, fmt.Errorf("%w: challenge %d is nil", ErrInvalidChallenge, i)
		}
		b, err := json.Marshal(c)
		if err != nil {
			return nil, fmt.Errorf("failed to encode challenge %d: %w", i, err)
		}
		raw = append(raw, b)
	}
	return json.Marshal(raw)
}

// UnmarshalJSON decodes each challenge by its "type" field. Unrecognized
// types decode to *UnknownChallenge rather than failing, so that the error
// surfaces when someone tries to solve them.
func (cs *Challenges) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Challenges, 0, len(raw))
	for i, r := range raw {
		c, err := decodeChallenge(r)
		if err != nil {
			return fmt.Errorf("failed to decode challenge %d: %w", i, err)
		}
		out = append(out, c)
	}

	*cs = out
	return nil
}

func decodeChallenge(data []byte) (Challenge, error) {
	var head struct {
		Type ChallengeType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, err
	}

	switch head.Type {
	case ChallengeTypeKey:
		c := &KeyChallenge{}
		if err := c.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return c, nil
	case ChallengeTypePassword:
		c := &PasswordChallenge{}
		if err := c.UnmarshalJSON(data); err != nil {
			return nil, err
		}
		return c, nil
	case "":
		return nil, errors.Join(ErrInvalidChallenge, errors.New("challenge missing type"))
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return &UnknownChallenge{Kind: head.Type, Raw: raw}, nil
	}
}
