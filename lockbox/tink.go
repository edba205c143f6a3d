package lockbox

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"github.com/tink-crypto/tink-go/v2/insecurecleartextkeyset"
	"github.com/tink-crypto/tink-go/v2/keyset"
	"github.com/tink-crypto/tink-go/v2/streamingaead"
	"github.com/tink-crypto/tink-go/v2/tink"
)

const (
	streamingSegmentSize    = 1 << 20 // 1MB
	streamingDerivedKeySize = 32      // AES-256
	streamingHKDFHashType   = 3       // SHA256
)

func sealStreaming(key, plaintext []byte) ([]byte, error) {
	primitive, err := newStreamingAEAD(key)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	w, err := primitive.NewEncryptingWriter(&out, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create encrypting writer: %w", err)
	}
	if _, err := w.Write(plaintext); err != nil {
		return nil, fmt.Errorf("encryption failed: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize encryption: %w", err)
	}

	return out.Bytes(), nil
}

func openStreaming(key, ciphertext []byte) ([]byte, error) {
	primitive, err := newStreamingAEAD(key)
	if err != nil {
		return nil, err
	}

	r, err := primitive.NewDecryptingReader(bytes.NewReader(ciphertext), nil)
	if err != nil {
		return nil, ErrUnlockFailed
	}

	plaintext, err := io.ReadAll(r)
	if err != nil {
		return nil, ErrUnlockFailed
	}

	return plaintext, nil
}

// newStreamingAEAD wraps a raw 256-bit key in a single-key Tink keyset for
// AES-GCM-HKDF streaming and returns its primitive.
func newStreamingAEAD(key []byte) (tink.StreamingAEAD, error) {
	keyValue := streamingKeyValue(key)
	defer Zero(keyValue)

	encoded := base64.StdEncoding.EncodeToString(keyValue)

	keysetJSON := fmt.Sprintf(`{
		"primaryKeyId": 1,
		"key": [{
			"keyData": {
				"typeUrl": "type.googleapis.com/google.crypto.tink.AesGcmHkdfStreamingKey",
				"keyMaterialType": "SYMMETRIC",
				"value": "%s"
			},
			"outputPrefixType": "RAW",
			"keyId": 1,
			"status": "ENABLED"
		}]
	}`, encoded)

	handle, err := insecurecleartextkeyset.Read(
		keyset.NewJSONReader(strings.NewReader(keysetJSON)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create keyset: %w", err)
	}

	primitive, err := streamingaead.New(handle)
	if err != nil {
		return nil, fmt.Errorf("failed to create streaming AEAD: %w", err)
	}

	return primitive, nil
}

// streamingKeyValue builds the protobuf encoding of an AesGcmHkdfStreamingKey.
// See: https://github.com/tink-crypto/tink/blob/master/proto/aes_gcm_hkdf_streaming.proto
func streamingKeyValue(key []byte) []byte {
	params := []byte{}
	params = append(params, 0x08) // ciphertext_segment_size
	params = appendVarint(params, streamingSegmentSize)
	params = append(params, 0x10) // derived_key_size
	params = appendVarint(params, streamingDerivedKeySize)
	params = append(params, 0x18) // hkdf_hash_type
	params = appendVarint(params, streamingHKDFHashType)

	result := []byte{}
	result = append(result, 0x08, 0x00) // version = 0
	result = append(result, 0x12)       // params
	result = appendVarint(result, uint32(len(params)))
	result = append(result, params...)
	result = append(result, 0x1a) // key_value
	result = appendVarint(result, uint32(len(key)))
	result = append(result, key...)

	return result
}

func appendVarint(buf []byte, v uint32) []byte {
	for v >= 0x80 {
		buf = append(buf, byte(v)|0x80)
		v >>= 7
	}
	return append(buf, byte(v))
}
