package lockbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"
)

type note struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestLockUnlock(t *testing.T) {
	c := testCipher(t, AES256GCM)
	key := testKey(t)

	lb, err := Lock(c, key, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, c, lb.Cipher)

	data, err := Unlock(lb, key)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}

func TestLock_InvalidKey(t *testing.T) {
	c := testCipher(t, AES256GCM)

	_, err := Lock(c, []byte("short"), []byte("hello world"))
	assert.ErrorIs(t, err, ErrInvalidKeySize)
}

func TestUnlock_FailuresAreOpaque(t *testing.T) {
	c := testCipher(t, XChaCha20Poly1305)
	key := testKey(t)

	lb, err := Lock(c, key, []byte("hello world"))
	require.NoError(t, err)

	flipped := append([]byte(nil), key...)
	flipped[0] ^= 0x01

	truncated := lb
	truncated.Ciphertext = lb.Ciphertext[:len(lb.Ciphertext)-4]

	corrupted := lb
	corrupted.Ciphertext = append([]byte(nil), lb.Ciphertext...)
	corrupted.Ciphertext[0] ^= 0x80

	wrongIV := lb
	wrongIV.Cipher.IV = make([]byte, len(lb.Cipher.IV))

	tests := []struct {
		name    string
		lockbox Lockbox
		key     []byte
	}{
		{"wrong key", lb, testKey(t)},
		{"flipped bit", lb, flipped},
		{"empty key", lb, nil},
		{"truncated key", lb, key[:16]},
		{"truncated ciphertext", truncated, key},
		{"corrupted ciphertext", corrupted, key},
		{"wrong iv", wrongIV, key},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unlock(tt.lockbox, tt.key)
			assert.Equal(t, ErrUnlockFailed, err)
		})
	}
}

func TestUnlock_UnsupportedAlgorithm(t *testing.T) {
	lb := Lockbox{
		Cipher:     Cipher{Algorithm: "des-ecb", IV: make([]byte, 8)},
		Ciphertext: []byte("whatever"),
	}

	_, err := Unlock(lb, testKey(t))
	assert.ErrorIs(t, err, ErrUnsupportedAlgorithm)
	assert.NotErrorIs(t, err, ErrUnlockFailed)
}

func TestLockModel_JSON(t *testing.T) {
	c := testCipher(t, ChaCha20Poly1305)
	key := testKey(t)
	in := note{Title: "groceries", Tags: []string{"home", "weekly"}}

	lb, err := LockModel(c, key, JSONCodec{}, in)
	require.NoError(t, err)

	out, err := UnlockModel[note](lb, key, JSONCodec{})
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestLockModel_Proto(t *testing.T) {
	c := testCipher(t, AES256GCM)
	key := testKey(t)

	in, err := structpb.NewStruct(map[string]any{
		"title": "groceries",
		"count": 3,
	})
	require.NoError(t, err)

	lb, err := LockModel(c, key, ProtoCodec{}, in)
	require.NoError(t, err)

	out, err := UnlockModel[*structpb.Struct](lb, key, ProtoCodec{})
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.Equal(t, "groceries", out.Fields["title"].GetStringValue())
	assert.Equal(t, float64(3), out.Fields["count"].GetNumberValue())
}

func TestLockModel_ProtoRejectsNonMessage(t *testing.T) {
	c := testCipher(t, AES256GCM)

	_, err := LockModel(c, testKey(t), ProtoCodec{}, note{Title: "x"})
	assert.Error(t, err)
}

func TestUnlockModel_PayloadFormat(t *testing.T) {
	c := testCipher(t, AES256GCM)
	key := testKey(t)

	lb, err := Lock(c, key, []byte("not json"))
	require.NoError(t, err)

	_, err = UnlockModel[note](lb, key, JSONCodec{})
	assert.ErrorIs(t, err, ErrPayloadFormat)
	assert.NotErrorIs(t, err, ErrUnlockFailed)
}

func TestUnlockModel_WrongKey(t *testing.T) {
	c := testCipher(t, AES256GCM)

	lb, err := LockModel(c, testKey(t), JSONCodec{}, note{Title: "x"})
	require.NoError(t, err)

	_, err = UnlockModel[note](lb, testKey(t), JSONCodec{})
	assert.ErrorIs(t, err, ErrUnlockFailed)
	assert.NotErrorIs(t, err, ErrPayloadFormat)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0, 0}, b)
}

func TestRandomBytes(t *testing.T) {
	a, err := RandomBytes(32)
	require.NoError(t, err)
	b, err := RandomBytes(32)
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.NotEqual(t, a, b)

	empty, err := RandomBytes(0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
