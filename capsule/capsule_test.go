package capsule

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"timecapsule/lockbox"
)

type metadata struct {
	Label string `json:"label"`
}

type letter struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func TestLockUnlock_HelloWorld(t *testing.T) {
	masterKey := testMasterKey(t)
	zeroKey := make([]byte, lockbox.KeySize)

	kc, err := CreateKeyChallenge(fixedCipher(t), zeroKey, masterKey)
	require.NoError(t, err)

	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("hello world"), metadata{Label: "greeting"})
	require.NoError(t, err)
	assert.Equal(t, "greeting", c.Public.Label)

	data, err := Unlock(c, kc, make([]byte, lockbox.KeySize))
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	ones := make([]byte, lockbox.KeySize)
	for i := range ones {
		ones[i] = 0x01
	}
	_, err = Unlock(c, kc, ones)
	assert.ErrorIs(t, err, ErrUnlockFailed)
}

func TestLock_NoChallenges(t *testing.T) {
	tests := []struct {
		name       string
		challenges []Challenge
		wantErr    error
	}{
		{"nil", nil, ErrNoChallenges},
		{"empty", []Challenge{}, ErrNoChallenges},
		{"nil element", []Challenge{nil}, ErrInvalidChallenge},
		{"typed nil element", []Challenge{(*PasswordChallenge)(nil)}, ErrInvalidChallenge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// An invalid key would fail encryption, so a precondition error
			// here shows the check ran before any encryption.
			c, err := Lock(fixedCipher(t), tt.challenges, []byte("not a key"), []byte("payload"), "public")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.NotErrorIs(t, err, lockbox.ErrInvalidKeySize)
			assert.Nil(t, c)

			m, err := LockModel(fixedCipher(t), tt.challenges, []byte("not a key"), lockbox.JSONCodec{}, letter{}, "public")
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, m)
		})
	}
}

func TestLock_CopiesChallenges(t *testing.T) {
	masterKey := testMasterKey(t)
	kc, err := CreateKeyChallenge(fixedCipher(t), testMasterKey(t), masterKey)
	require.NoError(t, err)

	challenges := []Challenge{kc}
	c, err := Lock(fixedCipher(t), challenges, masterKey, []byte("payload"), struct{}{})
	require.NoError(t, err)

	challenges[0] = nil
	assert.Same(t, kc, c.Challenges[0])
}

func TestUnlock_Independence(t *testing.T) {
	cfg := testConfiguration()
	masterKey := testMasterKey(t)
	secondaryKey := testMasterKey(t)
	password := []byte("correct horse battery staple")

	kc, err := GenerateRandomKeyChallenge(cfg, secondaryKey, masterKey)
	require.NoError(t, err)
	pc, err := GenerateRandomPasswordChallenge(cfg, password, masterKey)
	require.NoError(t, err)

	c, err := Lock(fixedCipher(t), []Challenge{kc, pc}, masterKey, []byte("the payload"), "")
	require.NoError(t, err)

	viaKey, err := Unlock(c, kc, secondaryKey)
	require.NoError(t, err)
	viaPassword, err := Unlock(c, pc, password)
	require.NoError(t, err)

	assert.Equal(t, []byte("the payload"), viaKey)
	assert.Equal(t, viaKey, viaPassword)

	// Each secret only opens its own challenge.
	_, err = Unlock(c, kc, password)
	assert.ErrorIs(t, err, ErrUnlockFailed)
	_, err = Unlock(c, pc, secondaryKey)
	assert.ErrorIs(t, err, ErrUnlockFailed)
}

func TestUnlock_ChallengeNotInCapsule(t *testing.T) {
	masterKey := testMasterKey(t)
	secondaryKey := testMasterKey(t)

	kc, err := CreateKeyChallenge(fixedCipher(t), secondaryKey, masterKey)
	require.NoError(t, err)
	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("payload"), "")
	require.NoError(t, err)

	// A valid challenge for the same master key that was never added.
	stranger, err := GenerateRandomKeyChallenge(testConfiguration(), secondaryKey, masterKey)
	require.NoError(t, err)

	_, err = Unlock(c, stranger, secondaryKey)
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = Unlock(c, nil, secondaryKey)
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestUnlock_EquivalentChallengeCopy(t *testing.T) {
	masterKey := testMasterKey(t)
	secondaryKey := testMasterKey(t)

	kc, err := CreateKeyChallenge(fixedCipher(t), secondaryKey, masterKey)
	require.NoError(t, err)
	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("payload"), "")
	require.NoError(t, err)

	clone := &KeyChallenge{EncryptedMasterKey: kc.EncryptedMasterKey}
	assert.True(t, c.Contains(clone))

	data, err := Unlock(c, clone, secondaryKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)
}

func TestUnlock_CorruptedPayload(t *testing.T) {
	masterKey := testMasterKey(t)
	secondaryKey := testMasterKey(t)

	kc, err := CreateKeyChallenge(fixedCipher(t), secondaryKey, masterKey)
	require.NoError(t, err)
	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("payload"), "")
	require.NoError(t, err)

	c.Ciphertext = append([]byte(nil), c.Ciphertext...)
	c.Ciphertext[0] ^= 0x01

	_, err = Unlock(c, kc, secondaryKey)
	assert.ErrorIs(t, err, ErrUnlockFailed)
}

func TestUnlockWithMasterKey(t *testing.T) {
	masterKey := testMasterKey(t)
	kc, err := CreateKeyChallenge(fixedCipher(t), testMasterKey(t), masterKey)
	require.NoError(t, err)

	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("payload"), "")
	require.NoError(t, err)

	data, err := UnlockWithMasterKey(c, masterKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), data)

	_, err = UnlockWithMasterKey(c, testMasterKey(t))
	assert.ErrorIs(t, err, ErrUnlockFailed)

	_, err = UnlockWithMasterKey[string](nil, masterKey)
	assert.Error(t, err)
}

func TestLockModel_JSON(t *testing.T) {
	masterKey := testMasterKey(t)
	password := []byte("hunter2")

	pc, err := CreatePasswordChallenge(fixedCipher(t), fixedKeyDerivation(), password, masterKey)
	require.NoError(t, err)

	want := letter{To: "future me", Body: "remember to rotate the keys"}
	c, err := LockModel(fixedCipher(t), []Challenge{pc}, masterKey, lockbox.JSONCodec{}, want, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, c.Public)

	got, err := UnlockModel[letter](c, pc, password, lockbox.JSONCodec{})
	require.NoError(t, err)
	assert.Equal(t, want, got)

	direct, err := UnlockModelWithMasterKey[letter](c, masterKey, lockbox.JSONCodec{})
	require.NoError(t, err)
	assert.Equal(t, want, direct)

	_, err = UnlockModel[letter](c, pc, []byte("hunter3"), lockbox.JSONCodec{})
	assert.ErrorIs(t, err, ErrUnlockFailed)
	assert.NotErrorIs(t, err, ErrPayloadFormat)
}

func TestLockModel_Proto(t *testing.T) {
	masterKey := testMasterKey(t)
	kc, secondaryKey, err := NewRandomKeyChallenge(testConfiguration(), masterKey)
	require.NoError(t, err)

	want, err := structpb.NewStruct(map[string]any{"to": "future me", "year": 2030})
	require.NoError(t, err)

	c, err := LockModel(fixedCipher(t), []Challenge{kc}, masterKey, lockbox.ProtoCodec{}, want, "")
	require.NoError(t, err)

	got, err := UnlockModel[*structpb.Struct](c, kc, secondaryKey, lockbox.ProtoCodec{})
	require.NoError(t, err)
	assert.Equal(t, "future me", got.Fields["to"].GetStringValue())
	assert.Equal(t, float64(2030), got.Fields["year"].GetNumberValue())
}

func TestUnlockModel_PayloadFormat(t *testing.T) {
	masterKey := testMasterKey(t)
	secondaryKey := testMasterKey(t)

	kc, err := CreateKeyChallenge(fixedCipher(t), secondaryKey, masterKey)
	require.NoError(t, err)
	c, err := Lock(fixedCipher(t), []Challenge{kc}, masterKey, []byte("definitely not json"), "")
	require.NoError(t, err)

	_, err = UnlockModel[letter](c, kc, secondaryKey, lockbox.JSONCodec{})
	assert.ErrorIs(t, err, ErrPayloadFormat)
	assert.NotErrorIs(t, err, ErrUnlockFailed)
}

func TestUnlock_UnknownChallengeInCapsule(t *testing.T) {
	masterKey := testMasterKey(t)
	unknown := &UnknownChallenge{Kind: "fingerprint"}

	c, err := Lock(fixedCipher(t), []Challenge{unknown}, masterKey, []byte("payload"), "")
	require.NoError(t, err)

	_, err = Unlock(c, unknown, masterKey)
	assert.ErrorIs(t, err, ErrUnsupportedChallenge)
	assert.NotErrorIs(t, err, ErrUnlockFailed)
}

func TestGenerate(t *testing.T) {
	cfg := testConfiguration()
	recoveryKey := testMasterKey(t)
	password := []byte("hunter2")

	c, err := Generate(cfg, []byte("hello world"), metadata{Label: "generated"}, PasswordSecret(password), KeySecret(recoveryKey))
	require.NoError(t, err)
	require.Len(t, c.Challenges, 2)
	assert.Equal(t, ChallengeTypePassword, c.Challenges[0].Type())
	assert.Equal(t, ChallengeTypeKey, c.Challenges[1].Type())
	assert.Equal(t, cfg.Cipher.Algorithm, c.Cipher.Algorithm)

	data, err := Unlock(c, c.Challenges[0], password)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	data, err = Unlock(c, c.Challenges[1], recoveryKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestGenerate_Errors(t *testing.T) {
	_, err := Generate(testConfiguration(), []byte("payload"), "")
	assert.ErrorIs(t, err, ErrNoChallenges)

	_, err = Generate(testConfiguration(), []byte("payload"), "", Secret{Type: "fingerprint", Value: []byte("x")})
	assert.ErrorIs(t, err, ErrUnsupportedChallenge)

	_, err = Generate(testConfiguration(), []byte("payload"), "", KeySecret([]byte("short")))
	assert.ErrorIs(t, err, lockbox.ErrInvalidKeySize)
}

func TestCapsule_Find(t *testing.T) {
	c, err := Generate(testConfiguration(), []byte("payload"), "",
		KeySecret(testMasterKey(t)),
		PasswordSecret([]byte("a")),
		KeySecret(testMasterKey(t)),
	)
	require.NoError(t, err)

	assert.Len(t, c.Find(ChallengeTypeKey), 2)
	assert.Len(t, c.Find(ChallengeTypePassword), 1)
	assert.Empty(t, c.Find("fingerprint"))
}

func TestCapsule_JSONRoundTrip(t *testing.T) {
	password := []byte("hunter2")
	recoveryKey := testMasterKey(t)

	c, err := Generate(testConfiguration(), []byte("hello world"), metadata{Label: "json"}, PasswordSecret(password), KeySecret(recoveryKey))
	require.NoError(t, err)

	encoded, err := json.Marshal(c)
	require.NoError(t, err)

	var decoded Capsule[metadata]
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, "json", decoded.Public.Label)
	assert.Equal(t, c.Lockbox, decoded.Lockbox)

	data, err := Unlock(&decoded, decoded.Find(ChallengeTypePassword)[0], password)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	data, err = Unlock(&decoded, decoded.Find(ChallengeTypeKey)[0], recoveryKey)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)
}

func TestCapsule_Validate(t *testing.T) {
	var nilCapsule *Capsule[string]
	assert.Error(t, nilCapsule.Validate())

	empty := &Capsule[string]{Lockbox: lockbox.Lockbox{Cipher: fixedCipher(t)}}
	assert.ErrorIs(t, empty.Validate(), ErrNoChallenges)

	badCipher := &Capsule[string]{
		Lockbox:    lockbox.Lockbox{Cipher: lockbox.Cipher{Algorithm: "rc4"}},
		Challenges: Challenges{&UnknownChallenge{Kind: "x"}},
	}
	assert.ErrorIs(t, badCipher.Validate(), lockbox.ErrUnsupportedAlgorithm)
}

func TestUnlock_DecodedCapsuleWithExcessiveKDFCost(t *testing.T) {
	masterKey := testMasterKey(t)
	password := []byte("hunter2")

	pc, err := CreatePasswordChallenge(fixedCipher(t), fixedKeyDerivation(), password, masterKey)
	require.NoError(t, err)
	c, err := Lock(fixedCipher(t), []Challenge{pc}, masterKey, []byte("payload"), "public")
	require.NoError(t, err)

	encoded, err := json.Marshal(c)
	require.NoError(t, err)

	tests := []struct {
		name string
		kdf  string
	}{
		{"scrypt huge N", `{"algorithm":"scrypt","salt":"c2FsdHNhbHQ=","key_length":32,"n":1125899906842624,"r":1,"p":1}`},
		{"scrypt huge p", `{"algorithm":"scrypt","salt":"c2FsdHNhbHQ=","key_length":32,"n":1024,"r":8,"p":1099511627776}`},
		{"argon2 huge memory", `{"algorithm":"argon2id","salt":"c2FsdHNhbHQ=","key_length":32,"time":1,"memory":4294967295,"threads":1}`},
		{"argon2 huge time", `{"algorithm":"argon2id","salt":"c2FsdHNhbHQ=","key_length":32,"time":4294967295,"memory":1024,"threads":1}`},
		{"huge key length", `{"algorithm":"argon2id","salt":"c2FsdHNhbHQ=","key_length":4294967295,"time":1,"memory":1024,"threads":1}`},
		{"pbkdf2 huge iterations", `{"algorithm":"pbkdf2-sha256","salt":"c2FsdHNhbHQ=","key_length":32,"iterations":4000000000}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var doc map[string]any
			require.NoError(t, json.Unmarshal(encoded, &doc))

			var kdf map[string]any
			require.NoError(t, json.Unmarshal([]byte(tt.kdf), &kdf))
			doc["challenges"].([]any)[0].(map[string]any)["encryption_key_derivation"] = kdf

			crafted, err := json.Marshal(doc)
			require.NoError(t, err)

			var decoded Capsule[string]
			require.NoError(t, json.Unmarshal(crafted, &decoded))
			require.NoError(t, decoded.Validate())

			_, err = Unlock(&decoded, decoded.Challenges[0], password)
			assert.ErrorIs(t, err, lockbox.ErrInvalidKDFParameters)
			assert.NotErrorIs(t, err, ErrUnlockFailed)
		})
	}
}
