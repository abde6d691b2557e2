package vault

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robbyautoki/attio-hub/pkg/models"
	"github.com/robbyautoki/attio-hub/pkg/storage"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	hexKey, err := GenerateEncryptionKey()
	require.NoError(t, err)
	key, err := EncryptionKeyFromHex(hexKey)
	require.NoError(t, err)
	require.Len(t, key, 32)
	return key
}

func TestCipherRoundTrip(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	cases := []string{
		"sk-live-1234567890abcdef",
		"",
		"key with spaces and symbols !@#$%^&*()",
		"ünïcödé-ключ-鍵",
	}

	for _, plaintext := range cases {
		ciphertext, iv, err := c.Encrypt(plaintext)
		require.NoError(t, err)
		assert.NotEqual(t, plaintext, ciphertext)
		assert.NotEmpty(t, iv)

		decrypted, err := c.Decrypt(ciphertext, iv)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestCipherFreshIVPerCall(t *testing.T) {
	c, err := NewCipher(testKey(t))
	require.NoError(t, err)

	ct1, iv1, err := c.Encrypt("same plaintext")
	require.NoError(t, err)
	ct2, iv2, err := c.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)
}

func TestCipherDecryptFailures(t *testing.T) {
	key := testKey(t)
	c, err := NewCipher(key)
	require.NoError(t, err)

	ciphertext, iv, err := c.Encrypt("secret value")
	require.NoError(t, err)

	t.Run("TamperedCiphertext", func(t *testing.T) {
		tampered := []byte(ciphertext)
		if tampered[0] == 'a' {
			tampered[0] = 'b'
		} else {
			tampered[0] = 'a'
		}
		_, err := c.Decrypt(string(tampered), iv)
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("WrongKey", func(t *testing.T) {
		other, err := NewCipher(testKey(t))
		require.NoError(t, err)
		_, err = other.Decrypt(ciphertext, iv)
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("BadIVLength", func(t *testing.T) {
		_, err := c.Decrypt(ciphertext, "abcd")
		assert.ErrorIs(t, err, ErrDecryption)
	})

	t.Run("NotHex", func(t *testing.T) {
		_, err := c.Decrypt("not hex at all", iv)
		assert.Error(t, err)
	})
}

func TestNewCipherRejectsBadKeys(t *testing.T) {
	_, err := NewCipher([]byte("too short"))
	assert.Error(t, err)

	_, err = EncryptionKeyFromHex("abcd")
	assert.Error(t, err)

	_, err = EncryptionKeyFromHex("zz")
	assert.Error(t, err)
}

func TestKeyHint(t *testing.T) {
	cases := []struct {
		apiKey string
		want   string
	}{
		{"", ""},
		{"ab", "**"},
		{"abcd", "****"},
		{"abcde", "********bcde"},
		{"abcdef1234", "********1234"},
		{"sk-live-1234567890abcdef", "********cdef"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, KeyHint(tc.apiKey), "apiKey=%q", tc.apiKey)
	}
}

func TestServiceStoreAndReveal(t *testing.T) {
	store := storage.NewMemoryProvider().GetCredentialStore()
	svc, err := NewService(store, testKey(t))
	require.NoError(t, err)

	credential, err := svc.Store("owner-1", models.ServiceCRM, "attio-api-key-9876")
	require.NoError(t, err)
	assert.Equal(t, "********9876", credential.KeyHint)
	assert.True(t, credential.Valid)
	assert.NotEqual(t, "attio-api-key-9876", credential.Ciphertext)

	t.Run("RevealByID", func(t *testing.T) {
		plaintext, err := svc.Reveal("owner-1", credential.ID)
		require.NoError(t, err)
		assert.Equal(t, "attio-api-key-9876", plaintext)
	})

	t.Run("RevealForService", func(t *testing.T) {
		plaintext, err := svc.RevealForService("owner-1", models.ServiceCRM)
		require.NoError(t, err)
		assert.Equal(t, "attio-api-key-9876", plaintext)
	})

	t.Run("MissingCredential", func(t *testing.T) {
		_, err := svc.RevealForService("owner-1", models.ServiceChat)
		assert.ErrorIs(t, err, storage.ErrCredentialNotFound)
	})

	t.Run("OwnerScoping", func(t *testing.T) {
		_, err := svc.Reveal("owner-2", credential.ID)
		assert.ErrorIs(t, err, storage.ErrCredentialNotFound)
	})

	t.Run("ReplaceKeepsIdentity", func(t *testing.T) {
		replaced, err := svc.Store("owner-1", models.ServiceCRM, "attio-new-key-4321")
		require.NoError(t, err)
		assert.Equal(t, credential.ID, replaced.ID)
		assert.Equal(t, "********4321", replaced.KeyHint)

		plaintext, err := svc.RevealForService("owner-1", models.ServiceCRM)
		require.NoError(t, err)
		assert.Equal(t, "attio-new-key-4321", plaintext)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.Store("", models.ServiceCRM, "key")
		assert.Error(t, err)
		_, err = svc.Store("owner-1", "", "key")
		assert.Error(t, err)
		_, err = svc.Store("owner-1", models.ServiceCRM, "")
		assert.Error(t, err)
	})
}

func TestServiceRecordTest(t *testing.T) {
	store := storage.NewMemoryProvider().GetCredentialStore()
	svc, err := NewService(store, testKey(t))
	require.NoError(t, err)

	credential, err := svc.Store("owner-1", models.ServiceEmail, "smtp-password-abcd")
	require.NoError(t, err)

	at := time.Now()
	updated, err := svc.RecordTest("owner-1", credential.ID, false, at)
	require.NoError(t, err)
	assert.False(t, updated.Valid)
	require.NotNil(t, updated.LastTestedAt)
	assert.Equal(t, at.Unix(), updated.LastTestedAt.Unix())

	// A failed test does not destroy the stored key
	plaintext, err := svc.Reveal("owner-1", credential.ID)
	require.NoError(t, err)
	assert.Equal(t, "smtp-password-abcd", plaintext)
}
