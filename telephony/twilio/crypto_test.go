package twilio

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return []byte("0123456789abcdef0123456789abcdef")[:32]
}

func TestEncryptDecryptCredentialRoundTrips(t *testing.T) {
	key := testKey()
	plaintext := []byte("AC_fake_account_sid:auth_token_secret")

	envelope, err := EncryptCredential(key, plaintext)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(envelope, ":"))

	got, err := DecryptCredential(key, envelope)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)
}

func TestEncryptCredentialRejectsWrongKeySize(t *testing.T) {
	_, err := EncryptCredential([]byte("too-short"), []byte("secret"))
	assert.Error(t, err)
}

func TestDecryptCredentialRejectsMalformedEnvelope(t *testing.T) {
	_, err := DecryptCredential(testKey(), "not-a-valid-envelope")
	assert.Error(t, err)
}

func TestDecryptCredentialRejectsTamperedCiphertext(t *testing.T) {
	key := testKey()
	envelope, err := EncryptCredential(key, []byte("secret"))
	require.NoError(t, err)

	parts := strings.Split(envelope, ":")
	require.Len(t, parts, 3)
	// Flip a character in the ciphertext field to break authentication.
	tampered := parts[0] + ":" + flipLastHexChar(parts[1]) + ":" + parts[2]

	_, err = DecryptCredential(key, tampered)
	assert.Error(t, err)
}

func TestDecryptCredentialRejectsWrongKey(t *testing.T) {
	envelope, err := EncryptCredential(testKey(), []byte("secret"))
	require.NoError(t, err)

	otherKey := []byte("ffffffffffffffffffffffffffffffff")[:32]
	_, err = DecryptCredential(otherKey, envelope)
	assert.Error(t, err)
}

func flipLastHexChar(s string) string {
	if s == "" {
		return s
	}
	last := s[len(s)-1]
	flipped := byte('0')
	if last == '0' {
		flipped = '1'
	}
	return s[:len(s)-1] + string(flipped)
}
