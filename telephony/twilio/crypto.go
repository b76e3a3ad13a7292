// Package twilio implements the orchestrator's telephony provider boundary:
// outbound call placement, the media WebSocket bridge, and status-webhook
// verification, against the wire contracts in spec.md §6. Naming follows the
// Twilio API shape the contracts are modeled on, but nothing here depends on
// the real Twilio SDK — it is a thin REST/WS client speaking the documented
// request/response shapes directly.
package twilio

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/callwave/callwave/errs"
)

const credentialAESKeySize = 32 // AES-256

// EncryptCredential seals plaintext (a Basic-auth secret for one Phone)
// under key using AES-256-GCM, returning the `iv_hex:ct_hex:tag_hex`
// envelope format spec.md §6 mandates for secrets at rest. key must be 32
// bytes (AES-256). No pack example wires a secrets-encryption library; the
// standard library's AEAD primitives are the idiomatic choice for exactly
// this envelope shape, so this is an intentional stdlib component (see
// DESIGN.md).
func EncryptCredential(key, plaintext []byte) (string, error) {
	const op = "twilio.EncryptCredential"
	if len(key) != credentialAESKeySize {
		return "", errs.New(op, errs.Validation, fmt.Sprintf("key must be %d bytes, got %d", credentialAESKeySize, len(key)))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", errs.Wrap(op, errs.Internal, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", errs.Wrap(op, errs.Internal, err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", errs.Wrap(op, errs.Internal, err)
	}

	// Seal appends the GCM tag to the ciphertext; split it back out below so
	// the envelope carries iv/ciphertext/tag as three explicit hex fields.
	sealed := gcm.Seal(nil, iv, plaintext, nil)
	tagSize := gcm.Overhead()
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	return strings.Join([]string{
		hex.EncodeToString(iv),
		hex.EncodeToString(ciphertext),
		hex.EncodeToString(tag),
	}, ":"), nil
}

// DecryptCredential reverses EncryptCredential, rejecting a malformed
// envelope or a failed authentication tag check.
func DecryptCredential(key []byte, envelope string) ([]byte, error) {
	const op = "twilio.DecryptCredential"
	if len(key) != credentialAESKeySize {
		return nil, errs.New(op, errs.Validation, fmt.Sprintf("key must be %d bytes, got %d", credentialAESKeySize, len(key)))
	}

	parts := strings.Split(envelope, ":")
	if len(parts) != 3 {
		return nil, errs.New(op, errs.Validation, "malformed credential envelope: expected iv_hex:ct_hex:tag_hex")
	}
	iv, err := hex.DecodeString(parts[0])
	if err != nil {
		return nil, errs.Wrap(op, errs.Validation, err)
	}
	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil {
		return nil, errs.Wrap(op, errs.Validation, err)
	}
	tag, err := hex.DecodeString(parts[2])
	if err != nil {
		return nil, errs.Wrap(op, errs.Validation, err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errs.Wrap(op, errs.Internal, err)
	}
	if len(iv) != gcm.NonceSize() {
		return nil, errs.New(op, errs.Validation, "malformed credential envelope: wrong iv size")
	}

	plaintext, err := gcm.Open(nil, iv, append(ciphertext, tag...), nil)
	if err != nil {
		return nil, errs.Wrap(op, errs.Validation, fmt.Errorf("credential authentication failed: %w", err))
	}
	return plaintext, nil
}
