package twilio

import (
	"context"
	"strings"
	"sync"

	"github.com/callwave/callwave/errs"
)

// EncryptedCredentialStore is an in-process CredentialStore backed by a map
// of Phone -> encrypted envelope (the `iv_hex:ct_hex:tag_hex` format
// crypto.go produces), matching the "Secrets at rest are AES-256-GCM
// encrypted" requirement of spec.md §6's "Persisted state layout". Envelopes
// live only in memory and do not survive a restart; StateCredentialStore is
// the durable counterpart over a state.Store. This type suffices for tests
// and for a single-process deployment.
type EncryptedCredentialStore struct {
	key []byte

	mu        sync.RWMutex
	envelopes map[string]string // phone -> "accountSID:authToken" envelope
}

// NewEncryptedCredentialStore constructs an EncryptedCredentialStore sealing
// credentials under key (must be 32 bytes, AES-256).
func NewEncryptedCredentialStore(key []byte) *EncryptedCredentialStore {
	return &EncryptedCredentialStore{key: key, envelopes: make(map[string]string)}
}

// Put seals accountSID:authToken for phone.
func (s *EncryptedCredentialStore) Put(phone, accountSID, authToken string) error {
	envelope, err := EncryptCredential(s.key, []byte(accountSID+":"+authToken))
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.envelopes[phone] = envelope
	return nil
}

// Credential implements CredentialStore.
func (s *EncryptedCredentialStore) Credential(ctx context.Context, phone string) (string, string, error) {
	const op = "twilio.EncryptedCredentialStore.Credential"
	s.mu.RLock()
	envelope, ok := s.envelopes[phone]
	s.mu.RUnlock()
	if !ok {
		return "", "", errs.New(op, errs.NotFound, "no credential on file for phone: "+phone)
	}

	plaintext, err := DecryptCredential(s.key, envelope)
	if err != nil {
		return "", "", err
	}
	accountSID, authToken, ok := strings.Cut(string(plaintext), ":")
	if !ok {
		return "", "", errs.New(op, errs.Internal, "malformed decrypted credential")
	}
	return accountSID, authToken, nil
}
