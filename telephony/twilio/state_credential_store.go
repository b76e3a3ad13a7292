package twilio

import (
	"context"
	"strings"

	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/state"
)

// StateCredentialStore is the durable counterpart of EncryptedCredentialStore:
// same AES-256-GCM envelope format, same Put/Credential contract, but each
// envelope is persisted in a state.Store under a global-scoped
// "phone_credential:<phone>" key, so with a durable provider (postgres)
// credentials survive a process restart.
type StateCredentialStore struct {
	key   []byte
	store state.Store
}

// NewStateCredentialStore wraps store as a CredentialStore, sealing
// credentials under key (must be 32 bytes, AES-256) the same way
// EncryptedCredentialStore does.
func NewStateCredentialStore(store state.Store, key []byte) *StateCredentialStore {
	return &StateCredentialStore{key: key, store: store}
}

func credentialKey(phone string) string {
	return state.ScopedKey(state.ScopeGlobal, "phone_credential:"+phone)
}

// Put seals accountSID:authToken for phone.
func (s *StateCredentialStore) Put(ctx context.Context, phone, accountSID, authToken string) error {
	envelope, err := EncryptCredential(s.key, []byte(accountSID+":"+authToken))
	if err != nil {
		return err
	}
	return s.store.Set(ctx, credentialKey(phone), envelope)
}

// Credential implements CredentialStore.
func (s *StateCredentialStore) Credential(ctx context.Context, phone string) (string, string, error) {
	const op = "twilio.StateCredentialStore.Credential"
	value, err := s.store.Get(ctx, credentialKey(phone))
	if err != nil {
		return "", "", errs.Wrap(op, errs.Internal, err)
	}
	envelope, ok := value.(string)
	if !ok || envelope == "" {
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
