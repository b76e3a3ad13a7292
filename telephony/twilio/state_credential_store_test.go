package twilio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/state/providers/inmemory"
)

func TestStateCredentialStorePutThenCredentialRoundTrips(t *testing.T) {
	store := NewStateCredentialStore(inmemory.New(), testKey())
	require.NoError(t, store.Put(context.Background(), "+15550001111", "AC1", "tok1"))

	accountSID, authToken, err := store.Credential(context.Background(), "+15550001111")
	require.NoError(t, err)
	assert.Equal(t, "AC1", accountSID)
	assert.Equal(t, "tok1", authToken)
}

func TestStateCredentialStoreCredentialMissingReturnsNotFound(t *testing.T) {
	store := NewStateCredentialStore(inmemory.New(), testKey())
	_, _, err := store.Credential(context.Background(), "+15559999999")
	assert.Error(t, err)
}
