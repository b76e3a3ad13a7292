package elevenlabs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultsModel(t *testing.T) {
	s, err := New(map[string]any{"api_key": "test-key"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, s.modelID)
}

func TestNewHonorsModelOption(t *testing.T) {
	s, err := New(map[string]any{"api_key": "test-key", "model": "eleven_multilingual_v2"})
	require.NoError(t, err)
	assert.Equal(t, "eleven_multilingual_v2", s.modelID)
}
