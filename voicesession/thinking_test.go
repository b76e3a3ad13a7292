package voicesession

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/aiclient/iface"
)

func TestNormalizeTranscript(t *testing.T) {
	assert.Equal(t, "goodbye", normalizeTranscript("  Goodbye  "))
}

func TestMatchesEndCallPhraseExactEquality(t *testing.T) {
	assert.True(t, matchesEndCallPhrase("goodbye", []string{"goodbye"}))
}

func TestMatchesEndCallPhraseSuffixWithPrecedingWhitespace(t *testing.T) {
	assert.True(t, matchesEndCallPhrase("ok thanks bye now goodbye", []string{"goodbye"}))
}

func TestMatchesEndCallPhraseWordBoundary(t *testing.T) {
	assert.True(t, matchesEndCallPhrase("goodbye for now, talk soon", []string{"goodbye"}))
}

func TestMatchesEndCallPhraseDoesNotMatchSubstringWithinWord(t *testing.T) {
	assert.False(t, matchesEndCallPhrase("goodbyeee see ya", []string{"goodbye"}))
}

func TestMatchesEndCallPhraseNoMatch(t *testing.T) {
	assert.False(t, matchesEndCallPhrase("what are your hours", []string{"goodbye"}))
}

func TestStreamChatConcatenatesDeltas(t *testing.T) {
	s := &Session{
		cfg:       DefaultConfig(),
		chatModel: &fakeChatModel{deltas: []iface.ChatDelta{{Text: "Hello"}, {Text: " there"}}},
	}
	text, err := s.streamChat(context.Background(), iface.ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}

func TestStreamChatPropagatesDeltaError(t *testing.T) {
	boom := assert.AnError
	s := &Session{
		cfg:       DefaultConfig(),
		chatModel: &fakeChatModel{deltas: []iface.ChatDelta{{Text: "partial"}, {Err: boom}}},
	}
	text, err := s.streamChat(context.Background(), iface.ChatRequest{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "partial", text)
}
