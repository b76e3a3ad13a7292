package deepgram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/callwave/callwave/aiclient/iface"
)

func TestNewDefaultsModel(t *testing.T) {
	s, err := New(map[string]any{"api_key": "test-key"})
	require.NoError(t, err)
	assert.Equal(t, defaultModel, s.model)
}

func TestCallbackMessageEmitsPartialAndFinal(t *testing.T) {
	cb := &callback{events: make(chan iface.STTEvent, 4)}

	partial := &msginterfaces.MessageResponse{}
	partial.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: "hel"}}
	require.NoError(t, cb.Message(partial))

	final := &msginterfaces.MessageResponse{IsFinal: true}
	final.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: "hello"}}
	require.NoError(t, cb.Message(final))

	ev1 := <-cb.events
	assert.Equal(t, iface.STTPartial, ev1.Kind)
	assert.Equal(t, "hel", ev1.Text)

	ev2 := <-cb.events
	assert.Equal(t, iface.STTFinal, ev2.Kind)
	assert.Equal(t, "hello", ev2.Text)
}

func TestCallbackMessageSkipsEmptyTranscript(t *testing.T) {
	cb := &callback{events: make(chan iface.STTEvent, 1)}
	resp := &msginterfaces.MessageResponse{}
	resp.Channel.Alternatives = []msginterfaces.Alternative{{Transcript: ""}}
	require.NoError(t, cb.Message(resp))
	assert.Len(t, cb.events, 0)
}

func TestCallbackSpeechStartedAndUtteranceEnd(t *testing.T) {
	cb := &callback{events: make(chan iface.STTEvent, 2)}
	require.NoError(t, cb.SpeechStarted(&msginterfaces.SpeechStartedResponse{}))
	require.NoError(t, cb.UtteranceEnd(&msginterfaces.UtteranceEndResponse{}))

	assert.Equal(t, iface.STTSpeechStarted, (<-cb.events).Kind)
	assert.Equal(t, iface.STTUtteranceEnd, (<-cb.events).Kind)
}

func TestCallbackCloseClosesEventsChannel(t *testing.T) {
	cb := &callback{events: make(chan iface.STTEvent, 1)}
	require.NoError(t, cb.Close(&msginterfaces.CloseResponse{}))
	_, ok := <-cb.events
	assert.False(t, ok)
}

func TestCallbackEmitAfterCloseIsNoop(t *testing.T) {
	cb := &callback{events: make(chan iface.STTEvent, 1)}
	require.NoError(t, cb.Close(&msginterfaces.CloseResponse{}))
	assert.NotPanics(t, func() {
		cb.emit(iface.STTEvent{Kind: iface.STTPartial})
	})
}
