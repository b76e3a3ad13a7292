package iface

import "context"

// STTEventKind classifies an event emitted by a streaming STT connection.
type STTEventKind string

const (
	STTPartial       STTEventKind = "partial"
	STTFinal         STTEventKind = "final"
	STTSpeechStarted STTEventKind = "speech_started"
	STTUtteranceEnd  STTEventKind = "utterance_end"
)

// STTEvent is one event from a streaming STT connection.
type STTEvent struct {
	Kind STTEventKind
	Text string // set for STTPartial and STTFinal
	Err  error
}

// STTConfig configures a streaming STT connection.
type STTConfig struct {
	EndpointingSilenceMs int
	Language             string
	SampleRate           int
	Encoding             string
}

// STTStream is one live streaming STT connection. Audio is pushed via Send;
// events arrive on Events. Close aborts the connection (idempotent).
type STTStream interface {
	Send(ctx context.Context, pcm []byte) error
	Events() <-chan STTEvent
	Close() error
}

// STTStreamer opens streaming STT connections.
type STTStreamer interface {
	NewStream(ctx context.Context, cfg STTConfig) (STTStream, error)
}
