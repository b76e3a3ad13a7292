package iface

import "context"

// TTSChunk is one piece of synthesized audio. Done marks the end of
// synthesis for the sentence; a non-nil Err terminates the stream early.
type TTSChunk struct {
	PCM  []byte
	Done bool
	Err  error
}

// TTSStreamer synthesizes speech for short text (typically one sentence) as
// it is produced.
type TTSStreamer interface {
	StreamSpeech(ctx context.Context, text, voiceID string) (<-chan TTSChunk, CancelFunc, error)
}

// Embedder converts text to a fixed-dimension embedding vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}
