package voicesession

import (
	"context"
	"sync"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
)

// fakeChatModel streams a fixed sequence of deltas on an unbuffered channel,
// then closes it; the stream stops early if its cancel func is called or ctx
// is done.
type fakeChatModel struct {
	modelID string
	deltas  []iface.ChatDelta
}

func (f *fakeChatModel) ModelID() string { return f.modelID }

func (f *fakeChatModel) StreamChat(ctx context.Context, req iface.ChatRequest) (<-chan iface.ChatDelta, iface.CancelFunc, error) {
	ch := make(chan iface.ChatDelta)
	cancelled := make(chan struct{})
	var once sync.Once
	cancel := func() { once.Do(func() { close(cancelled) }) }

	go func() {
		defer close(ch)
		for _, d := range f.deltas {
			select {
			case <-cancelled:
				return
			case <-ctx.Done():
				return
			case ch <- d:
			}
		}
	}()
	return ch, cancel, nil
}

// fakeTTSStreamer synthesizes each sentence as one PCM chunk followed by Done.
type fakeTTSStreamer struct {
	mu    sync.Mutex
	texts []string
}

func (f *fakeTTSStreamer) StreamSpeech(ctx context.Context, text, voiceID string) (<-chan iface.TTSChunk, iface.CancelFunc, error) {
	f.mu.Lock()
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	ch := make(chan iface.TTSChunk, 2)
	ch <- iface.TTSChunk{PCM: make([]byte, 320)}
	ch <- iface.TTSChunk{Done: true}
	close(ch)
	return ch, func() {}, nil
}

// fakeSTTStream is a controllable STT connection: tests push events via the
// events channel directly.
type fakeSTTStream struct {
	mu     sync.Mutex
	sent   [][]byte
	events chan iface.STTEvent
	closed bool
}

func newFakeSTTStream() *fakeSTTStream {
	return &fakeSTTStream{events: make(chan iface.STTEvent, 16)}
}

func (f *fakeSTTStream) Send(ctx context.Context, pcm []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, pcm)
	return nil
}

func (f *fakeSTTStream) Events() <-chan iface.STTEvent { return f.events }

func (f *fakeSTTStream) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

type fakeSTTStreamer struct {
	stream *fakeSTTStream
}

func (f *fakeSTTStreamer) NewStream(ctx context.Context, cfg iface.STTConfig) (iface.STTStream, error) {
	return f.stream, nil
}

// fakeMediaWriter records every frame written, in order.
type fakeMediaWriter struct {
	mu     sync.Mutex
	frames []uint64
	alive  bool
}

func newFakeMediaWriter() *fakeMediaWriter { return &fakeMediaWriter{alive: true} }

func (f *fakeMediaWriter) WriteFrame(ctx context.Context, payload []byte, sequenceNumber uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, sequenceNumber)
	return nil
}

func (f *fakeMediaWriter) Alive() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.alive
}

func (f *fakeMediaWriter) setAlive(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alive = v
}

// fakeRetriever returns a fixed set of chunks, or an error.
type fakeRetriever struct {
	chunks []domain.RetrievedChunk
	err    error
}

func (f *fakeRetriever) Retrieve(ctx context.Context, agentID, query string) ([]domain.RetrievedChunk, error) {
	return f.chunks, f.err
}

func testCall() *domain.Call {
	return &domain.Call{
		ID:        "call-1",
		Direction: domain.Inbound,
		State:     domain.CallConnecting,
		AgentSnapshot: domain.Agent{
			ID:             "agent-1",
			Persona:        "You are a helpful assistant.",
			Greeting:       "Hello, thanks for calling.",
			LanguageTag:    "en-US",
			LLMModelID:     "test-model",
			EndCallPhrases: []string{"goodbye", "that's all, bye"},
			TTSVoiceID:     "voice-1",
		},
	}
}
