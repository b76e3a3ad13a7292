// Package deepgram adapts the Deepgram streaming transcription SDK to the
// aiclient STT contract.
package deepgram

import (
	"context"
	"os"
	"sync"

	listen "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/listen"
	dginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/client/interfaces"
	msginterfaces "github.com/deepgram/deepgram-go-sdk/v3/pkg/api/listen/v1/websocket/interfaces"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const defaultModel = "nova-2-phonecall"

// Streamer adapts Deepgram's live transcription websocket client to
// iface.STTStreamer.
type Streamer struct {
	apiKey string
	model  string
}

// New constructs a Streamer. Recognized opts: "api_key", "model".
func New(opts map[string]any) (*Streamer, error) {
	apiKey, _ := opts["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("DEEPGRAM_API_KEY")
	}
	model, _ := opts["model"].(string)
	if model == "" {
		model = defaultModel
	}
	return &Streamer{apiKey: apiKey, model: model}, nil
}

// callback bridges Deepgram's message-callback interface to an events channel.
type callback struct {
	events chan iface.STTEvent
	mu     sync.Mutex
	closed bool
}

func (c *callback) emit(ev iface.STTEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.events <- ev:
	default:
	}
}

func (c *callback) Message(mr *msginterfaces.MessageResponse) error {
	if len(mr.Channel.Alternatives) == 0 {
		return nil
	}
	alt := mr.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return nil
	}
	kind := iface.STTPartial
	if mr.IsFinal {
		kind = iface.STTFinal
	}
	c.emit(iface.STTEvent{Kind: kind, Text: alt.Transcript})
	return nil
}

func (c *callback) Open(*msginterfaces.OpenResponse) error { return nil }

func (c *callback) Metadata(*msginterfaces.MetadataResponse) error { return nil }

func (c *callback) SpeechStarted(*msginterfaces.SpeechStartedResponse) error {
	c.emit(iface.STTEvent{Kind: iface.STTSpeechStarted})
	return nil
}

func (c *callback) UtteranceEnd(*msginterfaces.UtteranceEndResponse) error {
	c.emit(iface.STTEvent{Kind: iface.STTUtteranceEnd})
	return nil
}

func (c *callback) Close(*msginterfaces.CloseResponse) error {
	c.mu.Lock()
	c.closed = true
	close(c.events)
	c.mu.Unlock()
	return nil
}

func (c *callback) Error(er *msginterfaces.ErrorResponse) error {
	c.emit(iface.STTEvent{Err: aiclient.ClassifyStreamError("aiclient.deepgram.Stream", errFromResponse(er))})
	return nil
}

func (c *callback) UnhandledEvent([]byte) error { return nil }

func errFromResponse(er *msginterfaces.ErrorResponse) error {
	return stringError(er.Description)
}

type stringError string

func (s stringError) Error() string { return string(s) }

// stream wraps a live Deepgram websocket connection.
type stream struct {
	conn   *listen.WSChannel
	cb     *callback
	mu     sync.Mutex
	closed bool
}

func (s *stream) Send(ctx context.Context, pcm []byte) error {
	_ = ctx
	s.conn.WriteBinary(pcm)
	return nil
}

func (s *stream) Events() <-chan iface.STTEvent { return s.cb.events }

func (s *stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.conn.Stop()
	return nil
}

// NewStream implements iface.STTStreamer.
func (st *Streamer) NewStream(ctx context.Context, cfg iface.STTConfig) (iface.STTStream, error) {
	model := st.model
	language := cfg.Language
	if language == "" {
		language = "en-US"
	}
	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 8000
	}
	encoding := cfg.Encoding
	if encoding == "" {
		encoding = "mulaw"
	}

	clientOpts := &dginterfaces.ClientOptions{ApiKey: st.apiKey}
	transcriptOpts := &dginterfaces.LiveTranscriptionOptions{
		Model:       model,
		Language:    language,
		Encoding:    encoding,
		SampleRate:  sampleRate,
		Punctuate:   true,
		InterimResults: true,
		Endpointing: cfg.EndpointingSilenceMs,
	}

	cb := &callback{events: make(chan iface.STTEvent, 64)}

	conn, err := listen.NewWSUsingCallback(ctx, "", clientOpts, transcriptOpts, cb)
	if err != nil {
		return nil, aiclient.ClassifyHTTPError("aiclient.deepgram.NewStream", 0, err)
	}
	if ok := conn.Connect(); !ok {
		return nil, aiclient.ClassifyStreamError("aiclient.deepgram.NewStream", stringError("failed to connect to deepgram"))
	}

	return &stream{conn: conn, cb: cb}, nil
}

func init() {
	aiclient.GetRegistry().RegisterSTT("deepgram", func(opts map[string]any) (iface.STTStreamer, error) {
		return New(opts)
	})
}
