package voicesession

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/pool"
	"github.com/callwave/callwave/promptbuilder"
)

// Config bounds every timing-sensitive step of the Voice Session lifecycle,
// per spec.md §4.6-4.8.
type Config struct {
	// SilencePartialMs is the interim-result silence threshold; reserved for
	// callers driving STT partial-result pacing upstream of Send.
	SilencePartialMs int
	// SilenceFinalMs is the endpointing silence threshold that closes a
	// listening turn into a final transcript.
	SilenceFinalMs int
	// LLMFirstTokenTimeout bounds the wait for the first streamed delta.
	LLMFirstTokenTimeout time.Duration
	// LLMMidStreamTimeout bounds the wait between subsequent deltas.
	LLMMidStreamTimeout time.Duration
	// TTSSentenceTimeout bounds synthesis of a single sentence.
	TTSSentenceTimeout time.Duration
	// ShutdownGrace is how long Close waits for an in-flight turn to finish
	// speaking before it force-ends the session.
	ShutdownGrace time.Duration
	// PromptBudget bounds the rolling history included in each LLM turn.
	PromptBudget promptbuilder.Budget
}

// DefaultConfig returns the spec-mandated timing defaults.
func DefaultConfig() Config {
	return Config{
		SilencePartialMs:     150,
		SilenceFinalMs:       1500,
		LLMFirstTokenTimeout: 4 * time.Second,
		LLMMidStreamTimeout:  2 * time.Second,
		TTSSentenceTimeout:   10 * time.Second,
		ShutdownGrace:        30 * time.Second,
	}
}

// Retriever is the subset of knowledge.Retriever the Thinking pipeline
// needs, narrowed for testability.
type Retriever interface {
	Retrieve(ctx context.Context, agentID, query string) ([]domain.RetrievedChunk, error)
}

// MediaWriter delivers synthesized audio frames to the live telephony track,
// in order, and reports whether the underlying transport is still usable.
type MediaWriter interface {
	WriteFrame(ctx context.Context, payload []byte, sequenceNumber uint64) error
	Alive() bool
}

// Session is one live Voice Session. It owns the call's STT lease and
// streaming connection, the conversation history, and the current lifecycle
// state, and serializes every write to the media track through one writer
// goroutine's worth of sequence numbers.
type Session struct {
	id     string
	cfg    Config
	logger *o11y.Logger

	sttStreamer iface.STTStreamer
	chatModel   iface.ChatModel
	ttsStreamer iface.TTSStreamer
	retriever   Retriever
	sttPool     *pool.Pool
	writer      MediaWriter

	mu           sync.Mutex
	call         *domain.Call
	state        State
	sttLease     *pool.Lease
	sttStream    iface.STTStream
	history      []promptbuilder.Turn
	transcript   strings.Builder
	isProcessing bool
	sequence     uint64
	cancelTurn   context.CancelFunc

	endedCh chan struct{}
}

// New constructs a Session bound to call. The STT/LLM/TTS adapters,
// retriever, pool, and media writer are injected so the session itself has
// no dependency on any concrete provider or transport.
func New(cfg Config, call *domain.Call, sttStreamer iface.STTStreamer, chatModel iface.ChatModel, ttsStreamer iface.TTSStreamer, retriever Retriever, sttPool *pool.Pool, writer MediaWriter, logger *o11y.Logger) *Session {
	if logger == nil {
		logger = o11y.NewLogger()
	}
	return &Session{
		id:          call.ID,
		cfg:         cfg,
		logger:      logger.With("call_id", call.ID),
		sttStreamer: sttStreamer,
		chatModel:   chatModel,
		ttsStreamer: ttsStreamer,
		retriever:   retriever,
		sttPool:     sttPool,
		writer:      writer,
		call:        call,
		state:       StateConnecting,
		endedCh:     make(chan struct{}),
	}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// transition moves the session to a new state, enforcing the state machine's
// legal edges. It is a no-op (returns false) for an illegal edge or once the
// session has already reached StateEnded.
func (s *Session) transition(to State) bool {
	if s.state.Terminal() {
		return false
	}
	if !canTransition(s.state, to) {
		return false
	}
	s.state = to
	s.call.State = toCallState(to)
	if to == StateEnded {
		close(s.endedCh)
	}
	return true
}

func toCallState(s State) domain.CallState {
	switch s {
	case StateConnecting:
		return domain.CallConnecting
	case StateGreeting:
		return domain.CallGreeting
	case StateIdle:
		return domain.CallIdle
	case StateListening:
		return domain.CallListening
	case StateThinking:
		return domain.CallThinking
	case StateSpeaking:
		return domain.CallSpeaking
	case StateEnding:
		return domain.CallEnding
	default:
		return domain.CallEnded
	}
}

// Start acquires the session's STT lease and streaming connection, speaks
// the agent's greeting, and leaves the session in StateListening. On pool
// exhaustion or an acquire timeout it ends the session immediately with a
// ResourceExhausted failure, per §4.1.
func (s *Session) Start(ctx context.Context) error {
	ctx, span := o11y.StartSpan(ctx, "voicesession.Start", o11y.Attrs{o11y.AttrCallID: s.id})
	defer span.End()

	lease, err := s.sttPool.Acquire(ctx, s.id)
	if err != nil {
		span.RecordError(err)
		s.mu.Lock()
		s.call.FailureReason = err.Error()
		s.transition(StateEnding)
		s.transition(StateEnded)
		s.mu.Unlock()
		return err
	}

	stream, err := s.sttStreamer.NewStream(ctx, iface.STTConfig{
		EndpointingSilenceMs: s.cfg.SilenceFinalMs,
		Language:             s.call.AgentSnapshot.LanguageTag,
		SampleRate:           8000,
		Encoding:             "mulaw",
	})
	if err != nil {
		s.sttPool.Release(lease)
		s.mu.Lock()
		s.call.FailureReason = err.Error()
		s.transition(StateEnding)
		s.transition(StateEnded)
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	s.sttLease = lease
	s.sttStream = stream
	s.transition(StateGreeting)
	s.mu.Unlock()

	if greeting := s.call.AgentSnapshot.Greeting; greeting != "" {
		if err := s.speak(ctx, []string{greeting}); err != nil {
			s.logger.Warn(ctx, "greeting synthesis failed", "error", err)
		}
	}

	s.mu.Lock()
	s.transition(StateIdle)
	s.transition(StateListening)
	s.mu.Unlock()

	return nil
}

// PushAudio forwards one inbound media frame to the STT connection. Callers
// (the telephony layer) call this for every frame received on the call's
// media track while the session is listening.
func (s *Session) PushAudio(ctx context.Context, pcm []byte) error {
	s.mu.Lock()
	stream := s.sttStream
	s.mu.Unlock()
	if stream == nil {
		return errs.New("voicesession.PushAudio", errs.Internal, "no active STT stream")
	}
	return stream.Send(ctx, pcm)
}

// Run consumes STT events until the stream closes or ctx is cancelled,
// driving Listening -> Thinking -> Speaking transitions as final
// transcripts and barge-in events arrive.
func (s *Session) Run(ctx context.Context) {
	s.mu.Lock()
	stream := s.sttStream
	s.mu.Unlock()
	if stream == nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			s.endTurn(ctx, "context cancelled")
			return
		case ev, ok := <-stream.Events():
			if !ok {
				s.endTurn(ctx, "stt stream closed")
				return
			}
			s.handleSTTEvent(ctx, ev)
			s.mu.Lock()
			ended := s.state == StateEnded
			s.mu.Unlock()
			if ended {
				return
			}
		}
	}
}

func (s *Session) handleSTTEvent(ctx context.Context, ev iface.STTEvent) {
	switch ev.Kind {
	case iface.STTSpeechStarted:
		s.bargeIn(ctx)
	case iface.STTPartial:
		s.mu.Lock()
		s.transcript.Reset()
		s.transcript.WriteString(ev.Text)
		s.mu.Unlock()
	case iface.STTFinal:
		s.mu.Lock()
		s.transcript.Reset()
		s.transcript.WriteString(ev.Text)
		text := s.transcript.String()
		alreadyProcessing := s.isProcessing
		if !alreadyProcessing {
			s.isProcessing = true
		}
		s.mu.Unlock()

		if alreadyProcessing || strings.TrimSpace(text) == "" {
			return
		}
		// Run in its own goroutine so Run's event loop keeps reading STT
		// events (in particular speech_started, for barge-in) while this
		// turn's Thinking/Speaking work is in flight.
		go s.runTurn(ctx, text)
	case iface.STTUtteranceEnd:
		// no-op: STTFinal carries the transcript this state machine acts on.
	}
}

// bargeIn cancels any in-flight Thinking/Speaking work and returns the
// session to Listening, per the barge-in requirement of §4.8.
func (s *Session) bargeIn(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateSpeaking && s.state != StateThinking {
		return
	}
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
	s.isProcessing = false
	if s.state != StateListening {
		s.state = StateListening
		s.call.State = domain.CallListening
	}
}

// llmFallbackPhrase is spoken in place of a response when the LLM stream
// times out or fails transiently, per the first-token/mid-stream timeout
// handling of §4.6.
const llmFallbackPhrase = "Sorry, I'm having trouble right now. Could you say that again?"

// runTurn executes one Thinking -> Speaking cycle for a final transcript.
func (s *Session) runTurn(ctx context.Context, userText string) {
	s.mu.Lock()
	if !s.transition(StateThinking) {
		s.isProcessing = false
		s.mu.Unlock()
		return
	}
	turnCtx, cancel := context.WithCancel(ctx)
	s.cancelTurn = cancel
	s.mu.Unlock()
	defer cancel()

	assistantText, endCall, err := s.think(turnCtx, userText)

	s.mu.Lock()
	s.cancelTurn = nil
	s.isProcessing = false
	if err != nil {
		s.logger.Warn(turnCtx, "thinking pipeline failed", "error", err)
		s.mu.Unlock()
		if errs.Is(err, errs.UpstreamTransient) {
			if spokeErr := s.speak(turnCtx, []string{llmFallbackPhrase}); spokeErr != nil {
				s.logger.Warn(turnCtx, "fallback phrase synthesis failed", "error", spokeErr)
			}
		}
		s.mu.Lock()
		if turnCtx.Err() == nil {
			s.transition(StateIdle)
			s.transition(StateListening)
		}
		s.mu.Unlock()
		return
	}
	s.history = append(s.history, promptbuilder.Turn{UserText: userText, AssistantText: assistantText})
	now := time.Now()
	s.call.Transcript = append(s.call.Transcript,
		domain.TranscriptTurn{Speaker: domain.SpeakerCaller, Text: userText, Timestamp: now})
	if assistantText != "" {
		s.call.Transcript = append(s.call.Transcript,
			domain.TranscriptTurn{Speaker: domain.SpeakerAgent, Text: assistantText, Timestamp: now})
	}
	s.mu.Unlock()

	if assistantText != "" {
		sentences := splitSentencesForSpeech(assistantText)
		if err := s.speak(turnCtx, sentences); err != nil {
			s.logger.Warn(turnCtx, "speaking failed", "error", err)
		}
	}

	s.mu.Lock()
	if turnCtx.Err() != nil {
		// barge-in already moved us to Listening.
		s.mu.Unlock()
		return
	}
	if !endCall {
		s.transition(StateIdle)
		s.transition(StateListening)
		s.mu.Unlock()
		return
	}
	s.transition(StateEnding)
	s.transition(StateEnded)
	stream := s.sttStream
	lease := s.sttLease
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if lease != nil {
		s.sttPool.Release(lease)
	}
}

// endTurn transitions the session to its terminal state, releasing the STT
// lease and closing the streaming connection.
func (s *Session) endTurn(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.cancelTurn != nil {
		s.cancelTurn()
		s.cancelTurn = nil
	}
	if s.call.FailureReason == "" {
		s.call.FailureReason = reason
	}
	s.transition(StateEnding)
	s.transition(StateEnded)
	stream := s.sttStream
	lease := s.sttLease
	s.mu.Unlock()

	if stream != nil {
		_ = stream.Close()
	}
	if lease != nil {
		s.sttPool.Release(lease)
	}
}

// Close ends the session cooperatively: if a turn is in flight it waits up
// to cfg.ShutdownGrace for it to finish speaking before forcing the end.
func (s *Session) Close(ctx context.Context) {
	s.mu.Lock()
	alreadyEnded := s.state.Terminal()
	s.mu.Unlock()
	if alreadyEnded {
		return
	}

	grace := s.cfg.ShutdownGrace
	if grace <= 0 {
		grace = DefaultConfig().ShutdownGrace
	}
	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-s.endedCh:
	case <-timer.C:
		s.endTurn(ctx, "shutdown grace window elapsed")
	}
}

// Done returns a channel closed once the session reaches StateEnded.
func (s *Session) Done() <-chan struct{} {
	return s.endedCh
}
