// Package callhandler bridges the telephony media WebSocket to a Voice
// Session: it upgrades the connection, builds the per-call STT/LLM/TTS
// adapters the Agent's configuration calls for, and wires
// twilio.MediaConn/voicesession.Session together as the
// twilio.SessionHandler spec.md §4.6 describes.
package callhandler

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/audio"
	"github.com/callwave/callwave/config"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/pool"
	"github.com/callwave/callwave/registry"
	"github.com/callwave/callwave/telephony/twilio"
	"github.com/callwave/callwave/voicesession"
)

// CallLookup resolves the Call a media WS upgrade request names, narrowed
// from *outbound.Controller.
type CallLookup interface {
	Get(callID string) (*domain.Call, bool)
}

// Handler is the http.Handler registered at Server.RegisterMediaHandler's
// route. One Handler serves every call on the process; each upgraded
// connection gets its own bridge and Voice Session.
type Handler struct {
	cfg       config.Config
	calls     CallLookup
	sessions  *registry.Registry
	retriever voicesession.Retriever
	sttPool   *pool.Pool
	logger    *o11y.Logger
	upgrader  websocket.Upgrader
}

// New constructs a Handler.
func New(cfg config.Config, calls CallLookup, sessions *registry.Registry, retriever voicesession.Retriever, sttPool *pool.Pool, logger *o11y.Logger) *Handler {
	if logger == nil {
		logger = o11y.NewLogger()
	}
	return &Handler{
		cfg:       cfg,
		calls:     calls,
		sessions:  sessions,
		retriever: retriever,
		sttPool:   sttPool,
		logger:    logger,
		upgrader:  websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// ServeHTTP upgrades the connection and serves it for the call named by the
// `id` path variable until the stream ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]
	call, ok := h.calls.Get(callID)
	if !ok {
		http.Error(w, "call not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(r.Context(), "media websocket upgrade failed", "call_id", callID, "error", err)
		return
	}

	mediaConn := twilio.NewMediaConn(conn, h.logger)
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	b := &bridge{h: h, callID: callID, call: call, cancel: cancel}
	if err := mediaConn.Serve(ctx, b); err != nil {
		h.logger.Warn(ctx, "media websocket serve ended", "call_id", callID, "error", err)
	}
}

// bridge implements twilio.SessionHandler for one live call, owning the
// Voice Session for its lifetime.
type bridge struct {
	h       *Handler
	callID  string
	call    *domain.Call
	session *voicesession.Session
	cancel  context.CancelFunc
}

// HandleStart builds the Agent's STT/LLM/TTS adapters and starts the Voice
// Session once the provider's `start` frame latches the stream.
func (b *bridge) HandleStart(ctx context.Context, conn *twilio.MediaConn, streamSID, callSID string) {
	b.call.StreamSID = streamSID
	if b.call.ProviderCallSID == "" {
		b.call.ProviderCallSID = callSID
	}

	agent := b.call.AgentSnapshot
	sttStreamer, err := aiclient.NewSTTStreamer(b.h.cfg.STT.Provider, b.h.sttOpts())
	if err != nil {
		b.h.logger.Error(ctx, "failed to build STT streamer", "call_id", b.callID, "error", err)
		return
	}
	chatModel, err := aiclient.NewChatModel(b.h.cfg.LLMs.Provider, b.h.chatOpts(agent))
	if err != nil {
		b.h.logger.Error(ctx, "failed to build chat model", "call_id", b.callID, "error", err)
		return
	}
	ttsProvider := agent.TTSProvider
	if ttsProvider == "" {
		ttsProvider = b.h.cfg.TTS.Provider
	}
	ttsStreamer, err := aiclient.NewTTSStreamer(ttsProvider, b.h.ttsOpts(agent))
	if err != nil {
		b.h.logger.Error(ctx, "failed to build TTS streamer", "call_id", b.callID, "error", err)
		return
	}

	session := voicesession.New(voicesession.DefaultConfig(), b.call, sttStreamer, chatModel, ttsStreamer, b.h.retriever, b.h.sttPool, conn, b.h.logger)
	b.session = session
	b.h.sessions.Register(b.callID, session)

	if err := session.Start(ctx); err != nil {
		b.h.logger.Error(ctx, "voice session failed to start", "call_id", b.callID, "error", err)
		b.h.sessions.Unregister(b.callID)
		return
	}
	go session.Run(ctx)
}

// HandleMedia decodes one inbound wire-format frame and feeds it to the
// Voice Session's STT pipeline.
func (b *bridge) HandleMedia(ctx context.Context, payload []byte) {
	if b.session == nil {
		return
	}
	pcm, err := audio.DecodeMulaw8kToLinearPCM16k(payload)
	if err != nil {
		b.h.logger.Warn(ctx, "failed to decode inbound media frame", "call_id", b.callID, "error", err)
		return
	}
	if err := b.session.PushAudio(ctx, audio.LinearPCM16SamplesToLE16(pcm)); err != nil {
		b.h.logger.Warn(ctx, "failed to push audio to voice session", "call_id", b.callID, "error", err)
	}
}

// HandleStop tears the Voice Session down once the provider ends the
// stream.
func (b *bridge) HandleStop(ctx context.Context, reason string) {
	if b.session != nil {
		b.session.Close(ctx)
		b.h.sessions.Unregister(b.callID)
	}
	b.h.logger.Info(ctx, "call stream stopped", "call_id", b.callID, "reason", reason)
	b.cancel()
}

func (h *Handler) sttOpts() map[string]any {
	switch h.cfg.STT.Provider {
	case "deepgram":
		return map[string]any{
			"api_key": h.cfg.STT.Deepgram.APIKey,
			"model":   h.cfg.STT.Deepgram.Model,
		}
	default:
		return map[string]any{}
	}
}

func (h *Handler) chatOpts(agent domain.Agent) map[string]any {
	model := agent.LLMModelID
	switch h.cfg.LLMs.Provider {
	case "openai":
		if model == "" {
			model = h.cfg.LLMs.OpenAI.Model
		}
		return map[string]any{"api_key": h.cfg.LLMs.OpenAI.APIKey, "base_url": h.cfg.LLMs.OpenAI.BaseURL, "model": model}
	case "anthropic":
		if model == "" {
			model = h.cfg.LLMs.Anthropic.Model
		}
		return map[string]any{
			"api_key":     h.cfg.LLMs.Anthropic.APIKey,
			"base_url":    h.cfg.LLMs.Anthropic.BaseURL,
			"api_version": h.cfg.LLMs.Anthropic.Version,
			"model":       model,
		}
	case "ollama":
		if model == "" {
			model = h.cfg.LLMs.Ollama.Model
		}
		return map[string]any{"base_url": h.cfg.LLMs.Ollama.BaseURL, "model": model}
	case "bedrock":
		if model == "" {
			model = h.cfg.LLMs.Bedrock.ModelID
		}
		return map[string]any{"region": h.cfg.LLMs.Bedrock.Region, "model": model}
	default:
		return map[string]any{"model": model}
	}
}

func (h *Handler) ttsOpts(agent domain.Agent) map[string]any {
	return map[string]any{
		"api_key": h.cfg.TTS.ElevenLabs.APIKey,
		"model":   h.cfg.TTS.ElevenLabs.Model,
	}
}
