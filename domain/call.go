// Package domain defines the shared entities that flow between the
// orchestrator's components: agents, calls, transcripts, scheduled jobs, and
// knowledge chunks. Types here are plain data; behavior lives in the
// packages that own each entity's lifecycle (voicesession, outbound,
// scheduler, knowledge).
package domain

import "time"

// Direction is the direction of a phone call.
type Direction string

const (
	Inbound  Direction = "inbound"
	Outbound Direction = "outbound"
)

// CallState is the lifecycle state of a Call, mirrored from the Voice
// Session state machine (see voicesession.State) at the points a Call
// record is updated.
type CallState string

const (
	CallConnecting CallState = "connecting"
	// CallRinging is an outbound-only state: the provider has accepted the
	// call request but has not yet reported it answered. The provider's
	// status webhook drives every transition out of it.
	CallRinging    CallState = "ringing"
	CallGreeting   CallState = "greeting"
	CallIdle       CallState = "idle"
	CallListening  CallState = "listening"
	CallThinking   CallState = "thinking"
	CallSpeaking   CallState = "speaking"
	CallEnding     CallState = "ending"
	CallEnded      CallState = "ended"
)

// Terminal reports whether state admits no further transitions.
func (s CallState) Terminal() bool {
	return s == CallEnded
}

// Agent is the immutable-during-a-call persona and provider configuration
// a Voice Session operates under.
type Agent struct {
	ID                string
	Persona           string
	Greeting          string
	LanguageTag       string
	LLMModelID        string
	LLMTemperature    float64
	LLMMaxOutputTokens int // 0 means unset
	TTSProvider       string
	TTSVoiceID        string
	EndCallPhrases    []string // ordered, normalized (lowercase, trimmed)
	KnowledgeBaseID   string
}

// Call is one physical phone call, inbound or outbound.
type Call struct {
	ID             string
	Direction      Direction
	From           string // E.164
	To             string // E.164
	AgentID        string
	ProviderCallSID string
	StreamSID      string // set on first media frame
	State          CallState
	StartedAt      time.Time
	EndedAt        time.Time
	Duration       time.Duration
	FailureReason  string
	CostAccumulated float64
	// AgentSnapshot is the Agent configuration captured at call start; it
	// does not change even if the Agent record is later edited.
	AgentSnapshot Agent
	// CorrelationID is the caller-supplied idempotency key for outbound
	// calls; empty for inbound.
	CorrelationID string
	// Transcript is the ordered, append-only record of what each side said,
	// exposed verbatim by GET /calls/:id.
	Transcript []TranscriptTurn
}

// Ended reports whether the call has reached a terminal state.
func (c *Call) Ended() bool {
	return c.State.Terminal()
}

// Speaker identifies who produced a Transcript Turn.
type Speaker string

const (
	SpeakerCaller Speaker = "caller"
	SpeakerAgent  Speaker = "agent"
)

// TranscriptTurn is one entry in a Call's ordered, append-only transcript.
type TranscriptTurn struct {
	Speaker   Speaker
	Text      string
	Timestamp time.Time
}
