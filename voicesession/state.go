// Package voicesession implements the per-call state machine that bridges a
// live telephony media stream to streaming STT, LLM, and TTS adapters: the
// Connecting/Greeting/Idle/Listening/Thinking/Speaking/Ending/Ended
// lifecycle, barge-in, the Thinking pipeline (end-call detection, knowledge
// retrieval, prompt assembly, LLM streaming), and the Speaking pipeline
// (sentence-at-a-time TTS synthesis written to the media track in order).
package voicesession

// State is a Voice Session's lifecycle state.
type State string

const (
	StateConnecting State = "connecting"
	StateGreeting   State = "greeting"
	StateIdle       State = "idle"
	StateListening  State = "listening"
	StateThinking   State = "thinking"
	StateSpeaking   State = "speaking"
	StateEnding     State = "ending"
	StateEnded      State = "ended"
)

// Terminal reports whether state admits no further transitions.
func (s State) Terminal() bool {
	return s == StateEnded
}

// validTransitions enumerates the state machine's edges. Listening can be
// re-entered from Speaking directly on barge-in, skipping Idle.
var validTransitions = map[State][]State{
	StateConnecting: {StateGreeting, StateEnding},
	StateGreeting:   {StateIdle, StateEnding},
	StateIdle:       {StateListening, StateEnding},
	StateListening:  {StateThinking, StateEnding},
	StateThinking:   {StateSpeaking, StateIdle, StateEnding},
	StateSpeaking:   {StateIdle, StateListening, StateEnding},
	StateEnding:     {StateEnded},
}

// canTransition reports whether the edge from-to is a legal state machine move.
func canTransition(from, to State) bool {
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
