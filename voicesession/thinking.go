package voicesession

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
	"github.com/callwave/callwave/errs"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/promptbuilder"
)

// think runs the full Thinking pipeline for one final transcript: normalize,
// end-call detection, knowledge retrieval (gated on a configured knowledge
// base), prompt assembly, and LLM stream consumption. It returns the
// complete assistant response text and whether the caller's words ended
// the call.
func (s *Session) think(ctx context.Context, userText string) (assistantText string, endCall bool, err error) {
	ctx, span := o11y.StartSpan(ctx, "voicesession.think", o11y.Attrs{o11y.AttrCallID: s.id})
	defer span.End()

	agent := s.call.AgentSnapshot
	normalized := normalizeTranscript(userText)

	if matchesEndCallPhrase(normalized, agent.EndCallPhrases) {
		return "", true, nil
	}

	var retrieved []domain.RetrievedChunk
	if agent.KnowledgeBaseID != "" && s.retriever != nil {
		chunks, rerr := s.retriever.Retrieve(ctx, agent.ID, userText)
		if rerr != nil {
			s.logger.Warn(ctx, "knowledge retrieval failed, continuing without context", "error", rerr)
		} else {
			retrieved = chunks
		}
	}

	s.mu.Lock()
	history := append([]promptbuilder.Turn(nil), s.history...)
	s.mu.Unlock()

	req := promptbuilder.Build(agent, retrieved, history, userText, s.cfg.PromptBudget)

	text, err := s.streamChat(ctx, req)
	if err != nil {
		span.RecordError(err)
		return "", false, err
	}
	return text, false, nil
}

// streamChat consumes a streaming chat completion, applying the first-token
// and mid-stream timeouts of §4.6, and returns the concatenated response
// text.
func (s *Session) streamChat(ctx context.Context, req iface.ChatRequest) (string, error) {
	deltas, cancel, err := s.chatModel.StreamChat(ctx, req)
	if err != nil {
		return "", err
	}
	defer cancel()

	var text strings.Builder
	timeout := s.cfg.LLMFirstTokenTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().LLMFirstTokenTimeout
	}

	for {
		timer := time.NewTimer(timeout)
		select {
		case <-ctx.Done():
			timer.Stop()
			return text.String(), ctx.Err()
		case <-timer.C:
			err := errs.New("voicesession.streamChat", errs.UpstreamTransient, "timed out waiting for llm stream delta").WithCode(errs.CodeProviderUnavailable)
			return text.String(), err
		case delta, ok := <-deltas:
			timer.Stop()
			if !ok {
				return text.String(), nil
			}
			if delta.Err != nil {
				return text.String(), delta.Err
			}
			text.WriteString(delta.Text)
			timeout = s.cfg.LLMMidStreamTimeout
			if timeout <= 0 {
				timeout = DefaultConfig().LLMMidStreamTimeout
			}
		}
	}
}

// normalizeTranscript lowercases and trims whitespace, mirroring the
// normalization already applied to Agent.EndCallPhrases.
func normalizeTranscript(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// matchesEndCallPhrase reports whether normalized matches any configured
// end-call phrase via exact equality, trailing-clause suffix, or a
// word-bounded occurrence anywhere in the utterance.
func matchesEndCallPhrase(normalized string, phrases []string) bool {
	for _, phrase := range phrases {
		if phrase == "" {
			continue
		}
		if normalized == phrase {
			return true
		}
		if strings.HasSuffix(normalized, " "+phrase) {
			return true
		}
		if wordBoundaryMatch(normalized, phrase) {
			return true
		}
	}
	return false
}

func wordBoundaryMatch(text, phrase string) bool {
	pattern := `\b` + regexp.QuoteMeta(phrase) + `\b`
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}
