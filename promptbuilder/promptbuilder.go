// Package promptbuilder assembles the system message and turn history sent
// to the chat LLM for a voice session. It is pure: given the same inputs it
// always produces the same message list, and it never mutates its history
// argument.
package promptbuilder

import (
	"fmt"
	"sort"
	"strings"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
)

const globalPhoneRules = "You are speaking on a live phone call. Respond in 2-3 short sentences. " +
	"Never use lists, markdown, or speaker labels. Keep a natural, conversational tone."

// Turn is one completed user/assistant exchange in the rolling history.
type Turn struct {
	UserText      string
	AssistantText string
}

// Budget bounds the rolling history included in a built prompt.
type Budget struct {
	MaxTokens int
}

const defaultMaxTokens = 2000

// estimateTokens is a pure heuristic (no tokenizer library exists anywhere in
// the example corpus) approximating English text at ~4 characters per token.
func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := len(s) / 4
	if n == 0 {
		n = 1
	}
	return n
}

func (t Turn) tokenCount() int {
	return estimateTokens(t.UserText) + estimateTokens(t.AssistantText)
}

// buildSystemMessage composes the three fixed-order sections of §4.5: global
// rules, persona, and (if non-empty) retrieved context ranked by descending
// score.
func buildSystemMessage(agent domain.Agent, retrieved []domain.RetrievedChunk) string {
	sections := []string{globalPhoneRules, agent.Persona}

	if len(retrieved) > 0 {
		ordered := append([]domain.RetrievedChunk(nil), retrieved...)
		sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Score > ordered[j].Score })

		lines := make([]string, len(ordered))
		for i, chunk := range ordered {
			lines[i] = fmt.Sprintf("[%d] %s", i+1, chunk.Text)
		}
		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// trimToBudget drops the oldest turns, pairwise, until the remaining history
// fits within budget.MaxTokens. It never mutates history.
func trimToBudget(history []Turn, budget Budget) []Turn {
	maxTokens := budget.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	trimmed := append([]Turn(nil), history...)
	total := 0
	for _, turn := range trimmed {
		total += turn.tokenCount()
	}

	for total > maxTokens && len(trimmed) > 0 {
		total -= trimmed[0].tokenCount()
		trimmed = trimmed[1:]
	}
	return trimmed
}

// Build composes the full chat message list for one LLM turn: the layered
// system message, the token-budget-trimmed rolling history, and the current
// user turn.
func Build(agent domain.Agent, retrieved []domain.RetrievedChunk, history []Turn, currentUserTurn string, budget Budget) iface.ChatRequest {
	systemText := buildSystemMessage(agent, retrieved)
	trimmed := trimToBudget(history, budget)

	messages := make([]iface.ChatMessage, 0, 2+2*len(trimmed))
	messages = append(messages, iface.ChatMessage{Role: iface.RoleSystem, Text: systemText})

	for _, turn := range trimmed {
		messages = append(messages,
			iface.ChatMessage{Role: iface.RoleUser, Text: turn.UserText},
			iface.ChatMessage{Role: iface.RoleAssistant, Text: turn.AssistantText},
		)
	}
	messages = append(messages, iface.ChatMessage{Role: iface.RoleUser, Text: currentUserTurn})

	return iface.ChatRequest{
		Messages:        messages,
		ModelID:         agent.LLMModelID,
		Temperature:     agent.LLMTemperature,
		MaxOutputTokens: agent.LLMMaxOutputTokens,
	}
}
