package promptbuilder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/domain"
)

func testAgent() domain.Agent {
	return domain.Agent{Persona: "You are Max, a friendly support agent.", LLMModelID: "claude-3-5-haiku-20241022", LLMTemperature: 0.4}
}

func TestBuildSectionOrderAndSeparators(t *testing.T) {
	req := Build(testAgent(), nil, nil, "hello", Budget{})
	require.NotEmpty(t, req.Messages)
	system := req.Messages[0].Text

	assert.True(t, strings.Index(system, globalPhoneRules) == 0)
	assert.Contains(t, system, "You are Max, a friendly support agent.")
}

func TestBuildOmitsRetrievalBlockWhenEmpty(t *testing.T) {
	req := Build(testAgent(), nil, nil, "hello", Budget{})
	system := req.Messages[0].Text
	assert.NotContains(t, system, "[1]")
}

func TestBuildIncludesRetrievalRankedByScoreDescending(t *testing.T) {
	retrieved := []domain.RetrievedChunk{
		{Text: "low relevance", Score: 0.71},
		{Text: "high relevance", Score: 0.95},
	}
	req := Build(testAgent(), retrieved, nil, "hello", Budget{})
	system := req.Messages[0].Text

	highIdx := strings.Index(system, "high relevance")
	lowIdx := strings.Index(system, "low relevance")
	require.NotEqual(t, -1, highIdx)
	require.NotEqual(t, -1, lowIdx)
	assert.Less(t, highIdx, lowIdx)
	assert.Contains(t, system, "[1] high relevance")
	assert.Contains(t, system, "[2] low relevance")
}

func TestBuildMessageSequenceIsSystemHistoryThenCurrentTurn(t *testing.T) {
	history := []Turn{
		{UserText: "what are your hours", AssistantText: "nine to five"},
	}
	req := Build(testAgent(), nil, history, "thanks", Budget{MaxTokens: 10000})

	require.Len(t, req.Messages, 4)
	assert.Equal(t, iface.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, iface.RoleUser, req.Messages[1].Role)
	assert.Equal(t, "what are your hours", req.Messages[1].Text)
	assert.Equal(t, iface.RoleAssistant, req.Messages[2].Role)
	assert.Equal(t, iface.RoleUser, req.Messages[3].Role)
	assert.Equal(t, "thanks", req.Messages[3].Text)
}

func TestBuildDropsOldestTurnsPairwiseWhenOverBudget(t *testing.T) {
	history := []Turn{
		{UserText: "first question padded out to be long enough to cost tokens", AssistantText: "first answer padded out to be long enough to cost tokens"},
		{UserText: "second question", AssistantText: "second answer"},
	}
	req := Build(testAgent(), nil, history, "current", Budget{MaxTokens: 10})

	for _, m := range req.Messages[1 : len(req.Messages)-1] {
		assert.NotContains(t, m.Text, "first")
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	history := []Turn{{UserText: "q", AssistantText: "a"}}
	retrieved := []domain.RetrievedChunk{{Text: "fact", Score: 0.9}}

	first := Build(testAgent(), retrieved, history, "turn", Budget{})
	second := Build(testAgent(), retrieved, history, "turn", Budget{})

	require.Equal(t, len(first.Messages), len(second.Messages))
	for i := range first.Messages {
		assert.Equal(t, first.Messages[i], second.Messages[i])
	}
}

func TestBuildDoesNotMutateHistory(t *testing.T) {
	history := []Turn{{UserText: "a", AssistantText: "b"}, {UserText: "c", AssistantText: "d"}}
	original := append([]Turn(nil), history...)

	Build(testAgent(), nil, history, "turn", Budget{MaxTokens: 1})

	assert.Equal(t, original, history)
}
