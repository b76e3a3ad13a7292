package bedrock

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/callwave/callwave/aiclient/iface"
)

func TestBuildRequestBodySeparatesSystemAndMessages(t *testing.T) {
	req := iface.ChatRequest{
		Messages: []iface.ChatMessage{
			{Role: iface.RoleSystem, Text: "be concise"},
			{Role: iface.RoleUser, Text: "hello"},
			{Role: iface.RoleAssistant, Text: "hi there"},
		},
		MaxOutputTokens: 256,
	}

	raw, err := buildRequestBody(req)
	require.NoError(t, err)

	var body anthropicMessagesRequestBody
	require.NoError(t, json.Unmarshal(raw, &body))

	assert.Equal(t, bedrockAnthropicAPI, body.AnthropicVersion)
	assert.Contains(t, body.System, "be concise")
	assert.Equal(t, 256, body.MaxTokens)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, "user", body.Messages[0].Role)
	assert.Equal(t, "assistant", body.Messages[1].Role)
}

func TestBuildRequestBodyRejectsEmptyMessages(t *testing.T) {
	_, err := buildRequestBody(iface.ChatRequest{})
	assert.Error(t, err)
}

func TestBuildRequestBodyDefaultsMaxTokens(t *testing.T) {
	req := iface.ChatRequest{Messages: []iface.ChatMessage{{Role: iface.RoleUser, Text: "hi"}}}
	raw, err := buildRequestBody(req)
	require.NoError(t, err)

	var body anthropicMessagesRequestBody
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, defaultMaxTokensValue, body.MaxTokens)
}
