// Package bedrock adapts the Anthropic Messages API as hosted on AWS Bedrock
// Runtime to the aiclient streaming chat contract.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const (
	defaultModel          = "anthropic.claude-3-5-haiku-20241022-v1:0"
	bedrockAnthropicAPI   = "bedrock-2023-05-31"
	defaultMaxTokensValue = 1024
)

// ChatModel adapts an Anthropic-on-Bedrock model to iface.ChatModel.
type ChatModel struct {
	client  *bedrockruntime.Client
	modelID string
}

// New constructs a ChatModel. Recognized opts: "region", "model".
func New(ctx context.Context, opts map[string]any) (*ChatModel, error) {
	var cfgOpts []func(*awsconfig.LoadOptions) error
	if region, _ := opts["region"].(string); region != "" {
		cfgOpts = append(cfgOpts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, cfgOpts...)
	if err != nil {
		return nil, fmt.Errorf("aiclient.bedrock.New: load AWS config: %w", err)
	}

	model, _ := opts["model"].(string)
	if model == "" {
		model = defaultModel
	}

	return &ChatModel{client: bedrockruntime.NewFromConfig(cfg), modelID: model}, nil
}

// ModelID returns the model this adapter targets.
func (c *ChatModel) ModelID() string { return c.modelID }

type anthropicMessageContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicMessagePart struct {
	Role    string                    `json:"role"`
	Content []anthropicMessageContent `json:"content"`
}

type anthropicMessagesRequestBody struct {
	AnthropicVersion string                  `json:"anthropic_version"`
	Messages         []anthropicMessagePart  `json:"messages"`
	System           string                  `json:"system,omitempty"`
	MaxTokens        int                     `json:"max_tokens"`
	Temperature      *float64                `json:"temperature,omitempty"`
}

type anthropicStreamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicStreamChunk struct {
	Type  string               `json:"type"`
	Delta anthropicStreamDelta `json:"delta"`
}

func buildRequestBody(req iface.ChatRequest) ([]byte, error) {
	var systemText string
	var messages []anthropicMessagePart
	for _, m := range req.Messages {
		switch m.Role {
		case iface.RoleSystem:
			systemText += m.Text + "\n"
		case iface.RoleAssistant:
			messages = append(messages, anthropicMessagePart{Role: "assistant", Content: []anthropicMessageContent{{Type: "text", Text: m.Text}}})
		default:
			messages = append(messages, anthropicMessagePart{Role: "user", Content: []anthropicMessageContent{{Type: "text", Text: m.Text}}})
		}
	}
	if len(messages) == 0 {
		return nil, errors.New("no messages for bedrock anthropic request")
	}

	maxTokens := defaultMaxTokensValue
	if req.MaxOutputTokens > 0 {
		maxTokens = req.MaxOutputTokens
	}

	body := anthropicMessagesRequestBody{
		AnthropicVersion: bedrockAnthropicAPI,
		Messages:         messages,
		System:           systemText,
		MaxTokens:        maxTokens,
	}
	if req.Temperature > 0 {
		body.Temperature = &req.Temperature
	}

	return json.Marshal(body)
}

// StreamChat implements iface.ChatModel.
func (c *ChatModel) StreamChat(ctx context.Context, req iface.ChatRequest) (<-chan iface.ChatDelta, iface.CancelFunc, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}

	bodyBytes, err := buildRequestBody(req)
	if err != nil {
		return nil, nil, aiclient.ClassifyStreamError("aiclient.bedrock.StreamChat", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	output, err := c.client.InvokeModelWithResponseStream(streamCtx, &bedrockruntime.InvokeModelWithResponseStreamInput{
		ModelId:     &modelID,
		ContentType: strPtr("application/json"),
		Accept:      strPtr("application/json"),
		Body:        bodyBytes,
	})
	if err != nil {
		cancel()
		return nil, nil, aiclient.ClassifyHTTPError("aiclient.bedrock.StreamChat", 0, err)
	}

	eventStream := output.GetStream()
	out := make(chan iface.ChatDelta)

	go func() {
		defer close(out)
		defer eventStream.Close()

		for {
			select {
			case <-streamCtx.Done():
				return
			case event, ok := <-eventStream.Events():
				if !ok {
					if streamErr := eventStream.Err(); streamErr != nil && !errors.Is(streamErr, io.EOF) {
						out <- iface.ChatDelta{Err: aiclient.ClassifyStreamError("aiclient.bedrock.StreamChat", streamErr)}
					}
					return
				}
				chunkMember, ok := event.(*brtypes.ResponseStreamMemberChunk)
				if !ok {
					continue
				}
				var streamEvent anthropicStreamChunk
				if err := json.Unmarshal(chunkMember.Value.Bytes, &streamEvent); err != nil {
					continue
				}
				if streamEvent.Type == "content_block_delta" && streamEvent.Delta.Text != "" {
					select {
					case out <- iface.ChatDelta{Text: streamEvent.Delta.Text}:
					case <-streamCtx.Done():
						return
					}
				}
			}
		}
	}()

	return out, iface.CancelFunc(cancel), nil
}

func strPtr(s string) *string { return &s }

func init() {
	aiclient.GetRegistry().RegisterChat("bedrock", func(opts map[string]any) (iface.ChatModel, error) {
		return New(context.Background(), opts)
	})
}
