// Package anthropic adapts the Anthropic Messages API to the aiclient
// streaming chat contract.
package anthropic

import (
	"context"
	"errors"
	"io"
	"os"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const defaultModel = "claude-3-5-haiku-20241022"

// ChatModel adapts an Anthropic client to iface.ChatModel.
type ChatModel struct {
	client  anthropicsdk.Client
	modelID string
}

// New constructs a ChatModel. Recognized opts: "api_key", "base_url",
// "api_version", "model".
func New(opts map[string]any) (*ChatModel, error) {
	apiKey, _ := opts["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	baseURL, _ := opts["base_url"].(string)
	apiVersion, _ := opts["api_version"].(string)
	model, _ := opts["model"].(string)
	if model == "" {
		model = defaultModel
	}

	clientOpts := []option.RequestOption{}
	if apiKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(baseURL))
	}
	if apiVersion != "" {
		clientOpts = append(clientOpts, option.WithDefaultHeader("anthropic-version", apiVersion))
	}

	return &ChatModel{client: anthropicsdk.NewClient(clientOpts...), modelID: model}, nil
}

// ModelID returns the model this adapter targets.
func (c *ChatModel) ModelID() string { return c.modelID }

// StreamChat implements iface.ChatModel.
func (c *ChatModel) StreamChat(ctx context.Context, req iface.ChatRequest) (<-chan iface.ChatDelta, iface.CancelFunc, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}
	maxTokens := int64(1024)
	if req.MaxOutputTokens > 0 {
		maxTokens = int64(req.MaxOutputTokens)
	}

	var systemText string
	var messages []anthropicsdk.MessageParam
	for _, m := range req.Messages {
		switch m.Role {
		case iface.RoleSystem:
			systemText += m.Text + "\n"
		case iface.RoleUser:
			messages = append(messages, anthropicsdk.NewUserMessage(anthropicsdk.NewTextBlock(m.Text)))
		case iface.RoleAssistant:
			messages = append(messages, anthropicsdk.NewAssistantMessage(anthropicsdk.NewTextBlock(m.Text)))
		}
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(modelID),
		MaxTokens: maxTokens,
		Messages:  messages,
	}
	if systemText != "" {
		params.System = []anthropicsdk.TextBlockParam{{Text: systemText}}
	}
	if req.Temperature > 0 {
		params.Temperature = param.NewOpt(req.Temperature)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream := c.client.Messages.NewStreaming(streamCtx, params)

	out := make(chan iface.ChatDelta)
	go func() {
		defer close(out)
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			switch delta := event.AsAny().(type) {
			case anthropicsdk.ContentBlockDeltaEvent:
				if textDelta, ok := delta.Delta.AsAny().(anthropicsdk.TextDelta); ok && textDelta.Text != "" {
					select {
					case out <- iface.ChatDelta{Text: textDelta.Text}:
					case <-streamCtx.Done():
						return
					}
				}
			}
		}
		if err := stream.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, context.Canceled) {
			out <- iface.ChatDelta{Err: aiclient.ClassifyStreamError("aiclient.anthropic.StreamChat", err)}
		}
	}()

	return out, iface.CancelFunc(cancel), nil
}

func init() {
	aiclient.GetRegistry().RegisterChat("anthropic", func(opts map[string]any) (iface.ChatModel, error) {
		return New(opts)
	})
}
