// Package ollama adapts a local Ollama instance's chat API to the aiclient
// streaming chat contract.
package ollama

import (
	"context"
	"net/url"
	"os"

	ollamaapi "github.com/ollama/ollama/api"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const defaultModel = "llama3"

// ChatModel adapts an Ollama client to iface.ChatModel.
type ChatModel struct {
	client  *ollamaapi.Client
	modelID string
}

// New constructs a ChatModel. Recognized opts: "base_url", "model".
func New(opts map[string]any) (*ChatModel, error) {
	host, _ := opts["base_url"].(string)
	if host == "" {
		host = os.Getenv("OLLAMA_HOST")
	}
	if host == "" {
		host = "http://127.0.0.1:11434"
	}
	model, _ := opts["model"].(string)
	if model == "" {
		model = defaultModel
	}

	parsed, err := url.Parse(host)
	if err != nil {
		return nil, err
	}
	client := ollamaapi.NewClient(parsed, nil)

	return &ChatModel{client: client, modelID: model}, nil
}

// ModelID returns the model this adapter targets.
func (c *ChatModel) ModelID() string { return c.modelID }

func mapRole(r iface.Role) string {
	switch r {
	case iface.RoleSystem:
		return "system"
	case iface.RoleAssistant:
		return "assistant"
	default:
		return "user"
	}
}

// StreamChat implements iface.ChatModel.
func (c *ChatModel) StreamChat(ctx context.Context, req iface.ChatRequest) (<-chan iface.ChatDelta, iface.CancelFunc, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}

	messages := make([]ollamaapi.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, ollamaapi.Message{Role: mapRole(m.Role), Content: m.Text})
	}

	options := map[string]any{}
	if req.Temperature > 0 {
		options["temperature"] = req.Temperature
	}
	streamTrue := true
	apiReq := &ollamaapi.ChatRequest{
		Model:    modelID,
		Messages: messages,
		Options:  options,
		Stream:   &streamTrue,
	}

	streamCtx, cancel := context.WithCancel(ctx)
	out := make(chan iface.ChatDelta)

	go func() {
		defer close(out)
		err := c.client.Chat(streamCtx, apiReq, func(resp ollamaapi.ChatResponse) error {
			if resp.Message.Content != "" {
				select {
				case out <- iface.ChatDelta{Text: resp.Message.Content}:
				case <-streamCtx.Done():
					return streamCtx.Err()
				}
			}
			return nil
		})
		if err != nil && streamCtx.Err() == nil {
			out <- iface.ChatDelta{Err: aiclient.ClassifyStreamError("aiclient.ollama.StreamChat", err)}
		}
	}()

	return out, iface.CancelFunc(cancel), nil
}

func init() {
	aiclient.GetRegistry().RegisterChat("ollama", func(opts map[string]any) (iface.ChatModel, error) {
		return New(opts)
	})
}
