// Package openai adapts the OpenAI chat completions and embeddings APIs to
// the aiclient contracts.
package openai

import (
	"context"
	"errors"
	"io"
	"os"

	openaisdk "github.com/sashabaranov/go-openai"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const (
	defaultChatModel  = openaisdk.GPT4o
	defaultEmbedModel = openaisdk.SmallEmbedding3
	defaultEmbedDim   = 1536
)

// ChatModel adapts an OpenAI client to iface.ChatModel.
type ChatModel struct {
	client  *openaisdk.Client
	modelID string
}

// New constructs a ChatModel. Recognized opts: "api_key", "base_url", "model".
func New(opts map[string]any) (*ChatModel, error) {
	apiKey, _ := opts["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL, _ := opts["base_url"].(string)
	model, _ := opts["model"].(string)
	if model == "" {
		model = string(defaultChatModel)
	}

	cfg := openaisdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &ChatModel{client: openaisdk.NewClientWithConfig(cfg), modelID: model}, nil
}

// ModelID returns the model this adapter targets.
func (c *ChatModel) ModelID() string { return c.modelID }

func mapRole(r iface.Role) string {
	switch r {
	case iface.RoleSystem:
		return openaisdk.ChatMessageRoleSystem
	case iface.RoleAssistant:
		return openaisdk.ChatMessageRoleAssistant
	default:
		return openaisdk.ChatMessageRoleUser
	}
}

// StreamChat implements iface.ChatModel.
func (c *ChatModel) StreamChat(ctx context.Context, req iface.ChatRequest) (<-chan iface.ChatDelta, iface.CancelFunc, error) {
	modelID := req.ModelID
	if modelID == "" {
		modelID = c.modelID
	}

	messages := make([]openaisdk.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openaisdk.ChatCompletionMessage{Role: mapRole(m.Role), Content: m.Text})
	}

	ccr := openaisdk.ChatCompletionRequest{
		Model:       modelID,
		Messages:    messages,
		Temperature: float32(req.Temperature),
		Stream:      true,
	}
	if req.MaxOutputTokens > 0 {
		ccr.MaxTokens = req.MaxOutputTokens
	}

	streamCtx, cancel := context.WithCancel(ctx)
	stream, err := c.client.CreateChatCompletionStream(streamCtx, ccr)
	if err != nil {
		cancel()
		return nil, nil, aiclient.ClassifyHTTPError("aiclient.openai.StreamChat", 0, err)
	}

	out := make(chan iface.ChatDelta)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if err != nil {
				if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
					return
				}
				select {
				case out <- iface.ChatDelta{Err: aiclient.ClassifyStreamError("aiclient.openai.StreamChat", err)}:
				case <-streamCtx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			select {
			case out <- iface.ChatDelta{Text: delta}:
			case <-streamCtx.Done():
				return
			}
		}
	}()

	return out, iface.CancelFunc(cancel), nil
}

// Embedder adapts OpenAI's embeddings endpoint to iface.Embedder.
type Embedder struct {
	client  *openaisdk.Client
	modelID string
	dim     int
}

// NewEmbedder constructs an Embedder. Recognized opts: "api_key",
// "base_url", "model", "dimension".
func NewEmbedder(opts map[string]any) (*Embedder, error) {
	apiKey, _ := opts["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("OPENAI_API_KEY")
	}
	baseURL, _ := opts["base_url"].(string)
	model, _ := opts["model"].(string)
	if model == "" {
		model = string(defaultEmbedModel)
	}
	dim := defaultEmbedDim
	if d, ok := opts["dimension"].(int); ok && d > 0 {
		dim = d
	}

	cfg := openaisdk.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Embedder{client: openaisdk.NewClientWithConfig(cfg), modelID: model, dim: dim}, nil
}

// Dimension returns the embedding vector length this provider produces.
func (e *Embedder) Dimension() int { return e.dim }

// Embed converts text to a fixed-dimension embedding vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openaisdk.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openaisdk.EmbeddingModel(e.modelID),
	})
	if err != nil {
		return nil, aiclient.ClassifyHTTPError("aiclient.openai.Embed", 0, err)
	}
	if len(resp.Data) == 0 {
		return nil, aiclient.ClassifyStreamError("aiclient.openai.Embed", errors.New("no embedding returned"))
	}
	return resp.Data[0].Embedding, nil
}

func init() {
	aiclient.GetRegistry().RegisterChat("openai", func(opts map[string]any) (iface.ChatModel, error) {
		return New(opts)
	})
	aiclient.GetRegistry().RegisterEmbed("openai", func(opts map[string]any) (iface.Embedder, error) {
		return NewEmbedder(opts)
	})
}
