// Package elevenlabs adapts the ElevenLabs streaming text-to-speech API to
// the aiclient TTS contract.
package elevenlabs

import (
	"context"
	"io"
	"os"

	elevenlabs "github.com/agentplexus/go-elevenlabs"

	"github.com/callwave/callwave/aiclient"
	"github.com/callwave/callwave/aiclient/iface"
)

const defaultModel = "eleven_turbo_v2_5"

// Streamer adapts an ElevenLabs client to iface.TTSStreamer.
type Streamer struct {
	client  *elevenlabs.Client
	modelID string
}

// New constructs a Streamer. Recognized opts: "api_key", "model".
func New(opts map[string]any) (*Streamer, error) {
	apiKey, _ := opts["api_key"].(string)
	if apiKey == "" {
		apiKey = os.Getenv("ELEVENLABS_API_KEY")
	}
	model, _ := opts["model"].(string)
	if model == "" {
		model = defaultModel
	}

	client, err := elevenlabs.NewClient(elevenlabs.WithAPIKey(apiKey))
	if err != nil {
		return nil, aiclient.ClassifyHTTPError("aiclient.elevenlabs.New", 0, err)
	}

	return &Streamer{client: client, modelID: model}, nil
}

// StreamSpeech implements iface.TTSStreamer, producing PCM audio chunks for
// the requested text and voice.
func (s *Streamer) StreamSpeech(ctx context.Context, text string, voiceID string) (<-chan iface.TTSChunk, iface.CancelFunc, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	req := elevenlabs.TextToSpeechStreamRequest{
		Text:    text,
		ModelID: s.modelID,
		VoiceSettings: elevenlabs.VoiceSettings{
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
	}

	reader, err := s.client.TextToSpeechStream(streamCtx, voiceID, req)
	if err != nil {
		cancel()
		return nil, nil, aiclient.ClassifyHTTPError("aiclient.elevenlabs.StreamSpeech", 0, err)
	}

	out := make(chan iface.TTSChunk)
	go func() {
		defer close(out)
		defer reader.Close()

		buf := make([]byte, 4096)
		for {
			n, err := reader.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case out <- iface.TTSChunk{PCM: chunk}:
				case <-streamCtx.Done():
					return
				}
			}
			if err != nil {
				if err == io.EOF {
					select {
					case out <- iface.TTSChunk{Done: true}:
					case <-streamCtx.Done():
					}
					return
				}
				select {
				case out <- iface.TTSChunk{Err: aiclient.ClassifyStreamError("aiclient.elevenlabs.StreamSpeech", err)}:
				case <-streamCtx.Done():
				}
				return
			}
		}
	}()

	return out, iface.CancelFunc(cancel), nil
}

func init() {
	aiclient.GetRegistry().RegisterTTS("elevenlabs", func(opts map[string]any) (iface.TTSStreamer, error) {
		return New(opts)
	})
}
