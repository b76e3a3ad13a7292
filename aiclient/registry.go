// Package aiclient provides factories for the streaming STT, chat LLM, TTS,
// and embeddings adapters the Voice Session and Knowledge Retrieval
// components consume. Each concern has its own provider registry, following
// the same registration-by-name pattern for every concern.
package aiclient

import (
	"fmt"
	"sync"

	"github.com/callwave/callwave/aiclient/iface"
	"github.com/callwave/callwave/errs"
)

// ChatFactory constructs a ChatModel from provider-specific options.
type ChatFactory func(opts map[string]any) (iface.ChatModel, error)

// STTFactory constructs an STTStreamer from provider-specific options.
type STTFactory func(opts map[string]any) (iface.STTStreamer, error)

// TTSFactory constructs a TTSStreamer from provider-specific options.
type TTSFactory func(opts map[string]any) (iface.TTSStreamer, error)

// EmbedFactory constructs an Embedder from provider-specific options.
type EmbedFactory func(opts map[string]any) (iface.Embedder, error)

// Registry holds provider factories for every AI client concern.
type Registry struct {
	mu    sync.RWMutex
	chat  map[string]ChatFactory
	stt   map[string]STTFactory
	tts   map[string]TTSFactory
	embed map[string]EmbedFactory
}

var (
	globalRegistry *Registry
	registryOnce   sync.Once
)

// GetRegistry returns the global AI client registry instance.
func GetRegistry() *Registry {
	registryOnce.Do(func() {
		globalRegistry = &Registry{
			chat:  make(map[string]ChatFactory),
			stt:   make(map[string]STTFactory),
			tts:   make(map[string]TTSFactory),
			embed: make(map[string]EmbedFactory),
		}
	})
	return globalRegistry
}

// RegisterChat registers a chat LLM provider factory.
func (r *Registry) RegisterChat(name string, factory ChatFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[name] = factory
}

// RegisterSTT registers a streaming STT provider factory.
func (r *Registry) RegisterSTT(name string, factory STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterTTS registers a streaming TTS provider factory.
func (r *Registry) RegisterTTS(name string, factory TTSFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tts[name] = factory
}

// RegisterEmbed registers an embeddings provider factory.
func (r *Registry) RegisterEmbed(name string, factory EmbedFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.embed[name] = factory
}

// NewChatModel constructs a registered chat LLM provider by name.
func NewChatModel(providerName string, opts map[string]any) (iface.ChatModel, error) {
	r := GetRegistry()
	r.mu.RLock()
	factory, ok := r.chat[providerName]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New("aiclient.NewChatModel", errs.Validation, fmt.Sprintf("chat provider %q not registered", providerName))
	}
	return factory(opts)
}

// NewSTTStreamer constructs a registered streaming STT provider by name.
func NewSTTStreamer(providerName string, opts map[string]any) (iface.STTStreamer, error) {
	r := GetRegistry()
	r.mu.RLock()
	factory, ok := r.stt[providerName]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New("aiclient.NewSTTStreamer", errs.Validation, fmt.Sprintf("stt provider %q not registered", providerName))
	}
	return factory(opts)
}

// NewTTSStreamer constructs a registered streaming TTS provider by name.
func NewTTSStreamer(providerName string, opts map[string]any) (iface.TTSStreamer, error) {
	r := GetRegistry()
	r.mu.RLock()
	factory, ok := r.tts[providerName]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New("aiclient.NewTTSStreamer", errs.Validation, fmt.Sprintf("tts provider %q not registered", providerName))
	}
	return factory(opts)
}

// NewEmbedder constructs a registered embeddings provider by name.
func NewEmbedder(providerName string, opts map[string]any) (iface.Embedder, error) {
	r := GetRegistry()
	r.mu.RLock()
	factory, ok := r.embed[providerName]
	r.mu.RUnlock()
	if !ok {
		return nil, errs.New("aiclient.NewEmbedder", errs.Validation, fmt.Sprintf("embeddings provider %q not registered", providerName))
	}
	return factory(opts)
}
