// Command server runs the callwave voice-agent orchestrator's REST control
// surface and telephony-facing media/status endpoints, per spec.md §6.
package main

import (
	"context"
	"encoding/hex"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"

	"github.com/callwave/callwave/agentstore"
	"github.com/callwave/callwave/aiclient"
	_ "github.com/callwave/callwave/aiclient/providers/anthropic"
	_ "github.com/callwave/callwave/aiclient/providers/bedrock"
	_ "github.com/callwave/callwave/aiclient/providers/deepgram"
	_ "github.com/callwave/callwave/aiclient/providers/elevenlabs"
	_ "github.com/callwave/callwave/aiclient/providers/ollama"
	_ "github.com/callwave/callwave/aiclient/providers/openai"
	"github.com/callwave/callwave/callhandler"
	"github.com/callwave/callwave/config"
	"github.com/callwave/callwave/knowledge"
	"github.com/callwave/callwave/knowledge/vectorstore"
	"github.com/callwave/callwave/knowledge/vectorstore/inmemory"
	"github.com/callwave/callwave/knowledge/vectorstore/pgvector"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/outbound"
	"github.com/callwave/callwave/pool"
	"github.com/callwave/callwave/registry"
	"github.com/callwave/callwave/scheduler"
	"github.com/callwave/callwave/server"
	"github.com/callwave/callwave/state"
	statepostgres "github.com/callwave/callwave/state/providers/postgres"
	stateinmemory "github.com/callwave/callwave/state/providers/inmemory"
	"github.com/callwave/callwave/telephony/twilio"
)

func main() {
	if err := config.LoadConfig(); err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	cfg := config.Cfg

	logger := o11y.NewLogger(o11y.WithLogLevel(cfg.LogLevel))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info(ctx, "shutdown signal received")
		cancel()
	}()

	kvStore, err := newKVStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open state store: %v", err)
	}
	defer kvStore.Close()

	vectorStore, err := newVectorStore(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to open vector store: %v", err)
	}

	credentialKey, err := hex.DecodeString(cfg.Telephony.CredentialKeyHex)
	if err != nil {
		log.Fatalf("invalid telephony.credential_key_hex: %v", err)
	}

	agents := agentstore.New(kvStore)
	credentials := twilio.NewStateCredentialStore(kvStore, credentialKey)
	jobs := scheduler.NewStateJobStore(kvStore)

	embedder, err := aiclient.NewEmbedder(cfg.Embeddings.Provider, map[string]any{
		"api_key": cfg.Embeddings.OpenAI.APIKey,
		"model":   cfg.Embeddings.OpenAI.Model,
	})
	if err != nil {
		log.Fatalf("failed to build embedder: %v", err)
	}
	retriever := knowledge.NewRetriever(embedder, vectorStore,
		knowledge.WithTopK(cfg.Retrieval.TopK),
		knowledge.WithMinScore(cfg.Retrieval.MinScore))

	telephonyClient := twilio.NewClient(credentials, cfg.Telephony.PublicURL, twilio.WithLogger(logger))

	outboundController := outbound.New(telephonyClient, agents, cfg.Telephony.FromNumber,
		outbound.WithMaxConcurrent(cfg.Outbound.MaxConcurrent),
		outbound.WithRateLimiter(outbound.NewRateLimiter(cfg.Outbound.RatePerSec, cfg.Outbound.RatePerSec, time.Duration(cfg.Outbound.MinSpacingMs)*time.Millisecond)),
		outbound.WithCircuitBreaker(outbound.NewCircuitBreaker(cfg.Outbound.Breaker.Threshold, time.Duration(cfg.Outbound.Breaker.OpenMs)*time.Millisecond)),
		outbound.WithLogger(logger))

	temporalClient, err := client.Dial(client.Options{HostPort: cfg.Temporal.HostPort, Namespace: cfg.Temporal.Namespace})
	if err != nil {
		log.Fatalf("failed to connect to temporal: %v", err)
	}
	defer temporalClient.Close()
	schedulerClient := scheduler.NewClient(temporalClient)

	sttPool := pool.New("stt",
		pool.WithCapacity(cfg.Pool.MaxConnections),
		pool.WithMaxQueueDepth(cfg.Pool.MaxQueueSize),
		pool.WithAcquireTimeout(time.Duration(cfg.Pool.QueueTimeoutMs)*time.Millisecond))

	sessions := registry.New()

	srv := server.New(cfg, server.Deps{
		Outbound:  outboundController,
		Scheduler: schedulerClient,
		Jobs:      jobs,
		Sessions:  sessions,
		STTPool:   sttPool,
		Logger:    logger,
	})

	statusHandler := twilio.NewStatusWebhookHandler([]byte(cfg.Telephony.WebhookSecret), outboundController, logger)
	srv.RegisterTelephonyStatusHandler(statusHandler)

	mediaHandler := callhandler.New(cfg, outboundController, sessions, retriever, sttPool, logger)
	srv.RegisterMediaHandler(mediaHandler)

	logger.Info(ctx, "starting callwave orchestrator")
	if err := srv.Start(ctx); err != nil {
		log.Fatalf("server exited with error: %v", err)
	}
}

func newKVStore(ctx context.Context, cfg config.Config) (state.Store, error) {
	if cfg.Database.DSN == "" {
		return stateinmemory.New(), nil
	}
	return statepostgres.New(ctx, statepostgres.Config{DSN: cfg.Database.DSN})
}

func newVectorStore(ctx context.Context, cfg config.Config) (vectorstore.Store, error) {
	if cfg.Database.VectorStore == "pgvector" {
		return pgvector.New(ctx, pgvector.Config{DSN: cfg.Database.DSN, EmbeddingDim: cfg.Retrieval.EmbeddingDim})
	}
	return inmemory.New(), nil
}
