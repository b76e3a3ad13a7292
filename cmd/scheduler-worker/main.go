// Command scheduler-worker runs the Temporal worker that executes
// ScheduledCallWorkflow and its activities, per spec.md §4.10.
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
	"go.temporal.io/sdk/worker"

	"github.com/callwave/callwave/agentstore"
	"github.com/callwave/callwave/config"
	"github.com/callwave/callwave/o11y"
	"github.com/callwave/callwave/outbound"
	"github.com/callwave/callwave/scheduler"
	"github.com/callwave/callwave/state"
	stateinmemory "github.com/callwave/callwave/state/providers/inmemory"
	statepostgres "github.com/callwave/callwave/state/providers/postgres"
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

	credentialKey, err := hex.DecodeString(cfg.Telephony.CredentialKeyHex)
	if err != nil {
		log.Fatalf("invalid telephony.credential_key_hex: %v", err)
	}

	agents := agentstore.New(kvStore)
	credentials := twilio.NewStateCredentialStore(kvStore, credentialKey)
	jobs := scheduler.NewStateJobStore(kvStore)

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

	w := worker.New(temporalClient, scheduler.TaskQueue, worker.Options{})
	activities := scheduler.NewActivities(outboundController, jobs, logger)
	scheduler.RegisterWorker(w, activities)

	logger.Info(ctx, "starting scheduler worker", "task_queue", scheduler.TaskQueue)
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatalf("scheduler worker exited with error: %v", err)
	}
}

func newKVStore(ctx context.Context, cfg config.Config) (state.Store, error) {
	if cfg.Database.DSN == "" {
		return stateinmemory.New(), nil
	}
	return statepostgres.New(ctx, statepostgres.Config{DSN: cfg.Database.DSN})
}
