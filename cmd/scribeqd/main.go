// Package main provides scribeqd, the transcription job daemon: it owns
// the job store, the model queues and worker pools, the watchdog, and
// the HTTP API.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lhartmann/scribeq/internal/config"
	"github.com/lhartmann/scribeq/internal/dispatch"
	"github.com/lhartmann/scribeq/internal/modelcache"
	"github.com/lhartmann/scribeq/internal/pipeline"
	"github.com/lhartmann/scribeq/internal/queue"
	"github.com/lhartmann/scribeq/internal/router"
	"github.com/lhartmann/scribeq/internal/server"
	"github.com/lhartmann/scribeq/internal/store"
	"github.com/lhartmann/scribeq/internal/transcribe"
	"github.com/lhartmann/scribeq/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer func() { _ = cleanup() }()
	slog.SetDefault(logger)

	logger.Info("starting scribeqd", "listen_addr", cfg.ListenAddr)

	// Job store: SurrealDB when configured, in-memory otherwise.
	var jobStore store.Store
	if cfg.SurrealDBURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		client, err := store.NewClient(ctx, store.SurrealConfig{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}, logger)
		if err != nil {
			cancel()
			logger.Error("connecting to SurrealDB failed", "error", err)
			os.Exit(1)
		}
		if err := client.InitSchema(ctx); err != nil {
			cancel()
			logger.Error("initializing schema failed", "error", err)
			os.Exit(1)
		}
		cancel()
		defer func() { _ = client.Close(context.Background()) }()
		jobStore = store.NewSurreal(client)
		logger.Info("using SurrealDB job store", "url", cfg.SurrealDBURL)
	} else {
		jobStore = store.NewMemory()
		logger.Info("using in-memory job store")
	}

	// Queues and worker pools, one per model family.
	broker := queue.NewBroker()
	families := map[string]string{
		router.ModelFast:  cfg.ModelFastPath,
		router.ModelLarge: cfg.ModelLargePath,
	}
	pools := make([]*worker.Pool, 0, len(families))
	for family, modelPath := range families {
		q := broker.Register(family, cfg.QueueDepth)
		svc := transcribe.NewWhisperCPP(family, modelPath)
		cache, err := modelcache.New(cfg.ModelCacheSize,
			whisperLoader(svc, logger), nil)
		if err != nil {
			logger.Error("creating model cache failed", "error", err)
			os.Exit(1)
		}
		pools = append(pools, worker.NewPool(worker.PoolConfig{
			Family:       family,
			Queue:        q,
			Broker:       broker,
			Store:        jobStore,
			Service:      svc,
			Models:       cache,
			JobRoot:      cfg.JobRoot,
			HeartbeatTTL: cfg.HeartbeatTTL,
			Logger:       logger,
		}))
	}
	for _, p := range pools {
		p.Start()
	}

	// Watchdog: fail jobs whose worker died. Sweep once at startup to
	// clean up after a daemon crash, then continuously.
	watchdog := worker.NewWatchdog(jobStore, cfg.HeartbeatTTL, logger)
	watchdog.Sweep(context.Background())
	watchdog.Start()

	dispatcher := dispatch.New(jobStore, broker, cfg.DefaultModel, pipelineConfig(cfg), logger)
	srv := server.New(cfg.ListenAddr, dispatcher, jobStore, broker, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-errCh:
		logger.Error("http server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}

	broker.Close()
	for _, p := range pools {
		p.Stop(30 * time.Second)
	}
	watchdog.Stop(5 * time.Second)
	logger.Info("scribeqd stopped")
}

// pipelineConfig builds the daemon-default enhancement pipeline from the
// environment. The kill-switch or an empty component list disables it.
func pipelineConfig(cfg config.Config) pipeline.Config {
	params := pipeline.DefaultParams()
	params.VADAggressiveness = cfg.VADAggressiveness
	params.RefineWindowMS = cfg.RefineWindowMS
	params.SplitMaxSeconds = cfg.SplitMaxSeconds
	params.SplitMaxChars = cfg.SplitMaxChars
	params.MergeMinSeconds = cfg.MergeMinSeconds

	components := cfg.PipelineComponents
	if !cfg.EnableEnhancements {
		components = nil
	}
	return pipeline.Config{Components: components, Params: params}
}

// whisperLoader verifies the model file exists and records it resident.
// whisper.cpp loads the weights per invocation; the cache bounds how many
// families a daemon advertises as warm.
func whisperLoader(svc transcribe.Service, logger *slog.Logger) modelcache.Loader {
	return func(model string) (modelcache.Handle, error) {
		info := svc.ModelInfo()
		if info.ModelPath != "" {
			if _, err := os.Stat(info.ModelPath); err != nil {
				return nil, err
			}
		}
		logger.Info("model resident", "model", model, "path", info.ModelPath)
		return info, nil
	}
}
