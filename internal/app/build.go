package app

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/ent0n29/gearhead/internal/archive"
	"github.com/ent0n29/gearhead/internal/chat"
	"github.com/ent0n29/gearhead/internal/completion"
	"github.com/ent0n29/gearhead/internal/config"
	"github.com/ent0n29/gearhead/internal/convo"
	"github.com/ent0n29/gearhead/internal/httpapi"
	"github.com/ent0n29/gearhead/internal/observability"
)

type BuildResult struct {
	Config     config.Config
	Logger     *zap.Logger
	API        *httpapi.Server
	Store      *convo.Store
	Dispatcher *chat.Dispatcher
	Metrics    *observability.Metrics
	Backend    string

	// Cleanup releases the archive pool and flushes the logger.
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config) (*BuildResult, error) {
	logger, err := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store := convo.NewStore(convo.Config{
		MaxMessages: cfg.MemoryMaxMessages,
		Timeout:     cfg.MemoryTimeout,
		Shards:      cfg.MemoryShards,
		Logger:      logger.Named("convo"),
	})
	store.SetEvictHook(func(userID string, reason convo.EvictReason) {
		metrics.Evictions.WithLabelValues(string(reason)).Inc()
		// Sweeps refresh the gauges once through the sweep hook.
		if reason != convo.EvictSweep {
			metrics.ObserveMemory(store.Stats())
		}
		logger.Debug("conversation evicted", zap.String("user_id", userID), zap.String("reason", string(reason)))
	})
	store.SetSweepHook(func(int) {
		metrics.ObserveMemory(store.Stats())
	})

	client, err := completion.NewClient(completion.Config{
		Mode:       cfg.CompletionMode,
		APIKey:     cfg.OpenRouterAPIKey,
		BaseURL:    cfg.OpenRouterURL,
		Model:      cfg.OpenRouterModel,
		Timeout:    cfg.CompletionTimeout,
		MaxRetries: cfg.CompletionMaxRetries,
	})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("completion client init failed: %w", err)
	}

	archiveStore, err := archive.NewStore(ctx, cfg.DatabaseURL, cfg.ArchiveRedactPII)
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("archive store init failed: %w", err)
	}

	dispatcher := chat.NewDispatcher(chat.Config{
		Prefix:      cfg.BotPrefix,
		BotName:     cfg.BotName,
		MaxTokens:   cfg.CompletionMaxTokens,
		Temperature: cfg.CompletionTemperature,
	}, store, client, archiveStore, metrics, logger.Named("chat"))

	api := httpapi.New(cfg, store, dispatcher, metrics, logger.Named("http"))

	cleanup := func() error {
		var errs []string
		if err := archiveStore.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		// Sync on stderr returns EINVAL on some platforms; ignore it.
		_ = logger.Sync()
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:     cfg,
		Logger:     logger,
		API:        api,
		Store:      store,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Backend:    client.Name(),
		Cleanup:    cleanup,
	}, nil
}
