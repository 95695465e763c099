package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sidpendyala/marketmaker/internal/ai"
	"github.com/sidpendyala/marketmaker/internal/config"
	"github.com/sidpendyala/marketmaker/internal/crypto"
	"github.com/sidpendyala/marketmaker/internal/engine"
	"github.com/sidpendyala/marketmaker/internal/marketplace"
	"github.com/sidpendyala/marketmaker/internal/notify"
	"github.com/sidpendyala/marketmaker/internal/store"
	"github.com/sidpendyala/marketmaker/pkg/logger"
)

// deps holds the wired application components shared by the serve and
// scan commands.
type deps struct {
	cfg     *config.Config
	log     *slog.Logger
	store   *store.PostgresStore
	codec   *crypto.Codec
	market  marketplace.Client
	advisor ai.Advisor
	agent   *engine.Agent
	scanner *engine.Scanner
}

func (d *deps) close() {
	if d.store != nil {
		d.store.Close()
	}
}

// buildDeps loads the config and wires the store, crypto codec,
// marketplace client, optional AI advisor, and scan engine.
func buildDeps(ctx context.Context) (*deps, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	st, err := store.NewPostgresStore(ctx, cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	codec, err := crypto.New(cfg.Security.EncryptionSecret)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("initializing query codec: %w", err)
	}

	limiter := marketplace.NewRateLimiter(
		cfg.Marketplace.RateLimit.PerSecond,
		cfg.Marketplace.RateLimit.Burst,
		cfg.Marketplace.RateLimit.DailyLimit,
	)
	market := marketplace.NewRapidAPIClient(
		cfg.Marketplace.APIKey,
		marketplace.WithRateLimiter(limiter),
	)

	var advisor ai.Advisor
	if cfg.AI.APIKey != "" {
		cache := ai.NewRefinementCache(ai.NewFileCacheStore(cfg.AI.CachePath))
		gemini, err := ai.NewGeminiAdvisor(ctx, cfg.AI.APIKey, cfg.AI.Model,
			ai.WithCache(cache),
			ai.WithLogger(log),
		)
		if err != nil {
			st.Close()
			return nil, fmt.Errorf("initializing AI advisor: %w", err)
		}
		advisor = gemini
	} else {
		log.Info("no AI API key configured, query refinement and brand lookup disabled")
	}

	var notifier notify.Notifier = notify.NewNoOpNotifier(log)
	if cfg.Notify.DiscordWebhookURL != "" {
		notifier = notify.NewDiscordNotifier(cfg.Notify.DiscordWebhookURL)
	}

	pipeline := engine.NewPipeline(market, advisor, log)
	agent := engine.NewAgent(pipeline, advisor, codec, log)
	scanner := engine.NewScanner(st, codec, agent, log, engine.WithNotifier(notifier))

	return &deps{
		cfg:     cfg,
		log:     log,
		store:   st,
		codec:   codec,
		market:  market,
		advisor: advisor,
		agent:   agent,
		scanner: scanner,
	}, nil
}
