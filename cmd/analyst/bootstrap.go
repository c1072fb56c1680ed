package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"crypto-llm-analyst/internal/api"
	"crypto-llm-analyst/internal/archive"
	"crypto-llm-analyst/internal/auditlog"
	"crypto-llm-analyst/internal/cache"
	"crypto-llm-analyst/internal/chart"
	"crypto-llm-analyst/internal/history"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/llm"
	"crypto-llm-analyst/internal/llm/claude"
	"crypto-llm-analyst/internal/llm/llmobs"
	"crypto-llm-analyst/internal/llm/noop"
	"crypto-llm-analyst/internal/llm/openai"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/market/binance"
	"crypto-llm-analyst/internal/market/coingecko"
	"crypto-llm-analyst/internal/market/marketobs"
	"crypto-llm-analyst/internal/market/sentiment"
	"crypto-llm-analyst/internal/news"
	"crypto-llm-analyst/internal/notify"
	"crypto-llm-analyst/internal/pipeline"
	"crypto-llm-analyst/internal/reconcile"
	"crypto-llm-analyst/internal/store"
	"crypto-llm-analyst/internal/trace"
)

// initializeSystem loads .env, then sets up the logger.
func initializeSystem() (*logger.Logger, error) {
	_ = godotenv.Load()

	log, err := logger.Init()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}

// initializeTracing starts the tracer once the run mode and schedule are
// final, so the span resource names the deployment actually running.
func initializeTracing(ctx context.Context, cfg *store.Config, log *logger.Logger) {
	if err := trace.Init(trace.OptionsFromConfig(cfg, version)); err != nil {
		log.Warn(ctx, "Failed to initialize tracer", "error", err)
	}
}

func loadConfig(ctx context.Context, log *logger.Logger, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		log.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// resources are the long-lived handles closed at shutdown.
type resources struct {
	history *history.Store
	redis   *redis.Client
}

func (r *resources) Close() {
	if r.history != nil {
		_ = r.history.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}
}

// initializePipeline wires every collaborator of a pass.
func initializePipeline(ctx context.Context, cfg *store.Config, log *logger.Logger) (*pipeline.Pipeline, *resources, error) {
	res := &resources{}

	hist, err := history.Open(ctx, cfg.History.Driver, cfg.History.DSN, log)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	res.history = hist

	deps := pipeline.Deps{
		Market:    initializeMarket(cfg, log),
		Prices:    initializePrices(ctx, cfg, log, res),
		Sentiment: sentiment.New(log),
		Headlines: initializeNews(cfg, log),
		Model:     initializeModel(ctx, cfg, log),
		Splitter:  reconcile.New(cfg.Reconcile.Strategy, log),
		Charts:    chart.New(cfg.Charts.Dir, cfg.Candles.ChartTail, log),
		Notifier:  initializeNotifier(ctx, cfg, log),
		History:   hist,
		Audit:     auditlog.New(cfg.AuditLog.Dir),
	}
	if cfg.Archive.Enabled {
		deps.Archive = archive.New(cfg.Archive.Dir, log)
	}

	return pipeline.New(cfg, deps, log), res, nil
}

func initializeMarket(cfg *store.Config, log *logger.Logger) interfaces.MarketData {
	b := binance.New(cfg.BinanceAPIKey, api.WithLogger(log))
	return marketobs.Wrap(b, log)
}

// initializePrices returns the CoinGecko client, behind the Redis cache when
// one is configured and reachable.
func initializePrices(ctx context.Context, cfg *store.Config, log *logger.Logger, res *resources) interfaces.PriceSource {
	cg := coingecko.New(api.WithLogger(log))
	if cfg.Cache.RedisAddr == "" {
		return cg
	}

	client, err := cache.Connect(ctx, cfg.Cache.RedisAddr)
	if err != nil {
		log.Warn(ctx, "Redis unavailable, price cache disabled", "addr", cfg.Cache.RedisAddr, "error", err)
		return cg
	}
	res.redis = client
	log.Info(ctx, "Price cache enabled", "addr", cfg.Cache.RedisAddr, "ttl", cfg.Cache.TTL)
	return cache.NewPriceCache(cg, client, cfg.Cache.TTL, log)
}

func initializeNews(cfg *store.Config, log *logger.Logger) interfaces.HeadlineSource {
	if !cfg.News.Enabled {
		return nil
	}
	scraper := news.NewScraper(cfg.News.Timeout, log, news.DefaultSources()...)
	return news.NewService(scraper, 30*time.Minute, log)
}

// initializeModel picks the provider client and wraps it with observability.
func initializeModel(ctx context.Context, cfg *store.Config, log *logger.Logger) interfaces.Model {
	settings := llm.SettingsFromConfig(cfg)

	var model interfaces.Model
	switch cfg.LLM.Provider {
	case "OPENAI":
		model = openai.New(os.Getenv("OPENAI_API_KEY"), settings)
	case "CLAUDE":
		var opts []api.ClientOption
		if endpoint := os.Getenv("CLAUDE_API_ENDPOINT"); endpoint != "" {
			opts = append(opts, api.WithBaseURL(endpoint))
		}
		model = claude.New(os.Getenv("CLAUDE_API_KEY"), settings, opts...)
	default:
		model = noop.New(log)
		log.Warn(ctx, "No LLM provider configured - using Noop model (always Hold)")
	}

	return llmobs.Wrap(model, log)
}

func initializeNotifier(ctx context.Context, cfg *store.Config, log *logger.Logger) interfaces.Notifier {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.ChatID == "" {
		if store.ModeSendsNotifications(cfg.Mode) {
			log.Warn(ctx, "TELEGRAM_BOT_TOKEN or TELEGRAM_CHAT_ID missing - messages will only be logged")
		}
		return notify.NewNoop(log)
	}

	var opts []notify.TelegramOption
	if cfg.Telegram.ProxyURL != "" {
		opts = append(opts, notify.WithProxy(cfg.Telegram.ProxyURL))
	}
	return notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log, opts...)
}
