package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"crypto-llm-analyst/internal/pipeline"
	"crypto-llm-analyst/internal/scheduler"
	"crypto-llm-analyst/internal/store"
	"crypto-llm-analyst/internal/trace"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	var (
		configPath = flag.String("config", envOr("CONFIG_PATH", "config.yaml"), "path to the YAML config")
		mode       = flag.String("mode", "", "run mode: "+strings.Join(store.ValidModes, ", "))
		schedule   = flag.String("schedule", "", "six-field cron spec; empty runs a single pass")
		runNow     = flag.Bool("run-now", false, "with -schedule, also run one pass at startup")
	)
	flag.Parse()

	log, err := initializeSystem()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(sctx)
	}()

	cfg, err := loadConfig(ctx, log, *configPath)
	if err != nil {
		return 1
	}
	if *mode != "" {
		if !store.IsValidMode(*mode) {
			log.Error(ctx, "Invalid mode", "mode", *mode, "valid", store.ValidModes)
			return 2
		}
		cfg.Mode = *mode
	}
	if *schedule != "" {
		cfg.Schedule.Cron = *schedule
	}
	cron := cfg.Schedule.Cron
	initializeTracing(ctx, cfg, log)

	p, res, err := initializePipeline(ctx, cfg, log)
	if err != nil {
		log.ErrorWithErr(ctx, "Failed to initialize", err)
		return 1
	}
	defer res.Close()

	if cron == "" {
		report, err := p.Run(ctx, cfg.Mode)
		if err != nil {
			if pipeline.IsAbort(err) {
				log.Warn(ctx, "Analysis pass aborted", "error", err)
			} else {
				log.ErrorWithErr(ctx, "Analysis pass failed", err)
			}
			return 1
		}
		log.Info(ctx, "Analysis pass completed",
			"run_id", report.RunID,
			"significant", report.Significant,
			"published", report.Published,
			"duration", report.Duration)
		return 0
	}

	sched := scheduler.New(ctx, p, cfg.Mode, log)
	if err := sched.Register(cron); err != nil {
		log.ErrorWithErr(ctx, "Invalid schedule", err)
		return 2
	}
	if *runNow {
		sched.RunNow()
	}
	sched.Start()
	log.Info(ctx, "Analyst started", "mode", cfg.Mode, "symbols", len(cfg.Symbols))

	<-ctx.Done()
	log.Info(ctx, "Shutting down...")
	sched.Stop()
	return 0
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
