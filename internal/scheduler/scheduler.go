// Package scheduler triggers analysis passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/pipeline"
)

// PassRunner runs one analysis pass.
type PassRunner interface {
	Run(ctx context.Context, mode string) (*pipeline.PassReport, error)
}

// Scheduler runs passes on a six-field (seconds first) cron spec. A tick
// that fires while the previous pass is still running is skipped.
type Scheduler struct {
	cron   *cron.Cron
	runner PassRunner
	mode   string
	log    *logger.Logger
	ctx    context.Context

	mu     sync.Mutex
	passes int
}

func New(ctx context.Context, runner PassRunner, mode string, log *logger.Logger) *Scheduler {
	cl := cronLogger{ctx: ctx, log: log}
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		runner: runner,
		mode:   mode,
		log:    log,
		ctx:    ctx,
	}
}

// Register adds the pass job under spec.
func (s *Scheduler) Register(spec string) error {
	if _, err := s.cron.AddFunc(spec, s.tick); err != nil {
		return fmt.Errorf("register pass schedule %q: %w", spec, err)
	}
	s.log.Info(s.ctx, "Pass schedule registered", "cron", spec, "mode", s.mode)
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info(s.ctx, "Scheduler started")
}

// Stop prevents further ticks and waits for a running pass to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info(s.ctx, "Scheduler stopped", "passes", s.Passes())
}

// RunNow runs a pass immediately on the caller's goroutine.
func (s *Scheduler) RunNow() {
	s.tick()
}

// Passes returns how many passes this scheduler has started.
func (s *Scheduler) Passes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.passes
}

func (s *Scheduler) tick() {
	if s.ctx.Err() != nil {
		return
	}
	s.mu.Lock()
	s.passes++
	s.mu.Unlock()

	report, err := s.runner.Run(s.ctx, s.mode)
	if err != nil {
		s.log.ErrorWithErr(s.ctx, "Analysis pass failed", err)
		return
	}
	s.log.Info(s.ctx, "Analysis pass completed",
		"run_id", report.RunID,
		"significant", report.Significant,
		"published", report.Published,
		"duration", report.Duration)
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct {
	ctx context.Context
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debug(c.ctx, "cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.ErrorWithErr(c.ctx, "cron: "+msg, err, keysAndValues...)
}
