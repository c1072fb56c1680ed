package analysis

import (
	"context"

	"golang.org/x/sync/errgroup"

	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/types"
)

// SymbolAnalyzer produces one Outcome per symbol.
type SymbolAnalyzer interface {
	Analyze(ctx context.Context, symbol string) Outcome
}

// Selector runs an analyzer over a symbol universe and keeps the successes.
type Selector struct {
	analyzer    SymbolAnalyzer
	concurrency int
	log         *logger.Logger
}

// NewSelector creates a selector. concurrency below 2 analyzes symbols one
// at a time.
func NewSelector(analyzer SymbolAnalyzer, concurrency int, log *logger.Logger) *Selector {
	return &Selector{analyzer: analyzer, concurrency: concurrency, log: log}
}

// Outcomes analyzes every symbol and returns the outcomes in input order.
func (s *Selector) Outcomes(ctx context.Context, symbols []string) []Outcome {
	outcomes := make([]Outcome, len(symbols))

	if s.concurrency < 2 {
		for i, sym := range symbols {
			s.log.Info(ctx, "Analyzing symbol", "symbol", sym)
			outcomes[i] = s.analyzer.Analyze(ctx, sym)
		}
		return outcomes
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, sym := range symbols {
		g.Go(func() error {
			s.log.Info(ctx, "Analyzing symbol", "symbol", sym)
			outcomes[i] = s.analyzer.Analyze(ctx, sym)
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// Select returns the records of the symbols that analyzed successfully, in
// the order the symbols were given. Skips and failures are logged.
func (s *Selector) Select(ctx context.Context, symbols []string) []types.AnalysisRecord {
	return s.Records(ctx, s.Outcomes(ctx, symbols))
}

// Records logs each outcome and collects the successful records.
func (s *Selector) Records(ctx context.Context, outcomes []Outcome) []types.AnalysisRecord {
	records := make([]types.AnalysisRecord, 0, len(outcomes))
	for _, o := range outcomes {
		switch o.Status {
		case StatusOK:
			s.log.Debug(ctx, "Analysis complete", "symbol", o.Symbol, "record", *o.Record)
			records = append(records, *o.Record)
		case StatusSkipped:
			s.log.Info(ctx, "No significant data found for symbol", "symbol", o.Symbol, "reason", o.Err)
		case StatusFailed:
			s.log.ErrorWithErr(ctx, "Symbol analysis failed", o.Err, "symbol", o.Symbol)
		}
	}
	s.log.Info(ctx, "Completed symbol analysis", "requested", len(outcomes), "significant", len(records))
	return records
}
