// Package pipeline runs one analysis pass: gather metrics, analyze the
// symbol universe, ask the model, render charts and publish one message per
// symbol.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"crypto-llm-analyst/internal/analysis"
	"crypto-llm-analyst/internal/archive"
	"crypto-llm-analyst/internal/auditlog"
	"crypto-llm-analyst/internal/interfaces"
	"crypto-llm-analyst/internal/llm"
	"crypto-llm-analyst/internal/logger"
	"crypto-llm-analyst/internal/news"
	"crypto-llm-analyst/internal/prompt"
	"crypto-llm-analyst/internal/reconcile"
	"crypto-llm-analyst/internal/store"
	"crypto-llm-analyst/internal/types"
)

// PlaceholderReasoning stands in for the model response in modes that skip
// the model call.
const PlaceholderReasoning = "Test reasoning for debugging purposes."

const noSentiment = "No sentiment data available for Bitcoin."

// Deps are the collaborators of a pass. Headlines, Audit and Archive are
// optional.
type Deps struct {
	Market    interfaces.MarketData
	Prices    interfaces.PriceSource
	Sentiment interfaces.SentimentSource
	Headlines interfaces.HeadlineSource
	Model     interfaces.Model
	Splitter  reconcile.Splitter
	Charts    interfaces.ChartRenderer
	Notifier  interfaces.Notifier
	History   interfaces.HistoryStore
	Audit     *auditlog.Log
	Archive   *archive.Archive
}

// PassReport summarises a finished pass.
type PassReport struct {
	RunID        string
	Mode         string
	Requested    int
	Significant  int
	Skipped      []string
	Failed       []string
	PromptTokens int
	Suggestion   string
	Charted      int
	Published    int
	Unmatched    []string
	Duration     time.Duration
}

type Pipeline struct {
	cfg      *store.Config
	deps     Deps
	log      *logger.Logger
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
	newRunID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock replaces the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithSleep replaces the wait between notifications.
func WithSleep(sleep func(context.Context, time.Duration) error) Option {
	return func(p *Pipeline) { p.sleep = sleep }
}

// WithRunID replaces the run id generator.
func WithRunID(gen func() string) Option {
	return func(p *Pipeline) { p.newRunID = gen }
}

func New(cfg *store.Config, deps Deps, log *logger.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		cfg:      cfg,
		deps:     deps,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		sleep:    sleepCtx,
		newRunID: func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run executes one pass in mode. It returns an error only when the pass is
// aborted (invalid mode, prompt over budget, cancellation); per-symbol and
// collaborator faults are logged and reflected in the report.
func (p *Pipeline) Run(ctx context.Context, mode string) (*PassReport, error) {
	if !store.IsValidMode(mode) {
		return nil, fmt.Errorf("unknown mode %q", mode)
	}

	report := &PassReport{RunID: p.newRunID(), Mode: mode, Requested: len(p.cfg.Symbols)}
	log := p.log.With("run_id", report.RunID, "mode", mode)
	op := log.StartOperation(ctx, "analysis_pass", "symbols", len(p.cfg.Symbols))
	ctx = op.Context()
	start := time.Now()

	err := p.run(ctx, log, mode, report)
	report.Duration = time.Since(start)
	p.auditPass(ctx, log, report, err)

	if err != nil {
		op.EndWithError(err)
		return report, err
	}
	op.End("significant", report.Significant, "published", report.Published)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, log *logger.Logger, mode string, report *PassReport) error {
	log.Info(ctx, "Starting cryptocurrency analysis")

	metrics := p.globalMetrics(ctx, log)
	prices := p.priceIndex(ctx, log)

	analyzer := analysis.NewAnalyzer(p.deps.Market, prices, p.cfg.SymbolMap, analysis.ParamsFromConfig(p.cfg), log)
	selector := analysis.NewSelector(analyzer, p.cfg.Analysis.Concurrency, log)
	outcomes := selector.Outcomes(ctx, p.cfg.Symbols)
	records := selector.Records(ctx, outcomes)
	for _, o := range outcomes {
		switch o.Status {
		case analysis.StatusSkipped:
			report.Skipped = append(report.Skipped, o.Symbol)
		case analysis.StatusFailed:
			report.Failed = append(report.Failed, o.Symbol)
		}
	}
	report.Significant = len(records)
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(records) == 0 {
		log.Warn(ctx, "No significant symbols to process")
		if mode == store.ModeChartsOnly {
			return nil
		}
	}

	text := prompt.Compose(metrics, records)
	tokens, err := prompt.CheckBudget(text, p.cfg.LLM.MaxPromptTokens)
	report.PromptTokens = tokens
	log.Info(ctx, "Token count for model input", "tokens", tokens)
	log.Debug(ctx, "Model input", "prompt", text)
	if err != nil {
		log.Warn(ctx, "Input exceeds the token limit", "tokens", tokens, "limit", p.cfg.LLM.MaxPromptTokens)
		return err
	}

	reasoning := PlaceholderReasoning
	if store.ModeCallsModel(mode) {
		suggestion, response, err := p.deps.Model.Analyze(ctx, text)
		if err != nil {
			log.ErrorWithErr(ctx, "Error during model analysis", err)
		}
		report.Suggestion, reasoning = llm.Degrade(suggestion, response, err)
	}

	charts := p.renderCharts(ctx, log)
	report.Charted = len(charts)

	blocks := p.deps.Splitter.Split(ctx, reasoning, p.cfg.Symbols)
	report.Unmatched = blocks.Unmatched(p.cfg.Symbols)
	p.auditExchange(ctx, log, report, records, text, reasoning)

	for i, c := range charts {
		if err := ctx.Err(); err != nil {
			return err
		}
		message := FormatMessage(c.symbol, blocks.Text(c.symbol, fallbackText(c.symbol)), p.now())
		p.publish(ctx, log, mode, report, c, message)

		if store.ModeSendsNotifications(mode) && i < len(charts)-1 {
			if err := p.sleep(ctx, p.cfg.Telegram.MessageDelay); err != nil {
				return err
			}
		}
	}

	p.archivePass(ctx, log, report.RunID, records)
	log.Info(ctx, "Program finished with no errors")
	return nil
}

// FormatMessage renders the published text for one symbol.
func FormatMessage(symbol, block string, at time.Time) string {
	return fmt.Sprintf("%s - %s\n\n%s (UTC)", symbol, block, at.UTC().Format("2006-01-02 15:04:05"))
}

func fallbackText(symbol string) string {
	return fmt.Sprintf("No specific analysis for %s.", symbol)
}

func (p *Pipeline) globalMetrics(ctx context.Context, log *logger.Logger) types.GlobalMetrics {
	var m types.GlobalMetrics

	if v, err := p.deps.Sentiment.FearAndGreed(ctx); err != nil {
		log.Warn(ctx, "Fear & Greed index unavailable", "error", err)
	} else {
		m.FearGreed = v
	}
	if v, err := p.deps.Prices.BitcoinDominance(ctx); err != nil {
		log.Warn(ctx, "BTC dominance unavailable", "error", err)
	} else {
		m.BTCDominance = v
	}

	m.Sentiment = noSentiment
	if s, err := p.deps.Sentiment.BitcoinSentiment(ctx); err != nil {
		log.Warn(ctx, "Bitcoin sentiment unavailable", "error", err)
	} else if s != "" {
		m.Sentiment = s
	}

	if p.deps.Headlines != nil && p.cfg.News.Enabled {
		hctx, cancel := ctx, context.CancelFunc(func() {})
		if p.cfg.News.Timeout > 0 {
			hctx, cancel = context.WithTimeout(ctx, p.cfg.News.Timeout)
		}
		articles, err := p.deps.Headlines.Headlines(hctx, p.cfg.News.MaxHeadlines)
		cancel()
		if err != nil {
			log.Warn(ctx, "Headlines unavailable", "error", err)
		} else {
			m.Headlines = news.Titles(articles)
		}
	}

	log.Info(ctx, "Global metrics gathered", "fear_greed", m.FearGreed, "btc_dominance", m.BTCDominance, "headlines", len(m.Headlines))
	return m
}

func (p *Pipeline) priceIndex(ctx context.Context, log *logger.Logger) types.PriceIndex {
	ids := make([]string, 0, len(p.cfg.Symbols))
	seen := map[string]bool{}
	for _, s := range p.cfg.Symbols {
		id, ok := p.cfg.SymbolMap[s]
		if !ok {
			log.Warn(ctx, "Symbol has no CoinGecko mapping", "symbol", s)
			continue
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return types.PriceIndex{}
	}

	prices, err := p.deps.Prices.Prices(ctx, ids)
	if err != nil {
		log.Warn(ctx, "CoinGecko prices unavailable", "error", err)
		return types.PriceIndex{}
	}
	return prices
}

type chartFile struct {
	symbol string
	path   string
}

// renderCharts fetches a fresh candle window for every monitored symbol and
// renders it. Symbols without data or with a failed render are skipped.
func (p *Pipeline) renderCharts(ctx context.Context, log *logger.Logger) []chartFile {
	var out []chartFile
	for _, sym := range p.cfg.Symbols {
		if ctx.Err() != nil {
			break
		}
		candles, err := p.deps.Market.Candles(ctx, sym, p.cfg.Candles.Interval, p.cfg.Candles.Limit)
		if err != nil || len(candles) == 0 {
			log.Warn(ctx, "Skipping chart due to missing data", "symbol", sym, "error", err)
			continue
		}
		path, err := p.deps.Charts.Render(ctx, sym, p.cfg.Candles.Interval, candles)
		if err != nil {
			log.ErrorWithErr(ctx, "Error generating chart", err, "symbol", sym)
			continue
		}
		out = append(out, chartFile{symbol: sym, path: path})
	}
	return out
}

func (p *Pipeline) publish(ctx context.Context, log *logger.Logger, mode string, report *PassReport, c chartFile, message string) {
	if _, err := p.deps.History.Insert(ctx, types.HistoryEntry{
		RunID:     report.RunID,
		Symbol:    c.symbol,
		Analysis:  message,
		ChartPath: c.path,
		CreatedAt: p.now(),
	}); err != nil {
		log.ErrorWithErr(ctx, "Failed to save history", err, "symbol", c.symbol)
	}

	if !store.ModeSendsNotifications(mode) {
		return
	}
	if err := p.deps.Notifier.Send(ctx, message, c.path); err != nil {
		log.ErrorWithErr(ctx, "Failed to send message", err, "symbol", c.symbol)
		return
	}
	report.Published++
	log.Info(ctx, "Sent message", "symbol", c.symbol)
}

func (p *Pipeline) auditExchange(ctx context.Context, log *logger.Logger, report *PassReport, records []types.AnalysisRecord, text, reasoning string) {
	if p.deps.Audit == nil {
		return
	}
	symbols := make([]string, len(records))
	for i, r := range records {
		symbols[i] = r.Symbol
	}
	if err := p.deps.Audit.AppendExchange(auditlog.ExchangeEntry{
		RunID:        report.RunID,
		Symbols:      symbols,
		PromptTokens: report.PromptTokens,
		Prompt:       text,
		Suggestion:   report.Suggestion,
		Response:     reasoning,
		Unmatched:    report.Unmatched,
	}); err != nil {
		log.Warn(ctx, "Audit log write failed", "error", err)
	}
}

func (p *Pipeline) auditPass(ctx context.Context, log *logger.Logger, report *PassReport, runErr error) {
	if p.deps.Audit == nil {
		return
	}
	entry := auditlog.PassEntry{
		RunID:       report.RunID,
		Mode:        report.Mode,
		Requested:   report.Requested,
		Significant: report.Significant,
		Skipped:     report.Skipped,
		Failed:      report.Failed,
		Published:   report.Published,
	}
	if runErr != nil {
		entry.Error = runErr.Error()
	}
	if err := p.deps.Audit.AppendPass(entry); err != nil {
		log.Warn(ctx, "Audit log write failed", "error", err)
	} else if path, err := p.deps.Audit.SummarizeDay(p.now()); err != nil {
		log.Warn(ctx, "Daily summary failed", "error", err)
	} else if path != "" {
		log.Debug(ctx, "Daily summary written", "path", path)
	}
	if n, err := p.deps.Audit.CompressOlder(p.cfg.AuditLog.RetentionDays); err != nil {
		log.Warn(ctx, "Audit log rotation failed", "error", err)
	} else if n > 0 {
		log.Info(ctx, "Compressed old audit logs", "files", n)
	}
}

func (p *Pipeline) archivePass(ctx context.Context, log *logger.Logger, runID string, records []types.AnalysisRecord) {
	if p.deps.Archive == nil {
		return
	}
	now := p.now()
	if len(records) > 0 {
		if _, err := p.deps.Archive.WriteRecords(ctx, runID, now, records); err != nil {
			log.Warn(ctx, "Archiving records failed", "error", err)
		}
	}

	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	entries, err := p.deps.History.ListSince(ctx, dayStart)
	if err != nil {
		log.Warn(ctx, "Reading history for archive failed", "error", err)
		return
	}
	if _, err := p.deps.Archive.SyncDay(ctx, now, entries); err != nil {
		log.Warn(ctx, "Archiving manifest failed", "error", err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAbort reports whether err ended a pass early by policy rather than by
// cancellation.
func IsAbort(err error) bool {
	return errors.Is(err, prompt.ErrTooLong)
}
