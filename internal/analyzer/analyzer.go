// Package analyzer runs the pipeline for one email: extract signals, fetch a
// snapshot per symbol, reconcile.
package analyzer

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"TLISentinel/internal/collector"
	"TLISentinel/internal/extractor"
	"TLISentinel/internal/model"
	"TLISentinel/internal/strategy"
)

// Options tunes the fetch fan-out.
type Options struct {
	MaxConcurrency int
	FetchTimeout   time.Duration
}

// Analyzer is safe for concurrent use.
type Analyzer struct {
	provider collector.Provider
	opts     Options
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates an Analyzer fetching market data from provider.
func New(provider collector.Provider, opts Options) *Analyzer {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 4
	}
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = 20 * time.Second
	}
	return &Analyzer{
		provider: provider,
		opts:     opts,
		logger:   log.With().Str("component", "analyzer").Logger(),
		now:      time.Now,
	}
}

// Analyze extracts every signal from text and reconciles each against fresh
// market data. Results keep extraction order. It only fails when ctx is done.
func (a *Analyzer) Analyze(ctx context.Context, text string) ([]model.Analysis, error) {
	signals := extractor.Extract(text)
	a.logger.Debug().Int("signals", len(signals)).Msg("extracted")
	return a.Refresh(ctx, signals)
}

// Refresh re-fetches market data for already extracted signals and
// reconciles them again.
func (a *Analyzer) Refresh(ctx context.Context, signals []model.ExtractedSignal) ([]model.Analysis, error) {
	out := make([]model.Analysis, len(signals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.MaxConcurrency)
	for i, sig := range signals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			snap := a.fetch(gctx, sig.Symbol)
			out[i] = model.Analysis{
				Signal:         sig,
				Snapshot:       snap,
				Recommendation: strategy.Reconcile(sig, snap),
				AnalyzedAt:     a.now(),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// fetch never fails: a provider error yields an empty snapshot, which
// reconciliation treats as missing market data.
func (a *Analyzer) fetch(ctx context.Context, symbol string) model.MarketSnapshot {
	ctx, cancel := context.WithTimeout(ctx, a.opts.FetchTimeout)
	defer cancel()

	snap, err := a.provider.Fetch(ctx, symbol)
	if err != nil || snap == nil {
		a.logger.Warn().Err(err).Str("symbol", symbol).Str("provider", a.provider.Name()).
			Msg("market data unavailable, continuing without it")
		return model.MarketSnapshot{Symbol: symbol, MACD: model.MACDUnknown, FetchedAt: a.now()}
	}
	return *snap
}
