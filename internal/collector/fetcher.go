package collector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"TLISentinel/internal/model"
)

// Provider fetches a market snapshot for one symbol. A snapshot may be
// partially populated; absent fields are left nil.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, symbol string) (*model.MarketSnapshot, error)
}

// ChainProvider asks each provider in turn and fills only the fields earlier
// providers left absent. It stops early once every field is present.
type ChainProvider struct {
	Providers []Provider
}

// NewChainProvider creates a ChainProvider over providers, in priority order.
func NewChainProvider(providers ...Provider) *ChainProvider {
	return &ChainProvider{Providers: providers}
}

func (c *ChainProvider) Name() string {
	names := make([]string, len(c.Providers))
	for i, p := range c.Providers {
		names[i] = p.Name()
	}
	return "chain(" + strings.Join(names, ",") + ")"
}

// Fetch fails only when every provider failed.
func (c *ChainProvider) Fetch(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	var (
		merged *model.MarketSnapshot
		errs   []error
	)
	for _, p := range c.Providers {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		snap, err := p.Fetch(ctx, symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Name(), err))
			continue
		}
		if merged == nil {
			merged = snap
		} else {
			merged.Merge(snap)
		}
		if complete(merged) {
			break
		}
	}
	if merged == nil {
		if len(errs) == 0 {
			return nil, fmt.Errorf("no providers configured for %s", symbol)
		}
		return nil, errors.Join(errs...)
	}
	merged.Symbol = symbol
	if merged.FetchedAt.IsZero() {
		merged.FetchedAt = time.Now()
	}
	return merged, nil
}

func complete(s *model.MarketSnapshot) bool {
	return s.Price != nil && s.ChangePct != nil && s.Volume != nil &&
		s.MarketCap != nil && s.PERatio != nil && s.RSI != nil &&
		s.MACDOrUnknown() != model.MACDUnknown &&
		s.MA50 != nil && s.MA200 != nil && s.High52w != nil && s.Low52w != nil
}
