package collector

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"TLISentinel/internal/model"
)

// MockProvider returns controllable fixed snapshots for development and
// testing. Symbols without an entry get Default, or an error when Default is
// nil.
type MockProvider struct {
	Snapshots map[string]model.MarketSnapshot
	Default   *model.MarketSnapshot
	Errors    map[string]error

	mu    sync.Mutex
	calls map[string]int
}

func (m *MockProvider) Name() string { return "mock" }

func (m *MockProvider) Fetch(_ context.Context, symbol string) (*model.MarketSnapshot, error) {
	m.mu.Lock()
	if m.calls == nil {
		m.calls = make(map[string]int)
	}
	m.calls[symbol]++
	m.mu.Unlock()

	if err, ok := m.Errors[symbol]; ok {
		return nil, err
	}
	snap, ok := m.Snapshots[symbol]
	if !ok {
		if m.Default == nil {
			return nil, fmt.Errorf("mock: no snapshot for %s", symbol)
		}
		snap = *m.Default
	}
	snap.Symbol = symbol
	if snap.Source == "" {
		snap.Source = m.Name()
	}
	if snap.FetchedAt.IsZero() {
		snap.FetchedAt = time.Now()
	}
	return &snap, nil
}

// Calls reports how many times symbol was fetched.
func (m *MockProvider) Calls(symbol string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[symbol]
}

// NewMockProvider creates a MockProvider whose default snapshot is a simple
// uptrend around price, with every field populated.
func NewMockProvider(price float64) *MockProvider {
	return &MockProvider{
		Default: &model.MarketSnapshot{
			Price:     model.Float(price),
			ChangePct: model.Float(0.8),
			Volume:    model.Float(1000000),
			MarketCap: model.Float(price * 1e9),
			PERatio:   model.Float(25),
			RSI:       model.Float(55),
			MACD:      model.MACDBullish,
			MA50:      model.Float(price * 0.95),
			MA200:     model.Float(price * 0.85),
			High52w:   model.Float(price * 1.2),
			Low52w:    model.Float(price * 0.7),
		},
	}
}

// NewProvider builds the provider stack named by names ("yahoo", "finnhub",
// "mock"), chained in the order given.
func NewProvider(names []string, finnhubKey string, opts HTTPOptions) (Provider, error) {
	var providers []Provider
	for _, n := range names {
		switch strings.ToLower(strings.TrimSpace(n)) {
		case "yahoo":
			providers = append(providers, NewYahooProvider(opts))
		case "finnhub":
			if finnhubKey == "" {
				return nil, fmt.Errorf("finnhub provider requires an API key")
			}
			providers = append(providers, NewFinnhubProvider(finnhubKey, opts))
		case "mock":
			providers = append(providers, NewMockProvider(100))
		default:
			return nil, fmt.Errorf("unknown market data provider %q", n)
		}
	}
	switch len(providers) {
	case 0:
		return nil, fmt.Errorf("no market data providers configured")
	case 1:
		return providers[0], nil
	}
	return NewChainProvider(providers...), nil
}
