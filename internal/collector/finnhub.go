package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"TLISentinel/internal/model"
)

const finnhubBaseURL = "https://finnhub.io"

// FinnhubProvider fills quote and fundamentals from the Finnhub REST API.
// It computes no technical indicators.
type FinnhubProvider struct {
	BaseURL string
	APIKey  string

	http *httpClient
}

// NewFinnhubProvider creates a Finnhub provider with optional proxy support.
func NewFinnhubProvider(apiKey string, opts HTTPOptions) *FinnhubProvider {
	return &FinnhubProvider{
		BaseURL: finnhubBaseURL,
		APIKey:  apiKey,
		http:    newHTTPClient(opts),
	}
}

func (f *FinnhubProvider) Name() string { return "finnhub" }

type finnhubQuote struct {
	Current       float64 `json:"c"`
	PercentChange float64 `json:"dp"`
	PrevClose     float64 `json:"pc"`
}

type finnhubMetrics struct {
	Metric struct {
		High52w   *float64 `json:"52WeekHigh"`
		Low52w    *float64 `json:"52WeekLow"`
		PE        *float64 `json:"peBasicExclExtraTTM"`
		MarketCap *float64 `json:"marketCapitalization"` // millions
	} `json:"metric"`
}

// Fetch needs the quote; the metrics call is best effort.
func (f *FinnhubProvider) Fetch(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	var q finnhubQuote
	if err := f.getJSON(ctx, "/api/v1/quote", url.Values{"symbol": {symbol}}, &q); err != nil {
		return nil, fmt.Errorf("fetch quote: %w", err)
	}
	// Finnhub answers unknown symbols with an all-zero quote.
	if q.Current <= 0 {
		return nil, fmt.Errorf("fetch quote: no quote for %s", symbol)
	}

	snap := &model.MarketSnapshot{
		Symbol:    symbol,
		Price:     model.Float(q.Current),
		Source:    f.Name(),
		FetchedAt: time.Now(),
	}
	if q.PrevClose > 0 {
		snap.ChangePct = model.Float(q.PercentChange)
	}

	var m finnhubMetrics
	if err := f.getJSON(ctx, "/api/v1/stock/metric", url.Values{"symbol": {symbol}, "metric": {"all"}}, &m); err == nil {
		snap.High52w = m.Metric.High52w
		snap.Low52w = m.Metric.Low52w
		snap.PERatio = m.Metric.PE
		if m.Metric.MarketCap != nil {
			snap.MarketCap = model.Float(*m.Metric.MarketCap * 1e6)
		}
	}
	return snap, nil
}

func (f *FinnhubProvider) getJSON(ctx context.Context, path string, params url.Values, dest interface{}) error {
	header := http.Header{}
	if f.APIKey != "" {
		header.Set("X-Finnhub-Token", f.APIKey)
	}
	body, err := f.http.get(ctx, f.BaseURL+path+"?"+params.Encode(), header)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
