package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"TLISentinel/internal/calculator"
	"TLISentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooProvider builds snapshots from the Yahoo Finance chart API: the quote
// comes from the chart metadata, indicators are computed from one year of
// daily bars.
type YahooProvider struct {
	BaseURL   string
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker

	http *httpClient
}

// NewYahooProvider creates a Yahoo provider.
func NewYahooProvider(opts HTTPOptions) *YahooProvider {
	return &YahooProvider{
		BaseURL: yahooBaseURL,
		SymbolMap: map[string]string{
			"GOLD":   "GC=F",
			"SILVER": "SI=F",
			"COPPER": "HG=F",
			"OIL":    "CL=F",
			"CRUDE":  "CL=F",
		},
		http: newHTTPClient(opts),
	}
}

func (y *YahooProvider) Name() string { return "yahoo" }

func (y *YahooProvider) yahooSymbol(symbol string) string {
	if mapped, ok := y.SymbolMap[strings.ToUpper(symbol)]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				RegularMarketPrice  float64 `json:"regularMarketPrice"`
				RegularMarketVolume float64 `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Fetch returns a snapshot for symbol. Indicators that need more history than
// Yahoo returned are left absent.
func (y *YahooProvider) Fetch(ctx context.Context, symbol string) (*model.MarketSnapshot, error) {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&range=1y",
		y.BaseURL, url.PathEscape(y.yahooSymbol(symbol)))
	body, err := y.http.get(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch: %w", err)
	}

	var chart yahooChart
	if err := json.Unmarshal(body, &chart); err != nil {
		return nil, fmt.Errorf("yahoo decode: %w", err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, errors.New("yahoo: no data returned")
	}
	result := chart.Chart.Result[0]

	var bars []model.OHLCV
	if len(result.Indicators.Quote) > 0 {
		q := result.Indicators.Quote[0]
		bars = parseBars(result.Timestamp, q.Open, q.High, q.Low, q.Close, q.Volume)
	}

	snap := &model.MarketSnapshot{
		Symbol:    symbol,
		Source:    y.Name(),
		FetchedAt: time.Now(),
	}

	meta := result.Meta
	switch {
	case meta.RegularMarketPrice > 0:
		snap.Price = model.Float(meta.RegularMarketPrice)
	case len(bars) > 0:
		snap.Price = model.Float(bars[len(bars)-1].Close)
	}
	// chartPreviousClose is the close before the 1y range starts, so the
	// daily change is taken against the prior bar.
	if n := len(bars); snap.Price != nil && n >= 2 && bars[n-2].Close > 0 {
		prev := bars[n-2].Close
		snap.ChangePct = model.Float((*snap.Price - prev) / prev * 100)
	}
	switch {
	case meta.RegularMarketVolume > 0:
		snap.Volume = model.Float(meta.RegularMarketVolume)
	case len(bars) > 0:
		snap.Volume = model.Float(bars[len(bars)-1].Volume)
	}

	applyIndicators(snap, bars)
	return snap, nil
}

func parseBars(ts []int64, open, high, low, cls, vol []*float64) []model.OHLCV {
	at := func(s []*float64, i int) float64 {
		if i >= len(s) || s[i] == nil {
			return 0
		}
		return *s[i]
	}
	bars := make([]model.OHLCV, 0, len(ts))
	for i, t := range ts {
		c := at(cls, i)
		if c == 0 {
			continue // skip null bars (holidays etc.)
		}
		bars = append(bars, model.OHLCV{
			Time:   time.Unix(t, 0),
			Open:   at(open, i),
			High:   at(high, i),
			Low:    at(low, i),
			Close:  c,
			Volume: at(vol, i),
		})
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })
	return bars
}

// applyIndicators fills the indicator fields computable from bars.
func applyIndicators(snap *model.MarketSnapshot, bars []model.OHLCV) {
	if len(bars) == 0 {
		return
	}
	if v, err := calculator.CalculateMA50(bars); err == nil {
		snap.MA50 = model.Float(v)
	}
	if v, err := calculator.CalculateMA200(bars); err == nil {
		snap.MA200 = model.Float(v)
	}
	if v, err := calculator.CalculateRSI(bars, 14); err == nil {
		snap.RSI = model.Float(v)
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	if m, err := calculator.CalculateMACD(closes, 12, 26, 9); err == nil {
		snap.MACD = m.Direction()
	} else {
		snap.MACD = model.MACDUnknown
	}
	if h, l, err := calculator.Calculate52WeekRange(bars); err == nil {
		snap.High52w = model.Float(h)
		snap.Low52w = model.Float(l)
	}
}
