package collector

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TLISentinel/internal/model"
)

func testHTTPOptions() HTTPOptions {
	return HTTPOptions{Timeout: 5 * time.Second, RequestsPerSec: 1000, MaxRetryTime: 2 * time.Second}
}

func chartJSON(n int, price, prevClose float64) map[string]interface{} {
	ts := make([]int64, n)
	closes := make([]interface{}, n)
	highs := make([]interface{}, n)
	lows := make([]interface{}, n)
	vols := make([]interface{}, n)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		c := 100 + float64(i*i)*0.01
		ts[i] = start.AddDate(0, 0, i).Unix()
		closes[i] = c
		highs[i] = c + 1
		lows[i] = c - 1
		vols[i] = 1000.0
	}
	// a holiday bar with nulls is skipped
	closes[n/2] = nil
	return map[string]interface{}{
		"chart": map[string]interface{}{
			"result": []interface{}{map[string]interface{}{
				"meta": map[string]interface{}{
					"regularMarketPrice":  price,
					"chartPreviousClose":  prevClose,
					"regularMarketVolume": 123456.0,
				},
				"timestamp": ts,
				"indicators": map[string]interface{}{
					"quote": []interface{}{map[string]interface{}{
						"open":   closes,
						"high":   highs,
						"low":    lows,
						"close":  closes,
						"volume": vols,
					}},
				},
			}},
			"error": nil,
		},
	}
}

func TestYahooProvider_Fetch(t *testing.T) {
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewEncoder(w).Encode(chartJSON(260, 770, 700))
	}))
	defer srv.Close()

	p := NewYahooProvider(testHTTPOptions())
	p.BaseURL = srv.URL

	snap, err := p.Fetch(context.Background(), "GOLD")
	require.NoError(t, err)
	assert.Equal(t, "/v8/finance/chart/GC=F", path)
	assert.Equal(t, "GOLD", snap.Symbol)
	assert.Equal(t, "yahoo", snap.Source)

	require.NotNil(t, snap.Price)
	assert.InDelta(t, 770, *snap.Price, 1e-9)
	// daily change against the prior bar, not the year-old chartPreviousClose
	prev := 100 + float64(258*258)*0.01
	require.NotNil(t, snap.ChangePct)
	assert.InDelta(t, (770-prev)/prev*100, *snap.ChangePct, 1e-9)
	require.NotNil(t, snap.Volume)
	assert.InDelta(t, 123456, *snap.Volume, 1e-9)

	assert.NotNil(t, snap.MA50)
	assert.NotNil(t, snap.MA200)
	require.NotNil(t, snap.RSI)
	assert.InDelta(t, 100, *snap.RSI, 1e-9)
	assert.Equal(t, model.MACDBullish, snap.MACD)
	require.NotNil(t, snap.High52w)
	require.NotNil(t, snap.Low52w)
	assert.Greater(t, *snap.High52w, *snap.Low52w)

	// no fundamentals from the chart API
	assert.Nil(t, snap.MarketCap)
	assert.Nil(t, snap.PERatio)
}

func TestYahooProvider_ShortHistoryLeavesIndicatorsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(chartJSON(10, 0, 0))
	}))
	defer srv.Close()

	p := NewYahooProvider(testHTTPOptions())
	p.BaseURL = srv.URL

	snap, err := p.Fetch(context.Background(), "NEW")
	require.NoError(t, err)
	require.NotNil(t, snap.Price, "falls back to the last close")
	require.NotNil(t, snap.ChangePct)
	// bars 8 and 9 close at 100.64 and 100.81
	assert.InDelta(t, (100.81-100.64)/100.64*100, *snap.ChangePct, 1e-9)
	assert.Nil(t, snap.MA50)
	assert.Nil(t, snap.MA200)
	assert.Nil(t, snap.RSI)
	assert.Equal(t, model.MACDUnknown, snap.MACD)
}

func TestYahooProvider_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	}))
	defer srv.Close()

	p := NewYahooProvider(testHTTPOptions())
	p.BaseURL = srv.URL

	_, err := p.Fetch(context.Background(), "XXXX")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "delisted")
}

func TestFinnhubProvider_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Finnhub-Token"))
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
		switch r.URL.Path {
		case "/api/v1/quote":
			_, _ = w.Write([]byte(`{"c":190.5,"d":3.1,"dp":1.65,"h":191,"l":187,"o":188,"pc":187.4}`))
		case "/api/v1/stock/metric":
			_, _ = w.Write([]byte(`{"metric":{"52WeekHigh":199.6,"52WeekLow":164.1,"peBasicExclExtraTTM":29.4,"marketCapitalization":2950000}}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewFinnhubProvider("secret", testHTTPOptions())
	p.BaseURL = srv.URL

	snap, err := p.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 190.5, *snap.Price, 1e-9)
	assert.InDelta(t, 1.65, *snap.ChangePct, 1e-9)
	assert.InDelta(t, 199.6, *snap.High52w, 1e-9)
	assert.InDelta(t, 164.1, *snap.Low52w, 1e-9)
	assert.InDelta(t, 29.4, *snap.PERatio, 1e-9)
	assert.InDelta(t, 2.95e12, *snap.MarketCap, 1)
	assert.Nil(t, snap.RSI)
	assert.Equal(t, model.MACDUnknown, snap.MACDOrUnknown())
}

func TestFinnhubProvider_UnknownSymbol(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"c":0,"d":null,"dp":null,"h":0,"l":0,"o":0,"pc":0}`))
	}))
	defer srv.Close()

	p := NewFinnhubProvider("k", testHTTPOptions())
	p.BaseURL = srv.URL

	_, err := p.Fetch(context.Background(), "NOPE")
	assert.Error(t, err)
}

func TestHTTPClient_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := newHTTPClient(testHTTPOptions())
	c.retryWait = 10 * time.Millisecond

	body, err := c.get(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Equal(t, "ok", string(body))
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestHTTPClient_ClientErrorIsPermanent(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("denied"))
	}))
	defer srv.Close()

	c := newHTTPClient(testHTTPOptions())
	c.retryWait = 10 * time.Millisecond

	_, err := c.get(context.Background(), srv.URL, nil)
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusForbidden, serr.StatusCode)
	assert.Equal(t, "denied", serr.Body)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestChainProvider_FillsAbsentFields(t *testing.T) {
	quote := &MockProvider{Snapshots: map[string]model.MarketSnapshot{
		"AAPL": {Price: model.Float(190), PERatio: model.Float(29), Source: "quote"},
	}}
	technicals := &MockProvider{Snapshots: map[string]model.MarketSnapshot{
		"AAPL": {Price: model.Float(189), RSI: model.Float(61), MACD: model.MACDBearish, Source: "tech"},
	}}

	chain := NewChainProvider(quote, technicals)
	snap, err := chain.Fetch(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.InDelta(t, 190, *snap.Price, 1e-9, "first provider wins")
	assert.InDelta(t, 29, *snap.PERatio, 1e-9)
	assert.InDelta(t, 61, *snap.RSI, 1e-9)
	assert.Equal(t, model.MACDBearish, snap.MACD)
	assert.Equal(t, "quote+tech", snap.Source)
	assert.Equal(t, "chain(mock,mock)", chain.Name())
}

func TestChainProvider_SkipsFailuresAndStopsWhenComplete(t *testing.T) {
	failing := &MockProvider{Errors: map[string]error{"MSFT": errors.New("boom")}}
	full := NewMockProvider(400)
	last := NewMockProvider(1)

	snap, err := NewChainProvider(failing, full, last).Fetch(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.InDelta(t, 400, *snap.Price, 1e-9)
	assert.Equal(t, 0, last.Calls("MSFT"))
}

func TestChainProvider_AllFail(t *testing.T) {
	a := &MockProvider{Errors: map[string]error{"X": errors.New("a down")}}
	b := &MockProvider{Errors: map[string]error{"X": errors.New("b down")}}

	_, err := NewChainProvider(a, b).Fetch(context.Background(), "X")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a down")
	assert.Contains(t, err.Error(), "b down")
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]model.MarketSnapshot
	err   error
}

func (m *memoryCache) Get(_ context.Context, symbol string) (*model.MarketSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	s, ok := m.items[symbol]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *memoryCache) Set(_ context.Context, snap *model.MarketSnapshot, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if m.items == nil {
		m.items = make(map[string]model.MarketSnapshot)
	}
	m.items[snap.Symbol] = *snap
	return nil
}

func TestCachedProvider(t *testing.T) {
	inner := NewMockProvider(50)
	cache := &memoryCache{}
	p := NewCachedProvider(inner, cache, time.Minute)

	first, err := p.Fetch(context.Background(), "AMD")
	require.NoError(t, err)
	second, err := p.Fetch(context.Background(), "AMD")
	require.NoError(t, err)

	assert.Equal(t, 1, inner.Calls("AMD"))
	assert.InDelta(t, *first.Price, *second.Price, 1e-9)
	assert.Equal(t, "cached(mock)", p.Name())
}

func TestCachedProvider_CacheErrorsFallThrough(t *testing.T) {
	inner := NewMockProvider(50)
	p := NewCachedProvider(inner, &memoryCache{err: errors.New("redis down")}, time.Minute)

	for i := 0; i < 2; i++ {
		snap, err := p.Fetch(context.Background(), "AMD")
		require.NoError(t, err)
		assert.True(t, snap.HasPrice())
	}
	assert.Equal(t, 2, inner.Calls("AMD"))
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider([]string{"yahoo"}, "", testHTTPOptions())
	require.NoError(t, err)
	assert.Equal(t, "yahoo", p.Name())

	p, err = NewProvider([]string{"finnhub", "yahoo"}, "key", testHTTPOptions())
	require.NoError(t, err)
	assert.Equal(t, "chain(finnhub,yahoo)", p.Name())

	_, err = NewProvider([]string{"finnhub"}, "", testHTTPOptions())
	assert.Error(t, err)
	_, err = NewProvider([]string{"bloomberg"}, "", testHTTPOptions())
	assert.Error(t, err)
	_, err = NewProvider(nil, "", testHTTPOptions())
	assert.Error(t, err)
}
