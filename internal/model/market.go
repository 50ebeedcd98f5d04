package model

import "time"

// OHLCV represents a single candlestick bar.
type OHLCV struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MACDSignal is the direction of the MACD histogram.
type MACDSignal string

const (
	MACDBullish MACDSignal = "bullish"
	MACDBearish MACDSignal = "bearish"
	MACDNeutral MACDSignal = "neutral"
	MACDUnknown MACDSignal = "unknown"
)

// MarketSnapshot is a point-in-time bundle of quote and indicator data for
// one symbol. Nil fields mean the provider had no data; they are never
// defaulted to zero.
type MarketSnapshot struct {
	Symbol    string     `json:"symbol"`
	Price     *float64   `json:"price,omitempty"`
	ChangePct *float64   `json:"change_pct,omitempty"`
	Volume    *float64   `json:"volume,omitempty"`
	MarketCap *float64   `json:"market_cap,omitempty"`
	PERatio   *float64   `json:"pe_ratio,omitempty"`
	RSI       *float64   `json:"rsi,omitempty"`
	MACD      MACDSignal `json:"macd_signal"`
	MA50      *float64   `json:"ma_50,omitempty"`
	MA200     *float64   `json:"ma_200,omitempty"`
	High52w   *float64   `json:"fifty_two_week_high,omitempty"`
	Low52w    *float64   `json:"fifty_two_week_low,omitempty"`
	Source    string     `json:"source,omitempty"`
	FetchedAt time.Time  `json:"fetched_at"`
}

// MACDOrUnknown treats an unset MACD field as unknown.
func (s *MarketSnapshot) MACDOrUnknown() MACDSignal {
	if s == nil || s.MACD == "" {
		return MACDUnknown
	}
	return s.MACD
}

// HasPrice reports whether the snapshot carries a usable price.
func (s *MarketSnapshot) HasPrice() bool {
	return s != nil && s.Price != nil && *s.Price > 0
}

// Merge fills every absent field of s from other. Present fields win.
func (s *MarketSnapshot) Merge(other *MarketSnapshot) {
	if other == nil {
		return
	}
	fill := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			v := *src
			*dst = &v
		}
	}
	fill(&s.Price, other.Price)
	fill(&s.ChangePct, other.ChangePct)
	fill(&s.Volume, other.Volume)
	fill(&s.MarketCap, other.MarketCap)
	fill(&s.PERatio, other.PERatio)
	fill(&s.RSI, other.RSI)
	fill(&s.MA50, other.MA50)
	fill(&s.MA200, other.MA200)
	fill(&s.High52w, other.High52w)
	fill(&s.Low52w, other.Low52w)
	if s.MACDOrUnknown() == MACDUnknown && other.MACDOrUnknown() != MACDUnknown {
		s.MACD = other.MACD
	}
	if s.Source == "" {
		s.Source = other.Source
	} else if other.Source != "" && other.Source != s.Source {
		s.Source += "+" + other.Source
	}
}
