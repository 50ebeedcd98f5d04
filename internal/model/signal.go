package model

// Sentiment is the direction inferred from analyst language.
type Sentiment string

const (
	SentimentBuy     Sentiment = "BUY"
	SentimentSell    Sentiment = "SELL"
	SentimentHold    Sentiment = "HOLD"
	SentimentUnknown Sentiment = "UNKNOWN"
)

// LevelKind classifies a price mentioned in an email.
type LevelKind string

const (
	LevelSupport        LevelKind = "support"
	LevelResistance     LevelKind = "resistance"
	LevelFibRetracement LevelKind = "fib_retracement"
	LevelFibExtension   LevelKind = "fib_extension"
	LevelMovingAverage  LevelKind = "moving_average"
	LevelBuyZoneLow     LevelKind = "buy_zone_low"
	LevelBuyZoneHigh    LevelKind = "buy_zone_high"
	LevelBreakout       LevelKind = "breakout"
	LevelWaveTarget     LevelKind = "wave_target"
)

// PriceLevel is one classified price. Label carries the literal qualifier
// from the text: the Fibonacci ratio, the MA period or the wave count.
type PriceLevel struct {
	Kind  LevelKind `json:"kind"`
	Value float64   `json:"value"`
	Label string    `json:"label,omitempty"`
}

// ExtractedSignal is everything one email says about one symbol.
type ExtractedSignal struct {
	Symbol      string       `json:"symbol"`
	Sentiment   Sentiment    `json:"sentiment"`
	Confidence  float64      `json:"confidence"`
	TargetPrice *float64     `json:"target_price,omitempty"`
	StopPrice   *float64     `json:"stop_price,omitempty"`
	Levels      []PriceLevel `json:"levels"`
	Notes       string       `json:"notes"`
}

// LevelsOf returns the levels of the given kind in text order.
func (s ExtractedSignal) LevelsOf(kind LevelKind) []PriceLevel {
	var out []PriceLevel
	for _, l := range s.Levels {
		if l.Kind == kind {
			out = append(out, l)
		}
	}
	return out
}

// Float returns a pointer to v, for optional numeric fields.
func Float(v float64) *float64 { return &v }
