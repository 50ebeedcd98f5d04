package calculator

import (
	"fmt"

	"TLISentinel/internal/model"
)

// MACDResult holds the last MACD line, signal line and histogram values.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// Direction classifies the histogram sign.
func (r MACDResult) Direction() model.MACDSignal {
	switch {
	case r.Histogram > 0:
		return model.MACDBullish
	case r.Histogram < 0:
		return model.MACDBearish
	default:
		return model.MACDNeutral
	}
}

// CalculateMACD computes MACD(fast, slow, signal) over closing prices.
// Needs at least slow+signal-1 closes.
func CalculateMACD(closes []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 || fast >= slow {
		return MACDResult{}, fmt.Errorf("%w: MACD periods fast=%d slow=%d signal=%d", ErrInvalidInput, fast, slow, signal)
	}
	if len(closes) < slow+signal-1 {
		return MACDResult{}, fmt.Errorf("%w: MACD needs %d closes, have %d", ErrInsufficientData, slow+signal-1, len(closes))
	}

	fastEMA := emaSeries(closes, fast)
	slowEMA := emaSeries(closes, slow)

	// MACD line is defined from the point the slow EMA is seeded.
	line := make([]float64, 0, len(closes)-slow+1)
	for i := slow - 1; i < len(closes); i++ {
		line = append(line, fastEMA[i]-slowEMA[i])
	}
	signalEMA := emaSeries(line, signal)

	last := len(line) - 1
	res := MACDResult{MACD: line[last], Signal: signalEMA[last]}
	res.Histogram = res.MACD - res.Signal
	return res, nil
}

// emaSeries returns an EMA aligned with values; entries before period-1 are
// zero. The first EMA value is seeded with the SMA of the first period values.
func emaSeries(values []float64, period int) []float64 {
	out := make([]float64, len(values))
	if len(values) < period {
		return out
	}
	sum := 0.0
	for i := 0; i < period; i++ {
		sum += values[i]
	}
	out[period-1] = sum / float64(period)
	k := 2.0 / float64(period+1)
	for i := period; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}
