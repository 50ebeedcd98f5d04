package calculator

import (
	"fmt"

	"TLISentinel/internal/model"
)

// CalculateRSI returns the relative strength index of the closes in bars.
// The first period moves seed simple averages, the remaining ones are
// folded in with Wilder's smoothing. Needs period+1 bars.
func CalculateRSI(bars []model.OHLCV, period int) (float64, error) {
	if period <= 0 {
		return 0, fmt.Errorf("%w: period must be positive", ErrInvalidInput)
	}
	if len(bars) <= period {
		return 0, fmt.Errorf("%w: RSI(%d) needs %d bars, have %d", ErrInsufficientData, period, period+1, len(bars))
	}

	ups, downs := splitMoves(extractCloses(bars))
	up, err := CalculateSMA(ups[:period], period)
	if err != nil {
		return 0, err
	}
	down, err := CalculateSMA(downs[:period], period)
	if err != nil {
		return 0, err
	}
	p := float64(period)
	for i := period; i < len(ups); i++ {
		up += (ups[i] - up) / p
		down += (downs[i] - down) / p
	}
	return rsiFromAverages(up, down), nil
}

// splitMoves turns closes into per-bar upward and downward moves, both
// non-negative.
func splitMoves(closes []float64) (ups, downs []float64) {
	ups = make([]float64, len(closes)-1)
	downs = make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if d := closes[i] - closes[i-1]; d > 0 {
			ups[i-1] = d
		} else {
			downs[i-1] = -d
		}
	}
	return ups, downs
}

// rsiFromAverages maps average gain and loss onto 0..100. A series that never
// moved is neutral.
func rsiFromAverages(up, down float64) float64 {
	switch {
	case up == 0 && down == 0:
		return 50
	case down == 0:
		return 100
	}
	return 100 * up / (up + down)
}
