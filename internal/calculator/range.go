package calculator

import (
	"fmt"

	"TLISentinel/internal/model"
)

const tradingDaysPerYear = 252

// Calculate52WeekRange returns the highest high and lowest low of the last
// year of daily bars. A bar missing its high or low contributes its close.
func Calculate52WeekRange(dailyBars []model.OHLCV) (high, low float64, err error) {
	if len(dailyBars) == 0 {
		return 0, 0, fmt.Errorf("%w: 52-week range needs daily bars", ErrInsufficientData)
	}
	window := dailyBars
	if len(window) > tradingDaysPerYear {
		window = window[len(window)-tradingDaysPerYear:]
	}
	for i, b := range window {
		h, l := b.High, b.Low
		if h == 0 {
			h = b.Close
		}
		if l == 0 {
			l = b.Close
		}
		if i == 0 || h > high {
			high = h
		}
		if i == 0 || l < low {
			low = l
		}
	}
	return high, low, nil
}
