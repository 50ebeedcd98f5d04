package calculator

import "fmt"

// FibRatios is the canonical Fibonacci ratio set, ascending.
var FibRatios = []float64{0.236, 0.382, 0.5, 0.618, 0.786, 1.0, 1.272, 1.618, 2.0, 2.618}

// FibLevels maps canonical ratios to prices for one swing.
// Retracement covers ratios <= 1, Extension ratios >= 1.
type FibLevels struct {
	High        float64
	Low         float64
	Retracement map[float64]float64
	Extension   map[float64]float64
}

// FibonacciLevels computes retracement (high - (high-low)*r) and extension
// (high + (high-low)*(r-1)) prices for a swing.
func FibonacciLevels(swingHigh, swingLow float64) (FibLevels, error) {
	if swingHigh <= swingLow {
		return FibLevels{}, fmt.Errorf("%w: swing high %.2f must be above swing low %.2f", ErrInvalidInput, swingHigh, swingLow)
	}
	diff := swingHigh - swingLow
	levels := FibLevels{
		High:        swingHigh,
		Low:         swingLow,
		Retracement: make(map[float64]float64),
		Extension:   make(map[float64]float64),
	}
	for _, r := range FibRatios {
		if r <= 1.0 {
			// Weighted form keeps the 0.5 level exactly at the midpoint.
			levels.Retracement[r] = swingHigh*(1-r) + swingLow*r
		}
		if r >= 1.0 {
			levels.Extension[r] = swingHigh + diff*(r-1)
		}
	}
	return levels, nil
}
