package calculator

import (
	"fmt"
	"math"
)

// PositionSize is a risk-based position breakdown. Risk figures are computed
// from the whole-share count, so they never exceed the requested risk.
type PositionSize struct {
	Shares          int     `json:"shares"`
	PositionValue   float64 `json:"position_size"`
	PositionPercent float64 `json:"position_percent"`
	RiskAmount      float64 `json:"risk_amount"`
	RiskPercent     float64 `json:"risk_percent"`
	RiskPerShare    float64 `json:"risk_per_share"`
}

// SharesForRisk returns floor(accountSize * riskPct/100 / |entry-stop|).
func SharesForRisk(accountSize, riskPct, entry, stop float64) (int, error) {
	if err := validateSizing(accountSize, riskPct, entry, stop); err != nil {
		return 0, err
	}
	riskAmount := accountSize * riskPct / 100
	return int(math.Floor(riskAmount / math.Abs(entry-stop))), nil
}

// CalculatePositionSize expands SharesForRisk into value and risk figures.
func CalculatePositionSize(accountSize, riskPct, entry, stop float64) (PositionSize, error) {
	shares, err := SharesForRisk(accountSize, riskPct, entry, stop)
	if err != nil {
		return PositionSize{}, err
	}
	perShare := math.Abs(entry - stop)
	value := float64(shares) * entry
	risk := float64(shares) * perShare
	return PositionSize{
		Shares:          shares,
		PositionValue:   round2(value),
		PositionPercent: round2(value / accountSize * 100),
		RiskAmount:      round2(risk),
		RiskPercent:     round2(risk / accountSize * 100),
		RiskPerShare:    round2(perShare),
	}, nil
}

func validateSizing(accountSize, riskPct, entry, stop float64) error {
	switch {
	case accountSize <= 0:
		return fmt.Errorf("%w: account size must be positive", ErrInvalidInput)
	case riskPct <= 0:
		return fmt.Errorf("%w: risk percent must be positive", ErrInvalidInput)
	case entry <= 0:
		return fmt.Errorf("%w: entry price must be positive", ErrInvalidInput)
	case stop <= 0:
		return fmt.Errorf("%w: stop price must be positive", ErrInvalidInput)
	case entry == stop:
		return fmt.Errorf("%w: entry price and stop loss cannot be the same", ErrInvalidInput)
	}
	return nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
