// Package strategy reconciles an email signal with market data into a
// scored recommendation. Everything here is pure: no I/O, no logging.
package strategy

import (
	"TLISentinel/internal/model"
)

const (
	baseScore = 50
	minScore  = 0
	maxScore  = 100
)

// Flag texts, in the order rules can emit them.
const (
	FlagAboveTarget    = "Price already above TLI target"
	FlagOversoldNotBuy = "Oversold but signal is not Buy"
	FlagOverboughtBuy  = "Overbought conditions conflict with buy signal"
	FlagUptrend        = "Uptrend confirmed"
	FlagDowntrend      = "Downtrend — caution"
	FlagMACDBearishBuy = "MACD bearish against buy signal"
	FlagExcellentRR    = "Excellent risk/reward (≥3:1)"
	FlagPoorRR         = "Poor risk/reward ratio (<1:1)"
	FlagInvalidStop    = "Invalid stop level relative to current price"
	FlagHighVolatility = "High volatility — large recent price swing"
	FlagNoMarketData   = "No market data available — TLI-only analysis"
)

const (
	meaningfulUpsidePct = 20.0
	oversoldRSI         = 30.0
	overboughtRSI       = 70.0
	excellentRiskReward = 3.0
	poorRiskReward      = 1.0
	volatilityChangePct = 5.0
)

// Tiers maps a clamped score to its tier, highest first.
var Tiers = []struct {
	MinScore int
	Tier     model.Tier
}{
	{75, model.TierStrongBuy},
	{60, model.TierBuy},
	{45, model.TierHold},
	{30, model.TierSell},
}

// DefaultTier is the tier for scores below 30.
var DefaultTier = model.TierStrongSell

// mapTier maps a score to a Tier.
func mapTier(score int) model.Tier {
	for _, t := range Tiers {
		if score >= t.MinScore {
			return t.Tier
		}
	}
	return DefaultTier
}

// Reconcile scores signal against snap. It always returns a recommendation;
// missing market data degrades the result instead of failing it.
func Reconcile(signal model.ExtractedSignal, snap model.MarketSnapshot) model.Recommendation {
	in := newInput(signal, snap)

	rules := scoringRules
	if !in.hasPrice {
		rules = degradedRules
	}

	score := baseScore
	var flags []string
	results := make([]model.RuleResult, 0, len(rules))
	for _, r := range rules {
		out := r.eval(in)
		score += out.delta
		flags = append(flags, out.flags...)
		results = append(results, model.RuleResult{Name: r.name, Delta: out.delta})
	}
	score = clamp(score, minScore, maxScore)

	volatile := in.volatile()
	if volatile {
		flags = append(flags, FlagHighVolatility)
	}
	if flags == nil {
		flags = []string{}
	}

	return model.Recommendation{
		Symbol:       signal.Symbol,
		Overall:      mapTier(score),
		Score:        score,
		AgreementPct: float64(score),
		RiskLevel:    riskLevel(in, volatile),
		Flags:        flags,
		RiskReward:   in.riskReward,
		Rules:        results,
	}
}

// riskLevel grades the recommendation. Degraded analyses are always high risk.
func riskLevel(in *input, volatile bool) model.RiskLevel {
	if !in.hasPrice {
		return model.RiskHigh
	}
	noTechnicals := in.snap.RSI == nil &&
		in.snap.MACDOrUnknown() == model.MACDUnknown &&
		(in.snap.MA50 == nil || in.snap.MA200 == nil)
	rr := in.riskReward
	switch {
	case noTechnicals, volatile, rr != nil && rr.Ratio < poorRiskReward:
		return model.RiskHigh
	case rr != nil && rr.Ratio >= excellentRiskReward:
		return model.RiskLow
	}
	return model.RiskMedium
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
