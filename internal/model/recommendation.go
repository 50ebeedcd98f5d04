package model

import "time"

// Tier is the overall action mapped from a score.
type Tier string

const (
	TierStrongBuy  Tier = "STRONG_BUY"
	TierBuy        Tier = "BUY"
	TierHold       Tier = "HOLD"
	TierSell       Tier = "SELL"
	TierStrongSell Tier = "STRONG_SELL"
)

// RiskLevel grades how much the market data leaves uncovered.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskReward holds the target/stop geometry relative to the current price.
type RiskReward struct {
	PotentialGainPct float64 `json:"potential_gain_pct"`
	PotentialLossPct float64 `json:"potential_loss_pct"`
	Ratio            float64 `json:"ratio"`
}

// RuleResult is one scoring rule's contribution.
type RuleResult struct {
	Name  string `json:"name"`
	Delta int    `json:"delta"`
}

// Recommendation is the reconciled output for one (signal, snapshot) pair.
type Recommendation struct {
	Symbol       string       `json:"symbol"`
	Overall      Tier         `json:"overall"`
	Score        int          `json:"score"`
	AgreementPct float64      `json:"agreement_pct"`
	RiskLevel    RiskLevel    `json:"risk_level"`
	Flags        []string     `json:"flags"`
	RiskReward   *RiskReward  `json:"risk_reward,omitempty"`
	Rules        []RuleResult `json:"rules,omitempty"`
}

// Analysis bundles one symbol's signal, the snapshot it was checked against
// and the resulting recommendation.
type Analysis struct {
	Signal         ExtractedSignal `json:"signal"`
	Snapshot       MarketSnapshot  `json:"snapshot"`
	Recommendation Recommendation  `json:"recommendation"`
	AnalyzedAt     time.Time       `json:"analyzed_at"`
}
