package strategy

import (
	"math"

	"TLISentinel/internal/model"
)

// input is what every rule reads. It is built once per Reconcile call.
type input struct {
	signal   model.ExtractedSignal
	snap     model.MarketSnapshot
	hasPrice bool
	price    float64

	// riskReward is nil unless target, stop and price are present and the
	// stop sits below the price.
	riskReward *model.RiskReward
	invalidRR  bool
}

func newInput(signal model.ExtractedSignal, snap model.MarketSnapshot) *input {
	in := &input{signal: signal, snap: snap, hasPrice: snap.HasPrice()}
	if !in.hasPrice {
		return in
	}
	in.price = *snap.Price
	if signal.TargetPrice != nil && signal.StopPrice != nil {
		gain := (*signal.TargetPrice - in.price) / in.price * 100
		loss := (in.price - *signal.StopPrice) / in.price * 100
		if loss > 0 {
			in.riskReward = &model.RiskReward{
				PotentialGainPct: gain,
				PotentialLossPct: loss,
				Ratio:            gain / loss,
			}
		} else {
			in.invalidRR = true
		}
	}
	return in
}

func (in *input) volatile() bool {
	return in.snap.ChangePct != nil && math.Abs(*in.snap.ChangePct) > volatilityChangePct
}

func (in *input) isBuy() bool {
	return in.signal.Sentiment == model.SentimentBuy
}

// outcome is one rule's contribution.
type outcome struct {
	delta int
	flags []string
}

type scoringRule struct {
	name string
	eval func(in *input) outcome
}

// scoringRules run in this order; flags accumulate in the same order.
var scoringRules = []scoringRule{
	{"sentiment", scoreSentiment},
	{"upside", scoreUpside},
	{"rsi", scoreRSI},
	{"moving_averages", scoreMovingAverages},
	{"macd", scoreMACD},
	{"risk_reward", scoreRiskReward},
}

// degradedRules apply when the snapshot has no price.
var degradedRules = []scoringRule{
	{"sentiment", scoreSentiment},
	{"no_market_data", func(*input) outcome { return outcome{flags: []string{FlagNoMarketData}} }},
}

func scoreSentiment(in *input) outcome {
	switch in.signal.Sentiment {
	case model.SentimentBuy:
		return outcome{delta: 15}
	case model.SentimentSell:
		return outcome{delta: -15}
	}
	return outcome{}
}

func scoreUpside(in *input) outcome {
	if in.signal.TargetPrice == nil {
		return outcome{}
	}
	upside := (*in.signal.TargetPrice - in.price) / in.price * 100
	switch {
	case upside > meaningfulUpsidePct:
		return outcome{delta: 10}
	case upside < 0:
		return outcome{delta: -10, flags: []string{FlagAboveTarget}}
	}
	return outcome{}
}

func scoreRSI(in *input) outcome {
	if in.snap.RSI == nil {
		return outcome{}
	}
	rsi := *in.snap.RSI
	switch {
	case rsi < oversoldRSI && in.isBuy():
		return outcome{delta: 10}
	case rsi < oversoldRSI:
		return outcome{flags: []string{FlagOversoldNotBuy}}
	case rsi > overboughtRSI && in.isBuy():
		return outcome{delta: -10, flags: []string{FlagOverboughtBuy}}
	}
	return outcome{}
}

func scoreMovingAverages(in *input) outcome {
	if in.snap.MA50 == nil || in.snap.MA200 == nil {
		return outcome{}
	}
	ma50, ma200 := *in.snap.MA50, *in.snap.MA200
	switch {
	case in.price > ma50 && in.price > ma200:
		return outcome{delta: 5, flags: []string{FlagUptrend}}
	case in.price < ma50 && in.price < ma200:
		return outcome{delta: -5, flags: []string{FlagDowntrend}}
	}
	return outcome{}
}

func scoreMACD(in *input) outcome {
	if !in.isBuy() {
		return outcome{}
	}
	switch in.snap.MACDOrUnknown() {
	case model.MACDBullish:
		return outcome{delta: 5}
	case model.MACDBearish:
		return outcome{delta: -5, flags: []string{FlagMACDBearishBuy}}
	}
	return outcome{}
}

func scoreRiskReward(in *input) outcome {
	if in.invalidRR {
		return outcome{flags: []string{FlagInvalidStop}}
	}
	if in.riskReward == nil {
		return outcome{}
	}
	ratio := in.riskReward.Ratio
	switch {
	case ratio >= excellentRiskReward:
		return outcome{delta: 10, flags: []string{FlagExcellentRR}}
	case ratio < poorRiskReward:
		return outcome{delta: -10, flags: []string{FlagPoorRR}}
	}
	return outcome{}
}
