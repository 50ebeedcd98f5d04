package extractor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"TLISentinel/internal/model"
)

func single(t *testing.T, text string) model.ExtractedSignal {
	t.Helper()
	signals := Extract(text)
	require.Len(t, signals, 1)
	return signals[0]
}

func TestExtract_FibonacciLevels(t *testing.T) {
	text := "$SE The stock has pulled back to the 0.5 Fib support level at $118. " +
		"We expect Wave 3 to carry it to the 1.618 Fib at $383."

	sig := single(t, text)
	assert.Equal(t, "SE", sig.Symbol)
	assert.Contains(t, sig.Levels, model.PriceLevel{Kind: model.LevelFibRetracement, Value: 118, Label: "0.5"})
	assert.Contains(t, sig.Levels, model.PriceLevel{Kind: model.LevelFibExtension, Value: 383, Label: "1.618"})
	assert.Nil(t, sig.TargetPrice)
	assert.Nil(t, sig.StopPrice)
}

func TestExtract_BreakoutWithTarget(t *testing.T) {
	text := "$ZETA We have a breakout! The stock cleared the Feb '25 high of $26 " +
		"and has room for resistance back up to $38. PT for 2026 is $66."

	sig := single(t, text)
	assert.Equal(t, "ZETA", sig.Symbol)
	require.NotNil(t, sig.TargetPrice)
	assert.Equal(t, 66.0, *sig.TargetPrice)
	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelResistance, Value: 26},
		{Kind: model.LevelResistance, Value: 38},
	}, sig.Levels)
	assert.Equal(t, model.SentimentBuy, sig.Sentiment)
	assert.InDelta(t, 0.7, sig.Confidence, 1e-9)
}

func TestExtract_Idempotent(t *testing.T) {
	text := "$AAPL support at $180, resistance at $200. PT $230, stop $170. We will buy the dip."
	assert.Equal(t, Extract(text), Extract(text))
}

func TestExtract_EmptyAndNoSymbol(t *testing.T) {
	assert.Empty(t, Extract(""))
	assert.Empty(t, Extract("   \n\t"))
	assert.Empty(t, Extract("nothing to see here, prices are up 5% today"))
}

func TestExtract_TargetAndStop(t *testing.T) {
	sig := single(t, "$AMD buy zone $140 - $150, stop $130. Price target $210.")

	require.NotNil(t, sig.TargetPrice)
	require.NotNil(t, sig.StopPrice)
	assert.Equal(t, 210.0, *sig.TargetPrice)
	assert.Equal(t, 130.0, *sig.StopPrice)
	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelBuyZoneLow, Value: 140},
		{Kind: model.LevelBuyZoneHigh, Value: 150},
	}, sig.Levels)
	assert.Equal(t, model.SentimentBuy, sig.Sentiment)
	assert.InDelta(t, 0.85, sig.Confidence, 1e-9)
}

func TestExtract_FirstTargetWins(t *testing.T) {
	sig := single(t, "$NVDA PT $900. Longer out, PT $1,200.")
	require.NotNil(t, sig.TargetPrice)
	assert.Equal(t, 900.0, *sig.TargetPrice)
}

func TestExtract_BuyZoneWithBareTail(t *testing.T) {
	sig := single(t, "$SOFI buy zone $7.50-8.25 for a starter position")
	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelBuyZoneLow, Value: 7.5},
		{Kind: model.LevelBuyZoneHigh, Value: 8.25},
	}, sig.Levels)
}

func TestExtract_MovingAverageAndWave(t *testing.T) {
	sig := single(t, "$TSLA is holding the 50 day MA at $240. Wave (iii) target $410. 200 WMA sits at $180.")

	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelMovingAverage, Value: 240, Label: "50"},
		{Kind: model.LevelWaveTarget, Value: 410, Label: "III"},
		{Kind: model.LevelMovingAverage, Value: 180, Label: "200"},
	}, sig.Levels)
	assert.Equal(t, model.SentimentHold, sig.Sentiment)
}

func TestExtract_SupportResistanceAndBreakout(t *testing.T) {
	sig := single(t, "$PLTR bounced from $20 and faces resistance at $30. It needs to clear $32 to run.")

	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelSupport, Value: 20},
		{Kind: model.LevelResistance, Value: 30},
		{Kind: model.LevelBreakout, Value: 32},
	}, sig.Levels)
}

func TestExtract_RangeInheritsKind(t *testing.T) {
	sig := single(t, "$HOOD has support between $40 and $42.")
	assert.Equal(t, []model.PriceLevel{
		{Kind: model.LevelSupport, Value: 40},
		{Kind: model.LevelSupport, Value: 42},
	}, sig.Levels)
}

func TestExtract_DedupesLevels(t *testing.T) {
	sig := single(t, "$META support at $500. Again, support at $500.")
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 500}}, sig.Levels)
}

func TestExtract_UnmatchedNumbersDiscarded(t *testing.T) {
	sig := single(t, "$AMZN closed at $185 yesterday.")
	assert.Empty(t, sig.Levels)
	assert.Nil(t, sig.TargetPrice)
	assert.Nil(t, sig.StopPrice)
}

func TestExtract_MalformedNumberSkipped(t *testing.T) {
	sig := single(t, "$COIN support at $1,23,456. Resistance at $300.")
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelResistance, Value: 300}}, sig.Levels)
}

func TestExtract_CommaThousands(t *testing.T) {
	sig := single(t, "$BKNG support at $4,850.50.")
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 4850.5}}, sig.Levels)
}

func TestExtract_MultipleSymbols(t *testing.T) {
	signals := Extract("$AAPL support at $180. $MSFT resistance at $420 and PT $480.")
	require.Len(t, signals, 2)

	assert.Equal(t, "AAPL", signals[0].Symbol)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 180}}, signals[0].Levels)
	assert.Nil(t, signals[0].TargetPrice)

	assert.Equal(t, "MSFT", signals[1].Symbol)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelResistance, Value: 420}}, signals[1].Levels)
	require.NotNil(t, signals[1].TargetPrice)
	assert.Equal(t, 480.0, *signals[1].TargetPrice)
}

func TestExtract_SymbolOrderAndDedupe(t *testing.T) {
	signals := Extract("$MSFT looks fine. $AAPL too. Back to $MSFT: support at $400.")
	require.Len(t, signals, 2)
	assert.Equal(t, "MSFT", signals[0].Symbol)
	assert.Equal(t, "AAPL", signals[1].Symbol)
}

func TestExtract_BareTickerNearPrice(t *testing.T) {
	sig := single(t, "NVDA support at $450 with PT $600. THE END")
	assert.Equal(t, "NVDA", sig.Symbol)
	require.NotNil(t, sig.TargetPrice)
	assert.Equal(t, 600.0, *sig.TargetPrice)
}

func TestExtract_CommodityFallback(t *testing.T) {
	sig := single(t, "Gold is firming up, support at $2,300.")
	assert.Equal(t, "GOLD", sig.Symbol)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 2300}}, sig.Levels)
}

func TestInferSentiment(t *testing.T) {
	tests := []struct {
		text string
		want model.Sentiment
	}{
		{"we will buy here but exit if it fails", model.SentimentSell},
		{"accumulate on weakness", model.SentimentBuy},
		{"keep watching and hold", model.SentimentHold},
		{"long term hold", model.SentimentHold},
		{"a short-term pullback, then we buy", model.SentimentBuy},
		{"nothing directional", model.SentimentUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, inferSentiment(tt.text))
		})
	}
}

func TestConfidence(t *testing.T) {
	assert.InDelta(t, 0.5, confidence("", false, false), 1e-9)
	assert.InDelta(t, 0.8, confidence("it will go", true, false), 1e-9)
	assert.InDelta(t, 0.85, confidence("must. must. must.", false, true), 1e-9)
	assert.InDelta(t, 1.0, confidence("will must confirmed", true, true), 1e-9)
}

func TestNotes(t *testing.T) {
	sig := single(t, "$RIVN is basing. Plan: accumulate below $12 as a low risk entry. More later.")
	assert.Equal(t, "Plan: accumulate below $12 as a low risk entry.", sig.Notes)

	sig = single(t, "$RIVN support at $10.")
	assert.Equal(t, "$RIVN support at $10.", sig.Notes)
}

func TestExtract_CloserKeywordWinsOverTarget(t *testing.T) {
	sig := single(t, "$ABC PT raised after earnings, support at $50.")
	assert.Nil(t, sig.TargetPrice)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 50}}, sig.Levels)
}

func TestExtract_CloserKeywordWinsOverStop(t *testing.T) {
	sig := single(t, "$XYZ stop losses were hit, now the 50 day MA at $75 holds.")
	assert.Nil(t, sig.StopPrice)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelMovingAverage, Value: 75, Label: "50"}}, sig.Levels)
}

func TestExtract_NonStopIsNotStop(t *testing.T) {
	sig := single(t, "$SE stock is non-stop higher; target price of $90")
	assert.Nil(t, sig.StopPrice)
	require.NotNil(t, sig.TargetPrice)
	assert.Equal(t, 90.0, *sig.TargetPrice)
}

func TestExtract_CashtagsAreNotStopWords(t *testing.T) {
	sig := single(t, "$AI support at $25 and PT $40.")
	assert.Equal(t, "AI", sig.Symbol)
	require.NotNil(t, sig.TargetPrice)
	assert.Equal(t, 40.0, *sig.TargetPrice)
	assert.Equal(t, []model.PriceLevel{{Kind: model.LevelSupport, Value: 25}}, sig.Levels)

	signals := Extract("$NOW resistance at $900. $ON support at $70.")
	require.Len(t, signals, 2)
	assert.Equal(t, "NOW", signals[0].Symbol)
	assert.Equal(t, "ON", signals[1].Symbol)
}

func TestExtract_CurrencyCashtagIgnored(t *testing.T) {
	sig := single(t, "$USD weakness helps $GLD, support at $180.")
	assert.Equal(t, "GLD", sig.Symbol)
}
