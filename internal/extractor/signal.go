package extractor

import (
	"math"
	"regexp"
	"strings"

	"TLISentinel/internal/model"
)

const notesLimit = 280

var (
	horizonRe = regexp.MustCompile(`(?i)\b(?:long|short)[\s-]+term\b`)

	sellRe = regexp.MustCompile(`(?i)\b(?:sell(?:s|ing)?|short(?:s|ed|ing)?|exit(?:s|ed|ing)?|avoid(?:s|ed|ing)?)\b`)
	buyRe  = regexp.MustCompile(`(?i)\b(?:buy(?:s|ing)?|long|breakouts?|accumulat(?:e|es|ed|ing))\b`)
	holdRe = regexp.MustCompile(`(?i)\b(?:hold(?:s|ing)?|wait(?:s|ed|ing)?|watch(?:es|ed|ing)?)\b`)

	certaintyRe = regexp.MustCompile(`(?i)\b(?:will|must|confirmed)\b`)

	strategicRe = regexp.MustCompile(`(?i)plan:|\bstrategy\b|\bobjective\b|\blow risk entry\b|\baccumulate\b|\bwave [35]\b|\blong term\b|\bshort term\b|\bmust\b|\bshould consider\b`)
)

// signalBuilder accumulates one symbol's text and classified prices.
type signalBuilder struct {
	symbol string
	text   []string
	target *float64
	stop   *float64
	levels []model.PriceLevel
	seen   map[model.PriceLevel]bool
}

func newSignalBuilder(symbol string) *signalBuilder {
	return &signalBuilder{symbol: symbol, seen: make(map[model.PriceLevel]bool)}
}

func (b *signalBuilder) addText(sentence string) {
	b.text = append(b.text, sentence)
}

// add places a classified token. The first target and stop win; levels are
// kept once per (kind, value).
func (b *signalBuilder) add(tok token, c classification) {
	switch c.slot {
	case slotTarget:
		if b.target == nil {
			b.target = model.Float(tok.value)
		}
	case slotStop:
		if b.stop == nil {
			b.stop = model.Float(tok.value)
		}
	default:
		key := model.PriceLevel{Kind: c.kind, Value: tok.value}
		if b.seen[key] {
			return
		}
		b.seen[key] = true
		b.levels = append(b.levels, model.PriceLevel{Kind: c.kind, Value: tok.value, Label: c.label})
	}
}

func (b *signalBuilder) build() model.ExtractedSignal {
	body := strings.Join(b.text, " ")
	levels := b.levels
	if levels == nil {
		levels = []model.PriceLevel{}
	}
	return model.ExtractedSignal{
		Symbol:      b.symbol,
		Sentiment:   inferSentiment(body),
		Confidence:  confidence(body, b.target != nil, b.stop != nil),
		TargetPrice: b.target,
		StopPrice:   b.stop,
		Levels:      levels,
		Notes:       notes(b.text),
	}
}

// inferSentiment scans for directional keywords. Sell beats Buy beats Hold.
// "long term" and "short term" describe horizon, not direction.
func inferSentiment(text string) model.Sentiment {
	text = horizonRe.ReplaceAllString(text, " ")
	switch {
	case sellRe.MatchString(text):
		return model.SentimentSell
	case buyRe.MatchString(text):
		return model.SentimentBuy
	case holdRe.MatchString(text):
		return model.SentimentHold
	}
	return model.SentimentUnknown
}

func confidence(text string, hasTarget, hasStop bool) float64 {
	c := 0.5
	if hasTarget {
		c += 0.2
	}
	if hasStop {
		c += 0.15
	}
	c += math.Min(0.1*float64(len(certaintyRe.FindAllStringIndex(text, -1))), 0.2)
	c = math.Max(0, math.Min(1, c))
	return math.Round(c*100) / 100
}

// notes keeps the sentences that carry the analyst's plan, or the opening of
// the text when none do.
func notes(sentences []string) string {
	var picked []string
	for _, s := range sentences {
		if strategicRe.MatchString(s) {
			picked = append(picked, strings.Join(strings.Fields(s), " "))
		}
	}
	out := strings.Join(picked, " ")
	if out == "" {
		out = strings.Join(strings.Fields(strings.Join(sentences, " ")), " ")
	}
	return truncate(out, notesLimit)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
