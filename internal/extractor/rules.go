package extractor

import (
	"regexp"
	"sort"
	"strings"

	"TLISentinel/internal/model"
)

// slot says where a classified price ends up on the signal.
type slot int

const (
	slotLevel slot = iota
	slotTarget
	slotStop
)

type classification struct {
	slot  slot
	kind  model.LevelKind
	label string
}

// token is one price mention with its byte offsets in the email.
type token struct {
	start, end int
	value      float64
}

// tokenContext is what a rule sees about one price token. pre and post are
// bounded by the neighbouring price tokens and by the sentence.
type tokenContext struct {
	tok  token
	pre  string
	post string

	// pair is set when the token is one bound of an "X - Y" / "X to Y"
	// range; pairPre/pairPost surround the whole range.
	pair     *rangePair
	pairPre  string
	pairPost string
}

type rangePair struct {
	low, high float64
}

type rule struct {
	name     string
	classify func(tc *tokenContext) (classification, bool)
}

// levelRules is evaluated top to bottom; the first rule that matches a token
// classifies it.
var levelRules = []rule{
	{"price_target", matchTarget},
	{"stop_loss", matchStop},
	{"fibonacci", matchFibonacci},
	{"support", matchSupport},
	{"resistance", matchResistance},
	{"moving_average", matchMovingAverage},
	{"wave", matchWave},
	{"buy_zone", matchBuyZone},
	{"breakout", matchBreakout},
}

var (
	targetRe = regexp.MustCompile(`(?i)\b(?:PT|price\s+target|target\s+price)\b`)

	// a hyphen or letter before "stop" (non-stop) is not a stop keyword
	stopRe = regexp.MustCompile(`(?i)(?:^|[^\w-])stop(?:[\s-]*loss)?\b`)

	fibKeywordRe = regexp.MustCompile(`(?i)\bfib(?:onacci)?\b|\bretracement\b|\bextension\b`)

	fibBeforeRe = regexp.MustCompile(`(?i)(\d*\.?\d+%?)\s*(?:fib(?:onacci)?|retracement|extension)\b`)
	fibAfterRe  = regexp.MustCompile(`(?i)\bfib(?:onacci)?\s*(?:retracement|extension|level)?\s*(?:of|at)?\s*(\d*\.?\d+%?)`)
	fibPostRe   = regexp.MustCompile(`(?i)^\W{0,3}(\d*\.?\d+%?)\s*(?:fib(?:onacci)?|retracement|extension)\b`)

	supportPreRe     = regexp.MustCompile(`(?i)\bsupport\b|\bbounced?\s+(?:off|from)\b|\bfloor\b`)
	supportPostRe    = regexp.MustCompile(`(?i)^\W{0,3}(?:is\s+|as\s+)?(?:(?:strong|key|major|minor)\s+)?support\b`)
	resistancePreRe  = regexp.MustCompile(`(?i)\bresistance\b|\bhigh\s+of\b|\bprior\s+high\b|\bceiling\b`)
	resistancePostRe = regexp.MustCompile(`(?i)^\W{0,3}(?:is\s+|as\s+)?(?:(?:strong|key|major|minor)\s+)?resistance\b`)

	maRe     = regexp.MustCompile(`(?i)\b(?:(\d{1,3})[\s-]*(?:day|week|wk|d|w)?[\s-]*)?(?:moving\s+average|[sew]?ma)\b`)
	maPostRe = regexp.MustCompile(`(?i)^\W{0,3}(?:(\d{1,3})[\s-]*(?:day|week|wk|d|w)?[\s-]*)?(?:moving\s+average|[sew]?ma)\b`)

	waveRe = regexp.MustCompile(`(?i)\bwave\s*\(?(\d+|[ivx]+)\b`)

	buyZoneRe  = regexp.MustCompile(`(?i)\bbuy(?:ing)?\s+zone\b`)
	breakoutRe = regexp.MustCompile(`(?i)\bbreak(?:outs?|s\s+out|ing\s+out|\s+out|\s+above)\b|\bclear(?:s|ed|ing)?\b`)
)

// levelKeywordRes are every classifier keyword that can precede a price.
// A target or stop keyword only claims a price when no other keyword sits
// between it and the price.
var levelKeywordRes = []*regexp.Regexp{
	targetRe, stopRe, fibKeywordRe, supportPreRe, resistancePreRe, maRe, waveRe, buyZoneRe, breakoutRe,
}

// lastEnd returns the end offset of the last match of re in s, or -1.
func lastEnd(re *regexp.Regexp, s string) int {
	ms := re.FindAllStringIndex(s, -1)
	if len(ms) == 0 {
		return -1
	}
	return ms[len(ms)-1][1]
}

// nearestKeyword reports whether re is the classifier keyword closest
// before the price.
func nearestKeyword(re *regexp.Regexp, pre string) bool {
	end := lastEnd(re, pre)
	if end < 0 {
		return false
	}
	for _, other := range levelKeywordRes {
		if other != re && lastEnd(other, pre) > end {
			return false
		}
	}
	return true
}

func matchTarget(tc *tokenContext) (classification, bool) {
	if nearestKeyword(targetRe, tc.pre) {
		return classification{slot: slotTarget}, true
	}
	return classification{}, false
}

func matchStop(tc *tokenContext) (classification, bool) {
	if nearestKeyword(stopRe, tc.pre) {
		return classification{slot: slotStop}, true
	}
	return classification{}, false
}

func matchFibonacci(tc *tokenContext) (classification, bool) {
	type candidate struct {
		pos int
		raw string
	}
	var candidates []candidate
	for _, re := range []*regexp.Regexp{fibBeforeRe, fibAfterRe} {
		for _, m := range re.FindAllStringSubmatchIndex(tc.pre, -1) {
			candidates = append(candidates, candidate{pos: m[2], raw: tc.pre[m[2]:m[3]]})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].pos < candidates[j].pos })
	if m := fibPostRe.FindStringSubmatch(tc.post); m != nil {
		candidates = append(candidates, candidate{pos: len(tc.pre), raw: m[1]})
	}
	// The ratio nearest the price wins: last one in pre, else the one in post.
	for i := len(candidates) - 1; i >= 0; i-- {
		raw := candidates[i].raw
		ratio, ok := ParseFibRatio(raw)
		if !ok {
			continue
		}
		kind := model.LevelFibRetracement
		if ratio > 1.0 {
			kind = model.LevelFibExtension
		}
		return classification{slot: slotLevel, kind: kind, label: raw}, true
	}
	return classification{}, false
}

func matchSupport(tc *tokenContext) (classification, bool) {
	if supportPreRe.MatchString(tc.pre) || supportPostRe.MatchString(tc.post) {
		return classification{slot: slotLevel, kind: model.LevelSupport}, true
	}
	return classification{}, false
}

func matchResistance(tc *tokenContext) (classification, bool) {
	if resistancePreRe.MatchString(tc.pre) || resistancePostRe.MatchString(tc.post) {
		return classification{slot: slotLevel, kind: model.LevelResistance}, true
	}
	return classification{}, false
}

func matchMovingAverage(tc *tokenContext) (classification, bool) {
	if ms := maRe.FindAllStringSubmatch(tc.pre, -1); len(ms) > 0 {
		return classification{slot: slotLevel, kind: model.LevelMovingAverage, label: ms[len(ms)-1][1]}, true
	}
	if m := maPostRe.FindStringSubmatch(tc.post); m != nil {
		return classification{slot: slotLevel, kind: model.LevelMovingAverage, label: m[1]}, true
	}
	return classification{}, false
}

func matchWave(tc *tokenContext) (classification, bool) {
	ms := waveRe.FindAllStringSubmatch(tc.pre, -1)
	if len(ms) == 0 {
		return classification{}, false
	}
	label := ms[len(ms)-1][1]
	if label[0] < '0' || label[0] > '9' {
		label = strings.ToUpper(label)
	}
	return classification{slot: slotLevel, kind: model.LevelWaveTarget, label: label}, true
}

func matchBuyZone(tc *tokenContext) (classification, bool) {
	if tc.pair == nil {
		return classification{}, false
	}
	if !buyZoneRe.MatchString(tc.pairPre) && !buyZoneRe.MatchString(tc.pairPost) {
		return classification{}, false
	}
	kind := model.LevelBuyZoneLow
	if tc.tok.value == tc.pair.high && tc.pair.high != tc.pair.low {
		kind = model.LevelBuyZoneHigh
	}
	return classification{slot: slotLevel, kind: kind}, true
}

func matchBreakout(tc *tokenContext) (classification, bool) {
	if breakoutRe.MatchString(tc.pre) || breakoutRe.MatchString(tc.post) {
		return classification{slot: slotLevel, kind: model.LevelBreakout}, true
	}
	return classification{}, false
}

// classify runs levelRules against one token.
func classify(tc *tokenContext) (classification, bool) {
	for _, r := range levelRules {
		if c, ok := r.classify(tc); ok {
			return c, true
		}
	}
	return classification{}, false
}
