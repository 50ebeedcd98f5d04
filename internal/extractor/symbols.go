package extractor

import (
	"regexp"
	"strings"
)

var (
	tickerRe   = regexp.MustCompile(`\$([A-Z]{1,6})\b`)
	bareWordRe = regexp.MustCompile(`\b[A-Z]{2,5}\b`)
)

// commodities are checked, in order, when an email names no ticker.
var commodities = []string{"GOLD", "SILVER", "COPPER", "OIL", "CRUDE"}

var commodityRes = func() []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(commodities))
	for i, c := range commodities {
		out[i] = regexp.MustCompile(`\b` + c + `\b`)
	}
	return out
}()

// commodityWindow bounds how far into the email a commodity must appear to
// count as the subject.
const commodityWindow = 500

// stopWords are uppercase tokens that look like tickers but never are.
var stopWords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`
		THE AND OR BUT FOR NOT ARE WAS WE YOU ALL CAN HER ONE OUR OUT DAY GET HAS HIM
		HIS HOW MAN NEW NOW OLD SEE TWO WAY WHO BOY DID ITS LET PUT SAY SHE TOO USE
		FROM DATE SUBJECT REPLY TO EMAIL VIEW APP LIKE SHARE COMMENT POST SENT BEGIN
		MESSAGE FORWARDED DCA WAVE FEB JAN MAR APR MAY JUN JUL AUG SEP SEPT OCT NOV DEC
		THIS HAVE BEEN ONCE THAT WITH WILL MUST JUST BACK THEN NEXT MORE ALSO HERE VERY
		MA SMA EMA WMA DMA PT FIB RSI MACD NYC US USA OK SF CA TLI USD EUR ATH ATL EPS
		CEO CFO IPO ETF AI PE BUY SELL HOLD LONG SHORT STOP EXIT WAIT WATCH TP SL RR
		IMO FYI NOTE PLAN YTD EOD EOW AM PM EST ET PST UTC GMT`) {
		stopWords[w] = struct{}{}
	}
}

// currencies are the only cashtags that never name a symbol.
var currencies = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CAD": {}, "AUD": {}, "CHF": {}, "CNY": {},
}

// mention is one occurrence of a symbol in the text.
type mention struct {
	symbol string
	pos    int
}

// detectSymbols returns every symbol mention in text order. Cashtags win and
// only currencies are filtered from them. Bare uppercase words are checked
// against stopWords and only considered in sentences carrying a price when no
// cashtag exists; commodities only when nothing else matched.
func detectSymbols(text string, sentences []span, tokens []token) []mention {
	var mentions []mention
	for _, m := range tickerRe.FindAllStringSubmatchIndex(text, -1) {
		sym := text[m[2]:m[3]]
		if _, skip := currencies[sym]; skip {
			continue
		}
		mentions = append(mentions, mention{symbol: sym, pos: m[0]})
	}
	if len(mentions) > 0 {
		return mentions
	}

	for _, s := range sentences {
		if !spanHasToken(s, tokens) {
			continue
		}
		body := text[s.start:s.end]
		for _, m := range bareWordRe.FindAllStringIndex(body, -1) {
			sym := body[m[0]:m[1]]
			if _, skip := stopWords[sym]; skip {
				continue
			}
			mentions = append(mentions, mention{symbol: sym, pos: s.start + m[0]})
		}
	}
	if len(mentions) > 0 {
		return mentions
	}

	head := strings.ToUpper(text)
	if len(head) > commodityWindow {
		head = head[:commodityWindow]
	}
	for i, re := range commodityRes {
		if loc := re.FindStringIndex(head); loc != nil {
			return []mention{{symbol: commodities[i], pos: loc[0]}}
		}
	}
	return nil
}

// uniqueSymbols deduplicates mentions, preserving first-seen order.
func uniqueSymbols(mentions []mention) []string {
	seen := make(map[string]bool, len(mentions))
	var out []string
	for _, m := range mentions {
		if seen[m.symbol] {
			continue
		}
		seen[m.symbol] = true
		out = append(out, m.symbol)
	}
	return out
}

// symbolAt attributes a text position to the nearest preceding mention, or
// failing that to the first mention inside the enclosing sentence, or to the
// first symbol of the email.
func symbolAt(pos int, enclosing span, mentions []mention) string {
	owner := ""
	for _, m := range mentions {
		if m.pos > pos {
			break
		}
		owner = m.symbol
	}
	if owner != "" {
		return owner
	}
	for _, m := range mentions {
		if m.pos >= enclosing.start && m.pos < enclosing.end {
			return m.symbol
		}
	}
	return mentions[0].symbol
}
