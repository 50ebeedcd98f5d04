// Package extractor turns analyst email text into per-symbol trading signals.
//
// Extraction is best effort: anything that cannot be parsed or classified is
// dropped, never reported as an error. Every call builds its own state, so
// Extract is safe to call concurrently.
package extractor

import (
	"regexp"
	"sort"
	"strings"

	"TLISentinel/internal/model"
)

const (
	preWindow  = 80
	postWindow = 40
)

var (
	boundaryRe = regexp.MustCompile(`[.!?]+(?:\s+|$)|\n+`)
	dollarRe   = regexp.MustCompile(`\$\s?(` + amountPattern + `)`)
	// A bare number counts as a price only right after a level keyword.
	keywordNumRe = regexp.MustCompile(`(?i)(?:\b(?:PT|price\s+target|target\s+price|support|resistance|buy\s+zone)|(?:^|[^\w-])stop(?:[\s-]*loss)?)\b\s*(?:is|at|of|near|around|between|from|:|=)?\s*(` + amountPattern + `)\b`)
	// Second bound of a range whose first bound is already a price.
	rangeTailRe = regexp.MustCompile(`^\s*(?:-|–|—|to|and|through)\s*\$?\s?(` + amountPattern + `)\b`)
	rangeJoinRe = regexp.MustCompile(`^\s*(?:-|–|—|to|and|through)\s*$`)
	notPriceRe  = regexp.MustCompile(`(?i)^\s*(?:%|x\b|fib|retracement|extension|[ap]\.?m\b|day|week|wk|[sew]?ma\b)`)
)

// span is a half-open byte range of the source text.
type span struct {
	start, end int
}

// Extract returns one signal per symbol found in text, in first-seen order.
// Re-running it on the same text yields the same result.
func Extract(text string) []model.ExtractedSignal {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	sentences := splitSentences(text)
	tokens := findTokens(text, sentences)
	mentions := detectSymbols(text, sentences, tokens)
	if len(mentions) == 0 {
		return nil
	}
	symbols := uniqueSymbols(mentions)

	builders := make(map[string]*signalBuilder, len(symbols))
	for _, sym := range symbols {
		builders[sym] = newSignalBuilder(sym)
	}

	for _, s := range sentences {
		for _, sym := range sentenceOwners(s, mentions, len(symbols) == 1) {
			builders[sym].addText(text[s.start:s.end])
		}
	}

	for _, s := range sentences {
		classifySentence(text, s, tokens, func(tok token, c classification) {
			owner := symbols[0]
			if len(symbols) > 1 {
				owner = symbolAt(tok.start, s, mentions)
			}
			builders[owner].add(tok, c)
		})
	}

	out := make([]model.ExtractedSignal, 0, len(symbols))
	for _, sym := range symbols {
		out = append(out, builders[sym].build())
	}
	return out
}

// splitSentences cuts text at sentence punctuation and line breaks, trimming
// surrounding whitespace. Empty pieces are dropped.
func splitSentences(text string) []span {
	var out []span
	add := func(start, end int) {
		for start < end && isSpace(text[start]) {
			start++
		}
		for end > start && isSpace(text[end-1]) {
			end--
		}
		if end > start && strings.Trim(text[start:end], ".!?…") != "" {
			out = append(out, span{start, end})
		}
	}
	prev := 0
	for _, b := range boundaryRe.FindAllStringIndex(text, -1) {
		// keep the terminating punctuation inside the sentence
		end := b[0]
		for end < b[1] && strings.IndexByte(".!?", text[end]) >= 0 {
			end++
		}
		add(prev, end)
		prev = b[1]
	}
	add(prev, len(text))
	return out
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// malformedTail reports whether a number was cut short by bad grouping, as in
// "1,2345" or "1,23,456".
func malformedTail(rest string) bool {
	if rest == "" {
		return false
	}
	if isDigit(rest[0]) {
		return true
	}
	return rest[0] == ',' && len(rest) > 1 && isDigit(rest[1])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

// findTokens collects every price mention, in text order.
func findTokens(text string, sentences []span) []token {
	seen := make(map[int]bool)
	var out []token
	add := func(start, end, numStart, numEnd int) {
		if seen[numStart] || malformedTail(text[end:]) {
			return
		}
		if notPriceRe.MatchString(text[end:]) {
			return
		}
		v, ok := ParseAmount(text[numStart:numEnd])
		if !ok {
			return
		}
		seen[numStart] = true
		out = append(out, token{start: start, end: end, value: v})
	}

	for _, s := range sentences {
		body := text[s.start:s.end]
		for _, m := range dollarRe.FindAllStringSubmatchIndex(body, -1) {
			add(s.start+m[0], s.start+m[1], s.start+m[2], s.start+m[3])
		}
		for _, m := range keywordNumRe.FindAllStringSubmatchIndex(body, -1) {
			add(s.start+m[2], s.start+m[3], s.start+m[2], s.start+m[3])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })

	// Range tails: "$100 - 110". A "$"-prefixed tail is already a token.
	heads := append([]token(nil), out...)
	for _, tok := range heads {
		sent := enclosing(sentences, tok.start)
		rest := text[tok.end:sent.end]
		if m := rangeTailRe.FindStringSubmatchIndex(rest); m != nil {
			add(tok.end+m[2], tok.end+m[3], tok.end+m[2], tok.end+m[3])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func enclosing(sentences []span, pos int) span {
	for _, s := range sentences {
		if pos >= s.start && pos < s.end {
			return s
		}
	}
	return span{pos, pos}
}

func spanHasToken(s span, tokens []token) bool {
	for _, t := range tokens {
		if t.start >= s.start && t.start < s.end {
			return true
		}
	}
	return false
}

// sentenceOwners decides which symbols a sentence speaks about: every symbol
// it mentions, else the symbol in effect before it, else the first symbol.
func sentenceOwners(s span, mentions []mention, single bool) []string {
	if single {
		return []string{mentions[0].symbol}
	}
	var owners []string
	seen := map[string]bool{}
	for _, m := range mentions {
		if m.pos >= s.start && m.pos < s.end && !seen[m.symbol] {
			seen[m.symbol] = true
			owners = append(owners, m.symbol)
		}
	}
	if len(owners) > 0 {
		return owners
	}
	return []string{symbolAt(s.start, s, mentions)}
}

// classifySentence builds each token's context and applies levelRules.
// Tokens no rule claims inherit the kind of a range partner, else are dropped.
func classifySentence(text string, s span, all []token, emit func(token, classification)) {
	var toks []token
	for _, t := range all {
		if t.start >= s.start && t.start < s.end {
			toks = append(toks, t)
		}
	}

	contexts := make([]tokenContext, len(toks))
	for i, t := range toks {
		preStart := s.start
		if i > 0 {
			preStart = toks[i-1].end
		}
		postEnd := s.end
		if i+1 < len(toks) {
			postEnd = toks[i+1].start
		}
		pre := text[preStart:t.start]
		if len(pre) > preWindow {
			pre = pre[len(pre)-preWindow:]
		}
		post := text[t.end:postEnd]
		if len(post) > postWindow {
			post = post[:postWindow]
		}
		contexts[i] = tokenContext{tok: t, pre: pre, post: post}
	}

	for i := 0; i+1 < len(toks); i++ {
		if !rangeJoinRe.MatchString(text[toks[i].end:toks[i+1].start]) {
			continue
		}
		p := &rangePair{low: toks[i].value, high: toks[i+1].value}
		if p.low > p.high {
			p.low, p.high = p.high, p.low
		}
		for _, j := range []int{i, i + 1} {
			contexts[j].pair = p
			contexts[j].pairPre = contexts[i].pre
			contexts[j].pairPost = contexts[i+1].post
		}
	}

	var prev *classification
	for i := range contexts {
		c, ok := classify(&contexts[i])
		if !ok && prev != nil && prev.slot == slotLevel && contexts[i].pair != nil && i > 0 && contexts[i-1].pair == contexts[i].pair {
			c, ok = *prev, true
		}
		if !ok {
			prev = nil
			continue
		}
		emit(contexts[i].tok, c)
		cc := c
		prev = &cc
	}
}
