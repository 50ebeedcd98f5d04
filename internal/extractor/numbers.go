package extractor

import (
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"

	"TLISentinel/internal/calculator"
)

// amountPattern matches a plain or comma-grouped decimal number.
const amountPattern = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?`

var (
	amountRe  = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d+)?$`)
	percentRe = regexp.MustCompile(`^[+-]?(?:\d+(?:\.\d+)?|\.\d+)$`)
	ratioRe   = regexp.MustCompile(`^(?:\d+(?:\.\d+)?|\.\d+)$`)
)

// fibTolerance lets two-decimal shorthands like 0.38 or 1.27 resolve to
// their canonical ratio.
const fibTolerance = 0.005

// ParseAmount parses a currency amount such as "$1,234.50" or "118".
// Malformed grouping or non-positive values return false.
func ParseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "$")
	s = strings.TrimSpace(s)
	if !amountRe.MatchString(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil || !d.IsPositive() {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ParsePercent parses "+5.2%", "-3%" or "12.5" into a percentage value.
func ParsePercent(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if !percentRe.MatchString(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(strings.TrimPrefix(s, "+"))
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// ParseFibRatio resolves a ratio mention ("0.618", ".5", "61.8%",
// "161.8%") to its canonical Fibonacci ratio.
func ParseFibRatio(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSpace(strings.TrimSuffix(s, "%"))
	if !ratioRe.MatchString(s) {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if percent {
		d = d.Div(decimal.NewFromInt(100))
	}
	v, _ := d.Float64()
	for _, r := range calculator.FibRatios {
		if math.Abs(v-r) < fibTolerance {
			return r, true
		}
	}
	return 0, false
}
