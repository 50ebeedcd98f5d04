package notifier

import (
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"TLISentinel/internal/calculator"
	"TLISentinel/internal/model"
)

var tierIcons = map[model.Tier]string{
	model.TierStrongBuy:  "🟢🟢",
	model.TierBuy:        "🟢",
	model.TierHold:       "⚪",
	model.TierSell:       "🔴",
	model.TierStrongSell: "🔴🔴",
}

// FormatAnalysis formats one reconciled symbol into a Telegram message.
func FormatAnalysis(a *model.Analysis) string {
	var b strings.Builder
	sig := a.Signal
	rec := a.Recommendation
	snap := a.Snapshot

	b.WriteString(fmt.Sprintf("%s <b>$%s</b> | %s (%d/100)\n",
		tierIcons[rec.Overall], html.EscapeString(sig.Symbol), rec.Overall, rec.Score))
	b.WriteString(fmt.Sprintf("Signal: %s, confidence %.0f%%\n", sig.Sentiment, sig.Confidence*100))

	var targets []string
	if sig.TargetPrice != nil {
		targets = append(targets, fmt.Sprintf("Target %s", money(*sig.TargetPrice)))
	}
	if sig.StopPrice != nil {
		targets = append(targets, fmt.Sprintf("Stop %s", money(*sig.StopPrice)))
	}
	if len(targets) > 0 {
		b.WriteString(strings.Join(targets, " | ") + "\n")
	}

	if snap.HasPrice() {
		line := fmt.Sprintf("Price: %s", money(*snap.Price))
		if snap.ChangePct != nil {
			line += fmt.Sprintf(" (%+.2f%%)", *snap.ChangePct)
		}
		b.WriteString(line + "\n")
		var ind []string
		if snap.RSI != nil {
			ind = append(ind, fmt.Sprintf("RSI %.1f", *snap.RSI))
		}
		if m := snap.MACDOrUnknown(); m != model.MACDUnknown {
			ind = append(ind, "MACD "+string(m))
		}
		if snap.MA50 != nil {
			ind = append(ind, fmt.Sprintf("MA50 %.2f", *snap.MA50))
		}
		if snap.MA200 != nil {
			ind = append(ind, fmt.Sprintf("MA200 %.2f", *snap.MA200))
		}
		if len(ind) > 0 {
			b.WriteString(strings.Join(ind, " | ") + "\n")
		}
	} else {
		b.WriteString("Price: n/a\n")
	}

	if rr := rec.RiskReward; rr != nil {
		b.WriteString(fmt.Sprintf("R/R: +%.1f%% / -%.1f%% = %.2f:1\n",
			rr.PotentialGainPct, rr.PotentialLossPct, rr.Ratio))
	}
	b.WriteString(fmt.Sprintf("Risk: %s\n", rec.RiskLevel))

	if len(sig.Levels) > 0 {
		b.WriteString("\n📐 <b>Levels:</b>\n")
		for _, l := range sig.Levels {
			label := ""
			if l.Label != "" {
				label = " (" + html.EscapeString(l.Label) + ")"
			}
			b.WriteString(fmt.Sprintf("  %s %s%s\n", l.Kind, money(l.Value), label))
		}
	}

	if len(rec.Flags) > 0 {
		b.WriteString("\n")
		for _, f := range rec.Flags {
			b.WriteString("⚠️ " + html.EscapeString(f) + "\n")
		}
	}

	if sig.Notes != "" {
		b.WriteString("\n<i>" + html.EscapeString(sig.Notes) + "</i>\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatReport formats several analyses under one dated header.
func FormatReport(title string, analyses []model.Analysis) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("📊 <b>%s</b> | %s\n", html.EscapeString(title), time.Now().Format("2006-01-02 15:04")))
	if len(analyses) == 0 {
		b.WriteString("\nNo signals found.")
		return b.String()
	}
	for i := range analyses {
		b.WriteString("\n")
		b.WriteString(FormatAnalysis(&analyses[i]))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// FormatPositionSize formats a position sizing result.
func FormatPositionSize(accountSize, riskPct, entry, stop float64, ps calculator.PositionSize) string {
	var b strings.Builder
	b.WriteString("🧮 <b>Position Size</b>\n\n")
	b.WriteString(fmt.Sprintf("Account: %s | Risk: %.2f%%\n", money(accountSize), riskPct))
	b.WriteString(fmt.Sprintf("Entry: %s | Stop: %s\n", money(entry), money(stop)))
	b.WriteString("  ─────────────────\n")
	b.WriteString(fmt.Sprintf("Shares: %d\n", ps.Shares))
	b.WriteString(fmt.Sprintf("Position: %s (%.2f%% of account)\n", money(ps.PositionValue), ps.PositionPercent))
	b.WriteString(fmt.Sprintf("Risk: %s (%.2f%%), %s per share", money(ps.RiskAmount), ps.RiskPercent, money(ps.RiskPerShare)))
	return b.String()
}

// FormatFibLevels formats retracement and extension prices, ascending by ratio.
func FormatFibLevels(fl calculator.FibLevels) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("🌀 <b>Fibonacci</b> | high %s, low %s\n", money(fl.High), money(fl.Low)))
	b.WriteString("\n<b>Retracement:</b>\n")
	writeRatios(&b, fl.Retracement)
	b.WriteString("\n<b>Extension:</b>\n")
	writeRatios(&b, fl.Extension)
	return strings.TrimRight(b.String(), "\n")
}

func writeRatios(b *strings.Builder, levels map[float64]float64) {
	ratios := make([]float64, 0, len(levels))
	for r := range levels {
		ratios = append(ratios, r)
	}
	sort.Float64s(ratios)
	for _, r := range ratios {
		b.WriteString(fmt.Sprintf("  %.3f → %s\n", r, money(levels[r])))
	}
}

func money(v float64) string {
	return fmt.Sprintf("$%.2f", v)
}
