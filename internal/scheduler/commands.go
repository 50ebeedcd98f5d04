package scheduler

import (
	"context"
	"fmt"
	"strings"

	"TLISentinel/internal/calculator"
	"TLISentinel/internal/extractor"
	"TLISentinel/internal/notifier"
)

const helpText = `Available commands:
• /analyze &lt;email text&gt; - extract and score signals
• /size &lt;account&gt; &lt;risk%&gt; &lt;entry&gt; &lt;stop&gt; - position size
• /fib &lt;swing high&gt; &lt;swing low&gt; - Fibonacci levels
• /refresh - re-score the latest stored signals`

// HandleCommand processes a user command and returns a reply.
func (s *Scheduler) HandleCommand(ctx context.Context, command string) string {
	name, args := splitCommand(command)
	switch name {
	case "/analyze":
		return s.analyzeCommand(ctx, args)
	case "/size":
		return sizeCommand(args)
	case "/fib":
		return fibCommand(args)
	case "/refresh":
		report, err := s.refresh(ctx)
		if err != nil {
			s.logger.Error().Err(err).Msg("refresh command")
			return "❌ Refresh failed: " + err.Error()
		}
		if report == "" {
			return "No stored signals yet."
		}
		return report
	default:
		return helpText
	}
}

// splitCommand returns the lower-cased command without any @botname suffix
// and the remaining text.
func splitCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	name, rest, _ := strings.Cut(text, " ")
	if i := strings.IndexByte(name, '\n'); i >= 0 {
		name, rest = name[:i], name[i+1:]+" "+rest
	}
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	return strings.ToLower(name), strings.TrimSpace(rest)
}

func (s *Scheduler) analyzeCommand(ctx context.Context, text string) string {
	if text == "" {
		return "Usage: /analyze &lt;email text&gt;"
	}
	analyses, err := s.Pipeline.Analyze(ctx, text)
	if err != nil {
		s.logger.Error().Err(err).Msg("analyze command")
		return "❌ Analysis failed: " + err.Error()
	}
	s.record(analyses)
	return notifier.FormatReport("Analysis", analyses)
}

func sizeCommand(args string) string {
	const usage = "Usage: /size &lt;account&gt; &lt;risk%&gt; &lt;entry&gt; &lt;stop&gt;"
	f := strings.Fields(args)
	if len(f) != 4 {
		return usage
	}
	account, ok1 := extractor.ParseAmount(f[0])
	risk, ok2 := extractor.ParsePercent(f[1])
	entry, ok3 := extractor.ParseAmount(f[2])
	stop, ok4 := extractor.ParseAmount(f[3])
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return usage
	}
	ps, err := calculator.CalculatePositionSize(account, risk, entry, stop)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return notifier.FormatPositionSize(account, risk, entry, stop, ps)
}

func fibCommand(args string) string {
	const usage = "Usage: /fib &lt;swing high&gt; &lt;swing low&gt;"
	f := strings.Fields(args)
	if len(f) != 2 {
		return usage
	}
	high, ok1 := extractor.ParseAmount(f[0])
	low, ok2 := extractor.ParseAmount(f[1])
	if !ok1 || !ok2 {
		return usage
	}
	levels, err := calculator.FibonacciLevels(high, low)
	if err != nil {
		return fmt.Sprintf("❌ %v", err)
	}
	return notifier.FormatFibLevels(levels)
}
