package fault

import (
	"strings"
	"unicode"
)

// Classification is the pure result of classifying one failure.
type Classification struct {
	Category    Category
	Severity    Severity
	Strategy    Strategy
	UserMessage string
}

// categoryKeywords is checked in order; the first category with a matching
// keyword wins. Keywords of four or more letters also match as a prefix of a
// word ("rendering", "layouts").
var categoryKeywords = []struct {
	category Category
	keywords []string
}{
	{CategoryRender, []string{"render", "draw", "paint", "display", "view", "frame", "glyph"}},
	{CategoryState, []string{"state", "store", "snapshot", "transition"}},
	{CategoryKeyboard, []string{"keyboard", "key", "keypress", "shortcut", "input", "binding"}},
	{CategoryExternalTool, []string{"tool", "external", "exec", "command", "subprocess", "mcp"}},
	{CategoryLayout, []string{"layout", "geometry", "resize", "preset", "dimension", "terminal"}},
	{CategoryPerformance, []string{"performance", "perf", "latency", "memory", "slow", "timeout", "deadline"}},
	{CategoryNetwork, []string{"network", "connection", "connect", "econnrefused", "dial", "socket", "dns", "http", "tcp"}},
	{CategoryValidation, []string{"validation", "validate", "invalid", "schema", "parse", "malformed"}},
}

var userMessages = map[Category]string{
	CategoryRender:       "A pane could not be drawn; showing the last good content.",
	CategoryState:        "Pane state was reset after an inconsistency.",
	CategoryKeyboard:     "That key could not be handled.",
	CategoryExternalTool: "An external tool failed; retrying.",
	CategoryLayout:       "The layout could not be applied; using a simpler one.",
	CategoryPerformance:  "The dashboard is running slowly.",
	CategoryNetwork:      "A network operation failed; retrying.",
	CategoryValidation:   "Received data was invalid and was ignored.",
	CategoryUnknown:      "An unexpected error occurred.",
}

// Classify derives category, severity and strategy from the error text and
// context. It is deterministic: equal inputs give equal results.
func Classify(name, message, stack string, c Context) Classification {
	cat := categorize(c.Type, message, stack)
	sev := severityFor(name, message, cat, c)
	return Classification{
		Category:    cat,
		Severity:    sev,
		Strategy:    StrategyFor(cat, sev),
		UserMessage: userMessages[cat],
	}
}

// categorize searches the context type first, then the message, then the
// stack.
func categorize(sources ...string) Category {
	for _, src := range sources {
		if src == "" {
			continue
		}
		words := tokenize(src)
		for _, entry := range categoryKeywords {
			if matchesAny(words, entry.keywords) {
				return entry.category
			}
		}
	}
	return CategoryUnknown
}

// tokenize lower-cases s and splits it into words on anything that is not a
// letter or digit. camelCase boundaries also split.
func tokenize(s string) []string {
	var words []string
	var b strings.Builder
	prevLower := false
	flush := func() {
		if b.Len() > 0 {
			words = append(words, b.String())
			b.Reset()
		}
	}
	for _, r := range s {
		switch {
		case unicode.IsUpper(r):
			if prevLower {
				flush()
			}
			b.WriteRune(unicode.ToLower(r))
			prevLower = false
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			prevLower = true
		default:
			flush()
			prevLower = false
		}
	}
	flush()
	return words
}

func matchesAny(words, keywords []string) bool {
	for _, w := range words {
		for _, k := range keywords {
			if w == k || (len(k) >= 4 && strings.HasPrefix(w, k)) {
				return true
			}
		}
	}
	return false
}

func severityFor(name, message string, cat Category, c Context) Severity {
	switch {
	case c.Uncaught || c.Type == TypeUncaught || isReferenceFault(name, message):
		return SeverityCritical
	case c.Rejection || c.Type == TypeRejection:
		return SeverityHigh
	case cat == CategoryLayout || cat == CategoryPerformance:
		return SeverityHigh
	case cat == CategoryRender || cat == CategoryExternalTool || cat == CategoryNetwork:
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func isReferenceFault(name, message string) bool {
	if name == "ReferenceError" {
		return true
	}
	return strings.Contains(message, "nil pointer dereference")
}

// StrategyFor is the fixed strategy table.
func StrategyFor(cat Category, sev Severity) Strategy {
	switch {
	case sev == SeverityCritical:
		return StrategyEscalate
	case cat == CategoryNetwork || cat == CategoryExternalTool:
		return StrategyRetry
	case cat == CategoryRender || cat == CategoryLayout:
		return StrategyFallback
	case cat == CategoryState:
		return StrategyReset
	default:
		return StrategyIgnore
	}
}
