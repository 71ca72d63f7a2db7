package council

import (
	"regexp"
	"strings"
)

// rankingMarker is the literal section header evaluators are instructed to
// emit before their ranked list. Matching is case-insensitive and tolerates
// surrounding decoration.
const rankingMarker = "FINAL RANKING"

var (
	markerRe = regexp.MustCompile(`(?i)final\s+ranking`)

	// "1. Response C" / "2) Response A", optionally bold-wrapped.
	numberedRe = regexp.MustCompile(`(?i)^\s*\*{0,2}\d+\s*[.)]\s*\*{0,2}\s*Response\s+([A-Z]{1,3})\b`)

	// Any "Response C" mention, for the lenient fallback.
	mentionRe = regexp.MustCompile(`(?i)\bResponse\s+([A-Z]{1,3})\b`)
)

// ParseRanking extracts an ordered, deduplicated label sequence from one
// evaluator's free-form text.
//
// Two phases, in priority order:
//
//  1. Strict: find the FINAL RANKING marker and collect "N. Response X"
//     lines after it, in the order listed.
//  2. Fallback: when the marker is missing or yields nothing, collect every
//     "Response X" mention across the whole text in first-occurrence order.
//
// Labels outside the given map are dropped and repeated labels keep only
// their first position. An empty result is a valid outcome, not an error.
// The second return reports whether the fallback phase produced the result.
func ParseRanking(text string, labels *LabelMap) ([]Label, bool) {
	if ranked := parseStrict(text, labels); len(ranked) > 0 {
		return ranked, false
	}
	return parseFallback(text, labels), true
}

func parseStrict(text string, labels *LabelMap) []Label {
	loc := markerRe.FindStringIndex(text)
	if loc == nil {
		return nil
	}

	var ranked []Label
	seen := make(map[Label]bool)
	for _, line := range strings.Split(text[loc[1]:], "\n") {
		m := numberedRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		l := Label(strings.ToUpper(m[1]))
		if !labels.Has(l) || seen[l] {
			continue
		}
		seen[l] = true
		ranked = append(ranked, l)
	}
	return ranked
}

func parseFallback(text string, labels *LabelMap) []Label {
	var ranked []Label
	seen := make(map[Label]bool)
	for _, m := range mentionRe.FindAllStringSubmatch(text, -1) {
		l := Label(strings.ToUpper(m[1]))
		if !labels.Has(l) || seen[l] {
			continue
		}
		seen[l] = true
		ranked = append(ranked, l)
	}
	return ranked
}
