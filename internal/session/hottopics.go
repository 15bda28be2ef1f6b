package session

import "strings"

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "is": {}, "are": {},
	"was": {}, "were": {}, "be": {}, "been": {}, "to": {}, "of": {}, "in": {}, "on": {},
	"for": {}, "with": {}, "it": {}, "that": {}, "this": {}, "at": {}, "by": {}, "as": {},
	"we": {}, "i": {}, "you": {}, "they": {}, "he": {}, "she": {}, "so": {}, "if": {},
}

// HotTopics frequency-ranks tokens from working-memory text after
// stop-word filtering, grounded on the same map-based counting shape
// the anomaly detector's Profiler uses for streaming stats, applied
// here to token frequency instead of numeric samples.
func HotTopics(text string, topN int) []string {
	counts := make(map[string]int)
	var order []string
	for _, field := range strings.Fields(strings.ToLower(text)) {
		tok := trimPunct(field)
		if tok == "" {
			continue
		}
		if _, skip := stopWords[tok]; skip {
			continue
		}
		if _, seen := counts[tok]; !seen {
			order = append(order, tok)
		}
		counts[tok]++
	}

	for i := 1; i < len(order); i++ {
		for j := i; j > 0 && counts[order[j]] > counts[order[j-1]]; j-- {
			order[j], order[j-1] = order[j-1], order[j]
		}
	}

	if topN > 0 && len(order) > topN {
		order = order[:topN]
	}
	return order
}

func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:\"'()[]{}")
}
