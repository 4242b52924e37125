package access

import "strings"

// Tier describes how much of an analysis a caller may see.
type Tier string

const (
	TierFull    Tier = "full"
	TierPartial Tier = "partial"
)

// previewRatio is the share of content a partial-tier caller sees.
const previewRatio = 0.3

// TierFor resolves the access tier for a caller. Unlimited accounts always get
// full access; everyone else needs a balance covering the kind's credit cost.
func TierFor(balance, cost int, unlimited bool) Tier {
	if unlimited {
		return TierFull
	}
	if balance >= cost {
		return TierFull
	}
	return TierPartial
}

// TruncateWords returns the first 30% of words of text for partial tier,
// with a trailing ellipsis marker. Full tier is the identity. Used for the
// per-increment snapshots broadcast while a job streams.
func TruncateWords(text string, tier Tier) string {
	if tier == TierFull || text == "" {
		return text
	}
	words := strings.Fields(text)
	if len(words) == 0 {
		return text
	}
	keep := int(float64(len(words)) * previewRatio)
	if keep < 1 {
		keep = 1
	}
	if keep >= len(words) {
		keep = len(words)
	}
	truncated := strings.Join(words[:keep], " ")
	if keep < len(words) {
		truncated += "..."
	}
	return truncated
}

// TruncatePreview returns a 30%-by-characters prefix of text for partial tier,
// extended to the nearest sentence boundary when one is close, falling back to
// a word boundary. The cut is counted in runes so multibyte text never splits
// mid-character. Full tier is the identity. Used when rendering stored results
// to a partial-tier caller.
func TruncatePreview(text string, tier Tier) string {
	if tier == TierFull || text == "" {
		return text
	}
	runes := []rune(text)
	cut := int(float64(len(runes)) * previewRatio)
	if cut < 1 {
		cut = 1
	}
	if cut >= len(runes) {
		return text
	}
	kept := string(runes[:cut])

	// Prefer ending on a sentence close to the cut point.
	if idx := lastSentenceEnd(kept); idx >= len(kept)/2 {
		return kept[:idx+1] + "..."
	}

	// Otherwise back up to a word boundary.
	if idx := strings.LastIndexAny(kept, " \t\n"); idx > 0 {
		return kept[:idx] + "..."
	}
	return kept + "..."
}

func lastSentenceEnd(s string) int {
	best := -1
	for _, mark := range []string{".", "!", "?"} {
		if idx := strings.LastIndex(s, mark); idx > best {
			best = idx
		}
	}
	return best
}
