package access

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestTierFor(t *testing.T) {
	tests := []struct {
		name      string
		balance   int
		cost      int
		unlimited bool
		want      Tier
	}{
		{"covers cost", 3, 2, false, TierFull},
		{"exact balance", 2, 2, false, TierFull},
		{"insufficient", 1, 2, false, TierPartial},
		{"zero balance", 0, 1, false, TierPartial},
		{"unlimited overrides balance", 0, 5, true, TierFull},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TierFor(tt.balance, tt.cost, tt.unlimited); got != tt.want {
				t.Fatalf("TierFor(%d, %d, %v) = %s, want %s", tt.balance, tt.cost, tt.unlimited, got, tt.want)
			}
		})
	}
}

func TestTruncateWordsFullTierIsIdentity(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	if got := TruncateWords(text, TierFull); got != text {
		t.Fatalf("expected identity for full tier, got %q", got)
	}
}

func TestTruncateWordsPartialTier(t *testing.T) {
	text := "one two three four five six seven eight nine ten"
	got := TruncateWords(text, TierPartial)

	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	kept := strings.Fields(strings.TrimSuffix(got, "..."))
	if len(kept) != 3 {
		t.Fatalf("expected 3 of 10 words, got %d (%q)", len(kept), got)
	}
	if !strings.HasPrefix(text, strings.Join(kept, " ")) {
		t.Fatalf("truncation is not a prefix of the input: %q", got)
	}
}

func TestTruncateWordsKeepsAtLeastOneWord(t *testing.T) {
	got := TruncateWords("single", TierPartial)
	if got != "single" {
		t.Fatalf("expected the only word kept without marker, got %q", got)
	}

	got = TruncateWords("two words", TierPartial)
	if !strings.HasPrefix(got, "two") {
		t.Fatalf("expected at least one word, got %q", got)
	}
}

func TestTruncateWordsEmpty(t *testing.T) {
	if got := TruncateWords("", TierPartial); got != "" {
		t.Fatalf("expected empty passthrough, got %q", got)
	}
}

func TestTruncatePreviewSentenceBoundary(t *testing.T) {
	text := "First sentence here. Second sentence is a bit longer than the first. Third sentence closes the paragraph with more words still."
	got := TruncatePreview(text, TierPartial)

	if got == text {
		t.Fatalf("expected truncation for partial tier")
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("expected ellipsis suffix, got %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if !strings.HasSuffix(body, ".") {
		t.Fatalf("expected a sentence boundary before the marker, got %q", got)
	}
	if !strings.HasPrefix(text, body) {
		t.Fatalf("truncation is not a prefix of the input: %q", got)
	}
}

func TestTruncatePreviewWordBoundaryFallback(t *testing.T) {
	text := strings.Repeat("word ", 40) // no sentence marks at all
	got := TruncatePreview(text, TierPartial)

	body := strings.TrimSuffix(got, "...")
	if strings.HasSuffix(body, " ") || !strings.HasSuffix(body, "word") {
		t.Fatalf("expected a clean word boundary, got %q", got)
	}
}

func TestTruncatePreviewBounds(t *testing.T) {
	inputs := []string{
		"short",
		"a b",
		"No boundary whatsoever in this run of text that keeps going for quite a while without any punctuation at all",
		strings.Repeat("x", 200),
	}
	for _, text := range inputs {
		got := TruncatePreview(text, TierPartial)
		if len(got) > len(text)+len("...") {
			t.Fatalf("preview longer than input plus marker: %d > %d", len(got), len(text))
		}
		if got == "" {
			t.Fatalf("preview must not be empty for %q", text)
		}
	}
}

func TestTruncatePreviewFullTierIsIdentity(t *testing.T) {
	text := "Anything. At all."
	if got := TruncatePreview(text, TierFull); got != text {
		t.Fatalf("expected identity for full tier, got %q", got)
	}
}

func TestTruncatePreviewMultibyte(t *testing.T) {
	text := "ab" + strings.Repeat("世", 50)
	got := TruncatePreview(text, TierPartial)

	if !utf8.ValidString(got) {
		t.Fatalf("preview contains invalid UTF-8: %q", got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Fatalf("preview missing ellipsis: %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if !strings.HasPrefix(text, body) {
		t.Fatalf("preview %q is not a prefix of the input", body)
	}
	if n := utf8.RuneCountInString(body); n < 1 || n >= utf8.RuneCountInString(text) {
		t.Fatalf("kept %d runes of %d", n, utf8.RuneCountInString(text))
	}
}

func TestTruncatePreviewMultibyteSentenceBoundary(t *testing.T) {
	text := strings.Repeat("これはとても長い文章です。", 10)
	got := TruncatePreview(text, TierPartial)

	if !utf8.ValidString(got) {
		t.Fatalf("preview contains invalid UTF-8: %q", got)
	}
	body := strings.TrimSuffix(got, "...")
	if !strings.HasPrefix(text, body) {
		t.Fatalf("preview %q is not a prefix of the input", body)
	}
}
