package synth

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
	}{
		{"latin sentences", "First sentence. Second one! A third? And a tail without punctuation", 30},
		{"cjk sentences", "各位听众朋友，大家好。今天是八月三十一日。欢迎收听每日新闻播报！再见？", 10},
		{"mixed punctuation", "Really?! Yes。Ok.", 8},
		{"newlines as boundaries", "line one\nline two\nline three", 12},
		{"single long word", strings.Repeat("x", 95), 20},
		{"long cjk run", strings.Repeat("字", 41), 10},
		{"short text", "hi", 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Split(tt.text, tt.max)

			if got := strings.Join(chunks, ""); got != tt.text {
				t.Errorf("concatenated chunks differ from input:\n got %q\nwant %q", got, tt.text)
			}
			for i, chunk := range chunks {
				if n := utf8.RuneCountInString(chunk); n > tt.max {
					t.Errorf("chunk %d has %d runes, limit %d", i, n, tt.max)
				}
				if chunk == "" {
					t.Errorf("chunk %d is empty", i)
				}
			}
		})
	}
}

func TestSplit_PrefersSentenceBoundaries(t *testing.T) {
	chunks := Split("One. Two. Three.", 10)

	// "One. Two." — не более 10 рун с учётом пробела, "Three." отдельно?
	// Проверяем только то, что гарантируется: границы chunks совпадают
	// с границами предложений, раз все предложения короче лимита.
	for i, chunk := range chunks {
		trimmed := strings.TrimSpace(chunk)
		if !strings.HasSuffix(trimmed, ".") {
			t.Errorf("chunk %d %q does not end at a sentence boundary", i, chunk)
		}
	}
}

func TestSplit_Empty(t *testing.T) {
	if got := Split("", 100); got != nil {
		t.Errorf("expected nil for empty text, got %v", got)
	}
}

func TestSplit_DefaultLimit(t *testing.T) {
	text := strings.Repeat("слово. ", 100)
	for _, chunk := range Split(text, 0) {
		if n := utf8.RuneCountInString(chunk); n > defaultMaxChunkChars {
			t.Errorf("chunk exceeds default limit: %d runes", n)
		}
	}
}
