package text

import (
	"strings"
	"testing"
)

func collect(t *testing.T, input string, budget int) []string {
	t.Helper()
	s, err := NewSplitter([]byte(input), budget)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	var chunks []string
	for s.Next() {
		chunks = append(chunks, s.Text())
	}
	if s.Err() != nil {
		t.Fatalf("Next() error = %v", s.Err())
	}
	return chunks
}

func TestSplitterRespectsBudget(t *testing.T) {
	input := strings.Repeat("the quick brown fox jumps over the lazy dog ", 50)
	for _, budget := range []int{7, 16, 64, 250, 10_000} {
		for _, chunk := range collect(t, input, budget) {
			if len(chunk) > budget {
				t.Fatalf("budget %d: chunk %q is %d bytes", budget, chunk, len(chunk))
			}
			if !ValidUTF8([]byte(chunk)) {
				t.Fatalf("budget %d: chunk %q is not valid UTF-8", budget, chunk)
			}
		}
	}
}

func TestSplitterPreservesWords(t *testing.T) {
	input := "alpha beta gamma delta epsilon zeta eta theta"
	chunks := collect(t, input, 12)
	joined := strings.Join(chunks, " ")
	if joined != input {
		t.Fatalf("expected words preserved, got %q", joined)
	}
}

func TestSplitterPrefersNewlineOverSpace(t *testing.T) {
	input := "first line\nsecond part here"
	chunks := collect(t, input, 14)
	if len(chunks) == 0 || chunks[0] != "first line" {
		t.Fatalf("expected split at newline, got %q", chunks)
	}
}

func TestSplitterNeverCutsMultiByteRunes(t *testing.T) {
	input := strings.Repeat("日本語のテキスト", 20)
	for _, budget := range []int{4, 5, 7, 10, 33} {
		chunks := collect(t, input, budget)
		var rebuilt strings.Builder
		for _, chunk := range chunks {
			if !ValidUTF8([]byte(chunk)) {
				t.Fatalf("budget %d: invalid UTF-8 chunk %q", budget, chunk)
			}
			if len(chunk) > budget {
				t.Fatalf("budget %d: oversized chunk %q", budget, chunk)
			}
			rebuilt.WriteString(chunk)
		}
		if rebuilt.String() != input {
			t.Fatalf("budget %d: content lost on rejoin", budget)
		}
	}
}

func TestSplitterKeepsEntitiesIntact(t *testing.T) {
	input := "fish &amp; chips plus more words after the entity"
	for budget := 8; budget <= 20; budget++ {
		for _, chunk := range collect(t, input, budget) {
			amp := strings.LastIndexByte(chunk, '&')
			if amp >= 0 && !strings.Contains(chunk[amp:], ";") {
				t.Fatalf("budget %d: chunk %q ends inside an entity", budget, chunk)
			}
		}
	}
}

func TestSplitterEntityLargerThanBudget(t *testing.T) {
	s, err := NewSplitter([]byte("&aVeryLongUnterminatedEntityRef and then some"), 6)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	for s.Next() {
	}
	if s.Err() == nil {
		t.Fatalf("expected error for entity larger than budget")
	}
}

func TestSplitterRuneLargerThanBudget(t *testing.T) {
	s, err := NewSplitter([]byte(strings.Repeat("語", 10)), 2)
	if err != nil {
		t.Fatalf("NewSplitter() error = %v", err)
	}
	for s.Next() {
	}
	if s.Err() != ErrBudgetTooSmall {
		t.Fatalf("expected ErrBudgetTooSmall, got %v", s.Err())
	}
}

func TestSplitterRejectsNonPositiveBudget(t *testing.T) {
	if _, err := NewSplitter([]byte("hello"), 0); err == nil {
		t.Fatalf("expected error for zero budget")
	}
	if _, err := NewSplitter([]byte("hello"), -5); err == nil {
		t.Fatalf("expected error for negative budget")
	}
}

func TestSplitterTrimsWhitespaceOnlyChunks(t *testing.T) {
	chunks := collect(t, "word      \n\n      other", 8)
	for _, chunk := range chunks {
		if strings.TrimSpace(chunk) == "" {
			t.Fatalf("emitted whitespace-only chunk %q", chunk)
		}
	}
}

func TestSplitterShortInputSingleChunk(t *testing.T) {
	chunks := collect(t, "Hello World!", 4096)
	if len(chunks) != 1 || chunks[0] != "Hello World!" {
		t.Fatalf("expected single chunk, got %q", chunks)
	}
}

func TestSanitizeReplacesControlRanges(t *testing.T) {
	in := "a\x00b\x08c\td\x0be\x0cf\ng\x0eh\x1fi"
	got := Sanitize(in)
	want := "a b c\td e f\ng h i"
	if got != want {
		t.Fatalf("Sanitize() = %q, want %q", got, want)
	}
}

func TestEscape(t *testing.T) {
	if got := Escape(`1 < 2 & 4 > 3`); got != "1 &lt; 2 &amp; 4 &gt; 3" {
		t.Fatalf("Escape() = %q", got)
	}
}
