package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/valpere/doctran/internal/chunker"
)

func TestChunk_ShortText(t *testing.T) {
	text := "  Hello, world!  "
	c := chunker.Chunk(text, 100)
	if c.Len() != 1 || c.Pieces[0] != text {
		t.Fatalf("expected the text unchanged, got %q", c.Pieces)
	}
	if got := c.Join([]string{"Bonjour"}); got != "Bonjour" {
		t.Errorf("Join = %q", got)
	}
}

func TestChunk_Unlimited(t *testing.T) {
	c := chunker.Chunk(strings.Repeat("word ", 500), 0)
	if c.Len() != 1 {
		t.Errorf("expected 1 piece when maxChars=0, got %d", c.Len())
	}
}

func TestChunk_ParagraphBoundary(t *testing.T) {
	text := "First paragraph text here.\n\nSecond paragraph text here."
	c := chunker.Chunk(text, 40)
	want := []string{"First paragraph text here.", "Second paragraph text here."}
	if len(c.Pieces) != 2 || c.Pieces[0] != want[0] || c.Pieces[1] != want[1] {
		t.Fatalf("got %q, want %q", c.Pieces, want)
	}
	if got := c.Join([]string{"A.", "B."}); got != "A.\n\nB." {
		t.Errorf("Join = %q", got)
	}
}

func TestChunk_SentenceBoundary(t *testing.T) {
	text := "One short sentence. Another short sentence. A third one here."
	c := chunker.Chunk(text, 45)
	if c.Len() != 2 {
		t.Fatalf("expected 2 pieces, got %q", c.Pieces)
	}
	if c.Pieces[0] != "One short sentence. Another short sentence." {
		t.Errorf("first piece = %q", c.Pieces[0])
	}
	if c.Join(c.Pieces) != text {
		t.Errorf("Join of the source pieces must restore the text")
	}
}

func TestChunk_FullWidthSentence(t *testing.T) {
	text := "这是第一句话。这是第二句话。这是第三句话。"
	c := chunker.Chunk(text, 10)
	for _, p := range c.Pieces {
		if !strings.HasSuffix(p, "。") {
			t.Errorf("piece %q should end at a full stop", p)
		}
	}
	if c.Join(c.Pieces) != text {
		t.Errorf("Join of the source pieces must restore the text")
	}
}

func TestChunk_WordBoundaryAndHardCut(t *testing.T) {
	words := chunker.Chunk("alpha beta gamma delta epsilon", 12)
	for _, p := range words.Pieces {
		if utf8.RuneCountInString(p) > 12 || strings.HasPrefix(p, " ") || strings.HasSuffix(p, " ") {
			t.Errorf("bad piece %q", p)
		}
	}
	if words.Join(words.Pieces) != "alpha beta gamma delta epsilon" {
		t.Errorf("Join = %q", words.Join(words.Pieces))
	}

	hard := chunker.Chunk(strings.Repeat("x", 25), 10)
	if hard.Len() != 3 || hard.Pieces[0] != strings.Repeat("x", 10) || hard.Pieces[2] != "xxxxx" {
		t.Errorf("hard cut = %q", hard.Pieces)
	}
}

func TestChunk_KeepsOuterWhitespace(t *testing.T) {
	text := "\n  Alpha beta. Gamma delta.  \n"
	c := chunker.Chunk(text, 12)
	if c.Len() != 2 {
		t.Fatalf("expected 2 pieces, got %q", c.Pieces)
	}
	if got := c.Join([]string{"A.", "G."}); got != "\n  A. G.  \n" {
		t.Errorf("Join = %q", got)
	}
}

func TestJoin_MissingTranslations(t *testing.T) {
	c := chunker.Chunk("Alpha beta. Gamma delta.", 12)
	if got := c.Join([]string{"A."}); got != "A. Gamma delta." {
		t.Errorf("Join = %q", got)
	}
}
