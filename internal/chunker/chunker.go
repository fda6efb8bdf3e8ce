// Package chunker cuts text that is too long for one provider request into
// pieces at paragraph, sentence or word boundaries, and puts translated
// pieces back together with the original separators.
package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Chunks is a text cut into pieces. Join restores the whitespace that stood
// between and around them.
type Chunks struct {
	Pieces []string
	// seps has one more entry than Pieces: leading, between each pair,
	// trailing.
	seps []string
}

// Chunk splits text into pieces of at most maxChars runes. Splits are
// attempted, in order of preference, at:
//  1. Paragraph boundaries (blank line)
//  2. Sentence-ending punctuation
//  3. Whitespace
//  4. A hard cut at maxChars
//
// Text that fits, and any text when maxChars <= 0, comes back as one piece.
func Chunk(text string, maxChars int) Chunks {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return Chunks{Pieces: []string{text}, seps: []string{"", ""}}
	}

	rest := strings.TrimLeftFunc(text, unicode.IsSpace)
	c := Chunks{seps: []string{text[:len(text)-len(rest)]}}
	trimmed := strings.TrimRightFunc(rest, unicode.IsSpace)
	trailing := rest[len(trimmed):]
	rest = trimmed

	for utf8.RuneCountInString(rest) > maxChars {
		cut := findSplit(rest, maxChars)
		head := strings.TrimRightFunc(rest[:cut], unicode.IsSpace)
		tail := strings.TrimLeftFunc(rest[cut:], unicode.IsSpace)
		c.Pieces = append(c.Pieces, head)
		c.seps = append(c.seps, rest[len(head):len(rest)-len(tail)])
		rest = tail
	}
	c.Pieces = append(c.Pieces, rest)
	c.seps = append(c.seps, trailing)
	return c
}

// Len returns the number of pieces.
func (c Chunks) Len() int { return len(c.Pieces) }

// Join reassembles translated, one entry per piece, with the original
// separators. Missing entries fall back to the source piece.
func (c Chunks) Join(translated []string) string {
	var sb strings.Builder
	for i, p := range c.Pieces {
		if i < len(c.seps) {
			sb.WriteString(c.seps[i])
		}
		if i < len(translated) {
			p = translated[i]
		}
		sb.WriteString(p)
	}
	if n := len(c.Pieces); n < len(c.seps) {
		sb.WriteString(c.seps[n])
	}
	return sb.String()
}

// sentenceEnd reports whether r closes a sentence. Full-width marks do not
// need a following space.
func sentenceEnd(r rune) (closes, needsSpace bool) {
	switch r {
	case '.', '!', '?':
		return true, true
	case '。', '！', '？':
		return true, false
	}
	return false, false
}

// findSplit returns the byte offset at which to cut text so that the first
// part holds at most maxChars runes. The offset is always positive.
func findSplit(text string, maxChars int) int {
	limit := len(text)
	n := 0
	for i := range text {
		if n == maxChars {
			limit = i
			break
		}
		n++
	}
	candidate := text[:limit]

	para := max(strings.LastIndex(candidate, "\n\n"), strings.LastIndex(candidate, "\r\n\r\n"))
	if para > 0 {
		return para
	}

	sentence := -1
	for i, r := range candidate {
		closes, needsSpace := sentenceEnd(r)
		if !closes {
			continue
		}
		end := i + utf8.RuneLen(r)
		if needsSpace {
			next, _ := utf8.DecodeRuneInString(candidate[end:])
			if end >= len(candidate) || !unicode.IsSpace(next) {
				continue
			}
		}
		sentence = end
	}
	if sentence > 0 {
		return sentence
	}

	if space := strings.LastIndexFunc(candidate, unicode.IsSpace); space > 0 {
		return space
	}
	return limit
}
