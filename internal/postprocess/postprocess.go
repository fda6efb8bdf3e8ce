// Package postprocess strips the wrapping chat models put around the
// translations they return: reasoning blocks, code fences, a lead-in line
// and outer quotes.
package postprocess

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Clean returns a single plain translation with all wrapping removed.
func Clean(text string) string {
	text = StripWrapping(text)
	text = dropLeadIn(text)
	return strings.TrimSpace(unquote(text))
}

// StripWrapping removes reasoning blocks and a surrounding code fence,
// leaving the payload the model was asked to produce. Quotes are kept so
// JSON content parses.
func StripWrapping(text string) string {
	return unfence(dropReasoning(text))
}

var listMarkerRe = regexp.MustCompile(`^\s*(?:\d+[.)]\s*|[-•*]\s+)`)

// StripListMarker removes a leading "1.", "2)", "-", "*" or "•" marker.
func StripListMarker(line string) string {
	return strings.TrimSpace(listMarkerRe.ReplaceAllString(line, ""))
}

var (
	reasoningOpen = regexp.MustCompile(`(?i)<(think|thinking|reasoning|reflection)>`)
	// RE2 has no backreferences, so each tag gets its own closer.
	reasoningClose = map[string]*regexp.Regexp{
		"think":      regexp.MustCompile(`(?i)</think>`),
		"thinking":   regexp.MustCompile(`(?i)</thinking>`),
		"reasoning":  regexp.MustCompile(`(?i)</reasoning>`),
		"reflection": regexp.MustCompile(`(?i)</reflection>`),
	}
)

// dropReasoning cuts every reasoning block. A block left open means the
// model was cut off, and everything from its tag on is dropped.
func dropReasoning(text string) string {
	for {
		loc := reasoningOpen.FindStringSubmatchIndex(text)
		if loc == nil {
			return strings.TrimSpace(text)
		}
		closer := reasoningClose[strings.ToLower(text[loc[2]:loc[3]])]
		end := closer.FindStringIndex(text[loc[1]:])
		if end == nil {
			return strings.TrimSpace(text[:loc[0]])
		}
		text = text[:loc[0]] + text[loc[1]+end[1]:]
	}
}

var fenceRe = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n?(.*?)\\s*```$")

func unfence(text string) string {
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	return text
}

// leadInRe matches "Here is the translation:", "Sure, here's the French
// translation:", "Translation (fr):" and similar openers. The colon is
// required.
var leadInRe = regexp.MustCompile(`(?i)^(?:(?:certainly|sure|of course)[,.!]?\s*)?` +
	`(?:here(?:'s| is)\s+)?(?:the\s+|your\s+)?(?:final\s+|\p{L}+\s+)?` +
	`(?:translation|translated text)(?:\s*\([^)]*\))?\s*:`)

func dropLeadIn(text string) string {
	if loc := leadInRe.FindStringIndex(text); loc != nil {
		return strings.TrimSpace(text[loc[1]:])
	}
	return text
}

var quotePairs = map[rune]rune{
	'"':      '"',
	'\'':     '\'',
	'«':      '»',
	'\u201c': '\u201d',
	'\u2018': '\u2019',
	'「':      '」',
}

// unquote strips one matching pair of outer quotes.
func unquote(text string) string {
	first, fs := utf8.DecodeRuneInString(text)
	closing, ok := quotePairs[first]
	if !ok || len(text) <= fs {
		return text
	}
	last, ls := utf8.DecodeLastRuneInString(text)
	if last != closing {
		return text
	}
	return strings.TrimSpace(text[fs : len(text)-ls])
}
