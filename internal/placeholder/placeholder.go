// Package placeholder shields inline markdown markup (code spans, HTML tags,
// link targets and bare URLs) from translation by swapping each occurrence
// for a numbered marker ([PH0], [PH1], …) that engines are asked to copy
// through. Restore puts the originals back.
package placeholder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	// inline code spans: `...` or ``...``
	reInlineCode = regexp.MustCompile("``[^`]+``|`[^`]+`")

	// link and image targets: the "](url "title")" tail after the link text
	reLinkTarget = regexp.MustCompile(`\]\([^)\s]*(?:\s+"[^"]*")?\)`)

	// HTML/XML tags and autolinks: opening, closing, and self-closing
	reHTMLTag = regexp.MustCompile(`<[^>\s][^>]*>`)

	// bare URLs
	reURL = regexp.MustCompile(`https?://[^\s)\]>]+`)

	// placeholder reference in translated text; engines sometimes add
	// spaces or change case
	rePlaceholder = regexp.MustCompile(`(?i)\[\s*PH\s*(\d+)\s*\]`)
)

// protectOrder lists the patterns in replacement order. Earlier patterns
// consume text later ones would otherwise split.
var protectOrder = []*regexp.Regexp{reInlineCode, reLinkTarget, reHTMLTag, reURL}

// Protect replaces inline markup with numbered placeholders in the order the
// patterns are applied. It returns the modified text and the captured
// originals for Restore.
func Protect(text string) (string, []string) {
	var markers []string

	replace := func(match string) string {
		id := fmt.Sprintf("[PH%d]", len(markers))
		markers = append(markers, match)
		return id
	}

	for _, re := range protectOrder {
		text = re.ReplaceAllStringFunc(text, replace)
	}
	return text, markers
}

// Restore substitutes [PHn] markers in text back with the originals captured
// by Protect. Markers whose originals were lost by the engine are appended
// at the end so no link or code span disappears; unrecognised indices leave
// the placeholder as-is.
func Restore(text string, markers []string) string {
	if len(markers) == 0 {
		return text
	}
	seen := make([]bool, len(markers))
	out := rePlaceholder.ReplaceAllStringFunc(text, func(match string) string {
		idx, ok := markerIndex(match, len(markers))
		if !ok {
			return match
		}
		seen[idx] = true
		return markers[idx]
	})

	var tail []string
	for i, ok := range seen {
		if !ok {
			tail = append(tail, markers[i])
		}
	}
	if len(tail) > 0 {
		out = strings.TrimRight(out, " ") + " " + strings.Join(tail, " ")
	}
	return out
}

// Validate returns the indices of markers created by Protect that are
// missing from the translated text.
func Validate(text string, markers []string) []int {
	seen := make([]bool, len(markers))
	for _, m := range rePlaceholder.FindAllString(text, -1) {
		if idx, ok := markerIndex(m, len(markers)); ok {
			seen[idx] = true
		}
	}
	var missing []int
	for i, ok := range seen {
		if !ok {
			missing = append(missing, i)
		}
	}
	return missing
}

func markerIndex(match string, n int) (int, bool) {
	sub := rePlaceholder.FindStringSubmatch(match)
	if len(sub) < 2 {
		return 0, false
	}
	idx, err := strconv.Atoi(sub[1])
	if err != nil || idx < 0 || idx >= n {
		return 0, false
	}
	return idx, true
}

// Set holds the markers of many texts protected together.
type Set struct {
	markers [][]string
}

// ProtectAll protects every text and remembers the markers by position.
func ProtectAll(texts []string) ([]string, *Set) {
	out := make([]string, len(texts))
	set := &Set{markers: make([][]string, len(texts))}
	for i, t := range texts {
		out[i], set.markers[i] = Protect(t)
	}
	return out, set
}

// Restore restores translated[i] with the markers of text i.
func (s *Set) Restore(translated []string) []string {
	out := make([]string, len(translated))
	for i, t := range translated {
		if i < len(s.markers) {
			out[i] = Restore(t, s.markers[i])
		} else {
			out[i] = t
		}
	}
	return out
}

// Count returns the number of markers placed across all texts.
func (s *Set) Count() int {
	n := 0
	for _, m := range s.markers {
		n += len(m)
	}
	return n
}

// Lost returns the positions of translated texts that dropped at least one
// of their markers.
func (s *Set) Lost(translated []string) []int {
	var idx []int
	for i, t := range translated {
		if i < len(s.markers) && len(Validate(t, s.markers[i])) > 0 {
			idx = append(idx, i)
		}
	}
	return idx
}

// Subset returns a Set holding the markers of the texts at idx, in order.
func (s *Set) Subset(idx []int) *Set {
	sub := &Set{markers: make([][]string, len(idx))}
	for i, j := range idx {
		if j >= 0 && j < len(s.markers) {
			sub.markers[i] = s.markers[j]
		}
	}
	return sub
}
