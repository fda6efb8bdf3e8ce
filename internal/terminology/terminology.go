// Package terminology shields glossary terms from the translation engine.
//
// Before translation every matched source term is swapped for a sentinel
// token the engine is expected to copy through untouched. After translation
// the sentinels are replaced with the glossary's target terms.
package terminology

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// DefaultMaxCategories caps how many categories one call may select.
const DefaultMaxCategories = 10

// Entry is one glossary row. An empty OwnerID marks a public entry.
type Entry struct {
	SourceTerm string
	TargetTerm string
	SourceLang string
	TargetLang string
	CategoryID int64
	OwnerID    string
}

// PlaceholderMap maps each sentinel placed in one string to its target term.
type PlaceholderMap map[string]string

// Source supplies glossary entries. It is implemented by the store.
type Source interface {
	// TermsForPair returns every entry for the language pair regardless of
	// owner or category.
	TermsForPair(ctx context.Context, srcLang, tgtLang string) ([]Entry, error)
	// MissingCategories returns the ids among ids that do not exist.
	MissingCategories(ctx context.Context, ids []int64) ([]int64, error)
}

// Options control one Protect call.
type Options struct {
	Enabled       bool
	CaseSensitive bool
	// CategoryIDs restricts entries to these categories. Nil means no
	// restriction; an empty non-nil slice turns protection off for the call.
	CategoryIDs   []int64
	UserID        string
	MaxCategories int
}

var ErrUnknownCategory = errors.New("unknown terminology category")

// CategoryError lists requested categories that do not exist.
type CategoryError struct {
	IDs []int64
}

func (e *CategoryError) Error() string {
	ids := make([]string, len(e.IDs))
	for i, id := range e.IDs {
		ids[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("%v: %s", ErrUnknownCategory, strings.Join(ids, ","))
}

func (e *CategoryError) Unwrap() error { return ErrUnknownCategory }

// Sentinel returns the placeholder token for entry index i.
func Sentinel(i int) string {
	return "__TRANS_TERM_" + strconv.Itoa(i) + "__"
}

var sentinelPattern = regexp.MustCompile(`(?i)__trans_term_(\d+)__`)

// Protector replaces glossary terms with sentinels.
type Protector struct {
	source Source
	cache  *cache
}

// New returns a Protector reading entries from src and caching each
// language pair for ttl.
func New(src Source, ttl time.Duration) *Protector {
	return &Protector{source: src, cache: newCache(ttl)}
}

// Protect returns texts with glossary terms replaced by sentinels and one
// PlaceholderMap per text. On any failure the texts are returned unchanged
// together with empty maps and the error, so callers may continue without
// protection.
func (p *Protector) Protect(ctx context.Context, texts []string, srcLang, tgtLang string, opts Options) ([]string, []PlaceholderMap, error) {
	identity := func() ([]string, []PlaceholderMap) {
		out := make([]string, len(texts))
		copy(out, texts)
		return out, make([]PlaceholderMap, len(texts))
	}

	if !opts.Enabled || len(texts) == 0 || (opts.CategoryIDs != nil && len(opts.CategoryIDs) == 0) {
		out, maps := identity()
		return out, maps, nil
	}

	categories := opts.CategoryIDs
	limit := opts.MaxCategories
	if limit <= 0 {
		limit = DefaultMaxCategories
	}
	if len(categories) > limit {
		categories = categories[:limit]
	}

	if len(categories) > 0 {
		missing, err := p.source.MissingCategories(ctx, categories)
		if err != nil {
			out, maps := identity()
			return out, maps, fmt.Errorf("check categories: %w", err)
		}
		if len(missing) > 0 {
			out, maps := identity()
			return out, maps, &CategoryError{IDs: missing}
		}
	}

	all, err := p.load(ctx, srcLang, tgtLang)
	if err != nil {
		out, maps := identity()
		return out, maps, fmt.Errorf("load terminology: %w", err)
	}

	entries := filter(all, categories, opts.UserID)
	if len(entries) == 0 {
		out, maps := identity()
		return out, maps, nil
	}

	patterns := make([]*regexp.Regexp, len(entries))
	for i, e := range entries {
		expr := regexp.QuoteMeta(e.SourceTerm)
		if !opts.CaseSensitive {
			expr = "(?i)" + expr
		}
		patterns[i] = regexp.MustCompile(expr)
	}

	out := make([]string, len(texts))
	maps := make([]PlaceholderMap, len(texts))
	for i, text := range texts {
		out[i], maps[i] = protectOne(text, entries, patterns)
	}
	return out, maps, nil
}

func (p *Protector) load(ctx context.Context, srcLang, tgtLang string) ([]Entry, error) {
	if entries, ok := p.cache.get(srcLang, tgtLang); ok {
		return entries, nil
	}
	entries, err := p.source.TermsForPair(ctx, srcLang, tgtLang)
	if err != nil {
		return nil, err
	}
	sortEntries(entries)
	p.cache.set(srcLang, tgtLang, entries)
	return entries, nil
}

// filter keeps public entries and those owned by userID, restricted to
// categories when given. The input order is preserved.
func filter(entries []Entry, categories []int64, userID string) []Entry {
	allowed := make(map[int64]bool, len(categories))
	for _, id := range categories {
		allowed[id] = true
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.SourceTerm == "" {
			continue
		}
		if e.OwnerID != "" && e.OwnerID != userID {
			continue
		}
		if len(allowed) > 0 && !allowed[e.CategoryID] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// sortEntries orders entries longest source term first, ties broken
// lexically, so longer terms claim their text before shorter ones.
func sortEntries(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		li := utf8.RuneCountInString(entries[i].SourceTerm)
		lj := utf8.RuneCountInString(entries[j].SourceTerm)
		if li != lj {
			return li > lj
		}
		return entries[i].SourceTerm < entries[j].SourceTerm
	})
}

// piece is a run of text that is either still open to matching or already
// a sentinel.
type piece struct {
	text      string
	protected bool
}

// reMarkup matches the inline-markup markers placed before terminology runs.
// Terms never match inside them.
var reMarkup = regexp.MustCompile(`\[PH\d+\]`)

// split cuts text around the spans re finds, marking the spans protected.
func split(text string, re *regexp.Regexp, span func(string) string) []piece {
	locs := re.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []piece{{text: text}}
	}
	out := make([]piece, 0, 2*len(locs)+1)
	pos := 0
	for _, loc := range locs {
		if loc[0] > pos {
			out = append(out, piece{text: text[pos:loc[0]]})
		}
		out = append(out, piece{text: span(text[loc[0]:loc[1]]), protected: true})
		pos = loc[1]
	}
	if pos < len(text) {
		out = append(out, piece{text: text[pos:]})
	}
	return out
}

func protectOne(text string, entries []Entry, patterns []*regexp.Regexp) (string, PlaceholderMap) {
	if text == "" {
		return text, PlaceholderMap{}
	}

	pieces := split(text, reMarkup, func(m string) string { return m })
	mapping := PlaceholderMap{}

	for i, re := range patterns {
		sentinel := Sentinel(i)
		next := make([]piece, 0, len(pieces))
		for _, pc := range pieces {
			if pc.protected || !re.MatchString(pc.text) {
				next = append(next, pc)
				continue
			}
			next = append(next, split(pc.text, re, func(string) string { return sentinel })...)
			mapping[sentinel] = entries[i].TargetTerm
		}
		pieces = next
	}

	var sb strings.Builder
	for _, pc := range pieces {
		sb.WriteString(pc.text)
	}
	return sb.String(), mapping
}

// Restore replaces sentinels in translated with their target terms. The
// shorter of the two slices is padded with empty maps, and sentinels are
// matched regardless of case.
func Restore(translated []string, maps []PlaceholderMap) []string {
	out := make([]string, len(translated))
	for i, text := range translated {
		var m PlaceholderMap
		if i < len(maps) {
			m = maps[i]
		}
		if len(m) == 0 {
			out[i] = text
			continue
		}
		out[i] = sentinelPattern.ReplaceAllStringFunc(text, func(tok string) string {
			sub := sentinelPattern.FindStringSubmatch(tok)
			n, err := strconv.Atoi(sub[1])
			if err != nil {
				return tok
			}
			if target, ok := m[Sentinel(n)]; ok {
				return target
			}
			return tok
		})
	}
	return out
}
