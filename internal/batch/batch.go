// Package batch splits texts into provider-sized batches, runs them through
// an adapter with bounded parallelism and isolates failing items by
// bisection.
package batch

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/valpere/doctran/internal/chunker"
	"github.com/valpere/doctran/internal/translator"
)

// FallbackPolicy decides what happens to a single item that still fails
// after bisection.
type FallbackPolicy int

const (
	// FailFast aborts the run with the item's error.
	FailFast FallbackPolicy = iota
	// FillWithSource keeps the source text for the item and counts it.
	FillWithSource
)

func (p FallbackPolicy) String() string {
	if p == FillWithSource {
		return "fill_with_source"
	}
	return "fail_fast"
}

// ParsePolicy accepts "fail_fast" and "fill_with_source". Empty means
// FailFast.
func ParsePolicy(s string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_fast":
		return FailFast, nil
	case "fill_with_source":
		return FillWithSource, nil
	}
	return FailFast, fmt.Errorf("unknown fallback policy %q", s)
}

type Options struct {
	// Workers caps parallel requests; the engine's MaxWorkers caps it again.
	Workers int
	Policy  FallbackPolicy
	Engine  translator.Options
}

// Result carries the translations in input order and per-run usage.
type Result struct {
	Translations []string
	Tokens       int
	Batches      int
	Requests     int
	// Filled counts items, or pieces of cut items, kept in the source
	// language under FillWithSource.
	Filled int
}

type Translator struct {
	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Translator {
	return &Translator{logger: logger.With().Str("component", "batch").Logger()}
}

// span is the half-open index range [lo, hi) of one request.
type span struct{ lo, hi int }

type stats struct {
	tokens, requests, filled int
}

func (s *stats) add(o stats) {
	s.tokens += o.tokens
	s.requests += o.requests
	s.filled += o.filled
}

// pacer spaces requests by delay. It is not safe for concurrent use.
type pacer struct {
	delay   time.Duration
	started bool
}

func (p *pacer) wait(ctx context.Context) error {
	if p == nil || p.delay <= 0 {
		return ctx.Err()
	}
	if !p.started {
		p.started = true
		return ctx.Err()
	}
	t := time.NewTimer(p.delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Run translates texts with a. The returned translations always have the
// same length and order as texts.
func (t *Translator) Run(ctx context.Context, a translator.Adapter, texts []string, srcLang, tgtLang string, opts Options) (*Result, error) {
	if len(texts) == 0 {
		return &Result{Translations: []string{}}, nil
	}

	cfg := a.Config()
	log := t.logger.With().Str("engine", a.Name()).Logger()

	items := expand(texts, cfg.MaxBatchChars)
	if len(items.cut) > 0 {
		log.Debug().Int("texts", len(items.cut)).Int("pieces", len(items.pieces)).Msg("split oversized texts")
	}
	spans := plan(items.pieces, cfg.EffectiveBatchSize(), cfg.MaxBatchChars)
	out := make([]string, len(items.pieces))

	var total stats
	if cfg.Sequential {
		log.Debug().Int("batches", len(spans)).Dur("delay", cfg.RequestDelay).Msg("running batches sequentially")
		p := &pacer{delay: cfg.RequestDelay}
		for _, sp := range spans {
			st, err := t.runSpan(ctx, a, items, out, sp, srcLang, tgtLang, opts, p, log)
			total.add(st)
			if err != nil {
				return nil, err
			}
		}
	} else {
		workers := poolSize(opts.Workers, cfg.MaxWorkers)
		log.Debug().Int("batches", len(spans)).Int("workers", workers).Msg("running batches")

		perSpan := make([]stats, len(spans))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for i, sp := range spans {
			g.Go(func() error {
				st, err := t.runSpan(gctx, a, items, out, sp, srcLang, tgtLang, opts, &pacer{delay: cfg.RequestDelay}, log)
				perSpan[i] = st
				return err
			})
		}
		err := g.Wait()
		for _, st := range perSpan {
			total.add(st)
		}
		if err != nil {
			return nil, err
		}
	}

	return &Result{
		Translations: items.merge(out),
		Tokens:       total.tokens,
		Batches:      len(spans),
		Requests:     total.requests,
		Filled:       total.filled,
	}, nil
}

// runSpan translates items.pieces[sp.lo:sp.hi] into out, bisecting on
// failure.
func (t *Translator) runSpan(ctx context.Context, a translator.Adapter, items *work, out []string, sp span,
	srcLang, tgtLang string, opts Options, p *pacer, log zerolog.Logger) (stats, error) {
	var st stats
	texts := items.pieces
	stack := []span{sp}

	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := p.wait(ctx); err != nil {
			return st, err
		}

		res, err := translator.TranslateBatch(ctx, a, texts[cur.lo:cur.hi], srcLang, tgtLang, opts.Engine)
		st.requests++
		if err == nil {
			copy(out[cur.lo:cur.hi], res.Translations)
			st.tokens += res.Tokens
			continue
		}

		if translator.IsPermanent(err) || ctx.Err() != nil {
			return st, err
		}

		if n := cur.hi - cur.lo; n > 1 {
			mid := cur.lo + n/2
			log.Debug().Err(err).Int("lo", cur.lo).Int("hi", cur.hi).Msg("batch failed, bisecting")
			// Left half on top so results arrive roughly in order.
			stack = append(stack, span{mid, cur.hi}, span{cur.lo, mid})
			continue
		}

		if opts.Policy == FillWithSource {
			log.Warn().Err(err).Int("index", items.owner(cur.lo)).Msg("item failed, keeping source text")
			out[cur.lo] = texts[cur.lo]
			st.filled++
			continue
		}
		return st, fmt.Errorf("translate item %d: %w", items.owner(cur.lo), err)
	}
	return st, nil
}

// work is the list of texts actually sent: the input with every text over
// the engine's character limit replaced by its pieces.
type work struct {
	pieces []string
	// owners maps a piece to its input index; nil when nothing was cut.
	owners []int
	cut    map[int]chunker.Chunks
	n      int
}

func expand(texts []string, maxChars int) *work {
	w := &work{pieces: texts, n: len(texts)}
	if maxChars <= 0 {
		return w
	}
	for i, text := range texts {
		if utf8.RuneCountInString(text) <= maxChars {
			continue
		}
		if w.cut == nil {
			w.cut = make(map[int]chunker.Chunks)
		}
		w.cut[i] = chunker.Chunk(text, maxChars)
	}
	if len(w.cut) == 0 {
		return w
	}

	w.pieces = make([]string, 0, len(texts)+len(w.cut))
	w.owners = make([]int, 0, cap(w.pieces))
	for i, text := range texts {
		c, ok := w.cut[i]
		if !ok {
			w.pieces = append(w.pieces, text)
			w.owners = append(w.owners, i)
			continue
		}
		for _, p := range c.Pieces {
			w.pieces = append(w.pieces, p)
			w.owners = append(w.owners, i)
		}
	}
	return w
}

func (w *work) owner(piece int) int {
	if w.owners == nil {
		return piece
	}
	return w.owners[piece]
}

// merge joins the translated pieces back into one entry per input text.
func (w *work) merge(translated []string) []string {
	if len(w.cut) == 0 {
		return translated
	}
	out := make([]string, w.n)
	pos := 0
	for i := range out {
		c, ok := w.cut[i]
		if !ok {
			out[i] = translated[pos]
			pos++
			continue
		}
		out[i] = c.Join(translated[pos : pos+c.Len()])
		pos += c.Len()
	}
	return out
}

// plan cuts texts into spans of at most size items and, when maxChars is
// positive, at most maxChars characters. A single oversized text still gets
// its own span.
func plan(texts []string, size, maxChars int) []span {
	if size < 1 {
		size = 1
	}
	var (
		spans []span
		lo    int
		chars int
	)
	for i, text := range texts {
		n := utf8.RuneCountInString(text)
		full := i-lo >= size || (maxChars > 0 && i > lo && chars+n > maxChars)
		if full {
			spans = append(spans, span{lo, i})
			lo, chars = i, 0
		}
		chars += n
	}
	return append(spans, span{lo, len(texts)})
}

func poolSize(requested, engineMax int) int {
	n := requested
	if n < 1 || (engineMax > 0 && engineMax < n) {
		n = engineMax
	}
	if n < 1 {
		n = 1
	}
	return n
}
