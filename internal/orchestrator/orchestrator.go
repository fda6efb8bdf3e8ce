// Package orchestrator runs the document translation pipeline: extract,
// deduplicate, protect, batch-translate, restore, reassemble and record.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"golang.org/x/text/language"

	"github.com/valpere/doctran/internal/batch"
	"github.com/valpere/doctran/internal/container"
	"github.com/valpere/doctran/internal/detector"
	"github.com/valpere/doctran/internal/placeholder"
	"github.com/valpere/doctran/internal/store"
	"github.com/valpere/doctran/internal/terminology"
	"github.com/valpere/doctran/internal/translator"
	"github.com/valpere/doctran/internal/validator"
)

// Strategies select how a document is processed.
const (
	StrategyOOXMLDirect = "ooxml_direct"
	StrategyTextDirect  = "text_direct"
)

var (
	ErrUnsupportedStrategy = errors.New("unsupported strategy")
	ErrInvalidLanguage     = errors.New("invalid language")
)

// Resolver hands out configured adapters. *translator.Registry implements it.
type Resolver interface {
	Resolve(ctx context.Context, name string) (translator.Adapter, error)
	DefaultEngine(ctx context.Context) string
}

// Memory looks up earlier translations. *store.Store implements it.
type Memory interface {
	LookupMemory(ctx context.Context, texts []string, sourceLang, targetLang string) (map[string]string, error)
}

// Recorder persists job history and new translations. *store.Store
// implements it. Failures are logged and never fail a run.
type Recorder interface {
	RecordJob(ctx context.Context, j store.Job) (string, error)
	Remember(ctx context.Context, pairs map[string]string, sourceLang, targetLang, engine string) error
}

// Params are the settings shared by document and text requests.
type Params struct {
	SourceLang string // "auto" or empty detects the language
	TargetLang string
	Engine     string // empty picks the registry default

	CategoryIDs      []int64
	StyleInstruction string
	StylePreset      string
	UserID           string

	Workers int
	Policy  batch.FallbackPolicy
	// Terminology carries the enable, case and category-limit switches;
	// CategoryIDs and UserID above are copied into it.
	Terminology terminology.Options

	VerifyLanguage bool
	UseMemory      bool
}

type DocumentRequest struct {
	InputPath  string
	OutputPath string
	Strategy   string
	Params
}

type TextRequest struct {
	Texts []string
	Params
}

// Metadata summarises one run.
type Metadata struct {
	TokenCount          int
	CharacterCount      int
	TotalTextItems      int
	TranslatedTextItems int

	Engine     string
	SourceLang string
	UniqueText int
	MemoryHits int
	Requests   int
	Filled     int
}

type Orchestrator struct {
	engines   Resolver
	batch     *batch.Translator
	terms     *terminology.Protector
	detector  *detector.Detector
	validator *validator.Validator
	memory    Memory
	recorder  Recorder
	logger    zerolog.Logger
}

type Option func(*Orchestrator)

func WithTerminology(p *terminology.Protector) Option { return func(o *Orchestrator) { o.terms = p } }
func WithMemory(m Memory) Option { return func(o *Orchestrator) { o.memory = m } }
func WithRecorder(r Recorder) Option { return func(o *Orchestrator) { o.recorder = r } }
func WithDetector(d *detector.Detector) Option { return func(o *Orchestrator) { o.detector = d } }
func WithValidator(v *validator.Validator) Option { return func(o *Orchestrator) { o.validator = v } }

func New(engines Resolver, logger zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engines: engines,
		batch:   batch.New(logger),
		logger:  logger.With().Str("component", "orchestrator").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.detector == nil {
		o.detector = detector.New()
	}
	if o.validator == nil {
		o.validator = validator.New(o.detector)
	}
	return o
}

// strategyFor validates strategy against format. An empty strategy picks
// the one matching the format.
func strategyFor(strategy string, format container.Format) (string, error) {
	want := StrategyTextDirect
	if format.IsOOXML() {
		want = StrategyOOXMLDirect
	}
	switch s := strings.ToLower(strings.TrimSpace(strategy)); s {
	case "":
		return want, nil
	case want:
		return s, nil
	default:
		return "", fmt.Errorf("%w: %q for %s documents", ErrUnsupportedStrategy, strategy, format)
	}
}

func checkLanguage(tag string) error {
	if _, err := language.Parse(strings.TrimSpace(tag)); err != nil {
		return fmt.Errorf("%w: target %q: %v", ErrInvalidLanguage, tag, err)
	}
	return nil
}

func isAuto(lang string) bool {
	lang = strings.TrimSpace(lang)
	return lang == "" || strings.EqualFold(lang, "auto")
}

// TranslateDocument translates the file at req.InputPath into
// req.OutputPath and returns the run metadata.
func (o *Orchestrator) TranslateDocument(ctx context.Context, req DocumentRequest) (*Metadata, error) {
	start := time.Now()
	log := o.logger.With().Str("input", req.InputPath).Str("target", req.TargetLang).Logger()

	format, err := container.FormatOf(req.InputPath)
	if err != nil {
		return nil, err
	}
	strategy, err := strategyFor(req.Strategy, format)
	if err != nil {
		return nil, err
	}
	if err := checkLanguage(req.TargetLang); err != nil {
		return nil, err
	}

	doc, err := container.Open(req.InputPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", req.InputPath, err)
	}

	items := doc.Items()
	unique := container.Unique(items)
	meta := &Metadata{TotalTextItems: len(items), UniqueText: len(unique)}
	for _, it := range items {
		meta.CharacterCount += utf8.RuneCountInString(it.Text)
	}
	log.Info().Str("format", string(format)).Int("items", len(items)).Int("unique", len(unique)).Msg("document opened")

	run, err := o.translateUnique(ctx, unique, req.Params, format == container.FormatMarkdown, meta)
	if err == nil {
		meta.TranslatedTextItems, err = doc.Apply(run.translations)
	}
	if err == nil {
		err = doc.Save(req.OutputPath)
	}

	o.record(ctx, req, strategy, start, meta, run, err)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("engine", meta.Engine).
		Int("translated", meta.TranslatedTextItems).
		Int("tokens", meta.TokenCount).
		Dur("elapsed", time.Since(start)).
		Msg("document translated")
	return meta, nil
}

// TranslateTexts translates plain strings. The result has one entry per
// input; strings without letters and failed items keep their source text.
func (o *Orchestrator) TranslateTexts(ctx context.Context, req TextRequest) ([]string, *Metadata, error) {
	if err := checkLanguage(req.TargetLang); err != nil {
		return nil, nil, err
	}

	meta := &Metadata{TotalTextItems: len(req.Texts)}
	seen := make(map[string]bool, len(req.Texts))
	var unique []string
	for _, t := range req.Texts {
		meta.CharacterCount += utf8.RuneCountInString(t)
		if !container.IsTranslatable(t) || seen[t] {
			continue
		}
		seen[t] = true
		unique = append(unique, t)
	}
	meta.UniqueText = len(unique)

	run, err := o.translateUnique(ctx, unique, req.Params, false, meta)
	if err != nil {
		return nil, nil, err
	}

	out := make([]string, len(req.Texts))
	for i, t := range req.Texts {
		out[i] = t
		if dst, ok := run.translations[t]; ok {
			out[i] = dst
			if dst != t {
				meta.TranslatedTextItems++
			}
		}
	}
	o.remember(ctx, req.Params, meta, run)
	return out, meta, nil
}

// runResult is what translateUnique produced.
type runResult struct {
	translations map[string]string
	// fresh holds translations that did not come from memory.
	fresh      map[string]string
	sourceLang string
}

// translateUnique runs the protection and translation stages over unique
// and returns the non-empty translations keyed by source text.
func (o *Orchestrator) translateUnique(ctx context.Context, unique []string, p Params, markdown bool, meta *Metadata) (*runResult, error) {
	run := &runResult{
		translations: make(map[string]string, len(unique)),
		fresh:        make(map[string]string, len(unique)),
		sourceLang:   strings.TrimSpace(p.SourceLang),
	}
	if len(unique) == 0 {
		meta.SourceLang = run.sourceLang
		return run, nil
	}

	engine := p.Engine
	if strings.TrimSpace(engine) == "" {
		engine = o.engines.DefaultEngine(ctx)
	}
	adapter, err := o.engines.Resolve(ctx, engine)
	if err != nil {
		return nil, err
	}
	meta.Engine = adapter.Name()
	log := o.logger.With().Str("engine", adapter.Name()).Logger()

	if isAuto(run.sourceLang) {
		run.sourceLang = "auto"
		if code, ok := o.detector.DetectSample(unique, 0); ok {
			run.sourceLang = code
			log.Debug().Str("source", code).Msg("detected source language")
		}
	}
	meta.SourceLang = run.sourceLang
	src, tgt := run.sourceLang, p.TargetLang

	pending := unique
	if p.UseMemory && o.memory != nil && !isAuto(src) {
		hits, err := o.memory.LookupMemory(ctx, unique, src, tgt)
		if err != nil {
			log.Warn().Err(err).Msg("translation memory lookup failed")
		}
		pending = make([]string, 0, len(unique))
		for _, t := range unique {
			if dst, ok := hits[t]; ok && strings.TrimSpace(dst) != "" {
				run.translations[t] = dst
				continue
			}
			pending = append(pending, t)
		}
		meta.MemoryHits = len(unique) - len(pending)
	}
	if len(pending) == 0 {
		return run, nil
	}

	texts := pending
	var markup *placeholder.Set
	if markdown {
		texts, markup = placeholder.ProtectAll(texts)
		log.Debug().Int("markers", markup.Count()).Msg("inline markup protected")
	}

	var maps []terminology.PlaceholderMap
	if o.terms != nil {
		topts := p.Terminology
		topts.CategoryIDs = p.CategoryIDs
		topts.UserID = p.UserID
		protected, m, err := o.terms.Protect(ctx, texts, src, tgt, topts)
		if err != nil {
			log.Warn().Err(err).Msg("terminology protection skipped")
		}
		texts, maps = protected, m
	}

	bopts := batch.Options{
		Workers: p.Workers,
		Policy:  p.Policy,
		Engine:  translator.Options{StyleInstruction: p.StyleInstruction, StylePreset: p.StylePreset},
	}
	res, err := o.batch.Run(ctx, adapter, texts, src, tgt, bopts)
	if err != nil {
		return nil, err
	}
	meta.TokenCount += res.Tokens
	meta.Requests += res.Requests
	meta.Filled += res.Filled

	out := restore(res.Translations, maps, markup)

	if markup != nil {
		if lost := markup.Lost(res.Translations); len(lost) > 0 {
			log.Info().Int("count", len(lost)).Msg("re-translating items that dropped markup markers")
			if err := o.retranslate(ctx, adapter, texts, out, lost, maps, markup, markerInstruction, src, tgt, bopts, meta); err != nil {
				log.Warn().Err(err).Msg("re-translation failed, keeping first results")
			}
		}
	}

	if p.VerifyLanguage {
		if offenders := o.validator.Offenders(out, tgt); len(offenders) > 0 {
			log.Info().Int("count", len(offenders)).Msg("re-translating items in the wrong language")
			strict := fmt.Sprintf("The output must be written entirely in %s; do not leave any text in the source language.", tgt)
			if err := o.retranslate(ctx, adapter, texts, out, offenders, maps, markup, strict, src, tgt, bopts, meta); err != nil {
				log.Warn().Err(err).Msg("re-translation failed, keeping first results")
			}
		}
	}

	for i, source := range pending {
		if strings.TrimSpace(out[i]) == "" {
			continue
		}
		run.translations[source] = out[i]
		run.fresh[source] = out[i]
	}
	return run, nil
}

func restore(translated []string, maps []terminology.PlaceholderMap, markup *placeholder.Set) []string {
	out := terminology.Restore(translated, maps)
	if markup != nil {
		out = markup.Restore(out)
	}
	return out
}

const markerInstruction = "Copy every [PHn] marker into the output exactly as written."

// retranslate sends the protected texts at idx once more with instruction
// appended to the style instruction. Results that came back non-empty,
// changed and with all their markers are written into out.
func (o *Orchestrator) retranslate(ctx context.Context, a translator.Adapter, texts, out []string, idx []int,
	maps []terminology.PlaceholderMap, markup *placeholder.Set, instruction, src, tgt string, bopts batch.Options, meta *Metadata) error {
	subTexts := make([]string, len(idx))
	var subMaps []terminology.PlaceholderMap
	for i, j := range idx {
		subTexts[i] = texts[j]
		if j < len(maps) {
			subMaps = append(subMaps, maps[j])
		}
	}
	var subMarkup *placeholder.Set
	if markup != nil {
		subMarkup = markup.Subset(idx)
	}

	if s := strings.TrimSpace(bopts.Engine.StyleInstruction); s != "" {
		instruction = s + " " + instruction
	}
	bopts.Engine.StyleInstruction = instruction
	bopts.Policy = batch.FillWithSource

	res, err := o.batch.Run(ctx, a, subTexts, src, tgt, bopts)
	if err != nil {
		return err
	}
	meta.TokenCount += res.Tokens
	meta.Requests += res.Requests

	broken := map[int]bool{}
	if subMarkup != nil {
		for _, i := range subMarkup.Lost(res.Translations) {
			broken[i] = true
		}
	}
	for i, t := range restore(res.Translations, subMaps, subMarkup) {
		if strings.TrimSpace(t) != "" && !broken[i] && res.Translations[i] != subTexts[i] {
			out[idx[i]] = t
		}
	}
	return nil
}

func (o *Orchestrator) record(ctx context.Context, req DocumentRequest, strategy string, start time.Time, meta *Metadata, run *runResult, runErr error) {
	if o.recorder == nil {
		return
	}
	job := store.Job{
		InputFile:       req.InputPath,
		OutputFile:      req.OutputPath,
		SourceLang:      meta.SourceLang,
		TargetLang:      req.TargetLang,
		Engine:          meta.Engine,
		Strategy:        strategy,
		Status:          store.JobSucceeded,
		TokenCount:      meta.TokenCount,
		CharacterCount:  meta.CharacterCount,
		TotalItems:      meta.TotalTextItems,
		TranslatedItems: meta.TranslatedTextItems,
		CreatedAt:       start,
	}
	if job.SourceLang == "" {
		job.SourceLang = req.SourceLang
	}
	if job.Engine == "" {
		job.Engine = req.Engine
	}
	if runErr != nil {
		job.Status = store.JobFailed
		job.Error = runErr.Error()
	}
	if _, err := o.recorder.RecordJob(ctx, job); err != nil {
		o.logger.Warn().Err(err).Msg("failed to record job")
	}
	if runErr == nil {
		o.remember(ctx, req.Params, meta, run)
	}
}

func (o *Orchestrator) remember(ctx context.Context, p Params, meta *Metadata, run *runResult) {
	if o.recorder == nil || !p.UseMemory || run == nil || len(run.fresh) == 0 || isAuto(run.sourceLang) {
		return
	}
	if err := o.recorder.Remember(ctx, run.fresh, run.sourceLang, p.TargetLang, meta.Engine); err != nil {
		o.logger.Warn().Err(err).Msg("failed to update translation memory")
	}
}
