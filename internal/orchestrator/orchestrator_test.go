package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"

	"github.com/valpere/doctran/internal/batch"
	"github.com/valpere/doctran/internal/store"
	"github.com/valpere/doctran/internal/terminology"
	"github.com/valpere/doctran/internal/translator"
)

// dictAdapter translates through a fixed dictionary and copies unknown
// strings, sentinels included, through unchanged.
type dictAdapter struct {
	dict map[string]string
	// strict is used instead of dict when the strict-language instruction
	// is present.
	strict map[string]string
	calls  atomic.Int32
	seen   atomic.Int32
}

func (d *dictAdapter) Name() string { return "dict" }
func (d *dictAdapter) Config() translator.Config {
	return translator.Config{Name: "dict", BatchSize: 10, MaxWorkers: 2}
}

func (d *dictAdapter) BuildPayload(texts []string, src, tgt string, opts translator.Options) (*translator.Payload, error) {
	// The instruction rides in URL; nothing is sent over the network.
	return &translator.Payload{Texts: texts, SrcLang: src, TgtLang: tgt, URL: opts.StyleInstruction}, nil
}

func (d *dictAdapter) Send(_ context.Context, p *translator.Payload) (*translator.Response, error) {
	d.calls.Add(1)
	d.seen.Add(int32(len(p.Texts)))
	dict := d.dict
	if d.strict != nil && strings.Contains(p.URL, "entirely in") {
		dict = d.strict
	}
	out := make([]string, len(p.Texts))
	for i, t := range p.Texts {
		out[i] = t
		for src, dst := range dict {
			out[i] = strings.ReplaceAll(out[i], src, dst)
		}
	}
	return &translator.Response{StatusCode: 200, Texts: out, Tokens: 10 * len(p.Texts)}, nil
}

func (d *dictAdapter) Parse(resp *translator.Response, _ int) ([]string, error) {
	return resp.Texts, nil
}

type fakeResolver struct {
	adapter translator.Adapter
	asked   []string
}

func (f *fakeResolver) Resolve(_ context.Context, name string) (translator.Adapter, error) {
	f.asked = append(f.asked, name)
	if name == "missing" {
		return nil, translator.ErrUnknownEngine
	}
	return f.adapter, nil
}

func (f *fakeResolver) DefaultEngine(context.Context) string { return "dict" }

type glossary []terminology.Entry

func (g glossary) TermsForPair(_ context.Context, src, tgt string) ([]terminology.Entry, error) {
	var out []terminology.Entry
	for _, e := range g {
		if e.SourceLang == src && e.TargetLang == tgt {
			out = append(out, e)
		}
	}
	return out, nil
}

func (g glossary) MissingCategories(context.Context, []int64) ([]int64, error) { return nil, nil }

type mockRecorder struct {
	jobs       []store.Job
	remembered map[string]string
	jobErr     error
	jobCalls   atomic.Int32
}

func (m *mockRecorder) RecordJob(_ context.Context, j store.Job) (string, error) {
	m.jobCalls.Add(1)
	m.jobs = append(m.jobs, j)
	return "job-1", m.jobErr
}

func (m *mockRecorder) Remember(_ context.Context, pairs map[string]string, _, _, _ string) error {
	if m.remembered == nil {
		m.remembered = map[string]string{}
	}
	for k, v := range pairs {
		m.remembered[k] = v
	}
	return nil
}

type mapMemory map[string]string

func (m mapMemory) LookupMemory(_ context.Context, texts []string, _, _ string) (map[string]string, error) {
	hits := map[string]string{}
	for _, t := range texts {
		if v, ok := m[t]; ok {
			hits[t] = v
		}
	}
	return hits, nil
}

var frenchDict = map[string]string{"Hello": "Bonjour", "Goodbye": "Au revoir"}

func worldGlossary() *terminology.Protector {
	return terminology.New(glossary{{SourceTerm: "World", TargetTerm: "Terra", SourceLang: "en", TargetLang: "fr"}}, 0)
}

func baseParams() Params {
	return Params{
		SourceLang:  "en",
		TargetLang:  "fr",
		Terminology: terminology.Options{Enabled: true},
	}
}

func TestTranslateTexts_ExampleScenario(t *testing.T) {
	a := &dictAdapter{dict: frenchDict}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop(), WithTerminology(worldGlossary()))

	got, meta, err := o.TranslateTexts(context.Background(), TextRequest{
		Texts:  []string{"Hello", "World", "Hello"},
		Params: baseParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"Bonjour", "Terra", "Bonjour"}
	if !slices.Equal(got, want) {
		t.Errorf("got %q, want %q", got, want)
	}
	if a.seen.Load() != 2 {
		t.Errorf("expected 2 unique texts sent, got %d", a.seen.Load())
	}
	if meta.TotalTextItems != 3 || meta.TranslatedTextItems != 3 || meta.CharacterCount != 15 {
		t.Errorf("unexpected metadata %+v", meta)
	}
	if meta.TokenCount != 20 || meta.Engine != "dict" {
		t.Errorf("unexpected usage %+v", meta)
	}
}

func TestTranslateTexts_SkipsNonTranslatable(t *testing.T) {
	a := &dictAdapter{dict: frenchDict}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop())

	got, _, err := o.TranslateTexts(context.Background(), TextRequest{
		Texts:  []string{"123", "Hello", "  "},
		Params: baseParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []string{"123", "Bonjour", "  "}) {
		t.Errorf("got %q", got)
	}
	if a.seen.Load() != 1 {
		t.Errorf("expected only one text sent, got %d", a.seen.Load())
	}
}

func TestTranslateTexts_UnknownEngine(t *testing.T) {
	o := New(&fakeResolver{}, zerolog.Nop())
	p := baseParams()
	p.Engine = "missing"
	_, _, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Hello"}, Params: p})
	if !errors.Is(err, translator.ErrUnknownEngine) {
		t.Fatalf("expected ErrUnknownEngine, got %v", err)
	}
}

func TestTranslateTexts_InvalidTarget(t *testing.T) {
	o := New(&fakeResolver{adapter: &dictAdapter{}}, zerolog.Nop())
	p := baseParams()
	p.TargetLang = "not a language!"
	_, _, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Hello"}, Params: p})
	if !errors.Is(err, ErrInvalidLanguage) {
		t.Fatalf("expected ErrInvalidLanguage, got %v", err)
	}
}

func TestTranslateTexts_Memory(t *testing.T) {
	a := &dictAdapter{dict: frenchDict}
	rec := &mockRecorder{}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop(),
		WithMemory(mapMemory{"Goodbye": "Adieu"}), WithRecorder(rec))

	p := baseParams()
	p.UseMemory = true
	got, meta, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Hello", "Goodbye"}, Params: p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !slices.Equal(got, []string{"Bonjour", "Adieu"}) {
		t.Errorf("got %q", got)
	}
	if meta.MemoryHits != 1 || a.seen.Load() != 1 {
		t.Errorf("expected one memory hit and one sent text, got %d/%d", meta.MemoryHits, a.seen.Load())
	}
	if len(rec.remembered) != 1 || rec.remembered["Hello"] != "Bonjour" {
		t.Errorf("only fresh translations should be remembered, got %v", rec.remembered)
	}
}

func TestTranslateTexts_FailFastPropagates(t *testing.T) {
	o := New(&fakeResolver{adapter: &failingAdapter{}}, zerolog.Nop())
	p := baseParams()
	p.Policy = batch.FailFast
	_, _, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Hello"}, Params: p})
	if err == nil {
		t.Fatal("expected error")
	}

	p.Policy = batch.FillWithSource
	got, meta, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Hello"}, Params: p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] != "Hello" || meta.Filled != 1 || meta.TranslatedTextItems != 0 {
		t.Errorf("got %q, %+v", got, meta)
	}
}

type failingAdapter struct{ dictAdapter }

func (f *failingAdapter) Send(context.Context, *translator.Payload) (*translator.Response, error) {
	return nil, &translator.ProviderError{Engine: "dict", StatusCode: 500, Err: errors.New("boom")}
}

func TestTranslateTexts_VerifyLanguage(t *testing.T) {
	english := "This sentence was left in English by a lazy engine."
	a := &dictAdapter{
		dict:   map[string]string{"Source one": english},
		strict: map[string]string{"Source one": "Cette phrase a finalement été traduite en français."},
	}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop())

	p := baseParams()
	p.VerifyLanguage = true
	got, _, err := o.TranslateTexts(context.Background(), TextRequest{Texts: []string{"Source one"}, Params: p})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got[0] == english {
		t.Errorf("offending translation was not replaced")
	}
	if a.calls.Load() != 2 {
		t.Errorf("expected one re-translation request, got %d calls", a.calls.Load())
	}
}

const docxDocument = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
	`<w:p><w:r><w:t>Hello</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>World</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>Hello</w:t></w:r></w:p>` +
	`<w:p><w:r><w:t>2024</w:t></w:r></w:p>` +
	`</w:body></w:document>`

func writeDocx(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range []struct{ name, body string }{
		{"[Content_Types].xml", `<?xml version="1.0"?><Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types"/>`},
		{"word/document.xml", docxDocument},
	} {
		w, err := zw.Create(f.name)
		if err != nil {
			t.Fatal(err)
		}
		io.WriteString(w, f.body)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}
}

func readEntry(t *testing.T, path, name string) string {
	t.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatal(err)
		}
		defer rc.Close()
		b, _ := io.ReadAll(rc)
		return string(b)
	}
	t.Fatalf("entry %s not found", name)
	return ""
}

func TestTranslateDocument_Docx(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.docx"), filepath.Join(dir, "out", "out.docx")
	writeDocx(t, in)

	a := &dictAdapter{dict: frenchDict}
	rec := &mockRecorder{}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop(), WithTerminology(worldGlossary()), WithRecorder(rec))

	meta, err := o.TranslateDocument(context.Background(), DocumentRequest{
		InputPath: in, OutputPath: out, Params: baseParams(),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc := readEntry(t, out, "word/document.xml")
	if strings.Count(doc, "<w:t>Bonjour</w:t>") != 2 || !strings.Contains(doc, "<w:t>Terra</w:t>") {
		t.Errorf("unexpected document.xml: %s", doc)
	}
	if !strings.Contains(doc, "<w:t>2024</w:t>") {
		t.Error("non-translatable text should be untouched")
	}
	if meta.TotalTextItems != 3 || meta.TranslatedTextItems != 3 || meta.UniqueText != 2 {
		t.Errorf("unexpected metadata %+v", meta)
	}

	if rec.jobCalls.Load() != 1 {
		t.Fatalf("expected one job record, got %d", rec.jobCalls.Load())
	}
	job := rec.jobs[0]
	if job.Status != store.JobSucceeded || job.Strategy != StrategyOOXMLDirect || job.TranslatedItems != 3 {
		t.Errorf("unexpected job %+v", job)
	}
}

func TestTranslateDocument_RecorderFailureIgnored(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.docx"), filepath.Join(dir, "out.docx")
	writeDocx(t, in)

	rec := &mockRecorder{jobErr: errors.New("disk full")}
	o := New(&fakeResolver{adapter: &dictAdapter{dict: frenchDict}}, zerolog.Nop(), WithRecorder(rec))
	if _, err := o.TranslateDocument(context.Background(), DocumentRequest{InputPath: in, OutputPath: out, Params: baseParams()}); err != nil {
		t.Fatalf("recording failures must not fail the run: %v", err)
	}
}

func TestTranslateDocument_Markdown(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.md"), filepath.Join(dir, "out.md")
	src := "# Hello\n\nSay Hello with `Hello()` and [Hello](https://hello.example).\n\n```\nHello\n```\n"
	if err := os.WriteFile(in, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	o := New(&fakeResolver{adapter: &dictAdapter{dict: frenchDict}}, zerolog.Nop())
	if _, err := o.TranslateDocument(context.Background(), DocumentRequest{InputPath: in, OutputPath: out, Params: baseParams()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := os.ReadFile(out)
	want := "# Bonjour\n\nSay Bonjour with `Hello()` and [Bonjour](https://hello.example).\n\n```\nHello\n```\n"
	if string(got) != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestTranslateDocument_MarkdownWithGlossary(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.md"), filepath.Join(dir, "out.md")
	if err := os.WriteFile(in, []byte("Measure `x` for pH here\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := &dictAdapter{dict: map[string]string{"Measure": "Mesurer", " for ": " pour ", " here": " ici"}}
	terms := terminology.New(glossary{{SourceTerm: "pH", TargetTerm: "pH-fr", SourceLang: "en", TargetLang: "fr"}}, 0)
	o := New(&fakeResolver{adapter: a}, zerolog.Nop(), WithTerminology(terms))
	if _, err := o.TranslateDocument(context.Background(), DocumentRequest{InputPath: in, OutputPath: out, Params: baseParams()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := os.ReadFile(out)
	if want := "Mesurer `x` pour pH-fr ici\n"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

// markerDropAdapter loses every markup marker unless told to keep them.
type markerDropAdapter struct{ dictAdapter }

func (m *markerDropAdapter) Send(ctx context.Context, p *translator.Payload) (*translator.Response, error) {
	resp, err := m.dictAdapter.Send(ctx, p)
	if err != nil || strings.Contains(p.URL, "[PHn]") {
		return resp, err
	}
	for i, t := range resp.Texts {
		resp.Texts[i] = strings.ReplaceAll(t, " [PH0]", "")
	}
	return resp, nil
}

func TestTranslateDocument_RetriesLostMarkers(t *testing.T) {
	dir := t.TempDir()
	in, out := filepath.Join(dir, "in.md"), filepath.Join(dir, "out.md")
	if err := os.WriteFile(in, []byte("Use `x` now\n"), 0644); err != nil {
		t.Fatal(err)
	}

	a := &markerDropAdapter{dictAdapter{dict: map[string]string{"Use": "Utilisez", "now": "maintenant"}}}
	o := New(&fakeResolver{adapter: a}, zerolog.Nop())
	if _, err := o.TranslateDocument(context.Background(), DocumentRequest{InputPath: in, OutputPath: out, Params: baseParams()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := os.ReadFile(out)
	if want := "Utilisez `x` maintenant\n"; string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if a.calls.Load() != 2 {
		t.Errorf("expected one re-translation request, got %d calls", a.calls.Load())
	}
}

func TestTranslateDocument_Strategy(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	writeDocx(t, in)
	o := New(&fakeResolver{adapter: &dictAdapter{}}, zerolog.Nop())

	for _, strategy := range []string{StrategyTextDirect, "magic"} {
		_, err := o.TranslateDocument(context.Background(), DocumentRequest{
			InputPath: in, OutputPath: filepath.Join(dir, "out.docx"), Strategy: strategy, Params: baseParams(),
		})
		if !errors.Is(err, ErrUnsupportedStrategy) {
			t.Errorf("strategy %q: expected ErrUnsupportedStrategy, got %v", strategy, err)
		}
	}

	if s, err := strategyFor("", "md"); err != nil || s != StrategyTextDirect {
		t.Errorf("strategyFor(md) = %q, %v", s, err)
	}
}

func TestTranslateDocument_FailureRecorded(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	writeDocx(t, in)

	rec := &mockRecorder{}
	o := New(&fakeResolver{adapter: &failingAdapter{}}, zerolog.Nop(), WithRecorder(rec))
	_, err := o.TranslateDocument(context.Background(), DocumentRequest{
		InputPath: in, OutputPath: filepath.Join(dir, "out.docx"), Params: baseParams(),
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if len(rec.jobs) != 1 || rec.jobs[0].Status != store.JobFailed || rec.jobs[0].Error == "" {
		t.Errorf("failed run should be recorded, got %+v", rec.jobs)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "out.docx")); !os.IsNotExist(statErr) {
		t.Error("no output should be written on failure")
	}
}
