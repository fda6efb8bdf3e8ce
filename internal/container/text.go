package container

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/gogs/chardet"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/htmlindex"
	"gopkg.in/yaml.v3"
)

const (
	partBody        = "body"
	partFrontMatter = "front-matter"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// frontMatterKeys are the scalar front matter fields that hold prose.
var frontMatterKeys = map[string]bool{
	"title":       true,
	"description": true,
	"summary":     true,
	"subtitle":    true,
}

var (
	frontMatterBlock = regexp.MustCompile(`(?s)^---\r?\n(.*?)\r?\n---\r?\n?`)
	markdownPrefix   = regexp.MustCompile(`^(#{1,6}\s+|>\s?|[-*+]\s+(\[[ xX]\]\s+)?|\d+[.)]\s+)+`)
	fenceOpen        = regexp.MustCompile("^\\s*(```+|~~~+)")
)

// line is one line of a text document split into the part that is
// translated and the parts that are kept verbatim.
type line struct {
	prefix string
	text   string
	suffix string
	skip   bool
}

type frontMatter struct {
	raw    string
	node   yaml.Node
	values []*yaml.Node // translatable scalar values in document order
	orig   []string
}

type textDocument struct {
	format  Format
	bom     bool
	fm      *frontMatter
	lines   []line
	applied map[string]string
}

func openText(path string, format Format) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return parseText(data, format)
}

func parseText(data []byte, format Format) (*textDocument, error) {
	doc := &textDocument{format: format}
	if bytes.HasPrefix(data, utf8BOM) {
		doc.bom = true
		data = data[len(utf8BOM):]
	}

	text, err := decodeText(data)
	if err != nil {
		return nil, err
	}

	if format == FormatMarkdown {
		if m := frontMatterBlock.FindStringSubmatchIndex(text); m != nil {
			doc.fm = parseFrontMatter(text[:m[1]], text[m[2]:m[3]])
			text = text[m[1]:]
		}
	}

	inFence := ""
	for _, raw := range strings.SplitAfter(text, "\n") {
		if raw == "" {
			continue
		}
		body := strings.TrimRight(raw, " \t\r\n")
		ln := line{suffix: raw[len(body):]}
		trimmed := strings.TrimLeft(body, " \t")
		ln.prefix = body[:len(body)-len(trimmed)]
		ln.text = trimmed

		if format == FormatMarkdown {
			if f := fenceOpen.FindStringSubmatch(body); f != nil {
				marker := f[1][:3]
				switch {
				case inFence == "":
					inFence = marker
				case inFence == marker:
					inFence = ""
				}
				ln.skip = true
			} else if inFence != "" {
				ln.skip = true
			} else if p := markdownPrefix.FindString(ln.text); p != "" {
				ln.prefix += p
				ln.text = ln.text[len(p):]
			}
		}
		if !IsTranslatable(ln.text) {
			ln.skip = true
		}
		doc.lines = append(doc.lines, ln)
	}
	return doc, nil
}

// decodeText returns data as a UTF-8 string. Non-UTF-8 input is decoded
// with the detected charset, falling back to ISO-8859-1.
func decodeText(data []byte) (string, error) {
	if utf8.Valid(data) {
		return string(data), nil
	}

	if res, err := chardet.NewTextDetector().DetectBest(data); err == nil {
		name := strings.ToLower(res.Charset)
		if name == "gb-18030" {
			name = "gb18030"
		}
		if enc, err := htmlindex.Get(name); err == nil {
			if out, err := enc.NewDecoder().Bytes(data); err == nil {
				return string(out), nil
			}
		}
	}

	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decode text: %w", err)
	}
	return string(out), nil
}

func parseFrontMatter(raw, body string) *frontMatter {
	fm := &frontMatter{raw: raw}
	if err := yaml.Unmarshal([]byte(body), &fm.node); err != nil || len(fm.node.Content) == 0 {
		return fm
	}
	root := fm.node.Content[0]
	if root.Kind != yaml.MappingNode {
		return fm
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if val.Kind != yaml.ScalarNode || !frontMatterKeys[strings.ToLower(key.Value)] {
			continue
		}
		if !IsTranslatable(val.Value) {
			continue
		}
		fm.values = append(fm.values, val)
		fm.orig = append(fm.orig, val.Value)
	}
	return fm
}

func (d *textDocument) Format() Format { return d.format }

func (d *textDocument) Items() []TextItem {
	var items []TextItem
	if d.fm != nil {
		for i, v := range d.fm.orig {
			items = append(items, TextItem{Part: partFrontMatter, Index: i, Kind: KindFrontMatter, Text: v})
		}
	}
	idx := 0
	for _, ln := range d.lines {
		if ln.skip {
			continue
		}
		items = append(items, TextItem{Part: partBody, Index: idx, Kind: KindLine, Text: ln.text})
		idx++
	}
	return items
}

func (d *textDocument) Apply(translations map[string]string) (int, error) {
	d.applied = translations
	changed := 0
	for _, it := range d.Items() {
		if dst, ok := d.translation(it.Text); ok && dst != it.Text {
			changed++
		}
	}
	return changed, nil
}

func (d *textDocument) translation(src string) (string, bool) {
	dst, ok := d.applied[src]
	if !ok || strings.TrimSpace(dst) == "" {
		return "", false
	}
	return dst, true
}

func (d *textDocument) render() ([]byte, error) {
	var buf bytes.Buffer
	if d.bom {
		buf.Write(utf8BOM)
	}

	if d.fm != nil {
		fmOut, err := d.renderFrontMatter()
		if err != nil {
			return nil, err
		}
		buf.WriteString(fmOut)
	}

	for _, ln := range d.lines {
		buf.WriteString(ln.prefix)
		text := ln.text
		if !ln.skip {
			if dst, ok := d.translation(text); ok {
				// A translated line must stay one line.
				text = strings.ReplaceAll(strings.TrimSpace(dst), "\n", " ")
			}
		}
		buf.WriteString(text)
		buf.WriteString(ln.suffix)
	}
	return buf.Bytes(), nil
}

// renderFrontMatter returns the original block unless a value changed.
func (d *textDocument) renderFrontMatter() (string, error) {
	dirty := false
	for i, v := range d.fm.values {
		v.Value = d.fm.orig[i]
		if dst, ok := d.translation(d.fm.orig[i]); ok && dst != v.Value {
			v.Value = dst
			dirty = true
		}
	}
	if !dirty {
		return d.fm.raw, nil
	}

	out, err := yaml.Marshal(&d.fm.node)
	if err != nil {
		return "", fmt.Errorf("marshal front matter: %w", err)
	}
	return "---\n" + strings.TrimRight(string(out), "\n") + "\n---\n", nil
}

func (d *textDocument) Save(path string) error {
	out, err := d.render()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
