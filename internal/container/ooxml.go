package container

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"slices"
)

// partRule selects archive entries by name and says how to scan them.
type partRule struct {
	pattern *regexp.Regexp
	rules   scanRules
	kind    Kind
}

var docxParts = []partRule{
	{regexp.MustCompile(`^word/document\.xml$`), wordRules, KindParagraph},
	{regexp.MustCompile(`^word/(header|footer)\d*\.xml$`), wordRules, KindHeaderFooter},
	{regexp.MustCompile(`^word/(footnotes|endnotes)\.xml$`), wordRules, KindParagraph},
	{regexp.MustCompile(`^word/comments\.xml$`), wordRules, KindComment},
	{regexp.MustCompile(`^word/charts/chart\d*\.xml$`), drawingRules, KindChartLabel},
	{regexp.MustCompile(`^word/diagrams/data\d*\.xml$`), drawingRules, KindShape},
}

var xlsxParts = []partRule{
	{regexp.MustCompile(`^xl/sharedStrings\.xml$`), sharedStringRules, KindSharedString},
	{regexp.MustCompile(`^xl/worksheets/sheet\d+\.xml$`), inlineStringRules, KindInlineString},
	{regexp.MustCompile(`^xl/drawings/drawing\d+\.xml$`), drawingRules, KindDrawingLabel},
	{regexp.MustCompile(`^xl/comments\d*\.xml$`), sheetCommentRules, KindComment},
	{regexp.MustCompile(`^xl/charts/chart\d+\.xml$`), drawingRules, KindChartLabel},
}

var pptxParts = []partRule{
	{regexp.MustCompile(`^ppt/slides/slide\d+\.xml$`), drawingRules, KindShape},
	{regexp.MustCompile(`^ppt/notesSlides/notesSlide\d+\.xml$`), drawingRules, KindNotes},
	{regexp.MustCompile(`^ppt/charts/chart\d+\.xml$`), drawingRules, KindChartLabel},
	{regexp.MustCompile(`^ppt/diagrams/data\d+\.xml$`), drawingRules, KindDrawingLabel},
}

func matchPart(rules []partRule, name string) (partRule, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(name) {
			return r, true
		}
	}
	return partRule{}, false
}

// verifyFunc checks a rewritten part against its original bytes.
type verifyFunc func(name string, orig, updated []byte) error

type ooxmlDocument struct {
	format   Format
	arc      *archive
	parts    []*xmlPart // in archive order
	verify   verifyFunc
	replaced map[string][]byte
}

func openOOXML(path string, format Format, rules []partRule, verify verifyFunc) (Document, error) {
	want := func(name string) bool {
		_, ok := matchPart(rules, name)
		return ok
	}
	arc, raw, err := readArchive(path, want)
	if err != nil {
		return nil, err
	}

	doc := &ooxmlDocument{format: format, arc: arc, verify: verify}
	for _, e := range arc.entries {
		data, ok := raw[e.header.Name]
		if !ok {
			continue
		}
		rule, _ := matchPart(rules, e.header.Name)
		part, err := scanPart(e.header.Name, data, rule.rules, rule.kind)
		if err != nil {
			return nil, err
		}
		doc.parts = append(doc.parts, part)
	}
	return doc, nil
}

func (d *ooxmlDocument) Format() Format { return d.format }

func (d *ooxmlDocument) Items() []TextItem {
	var items []TextItem
	for _, p := range d.parts {
		idx := 0
		for _, g := range p.groups {
			text := g.text()
			if !IsTranslatable(text) {
				continue
			}
			items = append(items, TextItem{
				Part:  p.name,
				Index: idx,
				Kind:  g.kind,
				Text:  text,
				Style: g.style,
			})
			idx++
		}
	}
	return items
}

// Apply always renders from the originally extracted bytes, so calling it
// again replaces the earlier result instead of layering on top of it.
func (d *ooxmlDocument) Apply(translations map[string]string) (int, error) {
	replaced := make(map[string][]byte)
	total := 0
	for _, p := range d.parts {
		updated, n := p.render(translations)
		if n == 0 {
			continue
		}
		if d.verify != nil {
			if err := d.verify(p.name, p.data, updated); err != nil {
				return 0, err
			}
		}
		replaced[p.name] = updated
		total += n
	}
	d.replaced = replaced
	return total, nil
}

func (d *ooxmlDocument) Save(path string) error {
	return d.arc.write(path, d.replaced)
}

// cellSignature lists gridSpan and vMerge of every w:tc in order.
func cellSignature(data []byte) ([]string, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	var (
		sig    []string
		inCell bool
		span   string
		merge  string
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return sig, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case wordEl("tc").is(t.Name):
				inCell, span, merge = true, "1", ""
			case inCell && wordEl("gridSpan").is(t.Name):
				span, _ = attr(t, "val")
			case inCell && wordEl("vMerge").is(t.Name):
				merge, _ = attr(t, "val")
				if merge == "" {
					merge = "continue"
				}
			}
		case xml.EndElement:
			if wordEl("tc").is(t.Name) {
				sig = append(sig, span+"/"+merge)
				inCell = false
			}
		}
	}
}

// verifyCellMerges rejects a rewritten docx part whose merged-cell layout no
// longer matches the source.
func verifyCellMerges(name string, orig, updated []byte) error {
	before, err := cellSignature(orig)
	if err != nil {
		return &ReassemblyError{Part: name, Reason: fmt.Sprintf("original not parseable: %v", err)}
	}
	after, err := cellSignature(updated)
	if err != nil {
		return &ReassemblyError{Part: name, Reason: fmt.Sprintf("rewritten part not parseable: %v", err)}
	}
	if !slices.Equal(before, after) {
		return &ReassemblyError{Part: name, Reason: "table cell merge attributes changed"}
	}
	return nil
}
