package container

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode/utf8"
)

// nsFamily lists the transitional and strict URIs of one OOXML namespace.
type nsFamily []string

var (
	wordNS = nsFamily{
		"http://schemas.openxmlformats.org/wordprocessingml/2006/main",
		"http://purl.oclc.org/ooxml/wordprocessingml/main",
	}
	drawingNS = nsFamily{
		"http://schemas.openxmlformats.org/drawingml/2006/main",
		"http://purl.oclc.org/ooxml/drawingml/main",
	}
	sheetNS = nsFamily{
		"http://schemas.openxmlformats.org/spreadsheetml/2006/main",
		"http://purl.oclc.org/ooxml/spreadsheetml/main",
	}
)

type elem struct {
	ns    nsFamily
	local string
}

func (e elem) is(n xml.Name) bool {
	if n.Local != e.local {
		return false
	}
	for _, uri := range e.ns {
		if n.Space == uri {
			return true
		}
	}
	return false
}

func wordEl(local string) elem { return elem{wordNS, local} }
func drawEl(local string) elem { return elem{drawingNS, local} }
func sheetEl(local string) elem { return elem{sheetNS, local} }

// kindRule assigns kind to groups opened anywhere below ancestor.
type kindRule struct {
	ancestor elem
	kind     Kind
}

// scanRules describe how text is grouped in one family of XML parts.
type scanRules struct {
	group   elem       // element that forms one item, e.g. w:p
	text    elem       // element holding character data, e.g. w:t
	parents []elem     // allowed direct parents of text
	run     elem       // element whose properties describe the text style
	kinds   []kindRule // first matching ancestor wins
}

var (
	wordRules = scanRules{
		group:   wordEl("p"),
		text:    wordEl("t"),
		parents: []elem{wordEl("r")},
		run:     wordEl("r"),
		kinds: []kindRule{
			{wordEl("txbxContent"), KindShape},
			{wordEl("tc"), KindTableCell},
		},
	}
	drawingRules = scanRules{
		group:   drawEl("p"),
		text:    drawEl("t"),
		parents: []elem{drawEl("r")},
		run:     drawEl("r"),
		kinds: []kindRule{
			{drawEl("tc"), KindTableCell},
		},
	}
	sharedStringRules = scanRules{
		group:   sheetEl("si"),
		text:    sheetEl("t"),
		parents: []elem{sheetEl("si"), sheetEl("r")},
		run:     sheetEl("r"),
	}
	inlineStringRules = scanRules{
		group:   sheetEl("is"),
		text:    sheetEl("t"),
		parents: []elem{sheetEl("is"), sheetEl("r")},
		run:     sheetEl("r"),
	}
	sheetCommentRules = scanRules{
		group:   sheetEl("comment"),
		text:    sheetEl("t"),
		parents: []elem{sheetEl("text"), sheetEl("r")},
		run:     sheetEl("r"),
	}
)

// segment is the character data of one text element.
type segment struct {
	start, end int
	text       string
}

// textGroup is the set of segments translated as one unit.
type textGroup struct {
	kind  Kind
	segs  []segment
	style *RunStyle
}

func (g *textGroup) text() string {
	if len(g.segs) == 1 {
		return g.segs[0].text
	}
	var sb strings.Builder
	for _, sg := range g.segs {
		sb.WriteString(sg.text)
	}
	return sb.String()
}

// xmlPart is a parsed container part: the original bytes plus the located
// text groups. It is never re-read from disk after extraction.
type xmlPart struct {
	name   string
	data   []byte
	groups []*textGroup
}

// scanPart locates every text group of data according to rules. Groups are
// returned in the order their opening elements appear.
func scanPart(name string, data []byte, rules scanRules, defaultKind Kind) (*xmlPart, error) {
	part := &xmlPart{name: name, data: data}

	d := xml.NewDecoder(bytes.NewReader(data))
	var (
		stack  []xml.Name
		open   []*textGroup
		all    []*textGroup
		style  *RunStyle
		inRPr  bool
		offset int64
	)

	for {
		offset = d.InputOffset()
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case rules.group.is(t.Name):
				g := &textGroup{kind: kindFor(stack, rules.kinds, defaultKind)}
				open = append(open, g)
				all = append(all, g)
			case rules.run.is(t.Name):
				style = &RunStyle{}
			case t.Name.Local == "rPr" && style != nil:
				inRPr = true
				readStyleAttrs(style, t)
			case inRPr && style != nil:
				readStyleElement(style, t)
			}
			stack = append(stack, t.Name)

		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			switch {
			case rules.group.is(t.Name):
				if len(open) > 0 {
					open = open[:len(open)-1]
				}
			case rules.run.is(t.Name):
				style = nil
				inRPr = false
			case t.Name.Local == "rPr":
				inRPr = false
			}

		case xml.CharData:
			if len(open) == 0 || len(stack) < 2 {
				continue
			}
			if !rules.text.is(stack[len(stack)-1]) || !anyIs(rules.parents, stack[len(stack)-2]) {
				continue
			}
			g := open[len(open)-1]
			if len(g.segs) == 0 && style != nil {
				captured := *style
				g.style = &captured
			}
			g.segs = append(g.segs, segment{
				start: int(offset),
				end:   int(d.InputOffset()),
				text:  string(t),
			})
		}
	}

	for _, g := range all {
		if len(g.segs) > 0 {
			part.groups = append(part.groups, g)
		}
	}
	return part, nil
}

func kindFor(stack []xml.Name, rules []kindRule, fallback Kind) Kind {
	for _, r := range rules {
		for _, n := range stack {
			if r.ancestor.is(n) {
				return r.kind
			}
		}
	}
	return fallback
}

func anyIs(elems []elem, n xml.Name) bool {
	for _, e := range elems {
		if e.is(n) {
			return true
		}
	}
	return false
}

func attr(se xml.StartElement, local string) (string, bool) {
	for _, at := range se.Attr {
		if at.Name.Local == local {
			return at.Value, true
		}
	}
	return "", false
}

func truthy(v string) bool {
	return v != "0" && !strings.EqualFold(v, "false") && !strings.EqualFold(v, "off")
}

// readStyleAttrs handles DrawingML run properties, which carry formatting
// as attributes of a:rPr.
func readStyleAttrs(st *RunStyle, se xml.StartElement) {
	if v, ok := attr(se, "b"); ok {
		st.Bold = truthy(v)
	}
	if v, ok := attr(se, "i"); ok {
		st.Italic = truthy(v)
	}
	if v, ok := attr(se, "u"); ok {
		st.Underline = v != "none"
	}
}

// readStyleElement handles WordprocessingML and SpreadsheetML run
// properties, which are child elements of w:rPr / rPr.
func readStyleElement(st *RunStyle, se xml.StartElement) {
	val, hasVal := attr(se, "val")
	switch se.Name.Local {
	case "b":
		st.Bold = !hasVal || truthy(val)
	case "i":
		st.Italic = !hasVal || truthy(val)
	case "u":
		st.Underline = !hasVal || val != "none"
	case "color", "srgbClr":
		if hasVal {
			st.Color = val
		} else if rgb, ok := attr(se, "rgb"); ok {
			st.Color = rgb
		}
	}
}

type edit struct {
	start, end int
	text       string
}

// render returns the part bytes with the translations applied. Per group the
// first segment holding text receives the whole translation and every later
// segment is emptied; the elements themselves stay in place.
func (p *xmlPart) render(translations map[string]string) ([]byte, int) {
	var edits []edit
	changed := 0

	for _, g := range p.groups {
		src := g.text()
		if !IsTranslatable(src) {
			continue
		}
		dst, ok := translations[src]
		if !ok || strings.TrimSpace(dst) == "" || dst == src {
			continue
		}
		changed++

		first := -1
		for i, sg := range g.segs {
			if sg.text != "" {
				first = i
				break
			}
		}
		for i, sg := range g.segs {
			switch {
			case i == first:
				edits = append(edits, edit{sg.start, sg.end, escapeText(dst)})
			case sg.text != "":
				edits = append(edits, edit{sg.start, sg.end, ""})
			}
		}
	}

	if len(edits) == 0 {
		return nil, 0
	}
	return splice(p.data, edits), changed
}

func splice(data []byte, edits []edit) []byte {
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })

	var out bytes.Buffer
	out.Grow(len(data))
	pos := 0
	for _, e := range edits {
		out.Write(data[pos:e.start])
		out.WriteString(e.text)
		pos = e.end
	}
	out.Write(data[pos:])
	return out.Bytes()
}

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// escapeText makes s safe as XML character data. Characters XML 1.0 does not
// allow are dropped.
func escapeText(s string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r == '\t' || r == '\n' || r == '\r':
			return r
		case r < 0x20, r == utf8.RuneError, r == 0xFFFE, r == 0xFFFF:
			return -1
		case r >= 0xD800 && r <= 0xDFFF:
			return -1
		}
		return r
	}, s)
	return textEscaper.Replace(clean)
}
