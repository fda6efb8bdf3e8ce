package container

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

const (
	wordHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`
	wordFooter  = `</w:body></w:document>`
	sheetHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`
	slideHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` +
		`<p:sld xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" ` +
		`xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main"><p:cSld><p:spTree>`
	slideFooter = `</p:spTree></p:cSld></p:sld>`
)

type zipEntry struct {
	name   string
	body   string
	method uint16
}

func writeZip(t *testing.T, path string, entries []zipEntry) {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		method := e.method
		if method == 0 {
			method = zip.Deflate
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: method})
		if err != nil {
			t.Fatalf("create %s: %v", e.name, err)
		}
		if _, err := io.WriteString(w, e.body); err != nil {
			t.Fatalf("write %s: %v", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

type zipContent struct {
	names []string
	raw   map[string][]byte
	data  map[string]string
}

func readZip(t *testing.T, path string) zipContent {
	t.Helper()
	r, err := zip.OpenReader(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer r.Close()

	out := zipContent{raw: map[string][]byte{}, data: map[string]string{}}
	for _, f := range r.File {
		out.names = append(out.names, f.Name)

		rr, err := f.OpenRaw()
		if err != nil {
			t.Fatalf("raw %s: %v", f.Name, err)
		}
		raw, _ := io.ReadAll(rr)
		out.raw[f.Name] = raw

		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry %s: %v", f.Name, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		out.data[f.Name] = string(data)
	}
	return out
}

func docx(body string) string { return wordHeader + body + wordFooter }

func TestIsTranslatable(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", false},
		{"   \t", false},
		{"42", false},
		{"1,234.50", false},
		{"42%", false},
		{"-- / --", false},
		{"Hello", true},
		{"  Ⅻ glossary 2", true},
		{"Привіт", true},
		{"你好", true},
	}
	for _, tt := range tests {
		if got := IsTranslatable(tt.in); got != tt.want {
			t.Errorf("IsTranslatable(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFormatOf_Unsupported(t *testing.T) {
	_, err := FormatOf("report.pdf")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if _, err := Open("report.pdf"); !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("Open: expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestDocx_RoundTripIdentity(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")

	writeZip(t, in, []zipEntry{
		{name: "[Content_Types].xml", body: `<Types/>`},
		{name: "word/document.xml", body: docx(`<w:p><w:r><w:t>2024</w:t></w:r></w:p>`)},
		{name: "word/media/image1.png", body: "\x89PNG\x00\x01binary", method: zip.Store},
		{name: "word/styles.xml", body: `<w:styles/>`},
	})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if items := doc.Items(); len(items) != 0 {
		t.Fatalf("expected no translatable items, got %+v", items)
	}
	n, err := doc.Apply(map[string]string{})
	if err != nil || n != 0 {
		t.Fatalf("Apply = %d, %v", n, err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	before, after := readZip(t, in), readZip(t, out)
	if strings.Join(before.names, ",") != strings.Join(after.names, ",") {
		t.Fatalf("entry order changed: %v -> %v", before.names, after.names)
	}
	for _, name := range before.names {
		if !bytes.Equal(before.raw[name], after.raw[name]) {
			t.Errorf("entry %s not byte-identical", name)
		}
	}
}

func TestDocx_RunMergeKeepsFirstRunProperties(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")

	body := `<w:p><w:pPr><w:rPr><w:i/></w:rPr></w:pPr>` +
		`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t xml:space="preserve">Hello </w:t></w:r>` +
		`<w:r><w:t>world</w:t></w:r></w:p>`
	writeZip(t, in, []zipEntry{{name: "word/document.xml", body: docx(body)}})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	it := items[0]
	if it.Text != "Hello world" || it.Kind != KindParagraph || it.Part != "word/document.xml" {
		t.Errorf("unexpected item %+v", it)
	}
	if it.Style == nil || !it.Style.Bold || it.Style.Italic || it.Style.Color != "FF0000" {
		t.Errorf("unexpected style %+v", it.Style)
	}

	n, err := doc.Apply(map[string]string{"Hello world": "Bonjour le monde"})
	if err != nil || n != 1 {
		t.Fatalf("Apply = %d, %v", n, err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got := readZip(t, out).data["word/document.xml"]
	want := docx(`<w:p><w:pPr><w:rPr><w:i/></w:rPr></w:pPr>` +
		`<w:r><w:rPr><w:b/><w:color w:val="FF0000"/></w:rPr><w:t xml:space="preserve">Bonjour le monde</w:t></w:r>` +
		`<w:r><w:t></w:t></w:r></w:p>`)
	if got != want {
		t.Errorf("document.xml mismatch\n got: %s\nwant: %s", got, want)
	}
}

func TestDocx_TableCellsAndMergesSurvive(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")

	body := `<w:tbl><w:tr>` +
		`<w:tc><w:tcPr><w:gridSpan w:val="2"/><w:vMerge w:val="restart"/></w:tcPr><w:p><w:r><w:t>Name</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:p><w:r><w:t>Tom &amp; Jerry</w:t></w:r></w:p></w:tc>` +
		`</w:tr></w:tbl><w:p><w:r><w:t>Name</w:t></w:r></w:p>`
	writeZip(t, in, []zipEntry{
		{name: "word/document.xml", body: docx(body)},
		{name: "word/header1.xml", body: docx(`<w:p><w:r><w:t>Confidential</w:t></w:r></w:p>`)},
	})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(items), items)
	}
	kinds := []Kind{KindTableCell, KindTableCell, KindParagraph, KindHeaderFooter}
	for i, k := range kinds {
		if items[i].Kind != k {
			t.Errorf("item %d kind = %s, want %s", i, items[i].Kind, k)
		}
	}
	if items[1].Text != "Tom & Jerry" {
		t.Errorf("entity not decoded: %q", items[1].Text)
	}
	if u := Unique(items); len(u) != 3 {
		t.Errorf("Unique = %v, want 3 strings", u)
	}

	n, err := doc.Apply(map[string]string{
		"Name":         "Nom",
		"Tom & Jerry":  "Tom <et> Jerry",
		"Confidential": "",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 3 {
		t.Errorf("changed = %d, want 3", n)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := readZip(t, out)
	xml := saved.data["word/document.xml"]
	if strings.Count(xml, "<w:t>Nom</w:t>") != 2 {
		t.Errorf("every occurrence should be translated: %s", xml)
	}
	if !strings.Contains(xml, "Tom &lt;et&gt; Jerry") {
		t.Errorf("translation not escaped: %s", xml)
	}
	if !strings.Contains(xml, `<w:gridSpan w:val="2"/><w:vMerge w:val="restart"/>`) {
		t.Errorf("merge attributes lost: %s", xml)
	}
	if !strings.Contains(saved.data["word/header1.xml"], "Confidential") {
		t.Error("empty translation should keep the source text")
	}
}

func TestVerifyCellMerges(t *testing.T) {
	orig := []byte(docx(`<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr></w:tc><w:tc><w:tcPr><w:vMerge/></w:tcPr></w:tc></w:tr></w:tbl>`))
	same := []byte(docx(`<w:tbl><w:tr><w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p/></w:tc><w:tc><w:tcPr><w:vMerge/></w:tcPr></w:tc></w:tr></w:tbl>`))
	broken := []byte(docx(`<w:tbl><w:tr><w:tc><w:tcPr></w:tcPr></w:tc><w:tc><w:tcPr><w:vMerge/></w:tcPr></w:tc></w:tr></w:tbl>`))

	if err := verifyCellMerges("word/document.xml", orig, same); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := verifyCellMerges("word/document.xml", orig, broken)
	var re *ReassemblyError
	if !errors.As(err, &re) {
		t.Fatalf("expected ReassemblyError, got %v", err)
	}
	if re.Part != "word/document.xml" {
		t.Errorf("Part = %q", re.Part)
	}
}

func TestDocx_TextBoxIsShape(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")

	body := `<w:p><w:r><w:t>Outer</w:t></w:r><w:r><w:pict><w:txbxContent>` +
		`<w:p><w:r><w:t>Inner box</w:t></w:r></w:p>` +
		`</w:txbxContent></w:pict></w:r><w:r><w:t> tail</w:t></w:r></w:p>`
	writeZip(t, in, []zipEntry{{name: "word/document.xml", body: docx(body)}})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Text != "Outer tail" || items[0].Kind != KindParagraph {
		t.Errorf("outer item = %+v", items[0])
	}
	if items[1].Text != "Inner box" || items[1].Kind != KindShape {
		t.Errorf("inner item = %+v", items[1])
	}
}

func TestXlsx_SharedAndInlineStrings(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.xlsx")
	out := filepath.Join(dir, "out.xlsx")

	ns := `xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"`
	shared := sheetHeader + `<sst ` + ns + ` count="3">` +
		`<si><t>Revenue</t></si>` +
		`<si><r><rPr><b/></rPr><t>Net </t></r><r><t>income</t></r></si>` +
		`<si><t>2023</t></si></sst>`
	sheet := sheetHeader + `<worksheet ` + ns + `><sheetData><row r="1">` +
		`<c r="A1" t="s"><v>0</v></c>` +
		`<c r="B1" t="inlineStr"><is><t>Total</t></is></c>` +
		`<c r="C1"><f>SUM(A1:B1)</f><v>10</v></c>` +
		`</row></sheetData></worksheet>`
	writeZip(t, in, []zipEntry{
		{name: "xl/workbook.xml", body: `<workbook/>`},
		{name: "xl/sharedStrings.xml", body: shared},
		{name: "xl/worksheets/sheet1.xml", body: sheet},
	})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %+v", items)
	}
	if items[1].Text != "Net income" || items[1].Kind != KindSharedString || items[1].Style == nil || !items[1].Style.Bold {
		t.Errorf("rich text item = %+v", items[1])
	}
	if items[2].Text != "Total" || items[2].Kind != KindInlineString {
		t.Errorf("inline item = %+v", items[2])
	}

	if _, err := doc.Apply(map[string]string{"Revenue": "Chiffre", "Net income": "Résultat net", "Total": "Somme"}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}
	saved := readZip(t, out)
	if !strings.Contains(saved.data["xl/sharedStrings.xml"], `<r><rPr><b/></rPr><t>Résultat net</t></r><r><t></t></r>`) {
		t.Errorf("shared strings = %s", saved.data["xl/sharedStrings.xml"])
	}
	s := saved.data["xl/worksheets/sheet1.xml"]
	if !strings.Contains(s, "<is><t>Somme</t></is>") || !strings.Contains(s, "<f>SUM(A1:B1)</f><v>10</v>") {
		t.Errorf("sheet = %s", s)
	}
	if !bytes.Equal(readZip(t, in).raw["xl/workbook.xml"], saved.raw["xl/workbook.xml"]) {
		t.Error("untouched entry changed")
	}
}

func TestPptx_SkipsFieldsAndTagsNotes(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.pptx")

	slide := slideHeader + `<p:sp><p:txBody><a:p><a:r><a:rPr b="1"/><a:t>Quarterly review</a:t></a:r>` +
		`<a:fld type="slidenum"><a:t>3</a:t></a:fld></a:p>` +
		`<a:p><a:fld type="datetime"><a:t>Monday</a:t></a:fld></a:p></p:txBody></p:sp>` + slideFooter
	notes := strings.Replace(slideHeader, "p:sld", "p:notes", 1) + `<p:sp><p:txBody><a:p><a:r><a:t>Speak slowly</a:t></a:r></a:p></p:txBody></p:sp>` +
		strings.Replace(slideFooter, "p:sld", "p:notes", 1)
	writeZip(t, in, []zipEntry{
		{name: "ppt/slides/slide1.xml", body: slide},
		{name: "ppt/notesSlides/notesSlide1.xml", body: notes},
	})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %+v", items)
	}
	if items[0].Text != "Quarterly review" || items[0].Kind != KindShape || !items[0].Style.Bold {
		t.Errorf("slide item = %+v", items[0])
	}
	if items[1].Text != "Speak slowly" || items[1].Kind != KindNotes {
		t.Errorf("notes item = %+v", items[1])
	}
}

func TestApply_IsRepeatable(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.docx")
	out := filepath.Join(dir, "out.docx")
	writeZip(t, in, []zipEntry{{name: "word/document.xml", body: docx(`<w:p><w:r><w:t>Hello</w:t></w:r></w:p>`)}})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := doc.Apply(map[string]string{"Hello": "Bonjour"}); err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Apply(map[string]string{"Hello": "Hallo"}); err != nil {
		t.Fatal(err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatal(err)
	}
	if got := readZip(t, out).data["word/document.xml"]; !strings.Contains(got, "<w:t>Hallo</w:t>") {
		t.Errorf("second Apply should replace the first: %s", got)
	}
}

func TestText_PreservesWhitespaceAndLineEndings(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.txt")
	out := filepath.Join(dir, "out.txt")
	src := "\xEF\xBB\xBF  Hello  \r\n\r\n42\n\tWorld"
	if err := os.WriteFile(in, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	items := doc.Items()
	if len(items) != 2 || items[0].Text != "Hello" || items[1].Text != "World" || items[0].Kind != KindLine {
		t.Fatalf("items = %+v", items)
	}
	n, err := doc.Apply(map[string]string{"Hello": "Bonjour", "World": "Monde"})
	if err != nil || n != 2 {
		t.Fatalf("Apply = %d, %v", n, err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatal(err)
	}
	got, _ := os.ReadFile(out)
	want := "\xEF\xBB\xBF  Bonjour  \r\n\r\n42\n\tMonde"
	if string(got) != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestText_DecodesLegacyEncoding(t *testing.T) {
	doc, err := parseText([]byte("Caf\xe9 cr\xe8me\n"), FormatText)
	if err != nil {
		t.Fatalf("parseText: %v", err)
	}
	items := doc.Items()
	if len(items) != 1 || !strings.HasPrefix(items[0].Text, "Caf") || !strings.Contains(items[0].Text, "me") {
		t.Fatalf("items = %+v", items)
	}
	if !utf8.ValidString(items[0].Text) {
		t.Errorf("decoded text is not UTF-8: %q", items[0].Text)
	}
}

func TestMarkdown_StructureIsKept(t *testing.T) {
	src := "---\ntitle: Getting started\nslug: getting-started\n---\n" +
		"# Introduction\n\n" +
		"- [ ] Install the tool\n" +
		"1. Run it\n" +
		"> Quoted line\n" +
		"```bash\necho hello\n```\n" +
		"Plain paragraph.\n"

	doc, err := parseText([]byte(src), FormatMarkdown)
	if err != nil {
		t.Fatalf("parseText: %v", err)
	}

	var texts []string
	for _, it := range doc.Items() {
		texts = append(texts, it.Text)
	}
	want := []string{"Getting started", "Introduction", "Install the tool", "Run it", "Quoted line", "Plain paragraph."}
	if strings.Join(texts, "|") != strings.Join(want, "|") {
		t.Fatalf("items = %q, want %q", texts, want)
	}
	if doc.Items()[0].Kind != KindFrontMatter {
		t.Errorf("first item kind = %s", doc.Items()[0].Kind)
	}

	if _, err := doc.Apply(map[string]string{
		"Getting started":  "Premiers pas",
		"Introduction":     "Présentation",
		"Install the tool": "Installer l'outil",
		"Plain paragraph.": "Paragraphe simple.",
	}); err != nil {
		t.Fatal(err)
	}
	got, err := doc.render()
	if err != nil {
		t.Fatal(err)
	}
	out := string(got)
	for _, frag := range []string{
		"title: Premiers pas\n",
		"slug: getting-started\n",
		"# Présentation\n",
		"- [ ] Installer l'outil\n",
		"1. Run it\n",
		"```bash\necho hello\n```\n",
		"Paragraphe simple.\n",
	} {
		if !strings.Contains(out, frag) {
			t.Errorf("output missing %q:\n%s", frag, out)
		}
	}
}

func TestMarkdown_UnchangedFrontMatterIsVerbatim(t *testing.T) {
	src := "---\ntitle:   Spaced   # comment\n---\nBody\n"
	doc, err := parseText([]byte(src), FormatMarkdown)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := doc.Apply(map[string]string{"Body": "Corps"}); err != nil {
		t.Fatal(err)
	}
	got, _ := doc.render()
	if string(got) != "---\ntitle:   Spaced   # comment\n---\nCorps\n" {
		t.Errorf("got %q", got)
	}
}

func TestXlsx_CommentsDrawingsAndCharts(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.xlsx")
	out := filepath.Join(dir, "out.xlsx")

	ns := `xmlns="http://schemas.openxmlformats.org/spreadsheetml/2006/main"`
	drawingNS := `xmlns:xdr="http://schemas.openxmlformats.org/drawingml/2006/spreadsheetDrawing" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`
	chartNS := `xmlns:c="http://schemas.openxmlformats.org/drawingml/2006/chart" ` +
		`xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main"`

	comments := sheetHeader + `<comments ` + ns + `><authors><author>Ann Lee</author></authors><commentList>` +
		`<comment ref="A1" authorId="0"><text><r><rPr><b/></rPr><t>Check </t></r><r><t>totals</t></r></text></comment>` +
		`<comment ref="B2" authorId="0"><text><t>2024</t></text></comment>` +
		`</commentList></comments>`
	drawing := sheetHeader + `<xdr:wsDr ` + drawingNS + `><xdr:twoCellAnchor><xdr:sp><xdr:txBody><a:bodyPr/>` +
		`<a:p><a:r><a:t>Sales by region</a:t></a:r></a:p></xdr:txBody></xdr:sp></xdr:twoCellAnchor></xdr:wsDr>`
	chart := sheetHeader + `<c:chartSpace ` + chartNS + `><c:chart><c:title><c:tx><c:rich><a:bodyPr/>` +
		`<a:p><a:r><a:t>Monthly revenue</a:t></a:r></a:p></c:rich></c:tx></c:title>` +
		`<c:plotArea><c:barChart><c:ser><c:tx><c:strRef><c:f>Sheet1!$B$1</c:f></c:strRef></c:tx></c:ser></c:barChart></c:plotArea>` +
		`</c:chart></c:chartSpace>`
	rels := sheetHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships"/>`
	writeZip(t, in, []zipEntry{
		{name: "xl/workbook.xml", body: `<workbook/>`},
		{name: "xl/comments1.xml", body: comments},
		{name: "xl/drawings/drawing1.xml", body: drawing},
		{name: "xl/drawings/_rels/drawing1.xml.rels", body: rels},
		{name: "xl/charts/chart1.xml", body: chart},
	})

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	kinds := map[string]Kind{}
	for _, it := range doc.Items() {
		kinds[it.Text] = it.Kind
	}
	want := map[string]Kind{
		"Check totals":    KindComment,
		"Sales by region": KindDrawingLabel,
		"Monthly revenue": KindChartLabel,
	}
	if len(kinds) != len(want) {
		t.Fatalf("items = %v, want %v", kinds, want)
	}
	for text, kind := range want {
		if kinds[text] != kind {
			t.Errorf("%q kind = %q, want %q", text, kinds[text], kind)
		}
	}

	n, err := doc.Apply(map[string]string{
		"Check totals":    "Vérifier les totaux",
		"Sales by region": "Ventes par région",
		"Monthly revenue": "Revenu mensuel",
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if n != 3 {
		t.Errorf("Apply replaced %d items, want 3", n)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	saved := readZip(t, out)
	c := saved.data["xl/comments1.xml"]
	for _, frag := range []string{
		`<r><rPr><b/></rPr><t>Vérifier les totaux</t></r><r><t></t></r>`,
		`<author>Ann Lee</author>`,
		`<text><t>2024</t></text>`,
	} {
		if !strings.Contains(c, frag) {
			t.Errorf("comments missing %q: %s", frag, c)
		}
	}
	if d := saved.data["xl/drawings/drawing1.xml"]; !strings.Contains(d, "<a:t>Ventes par région</a:t>") {
		t.Errorf("drawing = %s", d)
	}
	ch := saved.data["xl/charts/chart1.xml"]
	if !strings.Contains(ch, "<a:t>Revenu mensuel</a:t>") || !strings.Contains(ch, "<c:f>Sheet1!$B$1</c:f>") {
		t.Errorf("chart = %s", ch)
	}
	if !bytes.Equal(readZip(t, in).raw["xl/drawings/_rels/drawing1.xml.rels"], saved.raw["xl/drawings/_rels/drawing1.xml.rels"]) {
		t.Error("relationship part changed")
	}
}

func TestMarkdown_FrontMatterRoundTrip(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "notes.md")
	out := filepath.Join(dir, "notes.fr.md")
	src := "---\ntitle: \"Release notes\"\ndescription: What changed in version 2\n" +
		"tags: [release, notes]\ndate: 2024-05-01\n---\n# Release notes\n\nSee below.\n"
	if err := os.WriteFile(in, []byte(src), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := Open(in)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := doc.Apply(map[string]string{
		"Release notes":             "Notes de version",
		"What changed in version 2": "Nouveautés: version 2",
		"See below.":                "Voir ci-dessous.",
	}); err != nil {
		t.Fatal(err)
	}
	if err := doc.Save(out); err != nil {
		t.Fatalf("Save: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	for _, frag := range []string{"tags: [release, notes]\n", "date: 2024-05-01\n", "# Notes de version\n", "\nVoir ci-dessous.\n"} {
		if !strings.Contains(string(raw), frag) {
			t.Errorf("output missing %q:\n%s", frag, raw)
		}
	}

	again, err := Open(out)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var fm []string
	for _, it := range again.Items() {
		if it.Kind == KindFrontMatter {
			fm = append(fm, it.Text)
		}
	}
	if strings.Join(fm, "|") != "Notes de version|Nouveautés: version 2" {
		t.Errorf("front matter after round trip = %q", fm)
	}
}
