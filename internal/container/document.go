// Package container reads translatable text out of document containers and
// writes translations back without disturbing anything else in the file.
//
// Office formats (docx, xlsx, pptx) are ZIP archives of XML parts. Text is
// located by byte offset inside the retained part data, and translations are
// spliced in at those offsets, so markup, relationships and media survive
// unchanged. Plain text and markdown files are handled line by line.
package container

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a supported document type.
type Format string

const (
	FormatDocx     Format = "docx"
	FormatXlsx     Format = "xlsx"
	FormatPptx     Format = "pptx"
	FormatText     Format = "txt"
	FormatMarkdown Format = "md"
)

// IsOOXML reports whether the format is a ZIP/XML office container.
func (f Format) IsOOXML() bool {
	return f == FormatDocx || f == FormatXlsx || f == FormatPptx
}

// Kind classifies where a text item lives in its document.
type Kind string

const (
	KindParagraph    Kind = "paragraph"
	KindTableCell    Kind = "table-cell"
	KindHeaderFooter Kind = "header-footer"
	KindShape        Kind = "shape"
	KindNotes        Kind = "notes"
	KindSharedString Kind = "shared-string"
	KindInlineString Kind = "inline-string"
	KindDrawingLabel Kind = "drawing-label"
	KindComment      Kind = "comment"
	KindChartLabel   Kind = "chart-label"
	KindFrontMatter  Kind = "front-matter"
	KindLine         Kind = "line"
)

// RunStyle is the character formatting of the run that receives a merged
// paragraph translation.
type RunStyle struct {
	Bold      bool
	Italic    bool
	Underline bool
	Color     string
}

// TextItem is one translatable fragment and the location it is written back to.
type TextItem struct {
	Part  string
	Index int
	Kind  Kind
	Text  string
	Style *RunStyle
}

// Document is an opened container whose text can be replaced and saved.
type Document interface {
	Format() Format
	// Items returns the translatable fragments in document order.
	Items() []TextItem
	// Apply substitutes translations keyed by original item text and returns
	// how many items changed. Items with no entry or an empty translation keep
	// their source text.
	Apply(translations map[string]string) (int, error)
	// Save writes the document, including applied translations, to path.
	Save(path string) error
}

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// ReassemblyError reports a container part that could not be written back
// consistently.
type ReassemblyError struct {
	Part   string
	Reason string
}

func (e *ReassemblyError) Error() string {
	return fmt.Sprintf("reassemble %s: %s", e.Part, e.Reason)
}

// FormatOf returns the document format implied by the file extension.
func FormatOf(path string) (Format, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".docx":
		return FormatDocx, nil
	case ".xlsx":
		return FormatXlsx, nil
	case ".pptx":
		return FormatPptx, nil
	case ".txt":
		return FormatText, nil
	case ".md", ".markdown":
		return FormatMarkdown, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// Open parses the document at path according to its extension.
func Open(path string) (Document, error) {
	format, err := FormatOf(path)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatDocx:
		return openOOXML(path, format, docxParts, verifyCellMerges)
	case FormatXlsx:
		return openOOXML(path, format, xlsxParts, nil)
	case FormatPptx:
		return openOOXML(path, format, pptxParts, nil)
	default:
		return openText(path, format)
	}
}

// Unique returns the distinct item texts in first-seen order.
func Unique(items []TextItem) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, it := range items {
		if _, ok := seen[it.Text]; ok {
			continue
		}
		seen[it.Text] = struct{}{}
		out = append(out, it.Text)
	}
	return out
}
