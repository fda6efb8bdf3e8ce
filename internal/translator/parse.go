package translator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/valpere/doctran/internal/postprocess"
)

// arrayKeys are the object keys under which models put the translation list.
var arrayKeys = []string{"translated_texts", "translations", "data", "result"}

var embeddedArrayRe = regexp.MustCompile(`(?s)\[.*\]`)

// parseContent turns chat-model content into translations:
//  1. strict JSON (an array, or an object holding one under a known key)
//  2. the first-to-last bracketed array found anywhere in the content
//  3. one translation per line, list markers removed; for a single expected
//     translation the whole content counts
//
// Content that fits none of these is ErrMalformedResponse.
func parseContent(content string, expected int) ([]string, error) {
	cleaned := postprocess.StripWrapping(content)
	if cleaned == "" {
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var v any
	if err := json.Unmarshal([]byte(cleaned), &v); err == nil {
		if out, ok := stringsFromJSON(v, 1); ok {
			return out, nil
		}
	}

	if m := embeddedArrayRe.FindString(cleaned); m != "" {
		var arr []any
		if err := json.Unmarshal([]byte(m), &arr); err == nil {
			if out, ok := onlyStrings(arr); ok {
				return out, nil
			}
		}
	}

	if expected == 1 {
		if text := postprocess.Clean(cleaned); text != "" {
			return []string{text}, nil
		}
		return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
	}

	var lines []string
	for _, ln := range strings.Split(cleaned, "\n") {
		ln = strings.TrimSpace(ln)
		if ln == "" || strings.HasPrefix(ln, "[") || strings.HasPrefix(ln, "{") {
			continue
		}
		if ln = postprocess.StripListMarker(ln); ln != "" {
			lines = append(lines, ln)
		}
	}
	if len(lines) >= expected {
		return lines, nil
	}
	return nil, fmt.Errorf("%w: expected %d translations, found %d lines", ErrMalformedResponse, expected, len(lines))
}

// stringsFromJSON extracts a list of strings from an array or from an object
// holding one under arrayKeys, looking at most depth objects deep.
func stringsFromJSON(v any, depth int) ([]string, bool) {
	switch t := v.(type) {
	case []any:
		return stringify(t), true
	case map[string]any:
		for _, k := range arrayKeys {
			inner, ok := t[k]
			if !ok {
				continue
			}
			if arr, ok := inner.([]any); ok {
				return stringify(arr), true
			}
			if depth > 0 {
				if out, ok := stringsFromJSON(inner, depth-1); ok {
					return out, true
				}
			}
		}
	}
	return nil, false
}

func stringify(arr []any) []string {
	out := make([]string, len(arr))
	for i, el := range arr {
		switch t := el.(type) {
		case string:
			out[i] = t
		case nil:
			out[i] = ""
		default:
			b, _ := json.Marshal(t)
			out[i] = string(b)
		}
	}
	return out
}

func onlyStrings(arr []any) ([]string, bool) {
	out := make([]string, len(arr))
	for i, el := range arr {
		s, ok := el.(string)
		if !ok {
			return nil, false
		}
		out[i] = s
	}
	return out, true
}
