package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// qwenLanguages maps ISO codes to the names the qwen-mt models expect.
var qwenLanguages = map[string]string{
	"zh": "Chinese",
	"en": "English",
	"ja": "Japanese",
	"ko": "Korean",
	"de": "German",
	"fr": "French",
	"es": "Spanish",
	"ru": "Russian",
	"it": "Italian",
	"pt": "Portuguese",
	"vi": "Vietnamese",
	"th": "Thai",
	"uk": "Ukrainian",
}

func qwenLanguage(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" || code == "auto" {
		return "auto"
	}
	if name, ok := qwenLanguages[code]; ok {
		return name
	}
	if base, _, ok := strings.Cut(code, "-"); ok {
		if name, ok := qwenLanguages[base]; ok {
			return name
		}
	}
	return code
}

// Qwen3Adapter calls the dedicated machine translation models, which take
// one text per request and the language pair in translation_options.
type Qwen3Adapter struct {
	cfg    Config
	sender *httpSender
}

// NewQwen3 returns the qwen3 adapter. Only 429, 502 and 503 are retried.
func NewQwen3(cfg Config, client *http.Client) *Qwen3Adapter {
	s := newHTTPSender(cfg.Name, cfg, client)
	s.retryable = func(code int) bool {
		return code == http.StatusBadGateway || code == http.StatusServiceUnavailable
	}
	return &Qwen3Adapter{cfg: cfg, sender: s}
}

func (a *Qwen3Adapter) Name() string   { return a.cfg.Name }
func (a *Qwen3Adapter) Config() Config { return a.cfg }

func (a *Qwen3Adapter) BuildPayload(texts []string, srcLang, tgtLang string, _ Options) (*Payload, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: API key not configured", a.cfg.Name, ErrMissingCredentials)
	}

	req := chatRequest{
		Model:    a.cfg.Model,
		Messages: []chatMessage{{Role: "user", Content: strings.Join(texts, "\n")}},
		TranslationOptions: &translationOption{
			SourceLang: qwenLanguage(srcLang),
			TargetLang: qwenLanguage(tgtLang),
		},
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return &Payload{Texts: texts, SrcLang: srcLang, TgtLang: tgtLang, URL: a.cfg.APIURL, Header: h, Body: body}, nil
}

func (a *Qwen3Adapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	resp, err := a.sender.send(ctx, p)
	if err != nil {
		return nil, err
	}
	var cr chatResponse
	if err := json.Unmarshal(resp.Body, &cr); err == nil {
		resp.Tokens = cr.Usage.TotalTokens
	}
	return resp, nil
}

func (a *Qwen3Adapter) Parse(resp *Response, expected int) ([]string, error) {
	content, err := chatContent(resp.Body)
	if err != nil {
		return nil, err
	}
	if expected == 1 {
		content = strings.TrimSpace(content)
		if content == "" {
			return nil, fmt.Errorf("%w: empty content", ErrMalformedResponse)
		}
		return []string{content}, nil
	}
	return parseContent(content, expected)
}
