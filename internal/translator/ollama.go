package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// OllamaAdapter talks to a local Ollama server through /api/generate. No
// credentials are needed.
type OllamaAdapter struct {
	cfg    Config
	sender *httpSender
}

func NewOllama(cfg Config, client *http.Client) *OllamaAdapter {
	return &OllamaAdapter{cfg: cfg, sender: newHTTPSender(cfg.Name, cfg, client)}
}

func (a *OllamaAdapter) Name() string   { return a.cfg.Name }
func (a *OllamaAdapter) Config() Config { return a.cfg }

type ollamaRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type ollamaResponse struct {
	Response        string `json:"response"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

func (a *OllamaAdapter) BuildPayload(texts []string, srcLang, tgtLang string, opts Options) (*Payload, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Translate each item of the JSON array below from %s to %s.\n", displayLang(srcLang), tgtLang)
	sb.WriteString("Keep tokens like __TRANS_TERM_0__ and [PH0] unchanged.\n")
	if opts.StyleInstruction != "" {
		sb.WriteString("Style: " + opts.StyleInstruction + "\n")
	}
	fmt.Fprintf(&sb, "Respond with ONLY a JSON array of %d strings, nothing else.\n\n%s", len(texts), jsonArray(texts))

	options := map[string]any{"temperature": a.cfg.Temperature}
	if a.cfg.MaxTokens > 0 {
		options["num_predict"] = a.cfg.MaxTokens
	}
	body, err := json.Marshal(ollamaRequest{
		Model:   a.cfg.Model,
		Prompt:  sb.String(),
		Stream:  false,
		Options: options,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	return &Payload{
		Texts:   texts,
		SrcLang: srcLang,
		TgtLang: tgtLang,
		URL:     strings.TrimRight(a.cfg.APIURL, "/") + "/api/generate",
		Header:  h,
		Body:    body,
	}, nil
}

func (a *OllamaAdapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	resp, err := a.sender.send(ctx, p)
	if err != nil {
		return nil, err
	}
	var or ollamaResponse
	if err := json.Unmarshal(resp.Body, &or); err == nil {
		resp.Tokens = or.PromptEvalCount + or.EvalCount
	}
	return resp, nil
}

func (a *OllamaAdapter) Parse(resp *Response, expected int) ([]string, error) {
	var or ollamaResponse
	if err := json.Unmarshal(resp.Body, &or); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	return parseContent(or.Response, expected)
}
