package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// TencentAdapter calls the TextTranslate action. The texts travel as one
// JSON-encoded string and come back the same way.
type TencentAdapter struct {
	cfg    Config
	sender *httpSender
}

func NewTencent(cfg Config, client *http.Client) *TencentAdapter {
	return &TencentAdapter{cfg: cfg, sender: newHTTPSender(cfg.Name, cfg, client)}
}

func (a *TencentAdapter) Name() string   { return a.cfg.Name }
func (a *TencentAdapter) Config() Config { return a.cfg }

type tencentRequest struct {
	Action     string
	Version    string
	Region     string
	SourceText string
	Source     string
	Target     string
	ProjectId  int
}

type tencentResponse struct {
	Response struct {
		TargetText string
		Error      *struct {
			Code    string
			Message string
		}
	}
}

func (a *TencentAdapter) BuildPayload(texts []string, srcLang, tgtLang string, _ Options) (*Payload, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("%s: %w: API key not configured", a.cfg.Name, ErrMissingCredentials)
	}
	if srcLang == "" {
		srcLang = "auto"
	}

	body, err := json.Marshal(tencentRequest{
		Action:     "TextTranslate",
		Version:    "2018-03-21",
		Region:     "ap-beijing",
		SourceText: jsonArray(texts),
		Source:     srcLang,
		Target:     tgtLang,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Authorization", "Bearer "+a.cfg.APIKey)
	return &Payload{Texts: texts, SrcLang: srcLang, TgtLang: tgtLang, URL: a.cfg.APIURL, Header: h, Body: body}, nil
}

func (a *TencentAdapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	return a.sender.send(ctx, p)
}

func (a *TencentAdapter) Parse(resp *Response, expected int) ([]string, error) {
	var tr tencentResponse
	if err := json.Unmarshal(resp.Body, &tr); err != nil {
		return nil, fmt.Errorf("%w: decode body: %v", ErrMalformedResponse, err)
	}
	if e := tr.Response.Error; e != nil {
		return nil, &ProviderError{
			Engine:     a.cfg.Name,
			StatusCode: resp.StatusCode,
			Attempts:   resp.Attempts,
			Err:        fmt.Errorf("%s: %s", e.Code, e.Message),
		}
	}
	if tr.Response.TargetText == "" {
		return nil, fmt.Errorf("%w: empty TargetText", ErrMalformedResponse)
	}

	var out []string
	if err := json.Unmarshal([]byte(tr.Response.TargetText), &out); err == nil {
		return out, nil
	}
	return parseContent(tr.Response.TargetText, expected)
}
