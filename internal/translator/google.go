package translator

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"strings"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GoogleAdapter uses the Cloud Translation client, which accepts many texts
// per call and needs no prompt or parsing.
type GoogleAdapter struct {
	cfg     Config
	opts    []option.ClientOption
	backoff backoff
	// call performs one Translate request; tests replace it.
	call func(ctx context.Context, p *Payload) ([]string, error)
}

func NewGoogle(cfg Config, opts ...option.ClientOption) *GoogleAdapter {
	a := &GoogleAdapter{cfg: cfg, opts: opts, backoff: defaultBackoff}
	a.call = a.translate
	return a
}

func (a *GoogleAdapter) Name() string   { return a.cfg.Name }
func (a *GoogleAdapter) Config() Config { return a.cfg }

func (a *GoogleAdapter) BuildPayload(texts []string, srcLang, tgtLang string, _ Options) (*Payload, error) {
	if a.cfg.APIKey == "" && a.cfg.CredentialsFile == "" && len(a.opts) == 0 {
		return nil, fmt.Errorf("%s: %w: API key or credentials file not configured", a.cfg.Name, ErrMissingCredentials)
	}
	if _, err := language.Parse(tgtLang); err != nil {
		return nil, fmt.Errorf("invalid target language %q: %w", tgtLang, err)
	}
	if srcLang != "" && !strings.EqualFold(srcLang, "auto") {
		if _, err := language.Parse(srcLang); err != nil {
			return nil, fmt.Errorf("invalid source language %q: %w", srcLang, err)
		}
	}
	return &Payload{Texts: texts, SrcLang: srcLang, TgtLang: tgtLang}, nil
}

func (a *GoogleAdapter) clientOptions() []option.ClientOption {
	opts := append([]option.ClientOption{}, a.opts...)
	if a.cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(a.cfg.APIKey))
	}
	if a.cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(a.cfg.CredentialsFile))
	}
	if a.cfg.APIURL != "" {
		opts = append(opts, option.WithEndpoint(a.cfg.APIURL))
	}
	return opts
}

// Send retries rate-limited and 5xx calls with the same backoff as the HTTP
// adapters.
func (a *GoogleAdapter) Send(ctx context.Context, p *Payload) (*Response, error) {
	attempts := a.cfg.RetryMax
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; ; attempt++ {
		out, err := a.call(ctx, p)
		if err == nil {
			return &Response{StatusCode: 200, Attempts: attempt + 1, Texts: out}, nil
		}

		pe := &ProviderError{Engine: a.cfg.Name, Attempts: attempt + 1, Err: err}
		var gerr *googleapi.Error
		if !errors.As(err, &gerr) {
			return nil, pe
		}
		pe.StatusCode = gerr.Code

		var wait time.Duration
		switch {
		case gerr.Code == http.StatusTooManyRequests:
			pe.Err = fmt.Errorf("%w: %v", ErrRateLimited, err)
			wait = a.backoff.rateLimited(attempt, gerr.Header.Get("Retry-After"))
		case isServerError(gerr.Code):
			wait = a.backoff.server(attempt)
		default:
			return nil, pe
		}
		if attempt == attempts-1 {
			return nil, pe
		}
		if err := sleep(ctx, wait); err != nil {
			pe.Err = err
			return nil, pe
		}
	}
}

func (a *GoogleAdapter) translate(ctx context.Context, p *Payload) ([]string, error) {
	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	client, err := translate.NewClient(ctx, a.clientOptions()...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	defer client.Close()

	target, _ := language.Parse(p.TgtLang)
	topts := &translate.Options{Format: translate.Text}
	if p.SrcLang != "" && !strings.EqualFold(p.SrcLang, "auto") {
		topts.Source, _ = language.Parse(p.SrcLang)
	}

	translations, err := client.Translate(ctx, p.Texts, target, topts)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(translations))
	for i, t := range translations {
		out[i] = html.UnescapeString(t.Text)
	}
	return out, nil
}

func (a *GoogleAdapter) Parse(resp *Response, _ int) ([]string, error) {
	if resp.Texts == nil {
		return nil, fmt.Errorf("%w: no translations returned", ErrMalformedResponse)
	}
	return resp.Texts, nil
}
