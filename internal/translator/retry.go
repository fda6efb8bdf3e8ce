package translator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// backoff holds the retry delays shared by the HTTP adapters.
type backoff struct {
	rateLimitBase time.Duration // 429: base * 2^attempt
	serverBase    time.Duration // retryable 5xx: base * 1.5^attempt
	max           time.Duration // ceiling for every wait, Retry-After included
}

var defaultBackoff = backoff{
	rateLimitBase: time.Second,
	serverBase:    500 * time.Millisecond,
	max:           10 * time.Second,
}

func (b backoff) rateLimited(attempt int, retryAfter string) time.Duration {
	var d time.Duration
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs >= 0 {
		d = time.Duration(secs) * time.Second
	} else if at, err := http.ParseTime(retryAfter); err == nil {
		d = max(time.Until(at), 0)
	} else {
		d = time.Duration(float64(b.rateLimitBase) * math.Pow(2, float64(attempt)))
	}
	return b.clamp(d)
}

func (b backoff) clamp(d time.Duration) time.Duration {
	if b.max > 0 && (d > b.max || d < 0) {
		return b.max
	}
	return d
}

func (b backoff) server(attempt int) time.Duration {
	return b.clamp(time.Duration(float64(b.serverBase) * math.Pow(1.5, float64(attempt))))
}

// isServerError is the default retryable status set.
func isServerError(code int) bool { return code >= 500 && code <= 599 }

// httpSender performs a Payload over HTTP with the shared retry policy.
type httpSender struct {
	engine    string
	client    *http.Client
	cfg       Config
	backoff   backoff
	retryable func(code int) bool
}

func newHTTPSender(engine string, cfg Config, client *http.Client) *httpSender {
	if client == nil {
		client = http.DefaultClient
	}
	return &httpSender{
		engine:    engine,
		client:    client,
		cfg:       cfg,
		backoff:   defaultBackoff,
		retryable: isServerError,
	}
}

func (s *httpSender) send(ctx context.Context, p *Payload) (*Response, error) {
	attempts := s.cfg.RetryMax
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 0; attempt < attempts; attempt++ {
		resp, err := s.once(ctx, p)
		if err != nil {
			return nil, &ProviderError{Engine: s.engine, Attempts: attempt + 1, Err: err}
		}
		resp.Attempts = attempt + 1

		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil

		case resp.StatusCode == http.StatusTooManyRequests:
			if attempt == attempts-1 {
				return nil, &ProviderError{Engine: s.engine, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: ErrRateLimited}
			}
			if err := sleep(ctx, s.backoff.rateLimited(attempt, resp.Header.Get("Retry-After"))); err != nil {
				return nil, &ProviderError{Engine: s.engine, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: err}
			}

		case s.retryable(resp.StatusCode):
			if attempt == attempts-1 {
				return nil, statusError(s.engine, resp, attempt+1)
			}
			if err := sleep(ctx, s.backoff.server(attempt)); err != nil {
				return nil, &ProviderError{Engine: s.engine, StatusCode: resp.StatusCode, Attempts: attempt + 1, Err: err}
			}

		default:
			return nil, statusError(s.engine, resp, attempt+1)
		}
	}
	return nil, &ProviderError{Engine: s.engine, Attempts: attempts, Err: errors.New("retries exhausted")}
}

// once performs a single request under its own timeout.
func (s *httpSender) once(ctx context.Context, p *Payload) (*Response, error) {
	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	method := p.Method
	if method == "" {
		method = http.MethodPost
	}
	req, err := http.NewRequestWithContext(ctx, method, p.URL, bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, vs := range p.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: body}, nil
}

func statusError(engine string, resp *Response, attempts int) error {
	snippet := strings.TrimSpace(string(resp.Body))
	if len(snippet) > 200 {
		snippet = snippet[:200]
	}
	return &ProviderError{
		Engine:     engine,
		StatusCode: resp.StatusCode,
		Attempts:   attempts,
		Err:        fmt.Errorf("API returned status %d: %s", resp.StatusCode, snippet),
	}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
