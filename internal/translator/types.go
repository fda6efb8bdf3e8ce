// Package translator adapts external translation providers to one
// build/send/parse contract and resolves their configuration per call.
package translator

import (
	"context"
	"net/http"
	"time"
)

// Config is the resolved configuration of one engine. It is built fresh for
// every Resolve call and never mutated afterwards.
type Config struct {
	Name            string
	APIURL          string
	APIKey          string
	AppID           string
	AppSecret       string
	CredentialsFile string
	Model           string
	MaxWorkers      int
	BatchSize       int
	// JSONBatchSize replaces BatchSize while JSONMode is on.
	JSONBatchSize int
	MaxBatchChars int
	Timeout       time.Duration
	RetryMax      int
	RequestDelay  time.Duration
	// Sequential engines get one request at a time with RequestDelay between
	// requests.
	Sequential         bool
	JSONMode           bool
	Temperature        float64
	MaxTokens          int
	JoinSingleOverflow bool
}

// EffectiveBatchSize returns the batch size for the current mode, at least 1.
func (c Config) EffectiveBatchSize() int {
	n := c.BatchSize
	if c.JSONMode && c.JSONBatchSize > 0 {
		n = c.JSONBatchSize
	}
	if n < 1 {
		n = 1
	}
	return n
}

// OverflowPolicy decides what happens when an engine returns more
// translations than it was given texts.
type OverflowPolicy int

const (
	// OverflowTruncate drops surplus translations.
	OverflowTruncate OverflowPolicy = iota
	// OverflowJoinSingle joins all translations with newlines when exactly
	// one text was sent; larger requests are truncated.
	OverflowJoinSingle
)

// Options are per-call style settings passed through to prompt builders.
type Options struct {
	StyleInstruction string
	StylePreset      string
}

// Payload is a request ready to be sent. HTTP adapters fill the request
// fields; SDK adapters use Texts and the language tags.
type Payload struct {
	Texts   []string
	SrcLang string
	TgtLang string

	Method string
	URL    string
	Header http.Header
	Body   []byte
}

// Response is a provider reply before parsing.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Tokens     int
	Attempts   int
	// Texts is set by adapters whose transport already returns one string
	// per input.
	Texts []string
}

// Result is the outcome of one TranslateBatch call. Translations always has
// the same length as the input.
type Result struct {
	Translations []string
	Tokens       int
	// Backfilled counts positions filled with their source text because the
	// engine returned too few translations.
	Backfilled int
}

// Adapter is one translation provider.
type Adapter interface {
	Name() string
	Config() Config
	BuildPayload(texts []string, srcLang, tgtLang string, opts Options) (*Payload, error)
	Send(ctx context.Context, p *Payload) (*Response, error)
	Parse(resp *Response, expected int) ([]string, error)
}
