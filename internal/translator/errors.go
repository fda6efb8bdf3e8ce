package translator

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrRateLimited             = errors.New("rate limited")
	ErrMalformedResponse       = errors.New("malformed response")
	ErrMissingCredentials      = errors.New("missing credentials")
	ErrUnsupportedLanguagePair = errors.New("unsupported language pair")
	ErrUnknownEngine           = errors.New("unknown engine")
)

// ProviderError describes a failed provider call.
type ProviderError struct {
	Engine     string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Engine
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": status %d", e.StatusCode)
	}
	if e.Attempts > 1 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	return msg + ": " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// UnsupportedPairError is returned before any request is made when an
// engine cannot translate between two languages.
type UnsupportedPairError struct {
	Engine string
	Source string
	Target string
}

func (e *UnsupportedPairError) Error() string {
	return fmt.Sprintf("%s: %s -> %s: %v", e.Engine, e.Source, e.Target, ErrUnsupportedLanguagePair)
}

func (e *UnsupportedPairError) Is(target error) bool {
	return target == ErrUnsupportedLanguagePair
}

// IsPermanent reports whether retrying the same request, or a smaller part
// of it, cannot succeed. A per-request timeout is not permanent: a smaller
// batch may finish in time.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrUnsupportedLanguagePair) ||
		errors.Is(err, ErrMissingCredentials) ||
		errors.Is(err, ErrUnknownEngine) ||
		errors.Is(err, context.Canceled)
}
