package translator

import (
	"context"
	"errors"
	"strings"
)

// TranslateBatch sends texts through a in one request and normalizes the
// reply to exactly len(texts) translations. Missing positions are filled
// with their source text; surplus ones follow the adapter's overflow policy.
func TranslateBatch(ctx context.Context, a Adapter, texts []string, srcLang, tgtLang string, opts Options) (*Result, error) {
	if len(texts) == 0 {
		return &Result{Translations: []string{}}, nil
	}

	payload, err := a.BuildPayload(texts, srcLang, tgtLang, opts)
	if err != nil {
		return nil, err
	}
	resp, err := a.Send(ctx, payload)
	if err != nil {
		return nil, err
	}
	parsed, err := a.Parse(resp, len(texts))
	if err != nil {
		var pe *ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ProviderError{Engine: a.Name(), StatusCode: resp.StatusCode, Attempts: resp.Attempts, Err: err}
	}

	policy := OverflowTruncate
	if a.Config().JoinSingleOverflow {
		policy = OverflowJoinSingle
	}
	out, backfilled := normalize(texts, parsed, policy)
	return &Result{Translations: out, Tokens: resp.Tokens, Backfilled: backfilled}, nil
}

func normalize(texts, parsed []string, policy OverflowPolicy) ([]string, int) {
	if len(parsed) > len(texts) {
		if policy == OverflowJoinSingle && len(texts) == 1 {
			return []string{strings.Join(parsed, "\n")}, 0
		}
		parsed = parsed[:len(texts)]
	}

	out := make([]string, len(texts))
	copy(out, parsed)
	backfilled := 0
	for i := len(parsed); i < len(texts); i++ {
		out[i] = texts[i]
		backfilled++
	}
	return out, backfilled
}
