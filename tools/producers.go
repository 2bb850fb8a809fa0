package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/agentuity/fetch-mcp/cache"
	"github.com/agentuity/fetch-mcp/jina"
)

const (
	FetchContentTTL = 30 * time.Minute
	SearchWebTTL    = 15 * time.Minute
)

// Upstream is the content API the producers call on a cache miss
type Upstream interface {
	Fetch(ctx context.Context, url string) (string, error)
	Search(ctx context.Context, query string) (string, error)
}

// ValidationError carries a message meant for the tool caller
type ValidationError struct {
	msg string
	err error
}

func (e *ValidationError) Error() string { return e.msg }

func (e *ValidationError) Unwrap() error { return e.err }

func invalid(format string, args ...any) error {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// Producers are the memoized content operations
type Producers struct {
	FetchContent cache.Producer[string, string]
	SearchWeb    cache.Producer[string, string]
}

func positional(arg string) ([]any, map[string]any) {
	return []any{arg}, nil
}

// NewProducers memoizes the upstream calls through c. hook may be nil.
func NewProducers(c *cache.Facade, up Upstream, hook cache.Hook) *Producers {
	options := func(ttl time.Duration) []cache.MemoizeOption {
		opts := []cache.MemoizeOption{cache.WithTTL(ttl), cache.WithSingleflight()}
		if hook != nil {
			opts = append(opts, cache.WithHook(hook))
		}
		return opts
	}
	return &Producers{
		FetchContent: cache.Memoize(c, "fetch_content", fetchContent(up), positional, options(FetchContentTTL)...),
		SearchWeb:    cache.Memoize(c, "search_web", searchWeb(up), positional, options(SearchWebTTL)...),
	}
}

func fetchContent(up Upstream) cache.Producer[string, string] {
	return func(ctx context.Context, url string) (string, bool, error) {
		text, err := up.Fetch(ctx, url)
		if err != nil {
			var apiErr *jina.Error
			switch {
			case errors.Is(err, jina.ErrMissingAPIKey):
				return "", false, &ValidationError{msg: err.Error(), err: err}
			case errors.As(err, &apiErr):
				return "", false, &ValidationError{msg: apiErr.Error(), err: err}
			}
			return "", false, &ValidationError{msg: "failed to fetch content: " + err.Error(), err: err}
		}
		return text, true, nil
	}
}

func searchWeb(up Upstream) cache.Producer[string, string] {
	return func(ctx context.Context, query string) (string, bool, error) {
		text, err := up.Search(ctx, query)
		if err != nil {
			if errors.Is(err, jina.ErrMissingAPIKey) {
				return "", false, &ValidationError{msg: err.Error(), err: err}
			}
			return "", false, &ValidationError{msg: "failed to search: " + err.Error(), err: err}
		}
		return text, true, nil
	}
}
