package plugins

import (
	"context"
	"fmt"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
)

// Rewrite maps the request URL through a function.
type Rewrite struct {
	name string
	fn   func(string) (string, error)
}

// RewriteURL returns a plugin that replaces the request URL with fn(url).
// An error from fn aborts the fetch before dispatch.
func RewriteURL(name string, fn func(string) (string, error)) *Rewrite {
	return &Rewrite{name: name, fn: fn}
}

// Name implements fetch.Namer.
func (r *Rewrite) Name() string {
	return r.name
}

// RequestWillFetch implements fetch.RequestWillFetcher.
func (r *Rewrite) RequestWillFetch(ctx context.Context, hc *fetch.HookContext) (*fetch.Request, error) {
	target, err := r.fn(hc.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("rewrite %q: %w", hc.Request.URL, err)
	}
	if target == hc.Request.URL {
		return nil, nil
	}
	return hc.Request.WithURL(target), nil
}
