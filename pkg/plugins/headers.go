// Package plugins contains ready-made fetch plugins.
package plugins

import (
	"context"
	"net/http"

	"github.com/Sternrassler/fetchwrapper/pkg/fetch"
)

// Headers sets a fixed set of headers on every request.
type Headers struct {
	name   string
	header http.Header
}

// SetHeaders returns a plugin that sets header on each outgoing request,
// replacing existing values for the same keys.
func SetHeaders(name string, header http.Header) *Headers {
	return &Headers{name: name, header: header.Clone()}
}

// BearerToken returns a plugin that injects "Authorization: Bearer <token>".
func BearerToken(token string) *Headers {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return SetHeaders("bearer-token", h)
}

// Name implements fetch.Namer.
func (h *Headers) Name() string {
	return h.name
}

// RequestWillFetch implements fetch.RequestWillFetcher.
func (h *Headers) RequestWillFetch(ctx context.Context, hc *fetch.HookContext) (*fetch.Request, error) {
	req := hc.Request.Clone()
	if req.Header == nil {
		req.Header = http.Header{}
	}
	for key, values := range h.header {
		req.Header.Del(key)
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	return req, nil
}
