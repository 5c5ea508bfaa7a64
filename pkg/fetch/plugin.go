package fetch

import "context"

// Plugin is any caller-supplied value. Fetch inspects each plugin for the
// hook interfaces below and skips hooks a plugin does not implement.
type Plugin any

// HookContext is passed to every hook invocation.
type HookContext struct {
	// OriginalRequest is the request as built from the caller's input.
	OriginalRequest *Request

	// Request is the current request, after any rewrites so far.
	Request *Request

	// Error is the dispatch error. Only set for FetchDidFail.
	Error error
}

// RequestWillFetcher is implemented by plugins that rewrite the request
// before it is dispatched. Returning a nil request keeps the current one.
type RequestWillFetcher interface {
	RequestWillFetch(ctx context.Context, hc *HookContext) (*Request, error)
}

// FetchDidFailer is implemented by plugins that observe dispatch failures.
// They cannot change the outcome; a returned error replaces it.
//
// Unlike RequestWillFetch, a panic in FetchDidFail is not recovered and
// propagates to the caller of Fetch.
type FetchDidFailer interface {
	FetchDidFail(ctx context.Context, hc *HookContext) error
}

// Namer is implemented by plugins that want to be named in error details.
type Namer interface {
	Name() string
}

// Funcs builds a plugin out of optional functions. A nil field means the
// plugin does not have that hook, exactly as if the method were missing.
// Funcs may be passed by value or by pointer.
type Funcs struct {
	PluginName           string
	RequestWillFetchFunc func(ctx context.Context, hc *HookContext) (*Request, error)
	FetchDidFailFunc     func(ctx context.Context, hc *HookContext) error
}

// Name implements Namer.
func (f Funcs) Name() string {
	return f.PluginName
}

func (f Funcs) requestWillFetchHook() (func(context.Context, *HookContext) (*Request, error), bool) {
	return f.RequestWillFetchFunc, f.RequestWillFetchFunc != nil
}

func (f Funcs) fetchDidFailHook() (func(context.Context, *HookContext) error, bool) {
	return f.FetchDidFailFunc, f.FetchDidFailFunc != nil
}

// requestWillFetchHook returns the plugin's requestWillFetch hook, if any.
func requestWillFetchHook(p Plugin) (func(context.Context, *HookContext) (*Request, error), bool) {
	switch v := p.(type) {
	case Funcs:
		return v.requestWillFetchHook()
	case *Funcs:
		if v == nil {
			return nil, false
		}
		return v.requestWillFetchHook()
	case RequestWillFetcher:
		return v.RequestWillFetch, true
	default:
		return nil, false
	}
}

// fetchDidFailHook returns the plugin's fetchDidFail hook, if any.
func fetchDidFailHook(p Plugin) (func(context.Context, *HookContext) error, bool) {
	switch v := p.(type) {
	case Funcs:
		return v.fetchDidFailHook()
	case *Funcs:
		if v == nil {
			return nil, false
		}
		return v.fetchDidFailHook()
	case FetchDidFailer:
		return v.FetchDidFail, true
	default:
		return nil, false
	}
}

// pluginName returns the plugin's name when it exposes one.
func pluginName(p Plugin) string {
	if f, ok := p.(*Funcs); ok && f == nil {
		return ""
	}
	if n, ok := p.(Namer); ok {
		return n.Name()
	}
	return ""
}
