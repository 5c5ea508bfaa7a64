// Package fetch dispatches a single network request through an ordered chain
// of plugins.
//
// A plugin may implement any of the hook interfaces, or none:
//
//   - RequestWillFetcher rewrites the request before dispatch. Hooks run in
//     plugin order and each one sees the request returned by the previous one.
//   - FetchDidFailer observes a dispatch failure. Hooks run in plugin order,
//     one at a time, after the transport has failed.
//
// # Basic Usage
//
//	f, err := fetch.New(fetch.Config{Transport: transport})
//	if err != nil {
//		return err
//	}
//
//	resp, err := f.Fetch(ctx, fetch.URL("/v1/items"), &fetch.Options{
//		Method: "POST",
//		Body:   payload,
//	}, authPlugin, telemetryPlugin)
//
// # Errors
//
// A failing requestWillFetch hook aborts the call before dispatch with an
// *Error of kind KindPluginRequestWillFetch; Details.ThrownError holds the
// hook's error and Details.PluginName the plugin's name when it implements
// Namer.
//
// A dispatch error is returned exactly as the transport produced it, after
// every fetchDidFail hook has run. If a fetchDidFail hook returns an error,
// the remaining hooks are skipped and that error is returned instead.
//
// Fetch never retries, never inspects status codes and never caches.
//
// # Metrics
//
//   - fetch_dispatches_total{outcome} - Dispatches by outcome (success, failure)
//   - fetch_dispatch_duration_seconds - Dispatch latency
//   - fetch_hook_invocations_total{hook} - Plugin hook invocations
//   - fetch_plugin_errors_total{hook} - Errors returned by plugin hooks
//   - fetch_invalid_requests_total - Calls rejected before any hook ran
package fetch
