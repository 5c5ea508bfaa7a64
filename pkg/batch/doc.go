// Package batch runs many independent Fetch calls with bounded concurrency.
//
// Every job is a separate orchestration: it has its own input, options and
// plugin list, and one job's failure never affects another. Results are
// returned in job order.
//
// Example usage:
//
//	runner, err := batch.NewRunner(fetcher, batch.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	results := runner.FetchAll(ctx, []batch.Job{
//		{Input: fetch.URL("/v1/items/1")},
//		{Input: fetch.URL("/v1/items/2"), Plugins: []fetch.Plugin{auth}},
//	})
//	for _, r := range results {
//		if r.Err != nil {
//			continue
//		}
//		defer r.Response.Body.Close()
//	}
//
// Callers own every non-nil Result.Response and must close its body.
package batch
