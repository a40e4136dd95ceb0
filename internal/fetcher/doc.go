// Package fetcher implements the HTTP client used to download crawl targets
// and images.
//
// A Client issues GET requests over a pooled transport whose connection
// count is capped. Every attempt carries a randomly chosen browser user
// agent. Transport failures and timeouts are retried with exponential
// backoff. HTTP error statuses are not retried and are reported as fatal.
//
// Fetch never returns a Go error. It returns an Outcome that classifies the
// result:
//
//	out := client.Fetch(ctx, "https://example.com/")
//	switch out.Kind {
//	case fetcher.OutcomeSuccess:
//		text := out.Response.Text()
//	case fetcher.OutcomeFatal:
//		// status >= 400, the target will not be retried
//	case fetcher.OutcomeRecoverable:
//		// retries exhausted or cancelled, try again later
//	}
package fetcher
