// Package log builds the slog loggers used by sitecrawl.
//
// Loggers write text or JSON through a RedactingHandler, which masks values
// that must not end up in shared logs: cookies, authorization headers,
// tokens, and credentials carried in URL query strings. The crawler logs
// every target it visits, and targets may carry signed query parameters.
//
// Usage:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	slog.SetDefault(logger)
//	logger.Info("crawling", "target", "https://example.com/a?token=abc")
//	// target=https://example.com/a?token=***REDACTED***
package log
