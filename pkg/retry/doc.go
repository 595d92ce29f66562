// Package retry provides exponential backoff retry for transient failures.
//
// Do runs a function until it succeeds, the context is cancelled, or the
// attempts run out. Errors classified invalid or fatal by the errors package,
// and errors wrapped with NonRetryable, stop the loop immediately.
//
//	err := retry.Do(ctx, retry.Quick(), func() error {
//	    return client.Connect(ctx)
//	})
//
// Presets:
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//   - Quick(): 10 attempts, 50ms-1s delay, used while starting up
//   - Persistent(): 30 attempts, 200ms-10s delay
package retry
