// Package trigger delivers NATS messages to a function as if they had been
// pushed over HTTP.
//
// A Bridge queue-subscribes to a subject and hands every message to a bounded
// worker pool. Each worker turns the message into an in-process HTTP request
// and serves it with the function's handler, normally an *invoker.Invoker:
//
//   - the message data is the request body
//   - message headers become request headers, so ce-* headers select the
//     CloudEvents binary mode and a Content-Type of
//     application/cloudevents+json selects the structured mode
//   - messages without a Content-Type are sent as application/json, which the
//     invoker reads as a legacy event on event contracts
//
// When a message carries a reply subject the response body is published back
// with a Status header holding the HTTP status code. Messages that arrive while
// the pool queue is full are answered with status 503 and dropped.
//
// Usage:
//
//	bridge, err := trigger.NewBridge(inv, client, trigger.Config{
//	    Subject: "functions.orders",
//	    Queue:   "fnruntime",
//	})
//	if err != nil {
//	    return err
//	}
//	if err := bridge.Start(ctx); err != nil {
//	    return err
//	}
//	defer bridge.Stop(10 * time.Second)
package trigger
