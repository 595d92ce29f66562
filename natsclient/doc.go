// Package natsclient manages the NATS connection used by the event source.
//
// The Client wraps nats.go with a circuit breaker, retrying connect, health
// monitoring and a draining Close. Connection state changes are reported to
// the runtime metrics and to an optional health callback.
//
//	client, err := natsclient.NewClient("nats://localhost:4222",
//	    natsclient.WithName("fnruntime"),
//	    natsclient.WithMetrics(registry.CoreMetrics()),
//	    natsclient.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	if err := client.ConnectWithRetry(ctx, retry.Quick()); err != nil {
//	    return err
//	}
//	defer client.Close(context.Background())
//
//	err = client.QueueSubscribe(ctx, "functions.events", "fnruntime",
//	    func(ctx context.Context, msg *nats.Msg) {
//	        // handle
//	    })
//
// # Circuit Breaker
//
// After five consecutive failed connects (WithCircuitBreakerThreshold) the
// circuit opens and Connect fails fast with ErrCircuitOpen. After the current
// backoff the circuit half-opens and the next Connect may try again. Each
// round of failures doubles the backoff up to WithMaxBackoff.
//
// # Connection Lifecycle
//
//	Disconnected -> Connecting -> Connected -> Reconnecting -> Connected
//	                    |
//	                    +-> CircuitOpen -> Disconnected
package natsclient
