// Package worker provides a generic bounded worker pool.
//
// A Pool[T] runs a fixed number of goroutines that call one processor
// function for every submitted item. Submit never blocks: when the queue is
// full the item is dropped and ErrQueueFull returned, so callers can apply
// their own backpressure (the NATS trigger negatively acknowledges instead).
//
//	pool, err := worker.NewPool(8, 256, handle,
//	    worker.WithMetricsRegistry[*nats.Msg](registry, "trigger"),
//	    worker.WithLogger[*nats.Msg](logger))
//	if err != nil {
//	    return err
//	}
//	if err := pool.Start(ctx); err != nil {
//	    return err
//	}
//	defer pool.Stop(5 * time.Second)
//
// A panic in the processor is recovered, logged and counted as a failure;
// the worker keeps running.
//
// Metrics, when a registrar is configured, are exported under the given
// prefix: queue depth, utilization (busy workers / workers), submitted,
// processed, failed and dropped counters, and a processing time histogram.
package worker
