// Package metric provides Prometheus metrics for fnruntime and the HTTP server
// that exposes them.
//
// MetricsRegistry owns a private Prometheus registry with the Go and process
// collectors and the runtime metrics (Metrics). Other packages register their
// own collectors through the MetricsRegistrar interface, keyed by
// "service.metric" so a name can only be claimed once.
//
// Runtime metrics:
//
//	fnruntime_invocations_total{target,kind,outcome}
//	fnruntime_invocation_duration_seconds{target,kind}
//	fnruntime_timeouts_total{target}
//	fnruntime_translation_errors_total{reason}
//	fnruntime_inflight{target}
//	fnruntime_nats_connected
//	fnruntime_nats_reconnects_total
//	fnruntime_trigger_messages_total{subject,status}
//
// The Server serves the registry in OpenMetrics format on the configured path
// and, when given a health handler, the aggregate runtime health on /health.
//
// All Metrics methods accept a nil receiver so callers need not check whether
// metrics are enabled.
package metric
