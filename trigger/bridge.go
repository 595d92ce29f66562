package trigger

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"golang.org/x/time/rate"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/metric"
	"github.com/c360/fnruntime/pkg/worker"
)

// StatusHeader carries the HTTP status code of a reply
const StatusHeader = "Status"

const defaultContentType = "application/json"

// Conn is the part of a NATS connection the bridge needs.
// *natsclient.Client implements it.
type Conn interface {
	QueueSubscribe(ctx context.Context, subject, queue string, handler func(context.Context, *nats.Msg)) error
	PublishMsg(msg *nats.Msg) error
}

// Config controls the subscription and the worker pool.
// RateLimit is in messages per second; zero disables throttling.
type Config struct {
	Subject   string
	Queue     string
	Workers   int
	QueueSize int
	RateLimit float64
	RateBurst int
}

// Bridge feeds messages from a NATS subject to an http.Handler
type Bridge struct {
	handler http.Handler
	conn    Conn
	cfg     Config

	logger   *slog.Logger
	metrics  *metric.Metrics
	registry metric.MetricsRegistrar

	pool    *worker.Pool[*nats.Msg]
	limiter *rate.Limiter

	mu      sync.Mutex
	started bool
}

// Option configures a Bridge
type Option func(*Bridge)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bridge) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics counts delivered messages by subject and status
func WithMetrics(m *metric.Metrics) Option {
	return func(b *Bridge) {
		b.metrics = m
	}
}

// WithMetricsRegistry registers the worker pool metrics in registry
func WithMetricsRegistry(registry metric.MetricsRegistrar) Option {
	return func(b *Bridge) {
		b.registry = registry
	}
}

// NewBridge creates a bridge serving messages from cfg.Subject with handler.
func NewBridge(handler http.Handler, conn Conn, cfg Config, opts ...Option) (*Bridge, error) {
	if handler == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil handler"), "Bridge", "NewBridge", "config validation")
	}
	if conn == nil {
		return nil, errors.WrapInvalid(errors.ErrNoConnection, "Bridge", "NewBridge", "config validation")
	}
	if cfg.Subject == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Bridge", "NewBridge", "subject is required")
	}

	b := &Bridge{
		handler: handler,
		conn:    conn,
		cfg:     cfg,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = b.logger.With("component", "trigger", "subject", cfg.Subject)

	poolOpts := []worker.Option[*nats.Msg]{worker.WithLogger[*nats.Msg](b.logger)}
	if b.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[*nats.Msg](b.registry, "fnruntime_trigger"))
	}

	pool, err := worker.NewPool(cfg.Workers, cfg.QueueSize, b.process, poolOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "Bridge", "NewBridge", "create worker pool")
	}
	b.pool = pool

	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst < 1 {
			burst = 1
		}
		b.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return b, nil
}

// Start starts the workers and subscribes. Workers stop when ctx is done.
func (b *Bridge) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Bridge", "Start", "start bridge")
	}
	if err := b.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Bridge", "Start", "start worker pool")
	}
	if err := b.conn.QueueSubscribe(ctx, b.cfg.Subject, b.cfg.Queue, b.handle); err != nil {
		_ = b.pool.Stop(time.Second)
		return errors.Wrap(err, "Bridge", "Start", "subscribe")
	}

	b.started = true
	b.logger.Info("Trigger started", "queue", b.cfg.Queue)
	return nil
}

// Stop waits up to timeout for queued messages to be served.
func (b *Bridge) Stop(timeout time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.started {
		return nil
	}
	b.started = false

	if err := b.pool.Stop(timeout); err != nil {
		return errors.WrapTransient(err, "Bridge", "Stop", "drain worker pool")
	}
	b.logger.Info("Trigger stopped", "stats", b.pool.Stats())
	return nil
}

// handle runs on the subscription goroutine and must not block.
func (b *Bridge) handle(ctx context.Context, msg *nats.Msg) {
	if ctx.Err() != nil {
		return
	}

	if b.limiter != nil && !b.limiter.Allow() {
		b.metrics.TriggerMessage(msg.Subject, "throttled")
		b.reply(msg, &response{status: http.StatusTooManyRequests})
		return
	}

	err := b.pool.Submit(msg)
	switch {
	case err == nil:
		return
	case errors.Is(err, worker.ErrQueueFull):
		b.logger.Warn("Trigger queue full, message dropped", "reply", msg.Reply != "")
		b.metrics.TriggerMessage(msg.Subject, "dropped")
		b.reply(msg, &response{status: http.StatusServiceUnavailable})
	default:
		b.logger.Error("Failed to queue message", "error", err)
		b.metrics.TriggerMessage(msg.Subject, "dropped")
	}
}

// process serves one message and publishes the reply, if one was requested.
func (b *Bridge) process(ctx context.Context, msg *nats.Msg) error {
	req, err := newRequest(ctx, msg)
	if err != nil {
		b.metrics.TriggerMessage(msg.Subject, "invalid")
		return err
	}

	resp := newResponse()
	b.handler.ServeHTTP(resp, req)

	b.metrics.TriggerMessage(msg.Subject, strconv.Itoa(resp.status))
	b.logger.Debug("Message served", "status", resp.status, "bytes", resp.body.Len())

	return b.reply(msg, resp)
}

func (b *Bridge) reply(msg *nats.Msg, resp *response) error {
	if msg.Reply == "" {
		return nil
	}

	out := nats.NewMsg(msg.Reply)
	for k, vs := range resp.header {
		for _, v := range vs {
			out.Header.Add(k, v)
		}
	}
	out.Header.Set(StatusHeader, strconv.Itoa(resp.status))
	out.Data = resp.body.Bytes()

	if err := b.conn.PublishMsg(out); err != nil {
		b.logger.Error("Failed to publish reply", "reply", msg.Reply, "error", err)
		return errors.WrapTransient(err, "Bridge", "reply", "publish reply")
	}
	return nil
}

// newRequest builds the HTTP request a push subscription would have sent.
func newRequest(ctx context.Context, msg *nats.Msg) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(msg.Data))
	if err != nil {
		return nil, errors.WrapInvalid(err, "Bridge", "newRequest", "build request")
	}

	for k, vs := range msg.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", defaultContentType)
	}
	req.RemoteAddr = "nats"
	return req, nil
}
