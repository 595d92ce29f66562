package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
	"github.com/c360/fnruntime/httpmsg"
	"github.com/c360/fnruntime/isolation"
	"github.com/c360/fnruntime/metric"
	"github.com/c360/fnruntime/resolver"
)

// ExecutionIDHeader carries the execution id in and out of a request.
const ExecutionIDHeader = "Function-Execution-Id"

// DefaultTimeout is the execution deadline when none is configured.
const DefaultTimeout = 5 * time.Minute

// Paths answered with 404 on HTTP contracts without calling the function.
var ignoredPaths = map[string]bool{
	"/favicon.ico": true,
	"/robots.txt":  true,
}

// invocation is a prepared call. run executes user code and writes its
// output into resp, which is committed only on success.
type invocation struct {
	resp *httpmsg.Response
	run  func(ctx context.Context) error
}

// prepareFunc decodes r for one contract kind. It runs on the request
// goroutine; its errors are answered before the function is called.
type prepareFunc func(inv *Invoker, r *http.Request, logger *slog.Logger) (*invocation, error)

// Invoker is the http.Handler for a bound contract.
type Invoker struct {
	contract       *resolver.Contract
	timeout        time.Duration
	maxRequestSize int64
	logger         *slog.Logger
	metrics        *metric.Metrics
	scope          *isolation.Scope
	prepare        prepareFunc
}

var _ http.Handler = (*Invoker)(nil)

// Option configures an Invoker
type Option func(*Invoker)

// WithTimeout sets the execution deadline. Zero disables it.
func WithTimeout(d time.Duration) Option {
	return func(inv *Invoker) {
		if d >= 0 {
			inv.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(inv *Invoker) {
		if logger != nil {
			inv.logger = logger
		}
	}
}

// WithMetrics records invocations in m
func WithMetrics(m *metric.Metrics) Option {
	return func(inv *Invoker) {
		inv.metrics = m
	}
}

// WithScope runs user code in scope
func WithScope(scope *isolation.Scope) Option {
	return func(inv *Invoker) {
		if scope != nil {
			inv.scope = scope
		}
	}
}

// WithMaxRequestSize limits request bodies to n bytes. Zero means unlimited.
func WithMaxRequestSize(n int64) Option {
	return func(inv *Invoker) {
		if n >= 0 {
			inv.maxRequestSize = n
		}
	}
}

// New creates the handler for contract.
func New(contract *resolver.Contract, opts ...Option) (*Invoker, error) {
	if contract == nil {
		return nil, errors.WrapInvalid(fmt.Errorf("nil contract"), "Invoker", "New", "contract validation")
	}

	inv := &Invoker{
		contract: contract,
		timeout:  DefaultTimeout,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	if inv.scope == nil {
		inv.scope = isolation.NewScope(isolation.WithLogger(inv.logger))
	}

	switch contract.Kind {
	case resolver.KindHTTP:
		inv.prepare = prepareHTTP
	case resolver.KindCloudEvent:
		inv.prepare = prepareCloudEvent
	case resolver.KindRawEvent:
		inv.prepare = prepareRawEvent
	case resolver.KindTypedEvent:
		inv.prepare = prepareTypedEvent
	case resolver.KindTyped:
		inv.prepare = prepareTyped
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown contract kind %d", contract.Kind),
			"Invoker", "New", "contract validation")
	}

	return inv, nil
}

// Contract returns the served contract
func (inv *Invoker) Contract() *resolver.Contract {
	return inv.contract
}

// Timeout returns the execution deadline
func (inv *Invoker) Timeout() time.Duration {
	return inv.timeout
}

// executionID extracts the execution id from headers or generates a new one
func executionID(r *http.Request) string {
	if id := r.Header.Get(ExecutionIDHeader); id != "" {
		return id
	}
	return uuid.NewString()
}

// ServeHTTP runs one invocation and writes exactly one response.
func (inv *Invoker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	target := inv.contract.Target.QualifiedName
	kind := inv.contract.Kind.String()

	id := executionID(r)
	w.Header().Set(ExecutionIDHeader, id)
	logger := inv.logger.With("target", target, "execution_id", id)

	if inv.contract.Kind == resolver.KindHTTP && ignoredPaths[r.URL.Path] {
		http.NotFound(w, r)
		return
	}

	if inv.maxRequestSize > 0 && r.Body != nil {
		r.Body = http.MaxBytesReader(w, r.Body, inv.maxRequestSize)
	}

	call, err := inv.prepare(inv, r, logger)
	if err != nil {
		inv.metrics.InvocationRejected(target, kind)
		logger.Warn("Request rejected", "error", err)
		inv.writeError(w, err)
		return
	}

	ctx := functions.WithExecutionID(r.Context(), id)

	start := time.Now()
	inv.metrics.InvocationStarted(target)
	err = inv.invoke(ctx, call.run)
	duration := time.Since(start)

	switch {
	case err == nil:
		inv.metrics.InvocationFinished(target, kind, metric.OutcomeSuccess, duration)
		if cerr := call.resp.Commit(w); cerr != nil {
			logger.Warn("Failed to write response", "error", cerr)
		}
		logger.Debug("Function completed", "duration", duration, "status", call.resp.StatusCode())
	case errors.IsTimeout(err):
		inv.metrics.InvocationFinished(target, kind, metric.OutcomeTimeout, duration)
		logger.Error("Function timed out", "timeout", inv.timeout)
		inv.writeError(w, err)
	default:
		inv.metrics.InvocationFinished(target, kind, metric.OutcomeError, duration)
		inv.logFailure(logger, err)
		inv.writeError(w, err)
	}
}

// invoke runs fn under the deadline and returns the outcome of whichever of
// fn and the timer finishes first.
func (inv *Invoker) invoke(ctx context.Context, fn func(context.Context) error) error {
	target := inv.contract.Target.QualifiedName

	var cancel context.CancelFunc
	if inv.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, inv.timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	var (
		c    completion
		done = make(chan error, 1)
	)
	timeout := &errors.TimeoutError{Target: target, Deadline: inv.timeout}

	var timer *time.Timer
	if inv.timeout > 0 {
		timer = time.AfterFunc(inv.timeout, func() {
			if c.finish(stateTimedOut) {
				done <- timeout
			}
		})
	}

	go func() {
		err := inv.scope.Run(ctx, target, fn)

		// A function that returns after its context expired lost the race,
		// whatever it returned.
		if deadlineExceeded(ctx) {
			if c.finish(stateTimedOut) {
				done <- timeout
			}
			return
		}
		if c.finish(stateCompleted) {
			done <- invocationError(target, err)
		}
	}()

	err := <-done
	if timer != nil {
		timer.Stop()
	}
	return err
}

func deadlineExceeded(ctx context.Context) bool {
	return errors.Is(ctx.Err(), context.DeadlineExceeded)
}

// invocationError classifies what the function returned.
func invocationError(target string, err error) error {
	if err == nil {
		return nil
	}

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return bodyTooLarge(err)
	}

	ie := errors.NewInvocationError(target, err)
	var pe *isolation.PanicError
	if errors.As(err, &pe) {
		ie.Panicked = true
	}
	return ie
}

func bodyTooLarge(err error) error {
	return errors.WrapInvalid(fmt.Errorf("%w: %w", errors.ErrBodyTooLarge, err),
		"Invoker", "readBody", "read request body")
}

func (inv *Invoker) logFailure(logger *slog.Logger, err error) {
	var ie *errors.InvocationError
	if !errors.As(err, &ie) {
		logger.Error("Function failed", "error", err)
		return
	}

	if ie.Panicked {
		var pe *isolation.PanicError
		if errors.As(err, &pe) {
			logger.Error("Function panicked", "panic", pe.Value, "stack", string(pe.Stack))
			return
		}
	}
	logger.Error("Function failed", "error", ie.Err)
}

// writeError answers with the status for err and a sanitized message.
// Internal error details are logged, never sent to the client.
func (inv *Invoker) writeError(w http.ResponseWriter, err error) {
	status := errors.HTTPStatus(err)

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)

	data, _ := json.Marshal(map[string]any{
		"error":  sanitizeError(status),
		"status": status,
	})
	_, _ = w.Write(data)
}

func sanitizeError(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid request"
	case http.StatusRequestTimeout:
		return "function execution timed out"
	case http.StatusRequestEntityTooLarge:
		return "request body too large"
	default:
		return "internal server error"
	}
}
