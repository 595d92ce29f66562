package functions

import "context"

type contextKey int

const executionIDKey contextKey = iota

// WithExecutionID returns a context carrying the execution id of one invocation.
// The runtime sets it before calling user code.
func WithExecutionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, executionIDKey, id)
}

// ExecutionID returns the execution id of the current invocation, or "".
func ExecutionID(ctx context.Context) string {
	id, _ := ctx.Value(executionIDKey).(string)
	return id
}
