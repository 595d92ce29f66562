package invoker

import "sync/atomic"

const (
	statePending int32 = iota
	stateCompleted
	stateTimedOut
)

// completion is the once-only outcome shared by the function goroutine and
// the deadline timer.
type completion struct {
	state atomic.Int32
}

// finish moves the state from pending to s. Only the first caller wins.
func (c *completion) finish(s int32) bool {
	return c.state.CompareAndSwap(statePending, s)
}
