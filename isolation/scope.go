// Package isolation keeps user function code on its side of the authoring API.
//
// A Scope holds the allow-list of runtime packages user code may reference.
// Artifacts are checked against it before they are loaded, and every call into
// user code runs through Scope.Run, which installs the scope as the ambient
// resolution context and converts panics into errors.
package isolation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync/atomic"

	"github.com/c360/fnruntime/errors"
)

// RuntimeModule is the module path of the runtime itself.
const RuntimeModule = "github.com/c360/fnruntime"

// DefaultAllowList is the set of runtime packages visible to user code.
var DefaultAllowList = []string{RuntimeModule + "/functions"}

// ErrNotVisible is returned when user code references a runtime package outside the allow-list.
var ErrNotVisible = errors.New("symbol not visible to function code")

// PanicError is a panic recovered while running user code.
type PanicError struct {
	Value any
	Stack []byte
}

// Error implements the error interface
func (p *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", p.Value)
}

// Unwrap returns the panic value when it is an error
func (p *PanicError) Unwrap() error {
	if err, ok := p.Value.(error); ok {
		return err
	}
	return nil
}

// Scope is the visibility boundary between the runtime and user code.
type Scope struct {
	allow  []string
	active atomic.Int64
	logger *slog.Logger
}

// Option configures a Scope
type Option func(*Scope)

// WithAllowList replaces the default allow-list
func WithAllowList(prefixes ...string) Option {
	return func(s *Scope) {
		s.allow = append([]string(nil), prefixes...)
	}
}

// WithLogger sets the logger used for recovered panics
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scope) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScope creates a scope with the default allow-list
func NewScope(opts ...Option) *Scope {
	s := &Scope{
		allow:  append([]string(nil), DefaultAllowList...),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AllowList returns a copy of the visible package prefixes
func (s *Scope) AllowList() []string {
	return append([]string(nil), s.allow...)
}

// Visible reports whether user code may reference pkgPath. Packages outside
// the runtime module are always visible.
func (s *Scope) Visible(pkgPath string) bool {
	if pkgPath != RuntimeModule && !strings.HasPrefix(pkgPath, RuntimeModule+"/") {
		return true
	}
	for _, prefix := range s.allow {
		if pkgPath == prefix || strings.HasPrefix(pkgPath, prefix+"/") {
			return true
		}
	}
	return false
}

// Resolve reports whether a qualified symbol such as
// "github.com/c360/fnruntime/functions.Typed" may be referenced by user code.
func (s *Scope) Resolve(symbol string) error {
	for _, pkg := range runtimePackages(symbol) {
		if !s.Visible(pkg) {
			return fmt.Errorf("%w: %s", ErrNotVisible, symbol)
		}
	}
	return nil
}

// Active returns the number of calls currently running in the scope
func (s *Scope) Active() int64 {
	return s.active.Load()
}

type scopeKey struct{}

// FromContext returns the scope active for ctx
func FromContext(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok
}

// Run calls fn with the scope installed in its context. A panic in fn is
// recovered and returned as a *PanicError. The caller's context is unchanged.
func (s *Scope) Run(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	s.active.Add(1)
	defer s.active.Add(-1)

	defer func() {
		if r := recover(); r != nil {
			stack := debug.Stack()
			s.logger.Error("Recovered panic in function code",
				"call", name,
				"panic", r)
			err = &PanicError{Value: r, Stack: stack}
		}
	}()

	return fn(context.WithValue(ctx, scopeKey{}, s))
}

// runtimePackages extracts the runtime package paths a linker symbol refers to.
// Symbols like "type:.eq.github.com/c360/fnruntime/functions.Member" or itabs
// naming two types are matched anywhere in the name.
func runtimePackages(symbol string) []string {
	var pkgs []string
	for {
		idx := strings.Index(symbol, RuntimeModule)
		if idx < 0 {
			return pkgs
		}
		rest := symbol[idx+len(RuntimeModule):]
		symbol = rest
		switch {
		case rest == "" || rest[0] == '.':
			pkgs = append(pkgs, RuntimeModule)
		case rest[0] == '/':
			if end := strings.IndexAny(rest, ".,;[]()*"); end >= 0 {
				rest = rest[:end]
			}
			pkgs = append(pkgs, RuntimeModule+rest)
		}
	}
}
