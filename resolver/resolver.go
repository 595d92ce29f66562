// Package resolver binds a configured function target to an execution contract.
//
// Resolution checks contracts in a fixed order and never guesses: a new-style
// instance registered under the full target name is matched against the
// contract interfaces (HTTP, CloudEvent, typed event, raw event, typed), and
// only when no such name exists is the target split into Type.Member and the
// member looked up on a MemberSet. Every failure is a *errors.ResolutionError
// and aborts startup.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
	"github.com/c360/fnruntime/isolation"
)

// Resolver resolves targets against a Source.
type Resolver struct {
	source        Source
	scope         *isolation.Scope
	logger        *slog.Logger
	signatureType string
}

// Option configures a Resolver
type Option func(*Resolver)

// WithScope sets the isolation scope user constructors run in
func WithScope(scope *isolation.Scope) Option {
	return func(r *Resolver) {
		if scope != nil {
			r.scope = scope
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithSignatureType restricts resolution to one contract family:
// http, event, cloudevent or typed. Empty accepts any.
func WithSignatureType(signatureType string) Option {
	return func(r *Resolver) {
		r.signatureType = signatureType
	}
}

// New creates a resolver over source
func New(source Source, opts ...Option) *Resolver {
	r := &Resolver{
		source: source,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.scope == nil {
		r.scope = isolation.NewScope(isolation.WithLogger(r.logger))
	}
	return r
}

// Resolve binds target to exactly one contract.
func (r *Resolver) Resolve(ctx context.Context, target Target) (*Contract, error) {
	if r.signatureType != "" && !slices.Contains(SignatureTypes, r.signatureType) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown signature type %q", r.signatureType),
			"Resolver", "Resolve", "signature type validation")
	}

	contract, err := r.resolve(ctx, target)
	if err != nil {
		r.logger.Error("Function target resolution failed", "target", target.QualifiedName, "error", err)
		return nil, err
	}

	if r.signatureType != "" && contract.Kind.Family() != r.signatureType {
		err := errors.NewResolutionError(errors.UnsupportedContract, target.QualifiedName,
			fmt.Sprintf("bound %s contract but signature type is %s", contract.Kind, r.signatureType), nil)
		r.logger.Error("Function target resolution failed", "target", target.QualifiedName, "error", err)
		return nil, err
	}

	r.logger.Info("Resolved function target",
		"target", target.QualifiedName,
		"kind", contract.Kind.String(),
		"identity", contract.Identity)
	return contract, nil
}

func (r *Resolver) resolve(ctx context.Context, target Target) (*Contract, error) {
	if factory, ok := r.source.Lookup(target.QualifiedName); ok {
		instance, err := r.construct(ctx, target.QualifiedName, factory)
		if err != nil {
			return nil, err
		}
		return r.bindInstance(ctx, target, instance)
	}

	if target.MemberName != "" {
		if factory, ok := r.source.Lookup(target.TypeName); ok {
			instance, err := r.construct(ctx, target.QualifiedName, factory)
			if err != nil {
				return nil, err
			}
			return r.bindMember(ctx, target, instance)
		}
	}

	return nil, errors.NewResolutionError(errors.NotFound, target.QualifiedName, "no function registered under this name", nil)
}

func (r *Resolver) construct(ctx context.Context, name string, factory functions.Factory) (any, error) {
	if factory == nil {
		return nil, errors.NewResolutionError(errors.ConstructionFailed, name, "nil factory", nil)
	}

	var instance any
	err := r.scope.Run(ctx, "construct "+name, func(context.Context) error {
		var ferr error
		instance, ferr = factory()
		return ferr
	})
	if err != nil {
		return nil, errors.NewResolutionError(errors.ConstructionFailed, name, "factory failed", err)
	}
	if instance == nil {
		return nil, errors.NewResolutionError(errors.ConstructionFailed, name, "factory returned nil", nil)
	}
	return instance, nil
}

// bindInstance matches a new-style instance against the contract interfaces in priority order.
func (r *Resolver) bindInstance(ctx context.Context, target Target, instance any) (*Contract, error) {
	c := &Contract{Target: target, Identity: fmt.Sprintf("%T", instance)}
	var matched []Kind

	if fn, ok := instance.(functions.HTTPFunction); ok {
		c.HTTP = fn
		matched = append(matched, KindHTTP)
	}
	if fn, ok := instance.(functions.CloudEventFunction); ok {
		c.CloudEvent = fn
		matched = append(matched, KindCloudEvent)
	}
	if fn, ok := instance.(functions.TypedEventFunction); ok {
		c.TypedEvent = fn
		matched = append(matched, KindTypedEvent)
	}
	if fn, ok := instance.(functions.RawEventFunction); ok {
		c.RawEvent = fn
		matched = append(matched, KindRawEvent)
	}
	if fn, ok := instance.(functions.TypedFunction); ok {
		c.Typed = fn
		matched = append(matched, KindTyped)
	}

	switch len(matched) {
	case 0:
		return nil, errors.NewResolutionError(errors.UnsupportedContract, target.QualifiedName,
			fmt.Sprintf("%T implements no function contract", instance), nil)
	case 1:
		c.Kind = matched[0]
	default:
		return nil, errors.NewResolutionError(errors.UnsupportedContract, target.QualifiedName,
			fmt.Sprintf("%T implements more than one function contract %v", instance, matched), nil)
	}

	switch c.Kind {
	case KindTypedEvent:
		if err := r.checkDeclared(ctx, target, c.TypedEvent.NewPayload); err != nil {
			return nil, err
		}
	case KindTyped:
		if err := r.checkDeclared(ctx, target, c.Typed.NewRequest); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// checkDeclared verifies a typed function declares its input type.
func (r *Resolver) checkDeclared(ctx context.Context, target Target, newValue func() any) error {
	var v any
	err := r.scope.Run(ctx, "declare "+target.QualifiedName, func(context.Context) error {
		v = newValue()
		return nil
	})
	if err != nil {
		return errors.NewResolutionError(errors.ConstructionFailed, target.QualifiedName, "payload constructor failed", err)
	}
	if v == nil {
		return errors.NewResolutionError(errors.AmbiguousPayloadType, target.QualifiedName, "payload constructor returned nil", nil)
	}
	return nil
}

// bindMember binds the first member of a MemberSet with the target's member
// name and a supported shape. Later members with the same name are ignored.
func (r *Resolver) bindMember(ctx context.Context, target Target, instance any) (*Contract, error) {
	set, ok := instance.(functions.MemberSet)
	if !ok {
		return nil, errors.NewResolutionError(errors.UnsupportedContract, target.QualifiedName,
			fmt.Sprintf("%T exposes no members", instance), nil)
	}

	var members []functions.Member
	err := r.scope.Run(ctx, "members "+target.TypeName, func(context.Context) error {
		members = set.Members()
		return nil
	})
	if err != nil {
		return nil, errors.NewResolutionError(errors.ConstructionFailed, target.QualifiedName, "listing members failed", err)
	}

	identity := fmt.Sprintf("%T.%s", instance, target.MemberName)
	for _, m := range members {
		if m.Name != target.MemberName {
			continue
		}
		switch fn := m.Func.(type) {
		case func(context.Context, functions.EventPayload) error:
			if fn != nil {
				return &Contract{Target: target, Kind: KindRawEvent, Identity: identity, RawEvent: eventMember(fn)}, nil
			}
		case func(context.Context, functions.EventPayload, *functions.EventContext) error:
			if fn != nil {
				return &Contract{Target: target, Kind: KindRawEvent, Identity: identity, RawEvent: eventContextMember(fn)}, nil
			}
		case func(context.Context, functions.HTTPRequest, functions.HTTPResponse) error:
			if fn != nil {
				return &Contract{Target: target, Kind: KindHTTP, Identity: identity, HTTP: httpMember(fn)}, nil
			}
		}
	}

	return nil, errors.NewResolutionError(errors.UnsupportedContract, target.QualifiedName,
		fmt.Sprintf("%T has no member %q with a supported signature", instance, target.MemberName), nil)
}
