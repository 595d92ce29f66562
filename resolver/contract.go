package resolver

import (
	"context"
	"strings"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// Kind is the execution contract a target is bound to.
type Kind int

const (
	KindHTTP Kind = iota + 1
	KindCloudEvent
	KindTypedEvent
	KindRawEvent
	KindTyped
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindHTTP:
		return "http"
	case KindCloudEvent:
		return "cloudevent"
	case KindTypedEvent:
		return "typed_event"
	case KindRawEvent:
		return "raw_event"
	case KindTyped:
		return "typed"
	default:
		return "unknown"
	}
}

// Signature types accepted as a resolution hint.
const (
	SignatureHTTP       = "http"
	SignatureEvent      = "event"
	SignatureCloudEvent = "cloudevent"
	SignatureTyped      = "typed"
)

// SignatureTypes lists the valid signature type hints.
var SignatureTypes = []string{SignatureHTTP, SignatureEvent, SignatureCloudEvent, SignatureTyped}

// Family returns the signature type a kind belongs to.
func (k Kind) Family() string {
	switch k {
	case KindHTTP:
		return SignatureHTTP
	case KindCloudEvent:
		return SignatureCloudEvent
	case KindTypedEvent, KindRawEvent:
		return SignatureEvent
	case KindTyped:
		return SignatureTyped
	default:
		return ""
	}
}

// Target is the parsed function target. QualifiedName is the whole configured
// value; TypeName and MemberName are its split at the last '.' when both halves
// are non-empty.
type Target struct {
	QualifiedName string
	TypeName      string
	MemberName    string
}

// ParseTarget parses a configured function target.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Target{}, errors.WrapInvalid(errors.ErrMissingConfig, "resolver", "ParseTarget", "target validation")
	}
	t := Target{QualifiedName: s}
	if i := strings.LastIndexByte(s, '.'); i > 0 && i < len(s)-1 {
		t.TypeName = s[:i]
		t.MemberName = s[i+1:]
	}
	return t, nil
}

// String returns the qualified name
func (t Target) String() string {
	return t.QualifiedName
}

// Contract is a target bound to exactly one execution contract. Only the field
// matching Kind is set. A Contract is immutable and shared by all requests.
type Contract struct {
	Target   Target
	Kind     Kind
	Identity string

	HTTP       functions.HTTPFunction
	CloudEvent functions.CloudEventFunction
	RawEvent   functions.RawEventFunction
	TypedEvent functions.TypedEventFunction
	Typed      functions.TypedFunction
}

// WireFormat returns the wire format of a typed contract, JSON unless the
// function provides its own.
func (c *Contract) WireFormat() functions.WireFormat {
	if p, ok := c.Typed.(functions.WireFormatProvider); ok {
		if f := p.WireFormat(); f != nil {
			return f
		}
	}
	return functions.JSON
}

// Legacy member adapters.

type eventMember func(context.Context, functions.EventPayload) error

func (m eventMember) AcceptEvent(ctx context.Context, payload functions.EventPayload, _ *functions.EventContext) error {
	return m(ctx, payload)
}

type eventContextMember func(context.Context, functions.EventPayload, *functions.EventContext) error

func (m eventContextMember) AcceptEvent(ctx context.Context, payload functions.EventPayload, ectx *functions.EventContext) error {
	return m(ctx, payload, ectx)
}

type httpMember func(context.Context, functions.HTTPRequest, functions.HTTPResponse) error

func (m httpMember) Service(ctx context.Context, req functions.HTTPRequest, resp functions.HTTPResponse) error {
	return m(ctx, req, resp)
}
