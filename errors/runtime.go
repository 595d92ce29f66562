package errors

import (
	"fmt"
	"time"
)

// ResolutionKind identifies why a target could not be bound to an execution contract.
type ResolutionKind int

const (
	// NotFound means no type with the target's name is registered
	NotFound ResolutionKind = iota + 1
	// UnsupportedContract means the type exists but satisfies no supported contract
	UnsupportedContract
	// ConstructionFailed means the type's factory failed or panicked
	ConstructionFailed
	// AmbiguousPayloadType means a typed event function did not declare its payload type
	AmbiguousPayloadType
)

// String returns the string representation of ResolutionKind
func (k ResolutionKind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case UnsupportedContract:
		return "unsupported_contract"
	case ConstructionFailed:
		return "construction_failed"
	case AmbiguousPayloadType:
		return "ambiguous_payload_type"
	default:
		return "unknown"
	}
}

// ResolutionError is a terminal startup failure: the runtime does not begin serving.
type ResolutionError struct {
	Kind   ResolutionKind
	Target string
	Reason string
	Err    error
}

// NewResolutionError creates a resolution error for target.
func NewResolutionError(kind ResolutionKind, target, reason string, err error) *ResolutionError {
	return &ResolutionError{Kind: kind, Target: target, Reason: reason, Err: err}
}

// Error implements the error interface
func (e *ResolutionError) Error() string {
	msg := fmt.Sprintf("resolve %q: %s", e.Target, e.Kind)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// TranslationKind identifies why an event could not be converted between formats.
type TranslationKind int

const (
	// UnrecognizedType means the event type has no entry in the mapping table
	UnrecognizedType TranslationKind = iota + 1
	// InvalidSource means a CloudEvent source does not match //service/name
	InvalidSource
	// MalformedPayload means the envelope or its data is not the expected JSON shape
	MalformedPayload
)

// String returns the string representation of TranslationKind
func (k TranslationKind) String() string {
	switch k {
	case UnrecognizedType:
		return "unrecognized_type"
	case InvalidSource:
		return "invalid_source"
	case MalformedPayload:
		return "malformed_payload"
	default:
		return "unknown"
	}
}

// TranslationError is a per-event failure converting between event formats.
type TranslationError struct {
	Kind   TranslationKind
	Detail string
	Err    error
}

// NewTranslationError creates a translation error.
func NewTranslationError(kind TranslationKind, detail string, err error) *TranslationError {
	return &TranslationError{Kind: kind, Detail: detail, Err: err}
}

// Error implements the error interface
func (e *TranslationError) Error() string {
	msg := "translate event: " + e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *TranslationError) Unwrap() error {
	return e.Err
}

// InvocationError wraps any error raised by user code, including recovered panics.
type InvocationError struct {
	Target   string
	Panicked bool
	Err      error
}

// NewInvocationError wraps err raised by the function bound to target.
func NewInvocationError(target string, err error) *InvocationError {
	return &InvocationError{Target: target, Err: err}
}

// Error implements the error interface
func (e *InvocationError) Error() string {
	verb := "failed"
	if e.Panicked {
		verb = "panicked"
	}
	return fmt.Sprintf("function %q %s: %v", e.Target, verb, e.Err)
}

// Unwrap returns the underlying error
func (e *InvocationError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that the execution deadline expired before the function returned.
// The function is not guaranteed to have stopped.
type TimeoutError struct {
	Target   string
	Deadline time.Duration
}

// Error implements the error interface
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("function %q exceeded deadline of %s", e.Target, e.Deadline)
}

// UsageError is a programmer error in message API usage, such as reading both body views.
type UsageError struct {
	Op     string
	Reason string
}

// NewUsageError creates a usage error for op.
func NewUsageError(op, reason string) *UsageError {
	return &UsageError{Op: op, Reason: reason}
}

// Error implements the error interface
func (e *UsageError) Error() string {
	return e.Op + ": " + e.Reason
}

// IsResolution reports whether err is a ResolutionError of the given kind.
func IsResolution(err error, kind ResolutionKind) bool {
	var re *ResolutionError
	return As(err, &re) && re.Kind == kind
}

// IsTranslation reports whether err is a TranslationError of the given kind.
func IsTranslation(err error, kind TranslationKind) bool {
	var te *TranslationError
	return As(err, &te) && te.Kind == kind
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return As(err, &te)
}

// IsUsage reports whether err is a UsageError.
func IsUsage(err error) bool {
	var ue *UsageError
	return As(err, &ue)
}
