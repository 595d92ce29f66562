package functions

import (
	"context"

	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// HTTPFunction handles a plain HTTP request. Output written to resp is buffered
// and only reaches the client when Service returns nil before the deadline.
type HTTPFunction interface {
	Service(ctx context.Context, req HTTPRequest, resp HTTPResponse) error
}

// CloudEventFunction handles a CloudEvents v1 event. Legacy events are converted
// before delivery.
type CloudEventFunction interface {
	AcceptCloudEvent(ctx context.Context, event cloudevents.Event) error
}

// RawEventFunction handles a legacy background event as raw JSON. CloudEvents are
// converted to the legacy envelope before delivery.
type RawEventFunction interface {
	AcceptEvent(ctx context.Context, payload EventPayload, ectx *EventContext) error
}

// TypedEventFunction handles a legacy background event decoded into a value of
// a declared type. NewPayload must return a fresh non-nil pointer for every call.
type TypedEventFunction interface {
	NewPayload() any
	AcceptTypedEvent(ctx context.Context, payload any, ectx *EventContext) error
}

// TypedFunction decodes the request body into the value returned by NewRequest,
// and its result is encoded as the response body.
type TypedFunction interface {
	NewRequest() any
	Apply(ctx context.Context, request any) (any, error)
}

// WireFormatProvider is implemented by a TypedFunction that does not use JSON.
type WireFormatProvider interface {
	WireFormat() WireFormat
}
