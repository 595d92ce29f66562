package functions

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// WireFormat encodes and decodes TypedFunction request and response bodies.
type WireFormat interface {
	Decode(r io.Reader, v any) error
	Encode(w io.Writer, v any) error
	ContentType() string
}

// JSON is the default wire format.
var JSON WireFormat = jsonFormat{}

type jsonFormat struct{}

func (jsonFormat) Decode(r io.Reader, v any) error {
	return json.NewDecoder(r).Decode(v)
}

func (jsonFormat) Encode(w io.Writer, v any) error {
	return json.NewEncoder(w).Encode(v)
}

func (jsonFormat) ContentType() string {
	return "application/json"
}

// TypedEvent returns a TypedEventFunction whose payload is decoded into a T.
func TypedEvent[T any](fn func(ctx context.Context, payload *T, ectx *EventContext) error) TypedEventFunction {
	return typedEvent[T]{fn: fn}
}

type typedEvent[T any] struct {
	fn func(context.Context, *T, *EventContext) error
}

func (typedEvent[T]) NewPayload() any {
	return new(T)
}

func (t typedEvent[T]) AcceptTypedEvent(ctx context.Context, payload any, ectx *EventContext) error {
	p, ok := payload.(*T)
	if !ok {
		return fmt.Errorf("payload is %T, want %T", payload, new(T))
	}
	return t.fn(ctx, p, ectx)
}

// Typed returns a TypedFunction decoding requests into Req and encoding Res
// with the given wire format, or JSON when format is nil.
func Typed[Req, Res any](format WireFormat, fn func(ctx context.Context, req Req) (Res, error)) TypedFunction {
	if format == nil {
		format = JSON
	}
	return typedFunc[Req, Res]{fn: fn, format: format}
}

type typedFunc[Req, Res any] struct {
	fn     func(context.Context, Req) (Res, error)
	format WireFormat
}

func (typedFunc[Req, Res]) NewRequest() any {
	return new(Req)
}

func (t typedFunc[Req, Res]) Apply(ctx context.Context, request any) (any, error) {
	req, ok := request.(*Req)
	if !ok {
		return nil, fmt.Errorf("request is %T, want %T", request, new(Req))
	}
	return t.fn(ctx, *req)
}

func (t typedFunc[Req, Res]) WireFormat() WireFormat {
	return t.format
}
