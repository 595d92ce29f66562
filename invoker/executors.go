package invoker

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/event"
	"github.com/c360/fnruntime/httpmsg"
)

func prepareHTTP(inv *Invoker, r *http.Request, _ *slog.Logger) (*invocation, error) {
	fn := inv.contract.HTTP
	req := httpmsg.NewRequest(r)
	resp := httpmsg.NewResponse()

	return &invocation{
		resp: resp,
		run: func(ctx context.Context) error {
			return fn.Service(ctx, req, resp)
		},
	}, nil
}

func prepareCloudEvent(inv *Invoker, r *http.Request, logger *slog.Logger) (*invocation, error) {
	fn := inv.contract.CloudEvent

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	var ev cloudevents.Event
	switch mode := event.DetectMode(r.Header); mode {
	case event.ModeLegacy:
		le, err := event.ParseLegacyEvent(body)
		if err == nil {
			ev, err = event.ToCloudEvent(le)
		}
		if err != nil {
			return nil, inv.translationFailed(logger, mode, err)
		}
	default:
		ev, err = event.ReadCloudEvent(withBody(r, body))
		if err != nil {
			return nil, inv.translationFailed(logger, mode, err)
		}
	}

	return &invocation{
		resp: httpmsg.NewResponse(),
		run: func(ctx context.Context) error {
			return fn.AcceptCloudEvent(ctx, ev)
		},
	}, nil
}

func prepareRawEvent(inv *Invoker, r *http.Request, logger *slog.Logger) (*invocation, error) {
	fn := inv.contract.RawEvent

	le, err := inv.readLegacyEvent(r, logger)
	if err != nil {
		return nil, err
	}
	payload, ectx := le.Payload(), le.EventContext()

	return &invocation{
		resp: httpmsg.NewResponse(),
		run: func(ctx context.Context) error {
			return fn.AcceptEvent(ctx, payload, ectx)
		},
	}, nil
}

func prepareTypedEvent(inv *Invoker, r *http.Request, logger *slog.Logger) (*invocation, error) {
	fn := inv.contract.TypedEvent

	le, err := inv.readLegacyEvent(r, logger)
	if err != nil {
		return nil, err
	}
	ectx := le.EventContext()

	var payload any
	err = inv.scope.Run(r.Context(), inv.contract.Identity+".NewPayload", func(context.Context) error {
		payload = fn.NewPayload()
		if payload == nil {
			return errors.NewUsageError("NewPayload", "returned nil")
		}
		if err := le.Payload().Decode(payload); err != nil {
			return errors.WrapInvalid(err, "Invoker", "prepareTypedEvent", "decode event payload")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &invocation{
		resp: httpmsg.NewResponse(),
		run: func(ctx context.Context) error {
			return fn.AcceptTypedEvent(ctx, payload, ectx)
		},
	}, nil
}

func prepareTyped(inv *Invoker, r *http.Request, _ *slog.Logger) (*invocation, error) {
	fn := inv.contract.Typed
	format := inv.contract.WireFormat()

	body, err := readBody(r)
	if err != nil {
		return nil, err
	}

	var request any
	err = inv.scope.Run(r.Context(), inv.contract.Identity+".NewRequest", func(context.Context) error {
		request = fn.NewRequest()
		if request == nil {
			return errors.NewUsageError("NewRequest", "returned nil")
		}
		if err := format.Decode(bytes.NewReader(body), request); err != nil {
			return errors.WrapInvalid(err, "Invoker", "prepareTyped", "decode request body")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp := httpmsg.NewResponse()
	return &invocation{
		resp: resp,
		run: func(ctx context.Context) error {
			result, err := fn.Apply(ctx, request)
			if err != nil {
				return err
			}
			resp.SetContentType(format.ContentType())
			out, err := resp.OutputStream()
			if err != nil {
				return err
			}
			return format.Encode(out, result)
		},
	}, nil
}

// readLegacyEvent reads a legacy envelope, converting CloudEvents on the way.
func (inv *Invoker) readLegacyEvent(r *http.Request, logger *slog.Logger) (event.LegacyEvent, error) {
	body, err := readBody(r)
	if err != nil {
		return event.LegacyEvent{}, err
	}

	mode := event.DetectMode(r.Header)
	if mode == event.ModeLegacy {
		le, err := event.ParseLegacyEvent(body)
		if err != nil {
			return event.LegacyEvent{}, inv.translationFailed(logger, mode, err)
		}
		return le, nil
	}

	ev, err := event.ReadCloudEvent(withBody(r, body))
	if err == nil {
		var le event.LegacyEvent
		if le, err = event.ToLegacyEvent(ev); err == nil {
			return le, nil
		}
	}
	return event.LegacyEvent{}, inv.translationFailed(logger, mode, err)
}

func (inv *Invoker) translationFailed(logger *slog.Logger, mode event.Mode, err error) error {
	inv.metrics.TranslationFailed(event.TranslationReason(err))
	logger.Warn("Event translation failed", "mode", mode.String(), "error", err)
	return err
}

func readBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, bodyTooLarge(err)
		}
		return nil, errors.WrapTransient(err, "Invoker", "readBody", "read request body")
	}
	return body, nil
}

// withBody returns a shallow copy of r whose body replays data.
func withBody(r *http.Request, data []byte) *http.Request {
	c := r.Clone(r.Context())
	c.Body = io.NopCloser(bytes.NewReader(data))
	c.ContentLength = int64(len(data))
	return c
}
