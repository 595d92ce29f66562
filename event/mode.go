package event

import (
	"net/http"
	"strings"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	cehttp "github.com/cloudevents/sdk-go/v2/protocol/http"

	"github.com/c360/fnruntime/errors"
)

// Mode is the wire format of an inbound event request.
type Mode int

const (
	// ModeLegacy is a JSON legacy envelope
	ModeLegacy Mode = iota
	// ModeStructured is a CloudEvent in the structured JSON binding
	ModeStructured
	// ModeBinary is a CloudEvent in the binary binding with ce-* headers
	ModeBinary
)

// String returns the string representation of Mode
func (m Mode) String() string {
	switch m {
	case ModeStructured:
		return "structured"
	case ModeBinary:
		return "binary"
	default:
		return "legacy"
	}
}

// DetectMode chooses exactly one decoding path for an event request.
func DetectMode(h http.Header) Mode {
	if strings.HasPrefix(strings.ToLower(h.Get("Content-Type")), cloudevents.ApplicationCloudEventsJSON) {
		return ModeStructured
	}
	if h.Get("Ce-Specversion") != "" {
		return ModeBinary
	}
	return ModeLegacy
}

// ReadCloudEvent decodes a structured or binary mode CloudEvent from r.
func ReadCloudEvent(r *http.Request) (cloudevents.Event, error) {
	ev, err := cehttp.NewEventFromHTTPRequest(r)
	if err != nil {
		return cloudevents.Event{}, malformed("decode cloudevent", err)
	}
	if err := ev.Validate(); err != nil {
		return cloudevents.Event{}, malformed("invalid cloudevent", err)
	}
	return *ev, nil
}

// TranslationReason labels a translation failure for metrics.
func TranslationReason(err error) string {
	var te *errors.TranslationError
	if errors.As(err, &te) {
		return te.Kind.String()
	}
	return "other"
}
