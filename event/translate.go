package event

import (
	"regexp"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"

	"github.com/c360/fnruntime/errors"
)

// DomainExtension carries LegacyContext.Domain through a CloudEvent.
const DomainExtension = "domain"

var cloudSource = regexp.MustCompile(`^//([^/]+)/(.+)$`)

// ToCloudEvent converts a legacy envelope into a CloudEvents v1 event.
func ToCloudEvent(le LegacyEvent) (cloudevents.Event, error) {
	m, ok := byLegacy[le.Context.EventType]
	if !ok {
		return cloudevents.Event{}, errors.NewTranslationError(errors.UnrecognizedType, le.Context.EventType, nil)
	}

	service := le.Context.ResourceService()
	if service == "" {
		service = m.Service
	}

	name, subject, data, err := m.adapter.toCloud(le)
	if err != nil {
		return cloudevents.Event{}, err
	}
	if name == "" {
		return cloudevents.Event{}, errors.NewTranslationError(errors.InvalidSource, "legacy event has no resource name", nil)
	}

	ts := time.Now()
	if le.Context.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339Nano, le.Context.Timestamp)
		if err != nil {
			return cloudevents.Event{}, malformed("timestamp is not RFC 3339", err)
		}
	}

	id := le.Context.EventID
	if id == "" {
		id = uuid.NewString()
	}

	ev := cloudevents.NewEvent(cloudevents.VersionV1)
	ev.SetID(id)
	ev.SetType(m.CloudEventType)
	ev.SetSource("//" + service + "/" + name)
	if subject != "" {
		ev.SetSubject(subject)
	}
	ev.SetTime(ts)
	ev.SetDataContentType(cloudevents.ApplicationJSON)
	if len(data) > 0 {
		ev.DataEncoded = data
	}
	if le.Context.Domain != "" {
		ev.SetExtension(DomainExtension, le.Context.Domain)
	}

	return ev, nil
}

// ToLegacyEvent converts a CloudEvent of a known type into a legacy envelope.
func ToLegacyEvent(ev cloudevents.Event) (LegacyEvent, error) {
	m, ok := byCloud[ev.Type()]
	if !ok {
		return LegacyEvent{}, errors.NewTranslationError(errors.UnrecognizedType, ev.Type(), nil)
	}

	parts := cloudSource.FindStringSubmatch(ev.Source())
	if parts == nil {
		return LegacyEvent{}, errors.NewTranslationError(errors.InvalidSource, ev.Source(), nil)
	}
	service, name := parts[1], parts[2]

	resource, data, attrs, err := m.adapter.toLegacy(ev, service, name)
	if err != nil {
		return LegacyEvent{}, err
	}

	ts := ev.Time()
	if ts.IsZero() {
		ts = time.Now()
	}

	le := LegacyEvent{
		Data: data,
		Context: LegacyContext{
			EventID:    ev.ID(),
			Timestamp:  ts.Format(time.RFC3339Nano),
			EventType:  m.LegacyType,
			Resource:   resource,
			Attributes: attrs,
		},
	}
	if domain, ok := ev.Extensions()[DomainExtension].(string); ok {
		le.Context.Domain = domain
	}
	return le, nil
}
