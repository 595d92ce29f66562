package event

import (
	"bytes"
	"encoding/json"

	"github.com/c360/fnruntime/errors"
	"github.com/c360/fnruntime/functions"
)

// LegacyEvent is the background-event envelope delivered to legacy event functions.
type LegacyEvent struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Context LegacyContext   `json:"context"`
}

// LegacyContext is the metadata of a LegacyEvent. Resource is either a JSON
// string or a JSON object with service, name and type fields.
type LegacyContext struct {
	EventID    string            `json:"eventId"`
	Timestamp  string            `json:"timestamp"`
	EventType  string            `json:"eventType"`
	Resource   json.RawMessage   `json:"resource,omitempty"`
	Attributes map[string]string `json:"attributes,omitempty"`
	Domain     string            `json:"domain,omitempty"`
}

// Resource is the object form of a legacy resource.
type Resource struct {
	Service string `json:"service,omitempty"`
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
}

// StringResource encodes name as a plain string resource.
func StringResource(name string) json.RawMessage {
	b, _ := json.Marshal(name)
	return b
}

// ObjectResource encodes r as an object resource.
func ObjectResource(r Resource) json.RawMessage {
	b, _ := json.Marshal(r)
	return b
}

// resource decodes the polymorphic resource. A plain string becomes Name.
func (c LegacyContext) resource() (Resource, bool) {
	raw := bytes.TrimSpace(c.Resource)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Resource{}, false
	}
	if raw[0] == '"' {
		var name string
		if err := json.Unmarshal(raw, &name); err != nil {
			return Resource{}, false
		}
		return Resource{Name: name}, true
	}
	var r Resource
	if err := json.Unmarshal(raw, &r); err != nil {
		return Resource{}, false
	}
	return r, true
}

// ResourceName returns the resource name whichever form the resource has.
func (c LegacyContext) ResourceName() string {
	r, _ := c.resource()
	return r.Name
}

// ResourceService returns the service of an object resource, or "".
func (c LegacyContext) ResourceService() string {
	r, _ := c.resource()
	return r.Service
}

// ResourceType returns the type of an object resource, or "".
func (c LegacyContext) ResourceType() string {
	r, _ := c.resource()
	return r.Type
}

// ResourceString returns a string resource as is and an object resource as compact JSON.
func (c LegacyContext) ResourceString() string {
	raw := bytes.TrimSpace(c.Resource)
	if len(raw) == 0 {
		return ""
	}
	if raw[0] == '"' {
		return c.ResourceName()
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(raw)
	}
	return buf.String()
}

// EventContext converts the envelope metadata into the context handed to user
// code. Attributes are copied.
func (e LegacyEvent) EventContext() *functions.EventContext {
	ectx := &functions.EventContext{
		EventID:    e.Context.EventID,
		Timestamp:  e.Context.Timestamp,
		EventType:  e.Context.EventType,
		Resource:   e.Context.ResourceString(),
		Attributes: e.Context.Attributes,
	}
	return ectx.Clone()
}

// Payload returns the event data as a user-facing payload.
func (e LegacyEvent) Payload() functions.EventPayload {
	if len(e.Data) == 0 {
		return functions.EventPayload("null")
	}
	return functions.EventPayload(e.Data)
}

// wireEvent accepts both the nested and the older top-level envelope form.
type wireEvent struct {
	Data    json.RawMessage `json:"data"`
	Context *LegacyContext  `json:"context"`

	EventID    string            `json:"eventId"`
	Timestamp  string            `json:"timestamp"`
	EventType  string            `json:"eventType"`
	Resource   json.RawMessage   `json:"resource"`
	Attributes map[string]string `json:"attributes"`
	Domain     string            `json:"domain"`
}

// ParseLegacyEvent decodes a legacy envelope from JSON.
func ParseLegacyEvent(body []byte) (LegacyEvent, error) {
	var w wireEvent
	if err := json.Unmarshal(body, &w); err != nil {
		return LegacyEvent{}, errors.NewTranslationError(errors.MalformedPayload, "legacy envelope is not a JSON object", err)
	}

	le := LegacyEvent{Data: w.Data}
	if w.Context != nil {
		le.Context = *w.Context
	} else {
		le.Context = LegacyContext{
			EventID:    w.EventID,
			Timestamp:  w.Timestamp,
			EventType:  w.EventType,
			Resource:   w.Resource,
			Attributes: w.Attributes,
			Domain:     w.Domain,
		}
	}
	if bytes.Equal(bytes.TrimSpace(le.Data), []byte("null")) {
		le.Data = nil
	}
	return le, nil
}
