package functions

import (
	"encoding/json"
	"maps"
)

// EventPayload is the raw JSON data of a legacy event.
type EventPayload json.RawMessage

// String returns the payload as JSON text.
func (p EventPayload) String() string {
	return string(p)
}

// Decode unmarshals the payload into v.
func (p EventPayload) Decode(v any) error {
	return json.Unmarshal(p, v)
}

// EventContext is the metadata of a legacy event.
type EventContext struct {
	EventID   string
	Timestamp string
	EventType string
	// Resource is the resource name, or the JSON text of a structured resource.
	Resource   string
	Attributes map[string]string
}

// Attribute returns the named attribute and whether it was present.
func (c *EventContext) Attribute(name string) (string, bool) {
	if c == nil || c.Attributes == nil {
		return "", false
	}
	v, ok := c.Attributes[name]
	return v, ok
}

// Clone returns a deep copy so one invocation cannot mutate another's context.
func (c *EventContext) Clone() *EventContext {
	if c == nil {
		return nil
	}
	out := *c
	out.Attributes = maps.Clone(c.Attributes)
	return &out
}
