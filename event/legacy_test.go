package event

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/fnruntime/errors"
)

func TestParseLegacyEvent(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		resource string
		service  string
		resStr   string
		attrs    map[string]string
	}{
		{
			name:     "nested context with object resource",
			body:     `{"data":{"a":1},"context":{"eventId":"1","timestamp":"2020-09-29T11:32:00Z","eventType":"google.pubsub.topic.publish","resource":{"service":"pubsub.googleapis.com","name":"projects/p/topics/t","type":"x"}}}`,
			resource: "projects/p/topics/t",
			service:  "pubsub.googleapis.com",
			resStr:   `{"service":"pubsub.googleapis.com","name":"projects/p/topics/t","type":"x"}`,
		},
		{
			name:     "top level form with string resource",
			body:     `{"data":{"a":1},"eventId":"1","timestamp":"2020-09-29T11:32:00Z","eventType":"google.pubsub.topic.publish","resource":"projects/p/topics/t"}`,
			resource: "projects/p/topics/t",
			resStr:   "projects/p/topics/t",
		},
		{
			name:     "nested context with attributes",
			body:     `{"data":{"a":1},"context":{"eventId":"1","timestamp":"2020-09-29T11:32:00Z","eventType":"google.pubsub.topic.publish","resource":"projects/p/topics/t","attributes":{"k":"v"}}}`,
			resource: "projects/p/topics/t",
			resStr:   "projects/p/topics/t",
			attrs:    map[string]string{"k": "v"},
		},
		{
			name:     "top level form with attributes",
			body:     `{"data":{"a":1},"eventId":"1","timestamp":"2020-09-29T11:32:00Z","eventType":"google.pubsub.topic.publish","resource":"projects/p/topics/t","attributes":{"k":"v"}}`,
			resource: "projects/p/topics/t",
			resStr:   "projects/p/topics/t",
			attrs:    map[string]string{"k": "v"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			le, err := ParseLegacyEvent([]byte(tt.body))
			require.NoError(t, err)

			assert.Equal(t, "1", le.Context.EventID)
			assert.Equal(t, "google.pubsub.topic.publish", le.Context.EventType)
			assert.Equal(t, tt.resource, le.Context.ResourceName())
			assert.Equal(t, tt.service, le.Context.ResourceService())
			assert.Equal(t, tt.resStr, le.Context.ResourceString())
			assert.JSONEq(t, `{"a":1}`, string(le.Data))

			assert.Equal(t, tt.attrs, le.Context.Attributes)

			ectx := le.EventContext()
			assert.Equal(t, tt.resStr, ectx.Resource)
			assert.Equal(t, "2020-09-29T11:32:00Z", ectx.Timestamp)
			assert.Equal(t, tt.attrs, ectx.Attributes)
		})
	}
}

func TestLegacyEvent_EventContextIsACopy(t *testing.T) {
	le, err := ParseLegacyEvent([]byte(`{"eventId":"1","eventType":"t","attributes":{"k":"v"}}`))
	require.NoError(t, err)

	ectx := le.EventContext()
	ectx.Attributes["k"] = "changed"
	assert.Equal(t, "v", le.Context.Attributes["k"])
}

func TestParseLegacyEvent_Malformed(t *testing.T) {
	for _, body := range []string{`not json`, `["array"]`, `"string"`} {
		_, err := ParseLegacyEvent([]byte(body))
		assert.True(t, errors.IsTranslation(err, errors.MalformedPayload), body)
	}
}

func TestLegacyEvent_NullData(t *testing.T) {
	le, err := ParseLegacyEvent([]byte(`{"data":null,"context":{"eventId":"1","eventType":"t"}}`))
	require.NoError(t, err)
	assert.Nil(t, le.Data)
	assert.Equal(t, "null", le.Payload().String())
}

func TestDetectMode(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    Mode
	}{
		{"structured", map[string]string{"Content-Type": "application/cloudevents+json"}, ModeStructured},
		{"structured with charset", map[string]string{"Content-Type": "application/cloudevents+json; charset=utf-8"}, ModeStructured},
		{"structured mixed case", map[string]string{"Content-Type": "Application/CloudEvents+JSON"}, ModeStructured},
		{"structured with malformed parameters", map[string]string{"Content-Type": "application/cloudevents+json; charset", "ce-specversion": "1.0"}, ModeStructured},
		{"binary", map[string]string{"Content-Type": "application/json", "ce-specversion": "1.0"}, ModeBinary},
		{"legacy", map[string]string{"Content-Type": "application/json"}, ModeLegacy},
		{"no headers", nil, ModeLegacy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			for k, v := range tt.headers {
				h.Set(k, v)
			}
			assert.Equal(t, tt.want, DetectMode(h))
		})
	}
}

func TestReadCloudEvent(t *testing.T) {
	t.Run("binary", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"foo":"bar"}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("ce-specversion", "1.0")
		req.Header.Set("ce-id", "1")
		req.Header.Set("ce-type", "com.example.test")
		req.Header.Set("ce-source", "//example.com/x")

		ev, err := ReadCloudEvent(req)
		require.NoError(t, err)
		assert.Equal(t, "1", ev.ID())
		assert.Equal(t, "com.example.test", ev.Type())
		assert.JSONEq(t, `{"foo":"bar"}`, string(ev.Data()))
	})

	t.Run("structured", func(t *testing.T) {
		body := `{"specversion":"1.0","id":"2","type":"com.example.test","source":"//example.com/x","datacontenttype":"application/json","data":{"foo":"bar"}}`
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/cloudevents+json")

		ev, err := ReadCloudEvent(req)
		require.NoError(t, err)
		assert.Equal(t, "2", ev.ID())
		assert.JSONEq(t, `{"foo":"bar"}`, string(ev.Data()))
	})

	t.Run("missing attributes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{}`))
		req.Header.Set("ce-specversion", "1.0")

		_, err := ReadCloudEvent(req)
		assert.True(t, errors.IsTranslation(err, errors.MalformedPayload))
	})
}
