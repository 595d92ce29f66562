package event

import (
	"encoding/json"
	"regexp"

	cloudevents "github.com/cloudevents/sdk-go/v2"

	"github.com/c360/fnruntime/errors"
)

// adapter reshapes one provider's events between the two formats. toCloud returns
// the source name following the service, the subject and the CloudEvent data.
type adapter interface {
	toCloud(le LegacyEvent) (name, subject string, data []byte, err error)
	toLegacy(ev cloudevents.Event, service, name string) (resource json.RawMessage, data []byte, attrs map[string]string, err error)
}

var (
	storageResource  = regexp.MustCompile(`^(projects/_/buckets/[^/]+)/(objects/.*)$`)
	documentResource = regexp.MustCompile(`^(projects/.+)/((documents|refs)/.+)$`)
)

func splitResource(re *regexp.Regexp, resource string) (name, subject string) {
	if m := re.FindStringSubmatch(resource); m != nil {
		return m[1], m[2]
	}
	return resource, ""
}

func joinResource(name, subject string) string {
	if subject == "" {
		return name
	}
	return name + "/" + subject
}

func malformed(detail string, err error) error {
	return errors.NewTranslationError(errors.MalformedPayload, detail, err)
}

// decodeObject unmarshals data into a field map. ok is false when data is not a JSON object.
func decodeObject(data []byte) (fields map[string]json.RawMessage, ok bool) {
	if len(data) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

type pubsubAdapter struct{}

func (pubsubAdapter) toCloud(le LegacyEvent) (string, string, []byte, error) {
	name := le.Context.ResourceName()
	if len(le.Data) == 0 {
		return name, "", nil, nil
	}
	if !json.Valid(le.Data) {
		return "", "", nil, malformed("pubsub data is not JSON", nil)
	}
	data, err := json.Marshal(map[string]json.RawMessage{"message": le.Data})
	if err != nil {
		return "", "", nil, malformed("wrap pubsub message", err)
	}
	return name, "", data, nil
}

func (pubsubAdapter) toLegacy(ev cloudevents.Event, service, name string) (json.RawMessage, []byte, map[string]string, error) {
	resource := ObjectResource(Resource{Service: service, Name: name, Type: pubsubMessageType})

	data := ev.Data()
	if len(data) == 0 {
		return resource, nil, nil, nil
	}
	outer, ok := decodeObject(data)
	if !ok {
		return nil, nil, nil, malformed("pubsub data is not a JSON object", nil)
	}
	message, ok := outer["message"]
	if !ok {
		return resource, data, nil, nil
	}
	fields, ok := decodeObject(message)
	if !ok {
		return resource, message, nil, nil
	}

	delete(fields, "messageId")
	delete(fields, "publishTime")

	var attrs map[string]string
	if raw, ok := fields["attributes"]; ok {
		if err := json.Unmarshal(raw, &attrs); err != nil {
			return nil, nil, nil, malformed("decode pubsub attributes", err)
		}
	}

	out, err := json.Marshal(fields)
	if err != nil {
		return nil, nil, nil, malformed("unwrap pubsub message", err)
	}
	return resource, out, attrs, nil
}

type storageAdapter struct{}

func (storageAdapter) toCloud(le LegacyEvent) (string, string, []byte, error) {
	name, subject := splitResource(storageResource, le.Context.ResourceName())
	return name, subject, le.Data, nil
}

func (storageAdapter) toLegacy(ev cloudevents.Event, service, name string) (json.RawMessage, []byte, map[string]string, error) {
	data := ev.Data()
	var object struct {
		Kind string `json:"kind"`
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &object); err != nil {
			return nil, nil, nil, malformed("storage data is not a JSON object", err)
		}
	}
	resource := ObjectResource(Resource{
		Service: service,
		Name:    joinResource(name, ev.Subject()),
		Type:    object.Kind,
	})
	return resource, data, nil, nil
}

// documentAdapter serves Firestore, Firebase Realtime Database and Analytics.
// Wildcard reshaping of document data stays off in both directions.
type documentAdapter struct{}

func (documentAdapter) toCloud(le LegacyEvent) (string, string, []byte, error) {
	name, subject := splitResource(documentResource, le.Context.ResourceName())
	return name, subject, le.Data, nil
}

func (documentAdapter) toLegacy(ev cloudevents.Event, _, name string) (json.RawMessage, []byte, map[string]string, error) {
	return StringResource(joinResource(name, ev.Subject())), ev.Data(), nil, nil
}

// authMetadataFields maps legacy user metadata fields to their CloudEvent names.
var authMetadataFields = map[string]string{
	"createdAt":      "createTime",
	"lastSignedInAt": "lastSignInTime",
}

type authAdapter struct{}

func (authAdapter) toCloud(le LegacyEvent) (string, string, []byte, error) {
	name := le.Context.ResourceName()
	if len(le.Data) == 0 {
		return name, "", nil, nil
	}

	fields, ok := decodeObject(le.Data)
	if !ok {
		return "", "", nil, malformed("auth data is not a JSON object", nil)
	}

	var subject string
	if raw, ok := fields["uid"]; ok {
		var uid string
		if err := json.Unmarshal(raw, &uid); err == nil && uid != "" {
			subject = "users/" + uid
		}
	}

	data, err := renameMetadata(fields, authMetadataFields)
	if err != nil {
		return "", "", nil, err
	}
	return name, subject, data, nil
}

func (authAdapter) toLegacy(ev cloudevents.Event, _, name string) (json.RawMessage, []byte, map[string]string, error) {
	resource := StringResource(name)
	data := ev.Data()
	if len(data) == 0 {
		return resource, nil, nil, nil
	}

	fields, ok := decodeObject(data)
	if !ok {
		return nil, nil, nil, malformed("auth data is not a JSON object", nil)
	}

	reverse := make(map[string]string, len(authMetadataFields))
	for legacy, cloud := range authMetadataFields {
		reverse[cloud] = legacy
	}
	out, err := renameMetadata(fields, reverse)
	if err != nil {
		return nil, nil, nil, err
	}
	return resource, out, nil, nil
}

// renameMetadata renames keys of the "metadata" object. A key is moved, never duplicated.
func renameMetadata(fields map[string]json.RawMessage, renames map[string]string) ([]byte, error) {
	if raw, ok := fields["metadata"]; ok {
		if metadata, ok := decodeObject(raw); ok {
			for from, to := range renames {
				if v, ok := metadata[from]; ok {
					metadata[to] = v
					delete(metadata, from)
				}
			}
			b, err := json.Marshal(metadata)
			if err != nil {
				return nil, malformed("encode auth metadata", err)
			}
			fields["metadata"] = b
		}
	}
	out, err := json.Marshal(fields)
	if err != nil {
		return nil, malformed("encode auth data", err)
	}
	return out, nil
}

type plainAdapter struct{}

func (plainAdapter) toCloud(le LegacyEvent) (string, string, []byte, error) {
	return le.Context.ResourceName(), "", le.Data, nil
}

func (plainAdapter) toLegacy(ev cloudevents.Event, _, name string) (json.RawMessage, []byte, map[string]string, error) {
	return StringResource(name), ev.Data(), nil, nil
}
