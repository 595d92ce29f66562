// Package event translates between the legacy background-event envelope and
// CloudEvents v1.
//
// The translation is table driven. Every canonical legacy event type maps to
// exactly one CloudEvent type and a provider adapter that reshapes the resource
// and data. Older legacy spellings are accepted as aliases when converting to
// CloudEvents only, so the reverse direction always yields the canonical type.
//
// Resource handling per provider:
//
//	Pub/Sub        source is the topic; data is wrapped under "message"
//	Storage        projects/_/buckets/B becomes the source, objects/... the subject
//	Firestore, DB  projects/... becomes the source, documents/... or refs/... the subject
//	Firebase Auth  subject is users/<uid>; metadata fields are renamed
//
// ToCloudEvent and ToLegacyEvent are pure functions and safe for concurrent use.
// The mapping table is built at init and never modified.
package event
