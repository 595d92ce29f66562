package event

import "sort"

// Default services of the event providers.
const (
	ServicePubSub          = "pubsub.googleapis.com"
	ServiceStorage         = "storage.googleapis.com"
	ServiceFirestore       = "firestore.googleapis.com"
	ServiceFirebaseAuth    = "firebaseauth.googleapis.com"
	ServiceFirebaseDB      = "firebasedatabase.googleapis.com"
	ServiceAnalytics       = "firebaseanalytics.googleapis.com"
	ServiceRemoteConfig    = "firebaseremoteconfig.googleapis.com"
	pubsubMessageType      = "type.googleapis.com/google.pubsub.v1.PubsubMessage"
	legacyFirestorePrefix  = "providers/cloud.firestore/eventTypes/"
	legacyAuthPrefix       = "providers/firebase.auth/eventTypes/"
	legacyDatabasePrefix   = "providers/google.firebase.database/eventTypes/"
	legacyAnalyticsPrefix  = "providers/google.firebase.analytics/eventTypes/"
	cloudFirestorePrefix   = "google.cloud.firestore.document.v1."
	cloudDatabasePrefix    = "google.firebase.database.ref.v1."
	cloudStorageTypePrefix = "google.cloud.storage.object.v1."
)

// Mapping is one entry of the event type table.
type Mapping struct {
	LegacyType     string
	CloudEventType string
	Service        string

	adapter adapter
}

var (
	// byLegacy and byCloud are built once in init and only read afterwards.
	byLegacy map[string]*Mapping
	byCloud  map[string]*Mapping
)

func canonicalMappings() []*Mapping {
	pubsub := pubsubAdapter{}
	storage := storageAdapter{}
	document := documentAdapter{}
	auth := authAdapter{}
	plain := plainAdapter{}

	return []*Mapping{
		{"google.pubsub.topic.publish", "google.cloud.pubsub.topic.v1.messagePublished", ServicePubSub, pubsub},

		{"google.storage.object.finalize", cloudStorageTypePrefix + "finalized", ServiceStorage, storage},
		{"google.storage.object.delete", cloudStorageTypePrefix + "deleted", ServiceStorage, storage},
		{"google.storage.object.archive", cloudStorageTypePrefix + "archived", ServiceStorage, storage},
		{"google.storage.object.metadataUpdate", cloudStorageTypePrefix + "metadataUpdated", ServiceStorage, storage},

		{legacyFirestorePrefix + "document.create", cloudFirestorePrefix + "created", ServiceFirestore, document},
		{legacyFirestorePrefix + "document.update", cloudFirestorePrefix + "updated", ServiceFirestore, document},
		{legacyFirestorePrefix + "document.delete", cloudFirestorePrefix + "deleted", ServiceFirestore, document},
		{legacyFirestorePrefix + "document.write", cloudFirestorePrefix + "written", ServiceFirestore, document},

		{legacyAuthPrefix + "user.create", "google.firebase.auth.user.v1.created", ServiceFirebaseAuth, auth},
		{legacyAuthPrefix + "user.delete", "google.firebase.auth.user.v1.deleted", ServiceFirebaseAuth, auth},

		{legacyDatabasePrefix + "ref.create", cloudDatabasePrefix + "created", ServiceFirebaseDB, document},
		{legacyDatabasePrefix + "ref.update", cloudDatabasePrefix + "updated", ServiceFirebaseDB, document},
		{legacyDatabasePrefix + "ref.delete", cloudDatabasePrefix + "deleted", ServiceFirebaseDB, document},
		{legacyDatabasePrefix + "ref.write", cloudDatabasePrefix + "written", ServiceFirebaseDB, document},

		{legacyAnalyticsPrefix + "event.log", "google.firebase.analytics.log.v1.written", ServiceAnalytics, document},

		{"google.firebase.remoteconfig.update", "google.firebase.remoteconfig.remoteConfig.v1.updated", ServiceRemoteConfig, plain},
	}
}

// legacyAliases are older spellings accepted in the legacy-to-cloud direction only.
var legacyAliases = map[string]string{
	"providers/cloud.pubsub/eventTypes/topic.publish":   "google.pubsub.topic.publish",
	"providers/cloud.storage/eventTypes/object.change": "google.storage.object.finalize",
}

func init() {
	all := canonicalMappings()
	byLegacy = make(map[string]*Mapping, len(all)+len(legacyAliases))
	byCloud = make(map[string]*Mapping, len(all))
	for _, m := range all {
		byLegacy[m.LegacyType] = m
		byCloud[m.CloudEventType] = m
	}
	for alias, canonical := range legacyAliases {
		byLegacy[alias] = byLegacy[canonical]
	}
}

// LookupLegacy returns the mapping for a legacy event type, including aliases.
func LookupLegacy(legacyType string) (Mapping, bool) {
	m, ok := byLegacy[legacyType]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// LookupCloud returns the mapping for a CloudEvent type.
func LookupCloud(cloudType string) (Mapping, bool) {
	m, ok := byCloud[cloudType]
	if !ok {
		return Mapping{}, false
	}
	return *m, true
}

// Mappings returns the canonical table sorted by legacy type.
func Mappings() []Mapping {
	out := make([]Mapping, 0, len(byCloud))
	for _, m := range byCloud {
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LegacyType < out[j].LegacyType })
	return out
}
