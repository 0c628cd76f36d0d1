// Package constants holds configuration values shared across layers.
package constants

const (
	// PubSubProviderLocal pushes events to a local HTTP endpoint.
	PubSubProviderLocal = "local"
	// PubSubProviderGoogle publishes events to Google Cloud Pub/Sub.
	PubSubProviderGoogle = "google"

	// IdentityProviderRPX verifies tokens against the RPX (Janrain Engage) auth_info API.
	IdentityProviderRPX = "rpx"
	// IdentityProviderGoogle verifies Google ID tokens.
	IdentityProviderGoogle = "google"

	// StorageDriverPostgres persists identity records in PostgreSQL.
	StorageDriverPostgres = "postgres"
	// StorageDriverMemory keeps identity records in process memory.
	StorageDriverMemory = "memory"
)
