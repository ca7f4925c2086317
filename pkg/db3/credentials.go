package db3

import "context"

// CredentialsProvider supplies database credentials on demand.
//
// The pool manager calls Get immediately before every pool creation, so
// implementations backed by token services (AWS RDS IAM, Azure Entra ID,
// Google Cloud SQL) return short-lived tokens in Credentials.Password and
// rotation is picked up on the next recreation without restarts.
type CredentialsProvider interface {
	// Get returns credentials for a new pool. Implementations should honor
	// ctx cancellation when they reach out to external services.
	Get(ctx context.Context) (Credentials, error)

	// String returns a human-readable description of the provider for
	// logging. It must not include secrets.
	String() string
}
