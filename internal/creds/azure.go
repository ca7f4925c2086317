package creds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// AzurePostgreSQLScope is the OAuth scope for Azure Database for PostgreSQL.
// This is the resource identifier that Entra ID uses to issue tokens for
// PostgreSQL access.
const AzurePostgreSQLScope = "https://ossrdbms-aad.database.windows.net/.default"

// AzureEntra acquires Entra ID access tokens and uses them as the password.
type AzureEntra struct {
	base       db3.Credentials
	mode       string
	credential azcore.TokenCredential
}

var _ TokenProvider = (*AzureEntra)(nil)

// NewAzureServicePrincipal creates a provider using Service Principal
// credentials. This is the primary authentication method for CI/CD
// pipelines. All three parameters are required.
func NewAzureServicePrincipal(base db3.Credentials, tenantID, clientID, clientSecret string) (*AzureEntra, error) {
	if tenantID == "" || clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("azure service principal requires tenantID, clientID, and clientSecret: %w", db3.ErrInvalidConfig)
	}

	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure credential: %w", errors.Join(err, db3.ErrCredentials))
	}

	return &AzureEntra{
		base:       base,
		mode:       fmt.Sprintf("ServicePrincipal(tenant=%s, client=%s)", tenantID, clientID),
		credential: cred,
	}, nil
}

// NewAzureDefault creates a provider using Azure's DefaultAzureCredential
// chain. The chain tries multiple methods in order:
//  1. Environment variables (AZURE_CLIENT_ID, AZURE_CLIENT_SECRET, AZURE_TENANT_ID)
//  2. Workload Identity (for Kubernetes)
//  3. Managed Identity (for Azure VMs, App Service, etc.)
//  4. Azure CLI (for local development)
func NewAzureDefault(base db3.Credentials) (*AzureEntra, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("creating Azure default credential: %w", errors.Join(err, db3.ErrCredentials))
	}

	return &AzureEntra{
		base:       base,
		mode:       "DefaultChain",
		credential: cred,
	}, nil
}

// GetWithExpiry acquires an access token for the PostgreSQL scope.
func (p *AzureEntra) GetWithExpiry(ctx context.Context) (db3.Credentials, time.Time, error) {
	token, err := p.credential.GetToken(ctx, policy.TokenRequestOptions{
		Scopes: []string{AzurePostgreSQLScope},
	})
	if err != nil {
		return db3.Credentials{}, time.Time{}, fmt.Errorf("azure token acquisition failed: %w", errors.Join(err, db3.ErrCredentials))
	}

	creds := p.base
	creds.Password = token.Token
	return creds, token.ExpiresOn, nil
}

// Get acquires a token, discarding the expiry.
func (p *AzureEntra) Get(ctx context.Context) (db3.Credentials, error) {
	creds, _, err := p.GetWithExpiry(ctx)
	return creds, err
}

// String identifies the credential mode without secrets.
func (p *AzureEntra) String() string {
	return fmt.Sprintf("AzureEntra(%s, user=%s)", p.mode, p.base.User)
}
