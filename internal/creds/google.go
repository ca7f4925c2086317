package creds

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"

	"cloud.google.com/go/cloudsqlconn"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// GoogleCloudSQL provides credentials and a dialer for Cloud SQL instances.
// Unlike the AWS and Azure providers it does not mint a password token:
// Cloud SQL IAM authentication happens inside the connector's TLS handshake,
// so the provider's job is to expose a DialFunc that routes connections
// through the connector instead of a plain TCP dial.
type GoogleCloudSQL struct {
	base     db3.Credentials
	instance string

	mu     sync.Mutex
	dialer *cloudsqlconn.Dialer
}

var _ db3.CredentialsProvider = (*GoogleCloudSQL)(nil)

// NewGoogleCloudSQL creates a provider for the given instance connection
// name, e.g. "my-project:us-central1:my-instance".
func NewGoogleCloudSQL(base db3.Credentials, instance string) (*GoogleCloudSQL, error) {
	if instance == "" {
		return nil, fmt.Errorf("cloud sql instance connection name is required: %w", db3.ErrInvalidConfig)
	}
	if strings.Count(instance, ":") != 2 {
		return nil, fmt.Errorf("cloud sql instance %q must be project:region:instance: %w", instance, db3.ErrInvalidConfig)
	}
	if base.User == "" {
		return nil, fmt.Errorf("cloud sql user is required: %w", db3.ErrInvalidConfig)
	}

	return &GoogleCloudSQL{base: base, instance: instance}, nil
}

// Get returns the base credentials. The password field stays empty because
// authentication is IAM-based and handled by the dialer.
func (p *GoogleCloudSQL) Get(ctx context.Context) (db3.Credentials, error) {
	return p.base, nil
}

// Dial connects to the Cloud SQL instance through the connector. The network
// and addr arguments are ignored; the connector always targets the configured
// instance. The signature matches pgconn's DialFunc so the pool can plug it
// in directly.
func (p *GoogleCloudSQL) Dial(ctx context.Context, network, addr string) (net.Conn, error) {
	d, err := p.getDialer(ctx)
	if err != nil {
		return nil, err
	}
	return d.Dial(ctx, p.instance)
}

func (p *GoogleCloudSQL) getDialer(ctx context.Context) (*cloudsqlconn.Dialer, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dialer != nil {
		return p.dialer, nil
	}

	d, err := cloudsqlconn.NewDialer(ctx, cloudsqlconn.WithIAMAuthN())
	if err != nil {
		return nil, fmt.Errorf("creating cloud sql dialer: %w", errors.Join(err, db3.ErrCredentials))
	}
	p.dialer = d
	return d, nil
}

// Close releases the connector's background resources.
func (p *GoogleCloudSQL) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dialer == nil {
		return nil
	}
	err := p.dialer.Close()
	p.dialer = nil
	return err
}

// String identifies the instance without secrets.
func (p *GoogleCloudSQL) String() string {
	return fmt.Sprintf("GoogleCloudSQL(instance=%s, user=%s)", p.instance, p.base.User)
}
