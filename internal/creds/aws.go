package creds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/rds/auth"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// rdsTokenValidity is how long RDS IAM tokens remain usable after issue.
const rdsTokenValidity = 15 * time.Minute

// AWSIAM acquires IAM authentication tokens for RDS and uses them as the
// password. Uses the default AWS credential chain (environment variables,
// config files, IAM roles, etc.)
type AWSIAM struct {
	base   db3.Credentials
	region string
}

var _ TokenProvider = (*AWSIAM)(nil)

// NewAWSIAM creates a token provider for AWS RDS IAM authentication.
// base supplies the RDS endpoint, user, and database; its password is
// ignored. region is the AWS region, e.g. "us-west-2".
func NewAWSIAM(base db3.Credentials, region string) (*AWSIAM, error) {
	if base.Host == "" {
		return nil, fmt.Errorf("AWS IAM auth requires the RDS endpoint host: %w", db3.ErrInvalidConfig)
	}
	if base.User == "" {
		return nil, fmt.Errorf("AWS IAM auth requires the database user: %w", db3.ErrInvalidConfig)
	}
	if region == "" {
		return nil, fmt.Errorf("AWS IAM auth requires a region (use --aws-region or $AWS_REGION): %w", db3.ErrInvalidConfig)
	}

	return &AWSIAM{base: base, region: region}, nil
}

// GetWithExpiry acquires an IAM authentication token from AWS.
// The token is valid for 15 minutes from acquisition time.
func (p *AWSIAM) GetWithExpiry(ctx context.Context) (db3.Credentials, time.Time, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(p.region))
	if err != nil {
		return db3.Credentials{}, time.Time{}, fmt.Errorf("loading AWS config: %w", errors.Join(err, db3.ErrCredentials))
	}

	token, err := auth.BuildAuthToken(ctx, p.endpoint(), p.region, p.base.User, cfg.Credentials)
	if err != nil {
		return db3.Credentials{}, time.Time{}, fmt.Errorf("building RDS auth token: %w", errors.Join(err, db3.ErrCredentials))
	}

	creds := p.base
	creds.Password = token
	return creds, time.Now().Add(rdsTokenValidity), nil
}

// Get acquires a token, discarding the expiry.
func (p *AWSIAM) Get(ctx context.Context) (db3.Credentials, error) {
	creds, _, err := p.GetWithExpiry(ctx)
	return creds, err
}

// String returns a human-readable representation of the provider.
func (p *AWSIAM) String() string {
	return fmt.Sprintf("AWSIAM(endpoint=%s, region=%s, user=%s)", p.endpoint(), p.region, p.base.User)
}

func (p *AWSIAM) endpoint() string {
	port := p.base.Port
	if port == 0 {
		port = db3.DefaultPort
	}
	return fmt.Sprintf("%s:%d", p.base.Host, port)
}
