package creds

import (
	"context"
	"fmt"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// Static returns the same fixed credentials on every call.
type Static struct {
	creds db3.Credentials
}

var _ db3.CredentialsProvider = (*Static)(nil)

// NewStatic creates a provider around fixed credentials.
func NewStatic(creds db3.Credentials) (*Static, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Static{creds: creds}, nil
}

// Get returns the fixed credentials.
func (s *Static) Get(ctx context.Context) (db3.Credentials, error) {
	return s.creds, nil
}

// String describes the target without the password.
func (s *Static) String() string {
	return fmt.Sprintf("Static(%s)", s.creds)
}
