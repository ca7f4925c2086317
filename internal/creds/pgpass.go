package creds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/jackc/pgpassfile"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// Pgpass fills the password from a libpq password file, matching on host,
// port, database, and user. The remaining credential fields come from the
// base credentials.
type Pgpass struct {
	base db3.Credentials
	path string
}

var _ db3.CredentialsProvider = (*Pgpass)(nil)

// NewPgpass creates a password-file-backed provider. path names the file;
// empty means ~/.pgpass.
func NewPgpass(base db3.Credentials, path string) *Pgpass {
	return &Pgpass{base: base, path: path}
}

// Get looks up the password for the base credentials. A missing file or
// missing entry wraps db3.ErrCredentials.
func (p *Pgpass) Get(ctx context.Context) (db3.Credentials, error) {
	path := p.path
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return db3.Credentials{}, fmt.Errorf("resolving home directory: %w", errors.Join(err, db3.ErrCredentials))
		}
		path = filepath.Join(home, ".pgpass")
	}

	passfile, err := pgpassfile.ReadPassfile(path)
	if err != nil {
		return db3.Credentials{}, fmt.Errorf("reading password file %s: %w", path, errors.Join(err, db3.ErrCredentials))
	}

	creds := p.base
	port := creds.Port
	if port == 0 {
		port = db3.DefaultPort
	}

	password := passfile.FindPassword(creds.Host, strconv.Itoa(port), creds.Database, creds.User)
	if password == "" {
		return db3.Credentials{}, fmt.Errorf("no password file entry for %s: %w", creds, db3.ErrCredentials)
	}

	creds.Password = password
	return creds, nil
}

// String names the file without touching its contents.
func (p *Pgpass) String() string {
	if p.path != "" {
		return fmt.Sprintf("Pgpass(%s)", p.path)
	}
	return "Pgpass(~/.pgpass)"
}
