package creds

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// Env resolves credentials from the process environment, loading an
// optional dotenv file first. DATABASE_URL wins when set; otherwise the
// DB3_* variables are read with the libpq PG* variables as fallback.
type Env struct {
	dotenvPath string
}

var _ db3.CredentialsProvider = (*Env)(nil)

// NewEnv creates an environment-backed provider. dotenvPath names a dotenv
// file to load before reading variables; empty loads ".env" from the
// working directory when present. Variables already set in the environment
// always win over dotenv entries.
func NewEnv(dotenvPath string) *Env {
	return &Env{dotenvPath: dotenvPath}
}

// Get reads the environment. Missing or malformed values wrap
// db3.ErrCredentials.
func (e *Env) Get(ctx context.Context) (db3.Credentials, error) {
	if e.dotenvPath != "" {
		_ = godotenv.Load(e.dotenvPath)
	} else {
		_ = godotenv.Load()
	}

	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		creds, err := ParseDSN(dsn)
		if err != nil {
			return db3.Credentials{}, fmt.Errorf("DATABASE_URL: %w", errors.Join(err, db3.ErrCredentials))
		}
		return creds, nil
	}

	creds := db3.Credentials{
		Host:     firstEnv("DB3_HOST", "PGHOST"),
		User:     firstEnv("DB3_USER", "PGUSER"),
		Password: firstEnv("DB3_PASSWORD", "PGPASSWORD"),
		Database: firstEnv("DB3_DATABASE", "PGDATABASE"),
	}

	if portStr := firstEnv("DB3_PORT", "PGPORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return db3.Credentials{}, fmt.Errorf("invalid port %q: %w", portStr, db3.ErrCredentials)
		}
		creds.Port = port
	}

	if err := creds.Validate(); err != nil {
		return db3.Credentials{}, fmt.Errorf("environment credentials incomplete: %w", errors.Join(err, db3.ErrCredentials))
	}

	return creds, nil
}

// String names the source without reading any values.
func (e *Env) String() string {
	if e.dotenvPath != "" {
		return fmt.Sprintf("Env(dotenv=%s)", e.dotenvPath)
	}
	return "Env"
}

func firstEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}
