package cli

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/voca9204/db3-sub002/internal/config"
	"github.com/voca9204/db3-sub002/internal/creds"
	"github.com/voca9204/db3-sub002/internal/logging"
	"github.com/voca9204/db3-sub002/internal/pool"
	"github.com/voca9204/db3-sub002/internal/query"
	"github.com/voca9204/db3-sub002/pkg/db3"
)

// session bundles the wired components behind one command invocation.
type session struct {
	cfg      *config.Config
	log      *logging.Logger
	manager  *pool.Manager
	executor *query.Executor
	closers  []func()
}

// openSession loads configuration, resolves credentials, and wires the
// pool manager and query executor. Callers must Close it.
func openSession(cmd *cobra.Command) (*session, error) {
	cfg, err := loadFileConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := newLogger(fileLogging{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	base, err := resolveBase(cfg)
	if err != nil {
		return nil, err
	}

	provider, dial, cleanup, err := buildProvider(cfg, base)
	if err != nil {
		return nil, err
	}

	poolCfg := cfg.PoolConfig()
	if mode := firstNonEmpty(rootFlags.sslMode, os.Getenv("PGSSLMODE")); mode != "" {
		poolCfg.SSLMode = mode
	}

	var popts []pool.Option
	if dial != nil {
		popts = append(popts, pool.WithDialFunc(dial))
	}

	manager, err := pool.New(poolCfg, provider, log.With("component", "pool"), popts...)
	if err != nil {
		if cleanup != nil {
			cleanup()
		}
		return nil, err
	}

	var qopts []query.Option
	if d := cfg.SlowQueryThreshold(); d > 0 {
		qopts = append(qopts, query.WithSlowQueryThreshold(d))
	}
	executor := query.New(manager, log.With("component", "query"), qopts...)

	s := &session{
		cfg:      cfg,
		log:      log,
		manager:  manager,
		executor: executor,
	}
	if cleanup != nil {
		s.closers = append(s.closers, cleanup)
	}
	return s, nil
}

// Close shuts down the pool manager and any credential resources.
func (s *session) Close() {
	s.manager.Close()
	for _, f := range s.closers {
		f()
	}
}

/// queryDefaults returns the config-file query options; zero values take
// package defaults downstream.
func (s *session) queryDefaults() db3.QueryOptions {
	return s.cfg.QueryOptions()
}

// loadFileConfig reads the config file. An explicit --config path must
// exist; the default db3.yaml is optional and falls back to defaults.
func loadFileConfig() (*config.Config, error) {
	path := rootFlags.configPath
	if path != "" {
		cfg, err := config.Load(path)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, errors.Join(err, db3.ErrInvalidConfig))
		}
		return cfg, nil
	}

	cfg, err := config.Load(config.FileName)
	if err != nil {
		if errors.Is(err, config.ErrConfigNotFound) {
			return config.Default(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// resolveBase resolves the connection identity with per-field precedence:
// granular flags, then the connection string (--connection flag or
// $DATABASE_URL), then environment variables, then the config file. The
// password additionally honors --password-prompt above everything.
func resolveBase(cfg *config.Config) (db3.Credentials, error) {
	var fromDSN db3.Credentials
	dsn := rootFlags.connection
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}
	if dsn != "" {
		parsed, err := creds.ParseDSN(dsn)
		if err != nil {
			return db3.Credentials{}, fmt.Errorf("connection string: %w", err)
		}
		fromDSN = parsed
	}

	base := db3.Credentials{
		Host:     firstNonEmpty(rootFlags.host, fromDSN.Host, os.Getenv("DB3_HOST"), os.Getenv("PGHOST"), cfg.Database.Host),
		User:     firstNonEmpty(rootFlags.username, fromDSN.User, os.Getenv("DB3_USER"), os.Getenv("PGUSER"), cfg.Database.User),
		Database: firstNonEmpty(rootFlags.database, fromDSN.Database, os.Getenv("DB3_DATABASE"), os.Getenv("PGDATABASE"), cfg.Database.Database),
		Password: firstNonEmpty(fromDSN.Password, os.Getenv("DB3_PASSWORD"), os.Getenv("PGPASSWORD"), cfg.Credentials.Password),
	}

	port, err := resolvePort(fromDSN.Port, cfg.Database.Port)
	if err != nil {
		return db3.Credentials{}, err
	}
	base.Port = port

	if rootFlags.passwordPrompt {
		password, err := promptPassword()
		if err != nil {
			return db3.Credentials{}, err
		}
		base.Password = password
	}

	return base, nil
}

func resolvePort(dsnPort, cfgPort int) (int, error) {
	if rootFlags.port != 0 {
		return rootFlags.port, nil
	}
	if dsnPort != 0 {
		return dsnPort, nil
	}
	if s := firstNonEmpty(os.Getenv("DB3_PORT"), os.Getenv("PGPORT")); s != "" {
		port, err := strconv.Atoi(s)
		if err != nil {
			return 0, fmt.Errorf("invalid port %q in environment: %w", s, db3.ErrInvalidConfig)
		}
		return port, nil
	}
	return cfgPort, nil
}

// buildProvider selects the credential source and wraps it in the caching
// layer. It returns an optional driver dial function (Cloud SQL) and a
// cleanup to run at session close.
func buildProvider(cfg *config.Config, base db3.Credentials) (db3.CredentialsProvider, pgconn.DialFunc, func(), error) {
	source := firstNonEmpty(rootFlags.credSource, cfg.Credentials.Source)

	var (
		inner   db3.CredentialsProvider
		dial    pgconn.DialFunc
		cleanup func()
		err     error
	)

	switch source {
	case "static":
		inner, err = creds.NewStatic(base)

	case "", "env":
		// A complete identity resolved from flags, environment, or file is
		// used as is; otherwise defer to the environment provider so the
		// failure names the environment route.
		if base.Validate() == nil {
			inner, err = creds.NewStatic(base)
		} else {
			inner = creds.NewEnv("")
		}

	case "pgpass":
		path := firstNonEmpty(rootFlags.pgpassFile, cfg.Credentials.PgpassFile, os.Getenv("PGPASSFILE"))
		base.Password = ""
		inner = creds.NewPgpass(base, path)

	case "aws":
		region := firstNonEmpty(rootFlags.awsRegion, cfg.Credentials.AWSRegion, os.Getenv("AWS_REGION"))
		inner, err = creds.NewAWSIAM(base, region)

	case "azure":
		tenantID := firstNonEmpty(rootFlags.azureTenantID, cfg.Credentials.AzureTenantID, os.Getenv("AZURE_TENANT_ID"))
		clientID := firstNonEmpty(rootFlags.azureClientID, cfg.Credentials.AzureClientID, os.Getenv("AZURE_CLIENT_ID"))
		secret := os.Getenv("AZURE_CLIENT_SECRET")
		if tenantID != "" && clientID != "" && secret != "" {
			inner, err = creds.NewAzureServicePrincipal(base, tenantID, clientID, secret)
		} else {
			inner, err = creds.NewAzureDefault(base)
		}

	case "google":
		instance := firstNonEmpty(rootFlags.googleInstance, cfg.Credentials.GoogleInstance)
		var g *creds.GoogleCloudSQL
		g, err = creds.NewGoogleCloudSQL(base, instance)
		if err == nil {
			inner = g
			dial = g.Dial
			cleanup = func() { _ = g.Close() }
		}

	default:
		err = fmt.Errorf("unknown credentials source %q: %w", source, db3.ErrInvalidConfig)
	}
	if err != nil {
		return nil, nil, nil, err
	}

	var copts []creds.CacheOption
	if ttl := parseDurationOrZero(cfg.Credentials.CacheTTL); ttl > 0 {
		copts = append(copts, creds.WithTTL(ttl))
	}
	return creds.NewCaching(inner, copts...), dial, cleanup, nil
}

// promptPassword reads the password from the controlling terminal without
// echo. Refused off-terminal so scripts fail loudly instead of hanging.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("--password-prompt requires an interactive terminal: %w", db3.ErrInvalidConfig)
	}

	fmt.Fprint(os.Stderr, "Password: ")
	password, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(password), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func parseDurationOrZero(s string) time.Duration {
	if s == "" {
		return 0
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0
	}
	return d
}
