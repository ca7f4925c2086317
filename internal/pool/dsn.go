package pool

import (
	"net"
	"net/url"
	"strconv"

	"github.com/voca9204/db3-sub002/pkg/db3"
)

// BuildDSN composes a PostgreSQL URI from credentials and the fixed pool
// profile. The result may contain the password and must never be logged
// without passing through db3.MaskSecrets.
func BuildDSN(creds db3.Credentials, cfg db3.PoolConfig) string {
	port := creds.Port
	if port == 0 {
		port = db3.DefaultPort
	}

	u := &url.URL{
		Scheme: "postgresql",
		Host:   net.JoinHostPort(creds.Host, strconv.Itoa(port)),
		Path:   "/" + creds.Database,
	}

	if creds.User != "" {
		if creds.Password != "" {
			u.User = url.UserPassword(creds.User, creds.Password)
		} else {
			u.User = url.User(creds.User)
		}
	}

	query := url.Values{}
	if cfg.SSLMode != "" {
		query.Set("sslmode", cfg.SSLMode)
	}
	if cfg.ClientEncoding != "" {
		query.Set("client_encoding", cfg.ClientEncoding)
	}
	if cfg.AppName != "" {
		query.Set("application_name", cfg.AppName)
	}
	if cfg.ConnectTimeout > 0 {
		query.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}

	u.RawQuery = query.Encode()
	return u.String()
}
