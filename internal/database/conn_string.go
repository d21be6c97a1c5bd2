package database

import (
	"net"
	"net/url"
	"strconv"

	"github.com/sschnei8/predictionMarketExploro/internal/config"
)

// ApplicationName identifies mirror connections in pg_stat_activity.
const ApplicationName = "kalshi-ingest"

// BuildConnString builds a pgx connection URL from config. Pool limits are
// carried as pool_min_conns and pool_max_conns, which pgxpool reads from the
// URL; zero limits are left out so pgx defaults apply.
func BuildConnString(cfg config.DatabaseConfig) string {
	q := url.Values{}
	q.Set("application_name", ApplicationName)

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	q.Set("sslmode", sslMode)

	if cfg.MinConns > 0 {
		q.Set("pool_min_conns", strconv.Itoa(cfg.MinConns))
	}
	if cfg.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(cfg.MaxConns))
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		Path:     "/" + cfg.Name,
		RawQuery: q.Encode(),
	}
	if cfg.Password != "" {
		u.User = url.UserPassword(cfg.User, cfg.Password)
	} else if cfg.User != "" {
		u.User = url.User(cfg.User)
	}
	return u.String()
}
