// Package verify checks that a user name and password can log in to the
// database a connection points at, before the credentials are stored.
package verify

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq" // PostgreSQL

	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/logging"
)

// DefaultTimeout bounds a single login attempt.
const DefaultTimeout = 10 * time.Second

// Target is the database to log in to.
type Target struct {
	Driver   string // TablePlus driver name, e.g. "PostgreSQL"
	Host     string
	Port     string
	Database string
	User     string
	Password string
	SSLMode  string // PostgreSQL only; empty keeps the driver default
}

// Opener opens a database handle. sql.Open in production.
type Opener func(driverName, dsn string) (*sql.DB, error)

// Checker performs login checks.
type Checker struct {
	open    Opener
	timeout time.Duration
}

// NewChecker returns a checker using sql.Open.
func NewChecker(timeout time.Duration) *Checker {
	return NewCheckerWithOpener(sql.Open, timeout)
}

// NewCheckerWithOpener returns a checker with a custom opener, for tests.
func NewCheckerWithOpener(open Opener, timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Checker{open: open, timeout: timeout}
}

// driverMap maps TablePlus driver names to database/sql drivers.
var driverMap = map[string]string{
	"postgresql":  "postgres",
	"postgres":    "postgres",
	"redshift":    "postgres",
	"cockroachdb": "postgres",
	"mysql":       "mysql",
	"mariadb":     "mysql",
}

var defaultPorts = map[string]string{
	"postgres": "5432",
	"mysql":    "3306",
}

// Supported reports whether a TablePlus driver can be checked.
func Supported(driver string) bool {
	_, ok := driverMap[strings.ToLower(driver)]
	return ok
}

// Check logs in and pings the server.
func (c *Checker) Check(ctx context.Context, t Target) error {
	driverName, dsn, err := DSN(t)
	if err != nil {
		return err
	}

	db, err := c.open(driverName, dsn)
	if err != nil {
		return c.loginFailed(t, err)
	}
	defer func() { _ = db.Close() }()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return c.loginFailed(t, err)
	}
	return nil
}

func (c *Checker) loginFailed(t Target, err error) error {
	return dserrors.UserError{
		Message:    fmt.Sprintf("Login check failed for user %q on %s", t.User, net.JoinHostPort(t.Host, t.Port)),
		Details:    logging.Redact(err.Error(), []string{t.Password}),
		Suggestion: "Verify the new credentials, or drop --verify-login to store them anyway",
		Err:        err,
	}
}

// DSN builds the driver name and data source name for t.
func DSN(t Target) (string, string, error) {
	driverName, ok := driverMap[strings.ToLower(t.Driver)]
	if !ok {
		return "", "", dserrors.UserError{
			Message:    fmt.Sprintf("Cannot verify logins for driver %q", t.Driver),
			Suggestion: "Login verification supports PostgreSQL, Redshift, CockroachDB, MySQL and MariaDB; drop --verify-login",
		}
	}
	if t.Host == "" {
		return "", "", dserrors.UserError{
			Message:    "Connection has no database host",
			Suggestion: "Login verification needs a direct TCP connection; drop --verify-login",
		}
	}
	port := t.Port
	if port == "" {
		port = defaultPorts[driverName]
	}

	switch driverName {
	case "mysql":
		cfg := mysql.NewConfig()
		cfg.User = t.User
		cfg.Passwd = t.Password
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(t.Host, port)
		cfg.DBName = t.Database
		cfg.TLSConfig = "preferred"
		return driverName, cfg.FormatDSN(), nil
	default:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(t.User, t.Password),
			Host:   net.JoinHostPort(t.Host, port),
			Path:   "/" + t.Database,
		}
		if t.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {t.SSLMode}}.Encode()
		}
		return driverName, u.String(), nil
	}
}
