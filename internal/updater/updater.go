// Package updater rotates the credentials of one TablePlus connection: the
// password goes to the keychain first, then the connection's user name is
// written back to the connection list.
package updater

import (
	"context"
	"fmt"
	"regexp"

	"github.com/systmms/tpcreds/internal/connections"
	dserrors "github.com/systmms/tpcreds/internal/errors"
	"github.com/systmms/tpcreds/internal/keychain"
	"github.com/systmms/tpcreds/internal/logging"
	"github.com/systmms/tpcreds/internal/metrics"
	"github.com/systmms/tpcreds/internal/verify"
)

// ConnectionStore loads and replaces the connection list.
type ConnectionStore interface {
	Load() (connections.List, error)
	Save(connections.List) error
}

// CredentialWriter stores a keychain item.
type CredentialWriter interface {
	Store(ctx context.Context, item keychain.Item) error
}

// LoginChecker proves a user name and password work against a database.
type LoginChecker interface {
	Check(ctx context.Context, t verify.Target) error
}

// Settings controls how records map to keychain items.
type Settings struct {
	AppPath         string
	AccountTemplate string
	ServiceName     string
	Label           string
	TeamID          string
	AccessApps      []string

	VerifyLogin  bool
	VerifyStored bool
	SSLMode      string
}

// Request asks for one connection's credentials to be replaced.
type Request struct {
	ConnectionName string
	Username       string
	Password       string

	// Create asks for a missing connection to be added. Adding connections
	// is not implemented; the flag only changes the reported error.
	Create bool
}

// Result describes a completed update.
type Result struct {
	Connection   string
	ID           string
	Account      string
	PreviousUser string
	User         string
}

// Updater runs credential updates.
type Updater struct {
	store    ConnectionStore
	writer   CredentialWriter
	settings Settings

	checker LoginChecker
	reader  keychain.Reader
	metrics *metrics.Metrics
	logger  *logging.Logger
}

// Option configures an Updater.
type Option func(*Updater)

// WithLoginChecker sets the checker used when Settings.VerifyLogin is on.
func WithLoginChecker(c LoginChecker) Option {
	return func(u *Updater) { u.checker = c }
}

// WithReader sets the reader used when Settings.VerifyStored is on.
func WithReader(r keychain.Reader) Option {
	return func(u *Updater) { u.reader = r }
}

// WithMetrics records each update's outcome.
func WithMetrics(m *metrics.Metrics) Option {
	return func(u *Updater) { u.metrics = m }
}

// WithLogger enables progress output.
func WithLogger(l *logging.Logger) Option {
	return func(u *Updater) { u.logger = l }
}

// New creates an updater.
func New(store ConnectionStore, writer CredentialWriter, settings Settings, opts ...Option) *Updater {
	u := &Updater{
		store:    store,
		writer:   writer,
		settings: settings,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update replaces the user name and password of req.ConnectionName.
//
// Nothing is written unless the connection exists. The keychain is updated
// before the connection list; if saving the list fails afterwards the new
// password is already stored.
func (u *Updater) Update(ctx context.Context, req Request) (*Result, error) {
	res, err := u.update(ctx, req)
	u.metrics.RecordUpdate(err)
	return res, err
}

func (u *Updater) update(ctx context.Context, req Request) (*Result, error) {
	if req.ConnectionName == "" {
		return nil, dserrors.UserError{
			Message:    "Connection name is required",
			Suggestion: "Pass --connection with the name shown in TablePlus",
		}
	}

	list, err := u.store.Load()
	if err != nil {
		return nil, err
	}

	i, ok := list.Find(req.ConnectionName)
	if !ok {
		if req.Create {
			return nil, dserrors.NotSupportedError{
				Feature: "Creating connections",
				Details: fmt.Sprintf("add %q in TablePlus first", req.ConnectionName),
			}
		}
		return nil, dserrors.ConnectionNotFoundError{Name: req.ConnectionName}
	}
	record := list[i]

	if u.settings.VerifyLogin {
		if err := u.checkLogin(ctx, record, req); err != nil {
			return nil, err
		}
	}

	account, err := ExpandAccount(u.settings.AccountTemplate, record)
	if err != nil {
		return nil, err
	}

	u.debug("Storing password %s for %s as %s/%s", logging.Secret(req.Password), req.ConnectionName, u.settings.ServiceName, account)
	err = u.writer.Store(ctx, keychain.Item{
		Account:    account,
		Service:    u.settings.ServiceName,
		Password:   req.Password,
		Label:      u.settings.Label,
		AppPath:    u.settings.AppPath,
		AccessApps: u.settings.AccessApps,
		TeamID:     u.settings.TeamID,
	})
	if err != nil {
		return nil, err
	}

	result := &Result{
		Connection:   req.ConnectionName,
		ID:           record.ID(),
		Account:      account,
		PreviousUser: record.User(),
		User:         req.Username,
	}

	record.SetUser(req.Username)
	if err := u.store.Save(list); err != nil {
		return nil, dserrors.UserError{
			Message:    "Password stored in keychain but the connection list could not be saved",
			Details:    err.Error(),
			Suggestion: "Fix the error and run the update again",
			Err:        err,
		}
	}

	if u.settings.VerifyStored {
		if u.reader == nil {
			return nil, fmt.Errorf("verify stored: no keychain reader configured")
		}
		if err := keychain.Verify(u.reader, u.settings.ServiceName, account, req.Password); err != nil {
			u.debug("Read back of %s/%s did not return %s", u.settings.ServiceName, account, logging.Secret(req.Password))
			return nil, err
		}
		u.debug("Read back %s from %s/%s", logging.Secret(req.Password), u.settings.ServiceName, account)
	}

	if u.logger != nil {
		u.logger.Info("Updated %s (user %s)", req.ConnectionName, req.Username)
	}
	return result, nil
}

// UpdateAll applies requests in order and stops at the first failure,
// returning the results completed so far.
func (u *Updater) UpdateAll(ctx context.Context, reqs []Request) ([]*Result, error) {
	results := make([]*Result, 0, len(reqs))
	for _, req := range reqs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := u.Update(ctx, req)
		if err != nil {
			return results, fmt.Errorf("%s: %w", req.ConnectionName, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (u *Updater) checkLogin(ctx context.Context, record connections.Record, req Request) error {
	if u.checker == nil {
		return fmt.Errorf("verify login: no checker configured")
	}
	u.debug("Checking login for %s on %s", req.Username, record.Host())
	return u.checker.Check(ctx, verify.Target{
		Driver:   record.Driver(),
		Host:     record.Host(),
		Port:     record.Port(),
		Database: record.Database(),
		User:     req.Username,
		Password: req.Password,
		SSLMode:  u.settings.SSLMode,
	})
}

func (u *Updater) debug(format string, args ...interface{}) {
	if u.logger != nil {
		u.logger.Debug(format, args...)
	}
}

var placeholder = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// ExpandAccount fills {Field} placeholders in template from record. Every
// referenced field must exist and be non-empty.
func ExpandAccount(template string, record connections.Record) (string, error) {
	var missing string
	account := placeholder.ReplaceAllStringFunc(template, func(m string) string {
		key := m[1 : len(m)-1]
		v, ok := record.Field(key)
		if (!ok || v == "") && missing == "" {
			missing = key
		}
		return v
	})
	if missing != "" {
		return "", dserrors.ConfigError{
			Field:      "account_template",
			Value:      template,
			Message:    fmt.Sprintf("connection %q has no %s field", record.Name(), missing),
			Suggestion: "Use fields present in Connections.plist, e.g. {ID}_database",
		}
	}
	if account == "" {
		return "", dserrors.ConfigError{
			Field:   "account_template",
			Message: "expands to an empty account name",
		}
	}
	return account, nil
}
