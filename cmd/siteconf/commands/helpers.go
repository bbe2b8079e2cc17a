package commands

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/fatih/color"

	"github.com/thoreinstein/siteconf/cmd"
	"github.com/thoreinstein/siteconf/internal/accessor"
	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
	"github.com/thoreinstein/siteconf/internal/ledger"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

// Colors for command output.
var (
	headerColor = color.New(color.Bold)
	indexColor  = color.New(color.FgGreen)
	passColor   = color.New(color.FgGreen)
	infoColor   = color.New(color.FgCyan)
)

// paint colors s when w is a terminal that accepts color and returns it
// unchanged otherwise.
func paint(w io.Writer, c *color.Color, s string) string {
	if !logging.SupportsColor(w) {
		return s
	}
	return c.Sprint(s)
}

// currentConfig returns the loaded configuration, or defaults when
// initConfig has not run.
func currentConfig() *config.Config {
	if appConfig != nil {
		return appConfig
	}
	return config.Default()
}

// session bundles the store, signer and manager one command works with.
type session struct {
	cfg     *config.Config
	store   store.Backend
	signer  *guard.Signer
	manager *backup.Manager
	logger  *slog.Logger
}

// openSession opens the configured store and builds a manager over it.
// The local operator is authorized as administrator, but every operation
// still presents a freshly issued action token.
func openSession(ctx context.Context) (*session, error) {
	cfg := currentConfig()
	logger := logging.FromContext(ctx)

	path := cfg.StorePath()
	if storePath != "" {
		path = storePath
	}

	signer, err := newSigner(cfg)
	if err != nil {
		return nil, err
	}

	backend, err := store.Open(ctx, cfg.Store.Driver, path)
	if err != nil {
		return nil, errors.NewSystemError(
			errors.Wrapf(err, "opening %s store", cfg.Store.Driver),
			"Check store.driver and store.path, or pass --store")
	}
	logger.Debug("store opened", "driver", cfg.Store.Driver, "path", path)

	accOpts := []accessor.Option{accessor.WithLogger(logger)}
	if cfg.Reset.Legacy {
		accOpts = append(accOpts, accessor.WithLegacyReset())
	}

	mgr := backup.NewManager(backend,
		backup.WithLedger(ledger.New(backend,
			ledger.WithKey(cfg.Ledger.Key),
			ledger.WithRetention(cfg.Ledger.Retention),
			ledger.WithMaintenanceRetention(cfg.Ledger.MaintenanceRetention),
			ledger.WithLogger(logger),
		)),
		backup.WithAccessors(accessor.New(backend, accOpts...)),
		backup.WithAuthorizer(guard.LocalOperator()),
		backup.WithTokens(signer),
		backup.WithVersion(cmd.Version),
		backup.WithSiteIdentifier(cfg.Site.Identifier),
		backup.WithLogger(logger),
	)

	return &session{
		cfg:     cfg,
		store:   backend,
		signer:  signer,
		manager: mgr,
		logger:  logger,
	}, nil
}

// Close releases the store.
func (s *session) Close() error {
	return s.store.Close()
}

// token issues a single-use token for action.
func (s *session) token(action string) (string, error) {
	tok, err := s.signer.IssueToken(action)
	if err != nil {
		return "", errors.NewSystemError(errors.Wrapf(err, "issuing %s token", action), "")
	}
	return tok, nil
}

// newSigner builds a signer from security.secret. Without a configured
// secret an ephemeral one is generated; tokens it issues are only good
// within this process.
func newSigner(cfg *config.Config) (*guard.Signer, error) {
	secret := cfg.Security.Secret
	if secret == "" {
		generated, err := guard.GenerateSecret()
		if err != nil {
			return nil, errors.NewSystemError(err, "")
		}
		secret = generated
	}

	signer, err := guard.NewSigner([]byte(secret), guard.WithTokenTTL(cfg.Security.TokenTTL))
	if err != nil {
		return nil, errors.NewConfigError(errors.Wrap(err, "security.secret"))
	}
	return signer, nil
}

// requireSecret fails unless security.secret is configured.
func requireSecret(cfg *config.Config) error {
	if cfg.Security.Secret != "" {
		return nil
	}
	return errors.NewUserError(
		errors.New("security.secret is not configured"),
		"Run 'siteconf config init' or set SITECONF_SECURITY_SECRET")
}

// operationError maps a manager failure to an exit error with a suggestion.
func operationError(err error) error {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return errors.NewUserError(err, "Run 'siteconf history list' to see valid indexes")
	case errors.Is(err, backup.ErrUpload), errors.Is(err, backup.ErrFormat):
		return errors.NewUserError(err, "Provide a .json file written by 'siteconf export'")
	case errors.Is(err, snapshot.ErrDecode), errors.Is(err, snapshot.ErrSchema), errors.Is(err, snapshot.ErrShape):
		return errors.NewUserError(err, "The file is not a valid configuration snapshot")
	case errors.Is(err, guard.ErrUnauthorized), errors.Is(err, guard.ErrReplayToken):
		return errors.NewUserError(err, "")
	default:
		return errors.NewSystemError(err, "")
	}
}

// domainList renders domain names for output.
func domainList(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
