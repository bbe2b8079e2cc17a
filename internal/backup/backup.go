package backup

import (
	"context"
	"log/slog"
	"mime"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/thoreinstein/siteconf/internal/accessor"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/guard"
	"github.com/thoreinstein/siteconf/internal/ledger"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
	"github.com/thoreinstein/siteconf/pkg/fileutil"
)

// Version is set at build time via ldflags and stamped into snapshots as
// their schema version unless WithVersion overrides it.
var Version = "dev"

// Manager runs the snapshot operations: Export, Import, Reset and Restore,
// plus the automatic captures that precede them.
type Manager struct {
	ledger     *ledger.Ledger
	accessors  *accessor.Accessors
	authorizer guard.Authorizer
	tokens     guard.TokenVerifier
	hooks      *Hooks
	version    string
	site       string
	now        func() time.Time
	logger     *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLedger sets the history ledger.
func WithLedger(l *ledger.Ledger) Option {
	return func(m *Manager) { m.ledger = l }
}

// WithAccessors sets the domain accessors.
func WithAccessors(a *accessor.Accessors) Option {
	return func(m *Manager) { m.accessors = a }
}

// WithAuthorizer sets the capability check run before every operation.
// The default requires guard.CapabilityAdmin on the context claims.
func WithAuthorizer(a guard.Authorizer) Option {
	return func(m *Manager) { m.authorizer = a }
}

// WithTokens sets the action token verifier. Without one every operation
// fails with guard.ErrReplayToken.
func WithTokens(v guard.TokenVerifier) Option {
	return func(m *Manager) { m.tokens = v }
}

// WithHooks shares a hook registry with the Manager.
func WithHooks(h *Hooks) Option {
	return func(m *Manager) {
		if h != nil {
			m.hooks = h
		}
	}
}

// WithVersion sets the schema version stamped into snapshots.
func WithVersion(v string) Option {
	return func(m *Manager) { m.version = v }
}

// WithSiteIdentifier sets the origin recorded in snapshots.
func WithSiteIdentifier(site string) Option {
	return func(m *Manager) { m.site = site }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager returns a Manager over s. Ledger and accessors default to
// their standard configuration on the same store.
func NewManager(s store.Store, opts ...Option) *Manager {
	m := &Manager{
		authorizer: guard.RequireAdmin(),
		hooks:      &Hooks{},
		version:    Version,
		now:        time.Now,
		logger:     logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.ledger == nil {
		m.ledger = ledger.New(s, ledger.WithLogger(m.logger))
	}
	if m.accessors == nil {
		m.accessors = accessor.New(s, accessor.WithLogger(m.logger))
	}
	return m
}

// Hooks returns the hook registry.
func (m *Manager) Hooks() *Hooks { return m.hooks }

// Ledger returns the history ledger.
func (m *Manager) Ledger() *ledger.Ledger { return m.ledger }

// Export builds a manual snapshot of the current configuration and hands
// the encoded file to d. The snapshot is not ledgered.
func (m *Manager) Export(ctx context.Context, req ExportRequest, d Delivery) (*snapshot.Snapshot, error) {
	if err := m.guard(ctx, ActionExport, req.Token); err != nil {
		return nil, err
	}

	snap, err := m.build(ctx, snapshot.ReasonManual)
	if err != nil {
		return nil, err
	}
	if err := m.hooks.runBeforeExport(ctx, snap); err != nil {
		return nil, err
	}

	data, err := snapshot.Encode(snap)
	if err != nil {
		return nil, err
	}
	filename := snapshot.ExportFilename(snap.Time())
	if err := d.Deliver(ctx, data, filename, snapshot.ContentType); err != nil {
		return nil, errors.Wrap(err, "delivering export")
	}

	m.logger.Info("exported configuration snapshot", "filename", filename, "bytes", len(data))
	return snap, nil
}

// Import decodes an uploaded snapshot and writes each domain it contains.
// Unless SkipBackup is set, the current configuration is ledgered first.
func (m *Manager) Import(ctx context.Context, req ImportRequest) (*ImportResult, error) {
	if err := m.guard(ctx, ActionImport, req.Token); err != nil {
		return nil, err
	}
	if err := validateUpload(req.Upload); err != nil {
		return nil, err
	}

	snap, err := snapshot.Decode(req.Upload.Data)
	if err != nil {
		if errors.Is(err, snapshot.ErrSchema) {
			err = errors.Mark(err, snapshot.ErrShape)
		}
		return nil, errors.Wrapf(err, "reading %s", uploadName(req.Upload))
	}

	result := &ImportResult{Snapshot: snap}
	if !req.SkipBackup {
		if result.Backup, err = m.Capture(ctx, snapshot.ReasonBeforeImport); err != nil {
			return nil, err
		}
	}

	result.Applied, err = m.accessors.Apply(ctx, snap.Domains)
	if err != nil {
		return result, errors.Wrap(err, "applying imported snapshot")
	}
	m.hooks.runAfterImport(ctx, snap)

	m.logger.Info("imported configuration snapshot",
		"file", uploadName(req.Upload),
		"domains", result.Applied,
		"backup", result.Backup != nil)
	return result, nil
}

// Reset restores every domain to its defaults. Unless SkipBackup is set,
// the current configuration is ledgered first.
func (m *Manager) Reset(ctx context.Context, req ResetRequest) (*ResetResult, error) {
	if err := m.guard(ctx, ActionReset, req.Token); err != nil {
		return nil, err
	}

	result := &ResetResult{}
	if !req.SkipBackup {
		var err error
		if result.Backup, err = m.Capture(ctx, snapshot.ReasonBeforeReset); err != nil {
			return nil, err
		}
	}

	if err := m.accessors.ResetAll(ctx); err != nil {
		return result, errors.Wrap(err, "resetting configuration")
	}
	m.hooks.runAfterReset(ctx)

	m.logger.Info("reset configuration", "backup", result.Backup != nil)
	return result, nil
}

// Restore validates the requested index and restores that ledger entry.
func (m *Manager) Restore(ctx context.Context, req RestoreRequest) (*RestoreResult, error) {
	if err := m.guard(ctx, ActionRestore, req.Token); err != nil {
		return nil, err
	}
	index, err := ParseIndex(req.Index)
	if err != nil {
		return nil, err
	}
	return m.RestoreIndex(ctx, index)
}

// RestoreIndex restores the ledger entry at index as the ledger stands when
// called. It ledgers a before_restore snapshot, writes every domain present
// in the target, then runs the after-restore hooks. The caller is
// responsible for authorization.
func (m *Manager) RestoreIndex(ctx context.Context, index int) (*RestoreResult, error) {
	target, err := m.ledger.At(ctx, index)
	if err != nil {
		return nil, err
	}

	result := &RestoreResult{Index: index, Target: target}
	if result.Backup, err = m.Capture(ctx, snapshot.ReasonBeforeRestore); err != nil {
		return nil, err
	}

	result.Applied, err = m.accessors.Apply(ctx, target.Domains)
	if err != nil {
		return result, errors.Wrap(err, "applying restored snapshot")
	}
	m.hooks.runAfterRestore(ctx, target)

	m.logger.Info("restored configuration snapshot",
		"index", index,
		"reason", target.Reason,
		"created_at", target.Time().Format(time.RFC3339))
	return result, nil
}

// Capture snapshots the current configuration for reason and appends it to
// the ledger.
func (m *Manager) Capture(ctx context.Context, reason snapshot.Reason) (*snapshot.Snapshot, error) {
	snap, err := m.build(ctx, reason)
	if err != nil {
		return nil, err
	}
	if err := m.ledger.Append(ctx, snap); err != nil {
		return nil, errors.Wrapf(err, "recording %s snapshot", reason)
	}
	return snap, nil
}

// History returns the ledger, oldest first.
func (m *Manager) History(ctx context.Context) ([]*snapshot.Snapshot, error) {
	return m.ledger.List(ctx)
}

// Trim runs the maintenance retention policy once.
func (m *Manager) Trim(ctx context.Context) (int, error) {
	return m.ledger.MaintenanceTrim(ctx)
}

// RunMaintenance trims the ledger immediately and then every interval
// until ctx is cancelled. Failures are logged, never returned.
func (m *Manager) RunMaintenance(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Trim(ctx); err != nil {
			m.logger.Error("snapshot history maintenance failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// ParseIndex validates an untrusted ledger index. Anything other than a
// plain non-negative decimal integer is reported as ledger.ErrNotFound.
func ParseIndex(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, errors.Wrap(ledger.ErrNotFound, "missing index")
	}
	for _, r := range raw {
		if r < '0' || r > '9' {
			return 0, errors.Wrapf(ledger.ErrNotFound, "invalid index %q", raw)
		}
	}
	index, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(ledger.ErrNotFound, "invalid index %q", raw)
	}
	return index, nil
}

func (m *Manager) guard(ctx context.Context, action, token string) error {
	if m.authorizer == nil || !m.authorizer.Authorize(ctx) {
		return errors.Wrapf(guard.ErrUnauthorized, "%s requires the %s capability", action, guard.CapabilityAdmin)
	}
	if m.tokens == nil {
		return errors.Wrap(guard.ErrReplayToken, "no token verifier configured")
	}
	return m.tokens.VerifyToken(token, action)
}

func (m *Manager) build(ctx context.Context, reason snapshot.Reason) (*snapshot.Snapshot, error) {
	domains, err := m.accessors.Capture(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration")
	}
	return snapshot.New(reason, domains,
		snapshot.WithSchemaVersion(m.version),
		snapshot.WithOrigin(m.site),
		snapshot.WithCreatedAt(m.now()),
	), nil
}

func validateUpload(u *Upload) error {
	if u == nil {
		return errors.Wrap(ErrUpload, "no file uploaded")
	}
	if u.TransportError != nil {
		return errors.Mark(errors.Wrap(u.TransportError, "receiving upload"), ErrUpload)
	}
	if len(u.Data) == 0 {
		return errors.Wrap(ErrUpload, "uploaded file is empty")
	}
	if len(u.Data) > fileutil.MaxFileSize {
		return errors.Wrapf(ErrUpload, "uploaded file exceeds %d bytes", fileutil.MaxFileSize)
	}
	if !isJSONFlavored(u.Filename, u.ContentType) {
		return errors.Wrapf(ErrFormat, "%s (%s)", uploadName(u), u.ContentType)
	}
	return nil
}

// isJSONFlavored accepts a .json filename or a JSON media type
// (application/json, text/json or any +json suffix).
func isJSONFlavored(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".json") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" ||
		mediaType == "text/json" ||
		strings.HasSuffix(mediaType, "+json")
}

func uploadName(u *Upload) string {
	if u.Filename == "" {
		return "upload"
	}
	return u.Filename
}
