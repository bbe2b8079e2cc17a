package ledger

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/logging"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

// Defaults for the ledger key and its two capacity policies.
const (
	DefaultKey                  = "config_snapshot_history"
	DefaultRetention            = 5
	DefaultMaintenanceRetention = 10
)

// ErrNotFound indicates a ledger index that does not exist.
var ErrNotFound = errors.New("snapshot not found in history")

// Ledger is the bounded, oldest-first history of automatic snapshots,
// stored as a single value. Append and MaintenanceTrim are unguarded
// read-modify-write cycles: concurrent writers are last-writer-wins.
type Ledger struct {
	store                store.Store
	key                  string
	retention            int
	maintenanceRetention int
	logger               *slog.Logger
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithKey sets the store key holding the ledger.
func WithKey(key string) Option {
	return func(l *Ledger) {
		if key != "" {
			l.key = key
		}
	}
}

// WithRetention sets how many entries survive each Append.
func WithRetention(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.retention = n
		}
	}
}

// WithMaintenanceRetention sets how many entries survive MaintenanceTrim.
func WithMaintenanceRetention(n int) Option {
	return func(l *Ledger) {
		if n > 0 {
			l.maintenanceRetention = n
		}
	}
}

// WithLogger sets the logger. The default discards output.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New returns a Ledger persisted in s.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:                s,
		key:                  DefaultKey,
		retention:            DefaultRetention,
		maintenanceRetention: DefaultMaintenanceRetention,
		logger:               logging.NewDiscard(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Retention returns the append-time capacity.
func (l *Ledger) Retention() int { return l.retention }

// MaintenanceRetention returns the maintenance capacity.
func (l *Ledger) MaintenanceRetention() int { return l.maintenanceRetention }

// Append adds s as the newest entry, then evicts the oldest entries until
// at most Retention remain.
func (l *Ledger) Append(ctx context.Context, s *snapshot.Snapshot) error {
	entries, err := l.load(ctx)
	if err != nil {
		return err
	}

	raw, err := encodeEntry(s)
	if err != nil {
		return err
	}
	entries = append(entries, raw)
	entries, evicted := retainLast(entries, l.retention)

	if err := l.save(ctx, entries); err != nil {
		return err
	}
	l.logger.Debug("appended snapshot to history",
		"reason", s.Reason,
		"entries", len(entries),
		"evicted", evicted)
	return nil
}

// List returns the ledger oldest-first. Entries that no longer decode are
// skipped with a warning, so indices match Len only when none are skipped.
func (l *Ledger) List(ctx context.Context) ([]*snapshot.Snapshot, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*snapshot.Snapshot, 0, len(entries))
	for i, raw := range entries {
		s, err := snapshot.Decode(raw)
		if err != nil {
			l.logger.Warn("skipping unreadable history entry", "position", i, "error", err)
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// At returns the entry at index of List, reading the ledger as it is now.
func (l *Ledger) At(ctx context.Context, index int) (*snapshot.Snapshot, error) {
	list, err := l.List(ctx)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(list) {
		return nil, errors.Wrapf(ErrNotFound, "index %d (history has %d entries)", index, len(list))
	}
	return list[index], nil
}

// MaintenanceTrim evicts the oldest entries beyond MaintenanceRetention and
// returns how many were removed. It writes only when something was removed.
func (l *Ledger) MaintenanceTrim(ctx context.Context) (int, error) {
	entries, err := l.load(ctx)
	if err != nil {
		return 0, err
	}
	entries, removed := retainLast(entries, l.maintenanceRetention)
	if removed == 0 {
		return 0, nil
	}
	if err := l.save(ctx, entries); err != nil {
		return 0, err
	}
	l.logger.Info("trimmed snapshot history", "removed", removed, "entries", len(entries))
	return removed, nil
}

func (l *Ledger) load(ctx context.Context) ([]json.RawMessage, error) {
	v, ok, err := l.store.Get(ctx, l.key)
	if err != nil {
		return nil, errors.Wrap(err, "reading snapshot history")
	}
	if !ok || v == nil {
		return nil, nil
	}
	list, isList := v.([]any)
	if !isList {
		l.logger.Warn("snapshot history has unexpected shape; starting fresh", "key", l.key)
		return nil, nil
	}
	entries := make([]json.RawMessage, 0, len(list))
	for _, item := range list {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, errors.Wrap(err, "re-encoding history entry")
		}
		entries = append(entries, raw)
	}
	return entries, nil
}

func (l *Ledger) save(ctx context.Context, entries []json.RawMessage) error {
	if entries == nil {
		entries = []json.RawMessage{}
	}
	return errors.Wrap(l.store.Set(ctx, l.key, entries), "writing snapshot history")
}

func encodeEntry(s *snapshot.Snapshot) (json.RawMessage, error) {
	data, err := snapshot.Encode(s)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

// retainLast keeps the newest n entries and reports how many were dropped.
func retainLast(entries []json.RawMessage, n int) ([]json.RawMessage, int) {
	if len(entries) <= n {
		return entries, 0
	}
	drop := len(entries) - n
	return entries[drop:], drop
}
