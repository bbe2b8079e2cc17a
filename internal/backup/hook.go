package backup

import (
	"context"
	"sync"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/snapshot"
)

// Hooks lets other subsystems extend exports and react to mutations.
// Registration is safe for concurrent use; hooks run in registration order.
type Hooks struct {
	mu           sync.RWMutex
	beforeExport []func(context.Context, *snapshot.Snapshot) error
	afterImport  []func(context.Context, *snapshot.Snapshot)
	afterReset   []func(context.Context)
	afterRestore []func(context.Context, *snapshot.Snapshot)
}

// OnBeforeExport registers fn to run on a manual snapshot before it is
// encoded. fn may add entries to Domains.Extra; an error aborts the export.
func (h *Hooks) OnBeforeExport(fn func(context.Context, *snapshot.Snapshot) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.beforeExport = append(h.beforeExport, fn)
}

// OnAfterImport registers fn to run with the decoded snapshot after an import.
func (h *Hooks) OnAfterImport(fn func(context.Context, *snapshot.Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterImport = append(h.afterImport, fn)
}

// OnAfterReset registers fn to run after a reset.
func (h *Hooks) OnAfterReset(fn func(context.Context)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterReset = append(h.afterReset, fn)
}

// OnAfterRestore registers fn to run with the restored snapshot, for example
// to invalidate a presentation cache.
func (h *Hooks) OnAfterRestore(fn func(context.Context, *snapshot.Snapshot)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.afterRestore = append(h.afterRestore, fn)
}

func (h *Hooks) runBeforeExport(ctx context.Context, s *snapshot.Snapshot) error {
	h.mu.RLock()
	fns := h.beforeExport
	h.mu.RUnlock()
	for _, fn := range fns {
		if err := fn(ctx, s); err != nil {
			return errors.Wrap(err, "before-export hook")
		}
	}
	return nil
}

func (h *Hooks) runAfterImport(ctx context.Context, s *snapshot.Snapshot) {
	h.mu.RLock()
	fns := h.afterImport
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, s)
	}
}

func (h *Hooks) runAfterReset(ctx context.Context) {
	h.mu.RLock()
	fns := h.afterReset
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx)
	}
}

func (h *Hooks) runAfterRestore(ctx context.Context, s *snapshot.Snapshot) {
	h.mu.RLock()
	fns := h.afterRestore
	h.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, s)
	}
}

// Trigger takes automatic snapshots on behalf of lifecycle events.
type Trigger struct {
	manager *Manager

	mu       sync.Mutex
	upgrades map[string]*upgradeCapture
}

// upgradeCapture holds the outcome of the before_upgrade capture for one
// target version, shared by every caller that waited on it.
type upgradeCapture struct {
	once sync.Once
	snap *snapshot.Snapshot
	err  error
}

// NewTrigger returns a Trigger that captures through m.
func NewTrigger(m *Manager) *Trigger {
	return &Trigger{
		manager:  m,
		upgrades: make(map[string]*upgradeCapture),
	}
}

// BeforeUpgrade ledgers a before_upgrade snapshot the first time it is
// called for targetVersion. Later calls for the same version are no-ops
// returning nil. A failed capture is forgotten so the caller can retry.
//
// Safe for concurrent use: concurrent callers for one version share a single
// capture and all observe its result, including its error.
func (t *Trigger) BeforeUpgrade(ctx context.Context, targetVersion string) (*snapshot.Snapshot, error) {
	t.mu.Lock()
	c, exists := t.upgrades[targetVersion]
	if !exists {
		c = &upgradeCapture{}
		t.upgrades[targetVersion] = c
	}
	t.mu.Unlock()

	ran := false
	c.once.Do(func() {
		ran = true
		c.snap, c.err = t.manager.Capture(ctx, snapshot.ReasonBeforeUpgrade)
		if c.err != nil {
			t.forget(targetVersion, c)
		}
	})

	if c.err != nil {
		return nil, errors.Wrapf(c.err, "capturing snapshot before upgrade to %s", targetVersion)
	}
	if !ran {
		return nil, nil
	}
	return c.snap, nil
}

// Forget clears the state for targetVersion so the next BeforeUpgrade
// captures again.
func (t *Trigger) Forget(targetVersion string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.upgrades, targetVersion)
}

// forget drops c only if it is still the current capture for targetVersion.
func (t *Trigger) forget(targetVersion string, c *upgradeCapture) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.upgrades[targetVersion] == c {
		delete(t.upgrades, targetVersion)
	}
}
