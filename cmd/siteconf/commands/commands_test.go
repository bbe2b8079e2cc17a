package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/siteconf/internal/backup"
	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/ledger"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

// useTestConfig points the commands at a fresh file store for the test.
func useTestConfig(t *testing.T, mutate ...func(*config.Config)) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.Store.Driver = store.DriverFile
	cfg.Store.Path = filepath.Join(t.TempDir(), "site.json")
	cfg.Site.Identifier = "https://example.test"
	for _, fn := range mutate {
		fn(cfg)
	}

	origConfig, origStore := appConfig, storePath
	appConfig, storePath = cfg, ""
	t.Cleanup(func() {
		appConfig, storePath = origConfig, origStore
	})
	return cfg
}

// withStore runs fn against the test store and closes it afterwards.
func withStore(t *testing.T, cfg *config.Config, fn func(ctx context.Context, s store.Store)) {
	t.Helper()
	ctx := t.Context()
	s, err := store.Open(ctx, cfg.Store.Driver, cfg.StorePath())
	require.NoError(t, err)
	defer s.Close()
	fn(ctx, s)
}

func seedSite(t *testing.T, cfg *config.Config, color string) {
	t.Helper()
	withStore(t, cfg, func(ctx context.Context, s store.Store) {
		require.NoError(t, s.Set(ctx, store.CustomizationKey("accent_color"), color))
		require.NoError(t, s.Set(ctx, "nav_menu_locations", map[string]any{"primary": 7}))
	})
}

func accentColor(t *testing.T, cfg *config.Config) (any, bool) {
	t.Helper()
	var (
		v  any
		ok bool
	)
	withStore(t, cfg, func(ctx context.Context, s store.Store) {
		var err error
		v, ok, err = s.Get(ctx, store.CustomizationKey("accent_color"))
		require.NoError(t, err)
	})
	return v, ok
}

func historyOf(t *testing.T, cfg *config.Config) []*snapshot.Snapshot {
	t.Helper()
	var history []*snapshot.Snapshot
	withStore(t, cfg, func(ctx context.Context, s store.Store) {
		var err error
		history, err = ledger.New(s, ledger.WithKey(cfg.Ledger.Key)).List(ctx)
		require.NoError(t, err)
	})
	return history
}

func requireExitCode(t *testing.T, err error, code int) {
	t.Helper()
	require.Error(t, err)
	var exitErr *errors.ExitError
	require.True(t, errors.As(err, &exitErr), "expected ExitError, got %T: %v", err, err)
	assert.Equal(t, code, exitErr.Code)
}

// exportTo exports the current configuration into dir and returns the file.
func exportTo(t *testing.T, dir string) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, runExportWithWriter(t.Context(), &buf, dir))

	matches, err := filepath.Glob(filepath.Join(dir, "config-snapshot-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	return matches[0]
}

func TestExport_WritesSnapshotFile(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")

	dir := filepath.Join(t.TempDir(), "exports")
	var buf bytes.Buffer
	require.NoError(t, runExportWithWriter(t.Context(), &buf, dir))

	matches, err := filepath.Glob(filepath.Join(dir, "config-snapshot-*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Contains(t, buf.String(), "Exported")
	assert.Contains(t, buf.String(), matches[0])

	info, err := os.Stat(matches[0])
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	snap, err := snapshot.Decode(data)
	require.NoError(t, err)
	assert.Equal(t, snapshot.ReasonManual, snap.Reason)
	assert.Equal(t, "https://example.test", snap.OriginSiteIdentifier)
	assert.Equal(t, "#336699", snap.Domains.CustomizationValues["accent_color"])
	assert.Equal(t, map[string]string{"primary": "7"}, snap.Domains.MenuAssignments)

	assert.Empty(t, historyOf(t, cfg), "export must not record history")
}

func TestImport_AppliesAndRecordsBackup(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")
	file := exportTo(t, t.TempDir())

	seedSite(t, cfg, "#ff0000")

	var buf bytes.Buffer
	require.NoError(t, runImportWithWriter(t.Context(), &buf, file, false))
	assert.Contains(t, buf.String(), "Imported")
	assert.Contains(t, buf.String(), "saved to history")

	v, ok := accentColor(t, cfg)
	require.True(t, ok)
	assert.Equal(t, "#336699", v)

	history := historyOf(t, cfg)
	require.Len(t, history, 1)
	assert.Equal(t, snapshot.ReasonBeforeImport, history[0].Reason)
	assert.Equal(t, "#ff0000", history[0].Domains.CustomizationValues["accent_color"])
}

func TestImport_NoBackup(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")
	file := exportTo(t, t.TempDir())

	var buf bytes.Buffer
	require.NoError(t, runImportWithWriter(t.Context(), &buf, file, true))
	assert.NotContains(t, buf.String(), "saved to history")
	assert.Empty(t, historyOf(t, cfg))
}

func TestImport_Rejections(t *testing.T) {
	dir := t.TempDir()
	textFile := filepath.Join(dir, "snapshot.txt")
	require.NoError(t, os.WriteFile(textFile, []byte(`{"domains":{}}`), 0o600))
	garbage := filepath.Join(dir, "garbage.json")
	require.NoError(t, os.WriteFile(garbage, []byte(`not json`), 0o600))
	badShape := filepath.Join(dir, "shape.json")
	require.NoError(t, os.WriteFile(badShape, []byte(`{"domains":{"menuAssignments":[1,2]}}`), 0o600))

	tests := []struct {
		name   string
		path   string
		target error
	}{
		{"missing file", filepath.Join(dir, "missing.json"), backup.ErrUpload},
		{"not json by name", textFile, backup.ErrFormat},
		{"undecodable", garbage, snapshot.ErrDecode},
		{"wrong domain shape", badShape, snapshot.ErrShape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := useTestConfig(t)
			seedSite(t, cfg, "#336699")

			err := runImportWithWriter(t.Context(), &bytes.Buffer{}, tt.path, false)
			requireExitCode(t, err, errors.ExitUser)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)

			v, _ := accentColor(t, cfg)
			assert.Equal(t, "#336699", v, "rejected import must not write")
			assert.Empty(t, historyOf(t, cfg), "rejected import must not record history")
		})
	}
}

func TestReset_DeclinedPrompt(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")

	var buf bytes.Buffer
	err := runResetWithIO(t.Context(), &buf, strings.NewReader("n\n"), false, false)
	requireExitCode(t, err, errors.ExitUser)
	assert.True(t, errors.Is(err, errors.ErrConfirmationRequired))
	assert.Contains(t, buf.String(), "Continue? [y/N]")

	_, ok := accentColor(t, cfg)
	assert.True(t, ok)
}

func TestReset_ConfirmedPrompt(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")

	var buf bytes.Buffer
	require.NoError(t, runResetWithIO(t.Context(), &buf, strings.NewReader("yes\n"), false, false))
	assert.Contains(t, buf.String(), "reset to defaults")

	_, ok := accentColor(t, cfg)
	assert.False(t, ok)

	history := historyOf(t, cfg)
	require.Len(t, history, 1)
	assert.Equal(t, snapshot.ReasonBeforeReset, history[0].Reason)
}

func TestReset_ForceNoBackup(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")

	var buf bytes.Buffer
	require.NoError(t, runResetWithIO(t.Context(), &buf, strings.NewReader(""), true, true))
	assert.NotContains(t, buf.String(), "Continue?")

	_, ok := accentColor(t, cfg)
	assert.False(t, ok)
	assert.Empty(t, historyOf(t, cfg))
}

func TestHistoryList_Empty(t *testing.T) {
	useTestConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runHistoryListWithWriter(t.Context(), &buf, false))
	assert.Contains(t, buf.String(), "No snapshots recorded")
}

func TestHistoryList_Tabular(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))

	var buf bytes.Buffer
	require.NoError(t, runHistoryListWithWriter(t.Context(), &buf, false))
	out := buf.String()
	assert.Contains(t, out, "INDEX")
	assert.Contains(t, out, "manual")
	assert.Contains(t, out, snapshot.DomainCustomizationValues)
	assert.NotContains(t, out, "\x1b[", "no color codes when not writing to a terminal")
}

func TestPaint_PlainForNonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.Equal(t, "INDEX", paint(&buf, headerColor, "INDEX"))
	assert.Equal(t, "✓", paint(&buf, passColor, "✓"))
}

func TestHistoryList_JSON(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#336699")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, "manual"))
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, "before_upgrade"))

	var buf bytes.Buffer
	require.NoError(t, runHistoryListWithWriter(t.Context(), &buf, true))

	var entries []historyEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, 0, entries[0].Index)
	assert.Equal(t, "manual", entries[0].Reason)
	assert.Equal(t, 1, entries[1].Index)
	assert.Equal(t, "before_upgrade", entries[1].Reason)
	assert.Contains(t, entries[1].Domains, snapshot.DomainMenuAssignments)
}

func TestHistoryCapture_RespectsRetention(t *testing.T) {
	cfg := useTestConfig(t, func(c *config.Config) { c.Ledger.Retention = 2 })
	seedSite(t, cfg, "#336699")

	for range 4 {
		require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	}
	assert.Len(t, historyOf(t, cfg), 2)
}

func TestHistoryTrim(t *testing.T) {
	cfg := useTestConfig(t, func(c *config.Config) { c.Ledger.Retention = 4 })
	seedSite(t, cfg, "#336699")
	for range 4 {
		require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	}

	cfg.Ledger.MaintenanceRetention = 1
	var buf bytes.Buffer
	require.NoError(t, runHistoryTrimWithWriter(t.Context(), &buf))
	assert.Contains(t, buf.String(), "Removed 3 snapshot(s)")
	assert.Len(t, historyOf(t, cfg), 1)
}

func TestHistoryRestore_ByIndex(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#111111")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	seedSite(t, cfg, "#222222")

	var buf bytes.Buffer
	noPicker := func([]*snapshot.Snapshot) (int, error) {
		t.Fatal("picker must not run when an index is given")
		return 0, nil
	}
	require.NoError(t, runHistoryRestoreWithWriter(t.Context(), &buf, []string{"0"}, noPicker))
	assert.Contains(t, buf.String(), "Restored snapshot 0")

	v, _ := accentColor(t, cfg)
	assert.Equal(t, "#111111", v)

	history := historyOf(t, cfg)
	require.Len(t, history, 2)
	assert.Equal(t, snapshot.ReasonBeforeRestore, history[1].Reason)
	assert.Equal(t, "#222222", history[1].Domains.CustomizationValues["accent_color"])
}

func TestHistoryRestore_InvalidIndex(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#111111")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))

	for _, index := range []string{"1", "-1", "abc", "0x0"} {
		t.Run(index, func(t *testing.T) {
			err := runHistoryRestoreWithWriter(t.Context(), &bytes.Buffer{}, []string{index}, nil)
			requireExitCode(t, err, errors.ExitUser)
			assert.True(t, errors.Is(err, ledger.ErrNotFound))
			assert.Len(t, historyOf(t, cfg), 1, "failed restore must not record history")
		})
	}
}

func TestHistoryRestore_Picker(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#111111")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	seedSite(t, cfg, "#222222")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	seedSite(t, cfg, "#333333")

	var offered int
	pickOldest := func(history []*snapshot.Snapshot) (int, error) {
		offered = len(history)
		return 0, nil
	}

	require.NoError(t, runHistoryRestoreWithWriter(t.Context(), &bytes.Buffer{}, nil, pickOldest))
	assert.Equal(t, 2, offered)

	v, _ := accentColor(t, cfg)
	assert.Equal(t, "#111111", v)
}

func TestHistoryRestore_PickerCancelled(t *testing.T) {
	cfg := useTestConfig(t)
	seedSite(t, cfg, "#111111")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))
	seedSite(t, cfg, "#222222")

	cancel := func([]*snapshot.Snapshot) (int, error) { return 0, errRestoreCancelled }

	var buf bytes.Buffer
	require.NoError(t, runHistoryRestoreWithWriter(t.Context(), &buf, nil, cancel))
	assert.Contains(t, buf.String(), "Restore cancelled")

	v, _ := accentColor(t, cfg)
	assert.Equal(t, "#222222", v)
	assert.Len(t, historyOf(t, cfg), 1)
}

func TestHistoryRestore_EmptyHistory(t *testing.T) {
	useTestConfig(t)

	var buf bytes.Buffer
	require.NoError(t, runHistoryRestoreWithWriter(t.Context(), &buf, nil, nil))
	assert.Contains(t, buf.String(), "No snapshots recorded")
}

func TestStoreFlagOverridesConfig(t *testing.T) {
	cfg := useTestConfig(t)
	override := filepath.Join(t.TempDir(), "override.json")
	storePath = override

	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))

	_, err := os.Stat(override)
	require.NoError(t, err)
	_, err = os.Stat(cfg.StorePath())
	assert.True(t, os.IsNotExist(err))
}

func TestCaptureBeforeUpgrade(t *testing.T) {
	ctx := t.Context()
	s := store.NewMemory()
	older := backup.NewManager(s, backup.WithVersion("1.0.0"))
	newer := backup.NewManager(s, backup.WithVersion("2.0.0"))

	snap, err := captureBeforeUpgrade(ctx, newer, "2.0.0")
	require.NoError(t, err)
	assert.Nil(t, snap, "fresh install records nothing")

	_, err = older.Capture(ctx, snapshot.ReasonManual)
	require.NoError(t, err)

	snap, err = captureBeforeUpgrade(ctx, newer, "2.0.0")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, snapshot.ReasonBeforeUpgrade, snap.Reason)

	snap, err = captureBeforeUpgrade(ctx, newer, "2.0.0")
	require.NoError(t, err)
	assert.Nil(t, snap, "already on this version")

	history, err := newer.History(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestOperationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"not found", errors.Wrap(ledger.ErrNotFound, "index 9"), errors.ExitUser},
		{"upload", backup.ErrUpload, errors.ExitUser},
		{"format", backup.ErrFormat, errors.ExitUser},
		{"decode", snapshot.ErrDecode, errors.ExitUser},
		{"schema", snapshot.ErrSchema, errors.ExitUser},
		{"other", errors.New("disk full"), errors.ExitSystem},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := operationError(tt.err)
			requireExitCode(t, err, tt.code)
			assert.True(t, errors.Is(err, tt.err))
		})
	}
}
