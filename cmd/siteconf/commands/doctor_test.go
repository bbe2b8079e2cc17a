package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/errors"
)

func TestDoctor_Healthy(t *testing.T) {
	cfg := useTestConfig(t, withSecret)
	seedSite(t, cfg, "#336699")
	require.NoError(t, runHistoryCaptureWithWriter(t.Context(), &bytes.Buffer{}, ""))

	var buf bytes.Buffer
	opts := doctorOptions{All: true, ConfigFile: filepath.Join(t.TempDir(), "config.yaml")}
	require.NoError(t, runDoctorWithWriter(t.Context(), &buf, opts))

	out := buf.String()
	assert.Contains(t, out, "store-readable")
	assert.Contains(t, out, "history-entries")
	assert.Contains(t, out, "0 warnings, 0 errors")
	assert.Contains(t, out, "✓")
	assert.NotContains(t, out, "\x1b[")
}

func TestDoctor_MissingSecretWarns(t *testing.T) {
	useTestConfig(t)

	var buf bytes.Buffer
	err := runDoctorWithWriter(t.Context(), &buf, doctorOptions{ConfigFile: filepath.Join(t.TempDir(), "c.yaml")})
	requireExitCode(t, err, errors.ExitUser)
	assert.True(t, errors.Is(err, errDoctorWarnings))
	assert.Contains(t, buf.String(), "signing-secret")
	assert.Contains(t, buf.String(), "hint:")
}

func TestDoctor_InvalidConfigErrors(t *testing.T) {
	useTestConfig(t, withSecret, func(c *config.Config) { c.Store.Driver = "postgres" })

	var buf bytes.Buffer
	err := runDoctorWithWriter(t.Context(), &buf, doctorOptions{JSON: true, ConfigFile: filepath.Join(t.TempDir(), "c.yaml")})
	requireExitCode(t, err, errors.ExitSystem)

	var report struct {
		Results []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"results"`
		Summary struct {
			Errors int `json:"errors"`
		} `json:"summary"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &report))
	assert.Equal(t, 2, report.Summary.Errors, "config and store checks should both fail")

	statuses := map[string]string{}
	for _, r := range report.Results {
		statuses[r.Name] = r.Status
	}
	assert.Equal(t, "error", statuses["config-valid"])
	assert.Equal(t, "error", statuses["store-readable"])
}

func TestDoctor_FixPermissions(t *testing.T) {
	cfg := useTestConfig(t, withSecret)
	seedSite(t, cfg, "#336699")
	require.NoError(t, os.Chmod(cfg.Store.Path, 0o644))

	var buf bytes.Buffer
	opts := doctorOptions{Fix: true, ConfigFile: filepath.Join(t.TempDir(), "c.yaml")}
	require.NoError(t, runDoctorWithWriter(t.Context(), &buf, opts))
	assert.Contains(t, buf.String(), "fixed: "+cfg.Store.Path)

	info, err := os.Stat(cfg.Store.Path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
