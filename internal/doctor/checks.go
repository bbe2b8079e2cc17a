package doctor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/thoreinstein/siteconf/internal/config"
	"github.com/thoreinstein/siteconf/internal/snapshot"
	"github.com/thoreinstein/siteconf/internal/store"
)

// ConfigCheck validates the effective configuration.
type ConfigCheck struct {
	cfg *config.Config
}

var _ Check = (*ConfigCheck)(nil)

// NewConfigCheck creates a check over cfg.
func NewConfigCheck(cfg *config.Config) *ConfigCheck {
	return &ConfigCheck{cfg: cfg}
}

// Name returns the unique identifier for this check.
func (c *ConfigCheck) Name() string { return "config-valid" }

// Category returns the grouping for this check.
func (c *ConfigCheck) Category() string { return "config" }

// Run validates every field and lists the failures.
func (c *ConfigCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	errs := config.Validate(c.cfg)
	if len(errs) == 0 {
		result.Status = SeverityPass
		result.Message = "configuration is valid"
		return result
	}

	problems := make([]string, len(errs))
	for i, err := range errs {
		problems[i] = err.Error()
	}
	result.Status = SeverityError
	result.Message = fmt.Sprintf("%d invalid configuration value(s)", len(errs))
	result.Details = map[string]any{"problems": problems}
	result.FixHint = "run 'siteconf config show' and correct the listed keys"
	return result
}

// SecretCheck reports whether a signing secret is configured.
type SecretCheck struct {
	cfg *config.Config
}

var _ Check = (*SecretCheck)(nil)

// NewSecretCheck creates a check over cfg.
func NewSecretCheck(cfg *config.Config) *SecretCheck {
	return &SecretCheck{cfg: cfg}
}

// Name returns the unique identifier for this check.
func (c *SecretCheck) Name() string { return "signing-secret" }

// Category returns the grouping for this check.
func (c *SecretCheck) Category() string { return "security" }

// Run reports a missing secret as a warning: local commands work without
// one, serve and token do not.
func (c *SecretCheck) Run(_ context.Context) *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}
	if c.cfg.Security.Secret == "" {
		result.Status = SeverityWarning
		result.Message = "security.secret is not set; serve and token are unavailable"
		result.FixHint = "run 'siteconf config init' or set SITECONF_SECURITY_SECRET"
		return result
	}
	result.Status = SeverityPass
	result.Message = "signing secret configured"
	return result
}

// StoreCheck verifies the store answers reads.
type StoreCheck struct {
	store   store.Store
	driver  string
	path    string
	openErr error
}

var _ Check = (*StoreCheck)(nil)

// NewStoreCheck creates a check over an open store.
func NewStoreCheck(s store.Store, driver, path string) *StoreCheck {
	return &StoreCheck{store: s, driver: driver, path: path}
}

// NewUnavailableStoreCheck reports a store that failed to open.
func NewUnavailableStoreCheck(driver, path string, err error) *StoreCheck {
	return &StoreCheck{driver: driver, path: path, openErr: err}
}

// Name returns the unique identifier for this check.
func (c *StoreCheck) Name() string { return "store-readable" }

// Category returns the grouping for this check.
func (c *StoreCheck) Category() string { return "store" }

// Run lists the customization values.
func (c *StoreCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Details:  map[string]any{"driver": c.driver},
	}
	if c.path != "" {
		result.Details["path"] = c.path
	}

	if c.openErr != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s store cannot be opened: %v", c.driver, c.openErr)
		result.FixHint = "check store.driver and store.path"
		return result
	}

	values, err := c.store.ListAll(ctx)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("%s store is not readable: %v", c.driver, err)
		result.FixHint = "check store.path or restore the store from a backup"
		return result
	}

	result.Details["customization_values"] = len(values)
	if c.driver == store.DriverMemory {
		result.Status = SeverityInfo
		result.Message = "memory store: nothing persists between runs"
		return result
	}
	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%s store holds %d customization value(s)", c.driver, len(values))
	return result
}

// HistoryCheck inspects the stored snapshot history.
type HistoryCheck struct {
	store                store.Store
	key                  string
	maintenanceRetention int
}

var _ Check = (*HistoryCheck)(nil)

// NewHistoryCheck creates a check of the ledger stored under key.
func NewHistoryCheck(s store.Store, key string, maintenanceRetention int) *HistoryCheck {
	return &HistoryCheck{store: s, key: key, maintenanceRetention: maintenanceRetention}
}

// Name returns the unique identifier for this check.
func (c *HistoryCheck) Name() string { return "history-entries" }

// Category returns the grouping for this check.
func (c *HistoryCheck) Category() string { return "history" }

// Run decodes every entry. Undecodable entries and a ledger longer than the
// maintenance retention are warnings; the ledger stays usable either way.
func (c *HistoryCheck) Run(ctx context.Context) *CheckResult {
	result := &CheckResult{Name: c.Name(), Category: c.Category()}

	v, ok, err := c.store.Get(ctx, c.key)
	if err != nil {
		result.Status = SeverityError
		result.Message = fmt.Sprintf("cannot read history: %v", err)
		return result
	}
	if !ok {
		result.Status = SeverityInfo
		result.Message = "no history recorded yet"
		return result
	}

	entries, isList := v.([]any)
	if !isList {
		result.Status = SeverityWarning
		result.Message = fmt.Sprintf("history under %q is not a list and will be replaced", c.key)
		result.FixHint = "run 'siteconf history capture' to start a fresh history"
		return result
	}

	var bad []int
	for i, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			bad = append(bad, i)
			continue
		}
		if _, err := snapshot.Decode(data); err != nil {
			bad = append(bad, i)
		}
	}

	result.Details = map[string]any{
		"entries":               len(entries),
		"maintenance_retention": c.maintenanceRetention,
	}

	var problems []string
	if len(bad) > 0 {
		result.Details["undecodable"] = bad
		problems = append(problems, fmt.Sprintf("%d undecodable entries are skipped", len(bad)))
	}
	if c.maintenanceRetention > 0 && len(entries) > c.maintenanceRetention {
		problems = append(problems, fmt.Sprintf("%d entries exceed the maintenance retention of %d",
			len(entries), c.maintenanceRetention))
		result.FixHint = "run 'siteconf history trim'"
	}

	if len(problems) > 0 {
		result.Status = SeverityWarning
		result.Message = strings.Join(problems, "; ")
		return result
	}
	result.Status = SeverityPass
	result.Message = fmt.Sprintf("%d history entries decode cleanly", len(entries))
	return result
}

// privateFilePerm is the most permissive mode accepted for files holding
// site configuration or the signing secret.
const privateFilePerm os.FileMode = 0o600

// privateDirPerm is the most permissive mode accepted for their directories.
const privateDirPerm os.FileMode = 0o700

// PermissionCheck verifies that the store and config files are private.
type PermissionCheck struct {
	PermissionFixer

	files []string
}

var _ Check = (*PermissionCheck)(nil)
var _ Fixer = (*PermissionCheck)(nil)

// NewPermissionCheck creates a check over files. Empty and missing paths
// are skipped; each file's parent directory is checked too.
func NewPermissionCheck(files ...string) *PermissionCheck {
	return &PermissionCheck{files: files}
}

// Name returns the unique identifier for this check.
func (c *PermissionCheck) Name() string { return "file-permissions" }

// Category returns the grouping for this check.
func (c *PermissionCheck) Category() string { return "filesystem" }

// pathIssue represents a single path or permission problem.
type pathIssue struct {
	Path        string
	Type        string // "file" or "directory"
	Problem     string
	Severity    Severity
	Permissions string
	Fixable     bool
	FixHint     string
}

// Run stats every path and records issues for Fix.
func (c *PermissionCheck) Run(_ context.Context) *CheckResult {
	var (
		issues  []pathIssue
		checked int
		seen    = make(map[string]bool)
	)

	for _, file := range c.files {
		if file == "" || seen[file] {
			continue
		}
		seen[file] = true

		info, err := os.Stat(file)
		if os.IsNotExist(err) {
			continue
		}
		checked++
		issues = append(issues, checkPath(file, "file", info, err, privateFilePerm)...)

		dir := filepath.Dir(file)
		if seen[dir] {
			continue
		}
		seen[dir] = true
		dirInfo, err := os.Stat(dir)
		checked++
		issues = append(issues, checkPath(dir, "directory", dirInfo, err, privateDirPerm)...)
	}

	c.setIssues(issues)
	return c.buildResult(issues, checked)
}

func checkPath(path, kind string, info os.FileInfo, err error, limit os.FileMode) []pathIssue {
	if err != nil {
		return []pathIssue{{
			Path:     path,
			Type:     kind,
			Problem:  fmt.Sprintf("cannot stat %s: %v", kind, err),
			Severity: SeverityError,
		}}
	}
	// Unix permissions don't apply on Windows
	if runtime.GOOS == "windows" {
		return nil
	}

	perm := info.Mode().Perm()
	if perm&^limit == 0 {
		return nil
	}

	problem := fmt.Sprintf("%s is accessible to other users (mode %s, expected %s or less)",
		kind, formatPermissions(perm), formatPermissions(limit))
	if perm&0o002 != 0 {
		problem = kind + " is world-writable (security risk)"
	}
	return []pathIssue{{
		Path:        path,
		Type:        kind,
		Problem:     problem,
		Severity:    SeverityWarning,
		Permissions: formatPermissions(perm),
		Fixable:     true,
		FixHint:     fmt.Sprintf("chmod %04o %s", limit, path),
	}}
}

// buildResult constructs the final CheckResult from accumulated issues.
func (c *PermissionCheck) buildResult(issues []pathIssue, checked int) *CheckResult {
	if len(issues) == 0 {
		return &CheckResult{
			Name:     c.Name(),
			Category: c.Category(),
			Status:   SeverityPass,
			Message:  fmt.Sprintf("all %d paths are private", checked),
		}
	}

	status := SeverityWarning
	details := make([]map[string]any, 0, len(issues))
	var hints []string
	fixable := false
	for _, issue := range issues {
		if issue.Severity == SeverityError {
			status = SeverityError
		}
		entry := map[string]any{
			"path":     issue.Path,
			"type":     issue.Type,
			"problem":  issue.Problem,
			"severity": issue.Severity.String(),
		}
		if issue.Permissions != "" {
			entry["permissions"] = issue.Permissions
		}
		details = append(details, entry)
		if issue.Fixable {
			fixable = true
			hints = append(hints, issue.FixHint)
		}
	}

	return &CheckResult{
		Name:     c.Name(),
		Category: c.Category(),
		Status:   status,
		Message:  fmt.Sprintf("found %d permission issue(s) across %d paths", len(issues), checked),
		Details: map[string]any{
			"checked_paths": checked,
			"issue_count":   len(issues),
			"issues":        details,
		},
		Fixable: fixable,
		FixHint: strings.Join(hints, "; "),
	}
}

// formatPermissions returns a human-readable permission string (e.g., "0600").
func formatPermissions(mode os.FileMode) string {
	return fmt.Sprintf("%04o", mode.Perm())
}
