package config

import (
	"io/fs"
	"path/filepath"
	"slices"
	"strings"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// Drivers lists the accepted store drivers.
var Drivers = []string{"sqlite", "file", "memory"}

// minSecretLen mirrors the signer's HS256 minimum.
const minSecretLen = 32

// Validation errors for configuration fields.
var (
	// ErrConfigNotFound indicates an explicitly requested config file is missing.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrVersionTooLow indicates the version field is below the minimum.
	ErrVersionTooLow = errors.New("version must be >= 1")

	// ErrInvalidDriver indicates an unrecognized store driver.
	ErrInvalidDriver = errors.New("invalid store driver")

	// ErrInvalidPath indicates a path value is malformed.
	ErrInvalidPath = errors.New("invalid path")

	// ErrInvalidRetention indicates a non-positive or inverted retention pair.
	ErrInvalidRetention = errors.New("invalid retention")

	// ErrInvalidDuration indicates a non-positive duration.
	ErrInvalidDuration = errors.New("duration must be positive")

	// ErrSecretTooShort indicates a signing secret below the HS256 minimum.
	ErrSecretTooShort = errors.Newf("secret must be at least %d bytes", minSecretLen)
)

// Validate checks a Config for validity.
// Returns nil if valid, or a slice of validation errors.
//
// An empty security.secret is valid here: commands that sign tokens
// generate an ephemeral one and the server refuses to start without it.
func Validate(cfg *Config) []error {
	if cfg == nil {
		return []error{errors.New("config is nil")}
	}

	var errs []error

	if cfg.Version < 1 {
		errs = append(errs, ErrVersionTooLow)
	}

	if !slices.Contains(Drivers, cfg.Store.Driver) {
		errs = append(errs, &FieldError{
			Field: "store.driver",
			Value: cfg.Store.Driver,
			Err:   ErrInvalidDriver,
		})
	}

	if cfg.Store.Path != "" {
		if err := validatePath(cfg.Store.Path); err != nil {
			errs = append(errs, &FieldError{
				Field: "store.path",
				Value: cfg.Store.Path,
				Err:   err,
			})
		}
	}

	if cfg.Ledger.Retention < 1 {
		errs = append(errs, &FieldError{
			Field: "ledger.retention",
			Err:   errors.Wrap(ErrInvalidRetention, "must be >= 1"),
		})
	}
	if cfg.Ledger.MaintenanceRetention < cfg.Ledger.Retention {
		errs = append(errs, &FieldError{
			Field: "ledger.maintenance_retention",
			Err:   errors.Wrap(ErrInvalidRetention, "must be >= ledger.retention"),
		})
	}

	if cfg.Maintenance.Interval <= 0 {
		errs = append(errs, &FieldError{Field: "maintenance.interval", Err: ErrInvalidDuration})
	}
	if cfg.Security.TokenTTL <= 0 {
		errs = append(errs, &FieldError{Field: "security.token_ttl", Err: ErrInvalidDuration})
	}
	if cfg.Security.Secret != "" && len(cfg.Security.Secret) < minSecretLen {
		errs = append(errs, &FieldError{Field: "security.secret", Err: ErrSecretTooShort})
	}

	return errs
}

// validatePath checks if a path string is well-formed.
// It does not check if the path exists, only that it's syntactically valid.
func validatePath(path string) error {
	if strings.ContainsRune(path, '\x00') {
		return ErrInvalidPath
	}
	cleaned := filepath.Clean(path)
	if cleaned == "" || cleaned == "." {
		return ErrInvalidPath
	}
	return nil
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

// FieldError represents an error for a specific configuration key.
type FieldError struct {
	Field string
	Value string
	Err   error
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return e.Field + ": " + e.Err.Error()
	}
	return e.Field + ": " + e.Err.Error() + ": " + e.Value
}

func (e *FieldError) Unwrap() error {
	return e.Err
}
