package store

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// CustomizationPrefix namespaces customization values inside the store.
// ListAll enumerates exactly the keys under this prefix.
const CustomizationPrefix = "customization/"

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverFile   = "file"
	DriverSQLite = "sqlite"
)

// Sentinel errors for store operations.
var (
	// ErrInvalidKey indicates an empty key.
	ErrInvalidKey = errors.New("store key must not be empty")

	// ErrInvalidValue indicates a value that is not JSON-serializable.
	ErrInvalidValue = errors.New("store value must be JSON-serializable")

	// ErrUnknownDriver indicates Open was given an unsupported driver name.
	ErrUnknownDriver = errors.New("unknown store driver")
)

// Store is the key-value configuration store the snapshot subsystem reads
// and writes through. Each call is applied durably and independently; there
// are no transactions across calls.
//
// Values are JSON-compatible. Implementations normalize them through JSON,
// so Get returns map[string]any, []any, json.Number, string, bool or nil
// regardless of the Go type passed to Set. Numbers stay json.Number so large
// integers keep their precision.
type Store interface {
	// Get returns the value for key and whether it was set.
	Get(ctx context.Context, key string) (any, bool, error)

	// Set upserts key.
	Set(ctx context.Context, key string, value any) error

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error

	// ListAll returns every customization value, keyed by name with
	// CustomizationPrefix stripped.
	ListAll(ctx context.Context) (map[string]any, error)
}

// Backend is a Store that owns resources released by Close.
type Backend interface {
	Store
	Close() error
}

// CustomizationKey returns the store key for a customization setting.
func CustomizationKey(name string) string {
	return CustomizationPrefix + name
}

func customizationName(key string) (string, bool) {
	return strings.CutPrefix(key, CustomizationPrefix)
}

// Open returns the backend for driver. path is ignored by the memory driver.
func Open(ctx context.Context, driver, path string) (Backend, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemory(), nil
	case DriverFile:
		return NewFile(path)
	case DriverSQLite:
		return OpenSQLite(ctx, path)
	default:
		return nil, errors.Wrapf(ErrUnknownDriver, "%q", driver)
	}
}

func validateKey(key string) error {
	if key == "" {
		return ErrInvalidKey
	}
	return nil
}

func encodeValue(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "encoding value"), ErrInvalidValue)
	}
	return data, nil
}

func decodeValue(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, errors.Wrap(err, "decoding stored value")
	}
	return v, nil
}
