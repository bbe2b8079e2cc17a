package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/paths"
	"github.com/thoreinstein/siteconf/pkg/fileutil"
)

// maxStoreFileSize bounds the JSON store document.
const maxStoreFileSize = 64 << 20

// File is a Store persisted as a single JSON object on disk. Every write
// rewrites the document atomically. Access is serialized within one
// process only; concurrent processes are last-writer-wins.
type File struct {
	path string
	mu   sync.Mutex
}

// NewFile returns a File store at path, creating its directory if needed.
// The document itself is created on first write.
func NewFile(path string) (*File, error) {
	if path == "" {
		return nil, errors.New("file store path is required")
	}
	if err := paths.EnsureDir(filepath.Dir(path), 0); err != nil {
		return nil, errors.Wrap(err, "creating store directory")
	}
	return &File{path: path}, nil
}

// Path returns the location of the store document.
func (f *File) Path() string { return f.path }

func (f *File) load() (map[string]json.RawMessage, error) {
	fh, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, errors.Wrap(err, "opening store file")
	}
	defer fh.Close()

	data, err := fileutil.ReadAllLimit(fh, maxStoreFileSize)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing store file %s", f.path)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

func (f *File) save(doc map[string]json.RawMessage) error {
	return errors.Wrap(fileutil.AtomicWriteJSON(f.path, doc, fileutil.PrivatePerm), "writing store file")
}

// Get implements Store.
func (f *File) Get(_ context.Context, key string) (any, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, false, err
	}
	raw, ok := doc[key]
	if !ok {
		return nil, false, nil
	}
	v, err := decodeValue(raw)
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

// Set implements Store.
func (f *File) Set(_ context.Context, key string, value any) error {
	if err := validateKey(key); err != nil {
		return err
	}
	data, err := encodeValue(value)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	doc[key] = data
	return f.save(doc)
}

// Remove implements Store.
func (f *File) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return err
	}
	if _, ok := doc[key]; !ok {
		return nil
	}
	delete(doc, key)
	return f.save(doc)
}

// ListAll implements Store.
func (f *File) ListAll(_ context.Context) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	doc, err := f.load()
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	for key, raw := range doc {
		name, ok := customizationName(key)
		if !ok {
			continue
		}
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		out[name] = v
	}
	return out, nil
}

// Close implements Backend.
func (f *File) Close() error { return nil }
