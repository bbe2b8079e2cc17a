package backup

import (
	"context"
	"path/filepath"

	"github.com/thoreinstein/siteconf/internal/errors"
	"github.com/thoreinstein/siteconf/internal/paths"
	"github.com/thoreinstein/siteconf/pkg/fileutil"
)

// Delivery hands an exported file to its recipient.
type Delivery interface {
	Deliver(ctx context.Context, data []byte, filename, contentType string) error
}

// DeliveryFunc adapts a function to Delivery.
type DeliveryFunc func(ctx context.Context, data []byte, filename, contentType string) error

// Deliver implements Delivery.
func (f DeliveryFunc) Deliver(ctx context.Context, data []byte, filename, contentType string) error {
	return f(ctx, data, filename, contentType)
}

// DirDelivery writes exported files into a directory.
type DirDelivery struct {
	Dir string

	// Path is set to the written file after a successful Deliver.
	Path string
}

// Deliver implements Delivery. The filename's directory components are
// discarded.
func (d *DirDelivery) Deliver(_ context.Context, data []byte, filename, _ string) error {
	dir := d.Dir
	if dir == "" {
		dir = "."
	}
	if err := paths.EnsureDir(dir, 0); err != nil {
		return errors.Wrap(err, "creating export directory")
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := fileutil.AtomicWriteFile(path, data, fileutil.PrivatePerm); err != nil {
		return errors.Wrap(err, "writing export file")
	}
	d.Path = path
	return nil
}

// FileUpload reads a local snapshot file as an Upload. Read failures are
// reported through TransportError so Import classifies them as ErrUpload.
func FileUpload(path string) *Upload {
	data, err := fileutil.ReadFileWithLimit(path)
	return &Upload{
		Data:           data,
		Filename:       filepath.Base(path),
		TransportError: err,
	}
}
