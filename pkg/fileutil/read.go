package fileutil

import (
	"io"
	"os"

	"github.com/thoreinstein/siteconf/internal/errors"
)

// MaxFileSize bounds reads of user-supplied files such as snapshot imports.
const MaxFileSize = 8 << 20 // 8MB

// ErrFileTooLarge indicates that a file exceeded the read limit.
var ErrFileTooLarge = errors.New("file exceeds maximum size")

// ReadFileWithLimit reads path up to MaxFileSize bytes.
func ReadFileWithLimit(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening file")
	}
	defer f.Close()

	return ReadAllLimit(f, MaxFileSize)
}

// ReadAllLimit reads r until EOF, failing with ErrFileTooLarge past limit bytes.
func ReadAllLimit(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, errors.Wrap(err, "reading file")
	}
	if int64(len(data)) > limit {
		return nil, errors.Wrapf(ErrFileTooLarge, "limit %d bytes", limit)
	}
	return data, nil
}
