// Package files implements core.FileStorage on a local (afero) filesystem and on Backblaze B2.
package files

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/trezcool/reportal/core"
)

type localStorage struct {
	fs afero.Fs
}

var _ core.FileStorage = (*localStorage)(nil)

// NewLocalStorage stores files under root on the OS filesystem.
func NewLocalStorage(root string) core.FileStorage {
	return NewAferoStorage(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewAferoStorage stores files on fs (i.e: afero.NewMemMapFs() in tests).
func NewAferoStorage(fs afero.Fs) core.FileStorage {
	return &localStorage{fs: fs}
}

// clean refuses keys escaping the storage root.
func clean(name string) (string, error) {
	key := path.Clean("/" + strings.ReplaceAll(name, "\\", "/"))
	if key == "/" {
		return "", errors.Errorf("invalid file name %q", name)
	}
	return filepath.FromSlash(strings.TrimPrefix(key, "/")), nil
}

func (s *localStorage) Save(_ context.Context, name string, r io.Reader) error {
	key, err := clean(name)
	if err != nil {
		return err
	}
	if err = s.fs.MkdirAll(filepath.Dir(key), 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}
	file, err := s.fs.OpenFile(key, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	if _, err = io.Copy(file, r); err != nil {
		_ = file.Close()
		_ = s.fs.Remove(key)
		return errors.Wrap(err, "writing file")
	}
	return errors.Wrap(file.Close(), "closing file")
}

func (s *localStorage) Open(_ context.Context, name string) (io.ReadCloser, error) {
	key, err := clean(name)
	if err != nil {
		return nil, err
	}
	file, err := s.fs.Open(key)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return file, nil
}

func (s *localStorage) Delete(_ context.Context, name string) error {
	key, err := clean(name)
	if err != nil {
		return err
	}
	if err = s.fs.Remove(key); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}
