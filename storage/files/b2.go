package files

import (
	"context"
	"io"

	"github.com/kurin/blazer/b2"
	"github.com/pkg/errors"

	"github.com/trezcool/reportal/core"
)

type b2Storage struct {
	bucket *b2.Bucket
}

var _ core.FileStorage = (*b2Storage)(nil)

// NewB2Storage stores files in a Backblaze B2 bucket.
func NewB2Storage(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	client, err := b2.NewClient(ctx, conf.Storage.B2AccountID, conf.Storage.B2ApplicationKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating b2 client")
	}
	bucket, err := client.Bucket(ctx, conf.Storage.B2Bucket)
	if err != nil {
		return nil, errors.Wrap(err, "getting b2 bucket")
	}
	return &b2Storage{bucket: bucket}, nil
}

func (s *b2Storage) Save(ctx context.Context, name string, r io.Reader) error {
	w := s.bucket.Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		_ = w.Close()
		return errors.Wrap(err, "uploading file")
	}
	return errors.Wrap(w.Close(), "uploading file")
}

func (s *b2Storage) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	obj := s.bucket.Object(name)
	if _, err := obj.Attrs(ctx); err != nil {
		if b2.IsNotExist(err) {
			return nil, core.ErrFileNotFound
		}
		return nil, errors.Wrap(err, "getting file attributes")
	}
	return obj.NewReader(ctx), nil
}

func (s *b2Storage) Delete(ctx context.Context, name string) error {
	if err := s.bucket.Object(name).Delete(ctx); err != nil && !b2.IsNotExist(err) {
		return errors.Wrap(err, "deleting file")
	}
	return nil
}

// New returns the file storage selected by the STORAGE_BACKEND config.
func New(ctx context.Context, conf *core.Config) (core.FileStorage, error) {
	switch conf.Storage.Backend {
	case "b2":
		return NewB2Storage(ctx, conf)
	case "local", "":
		return NewLocalStorage(conf.Storage.MediaRoot), nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", conf.Storage.Backend)
	}
}
