package odb

import (
	"context"
	"errors"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/googleapi"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// GCSStorage stores loose objects as individual blobs under prefix in a
// Google Cloud Storage bucket.
type GCSStorage struct {
	bucket *storage.BucketHandle
	prefix string
}

// NewGCSStorage returns a WritableStorage backed by the given bucket handle.
func NewGCSStorage(bucket *storage.BucketHandle, prefix string) *GCSStorage {
	return &GCSStorage{bucket: bucket, prefix: prefix}
}

func (g *GCSStorage) object(oid plumbing.Hash) string {
	h := oid.String()
	return g.prefix + "objects/" + h[:2] + "/" + h[2:]
}

func (g *GCSStorage) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	r, err := g.bucket.Object(g.object(oid)).NewReader(context.Background())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, err
	}
	return r, nil
}

func (g *GCSStorage) Exists(oid plumbing.Hash) error {
	_, err := g.bucket.Object(g.object(oid)).Attrs(context.Background())
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return plumbing.NoSuchObject(oid)
		}
		return err
	}
	return nil
}

// IsCompressed reports true: Store persists exactly the zlib-framed bytes
// Database hands it, same as FilesystemStorage.
func (g *GCSStorage) IsCompressed() bool { return true }

func (g *GCSStorage) Close() error { return nil }

func (g *GCSStorage) Store(oid plumbing.Hash, r io.Reader) (int64, error) {
	w := g.bucket.Object(g.object(oid)).If(storage.Conditions{DoesNotExist: true}).NewWriter(context.Background())
	n, err := io.Copy(w, r)
	if err != nil {
		_ = w.Close()
		return 0, err
	}
	if err := w.Close(); err != nil {
		// a precondition failure means another writer already stored this
		// content-addressed object; that's not an error for us.
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == 412 {
			return n, nil
		}
		return 0, err
	}
	return n, nil
}
