// Package odb implements the content-addressed object store: loose-object
// read/write against pluggable backends (local filesystem, S3, GCS), fronted
// by a ristretto decode cache.
package odb

import (
	"errors"
	"io"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// Storage is satisfied by every read-capable object backend.
type Storage interface {
	// Open returns a handle on the object named by oid. It returns
	// plumbing.NoSuchObject(oid) if the object does not exist.
	Open(oid plumbing.Hash) (io.ReadCloser, error)
	// Exists reports whether an object named by oid is present, without
	// opening it.
	Exists(oid plumbing.Hash) error
	// IsCompressed reports whether bytes returned by Open are zlib
	// compressed and must be inflated before the loose-object header can
	// be parsed.
	IsCompressed() bool
	// Close releases any resources held by the backend.
	Close() error
}

// WritableStorage additionally allows writing new objects.
type WritableStorage interface {
	Storage
	// Store writes the framed object bytes read from r under oid,
	// returning the number of bytes written. Implementations must write
	// atomically: a reader must never observe a partially-written object.
	Store(oid plumbing.Hash, r io.Reader) (int64, error)
}

// LooseObjectLister is implemented by backends that can enumerate every
// object they hold, for verification and pruning tooling.
type LooseObjectLister interface {
	LooseObjects() ([]plumbing.Hash, error)
}

// multiStorage chains several read-only Storage instances, trying each in
// turn and falling through to the next on a not-found error. It is used to
// layer a fast local cache backend in front of a slower remote one.
type multiStorage struct {
	sources []Storage
}

// MultiStorage returns a Storage that reads from each of sources in order,
// stopping at the first one that has the requested object.
func MultiStorage(sources ...Storage) Storage {
	return &multiStorage{sources: sources}
}

func (m *multiStorage) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	for _, s := range m.sources {
		f, err := s.Open(oid)
		if err != nil {
			if plumbing.IsNoSuchObject(err) {
				continue
			}
			return nil, err
		}
		if s.IsCompressed() {
			return f, nil
		}
		return f, nil
	}
	return nil, plumbing.NoSuchObject(oid)
}

func (m *multiStorage) Exists(oid plumbing.Hash) error {
	for _, s := range m.sources {
		if err := s.Exists(oid); err == nil {
			return nil
		}
	}
	return plumbing.NoSuchObject(oid)
}

// IsCompressed always reports false: multiStorage normalizes the compression
// state of whichever source answered Open, so callers never need to inflate
// twice.
func (m *multiStorage) IsCompressed() bool { return false }

func (m *multiStorage) Close() error {
	var errs []error
	for _, s := range m.sources {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
