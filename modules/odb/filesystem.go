package odb

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/modules/strengthen"
)

// FilesystemStorage stores loose objects under root in the standard
// two-level fanout layout: root/ab/cdef0123....
type FilesystemStorage struct {
	root string
}

// NewFilesystemStorage returns a WritableStorage rooted at dir. dir must
// already exist.
func NewFilesystemStorage(dir string) *FilesystemStorage {
	return &FilesystemStorage{root: dir}
}

func (f *FilesystemStorage) path(oid plumbing.Hash) string {
	s := oid.String()
	return filepath.Join(f.root, s[:2], s[2:])
}

// Open implements Storage.
func (f *FilesystemStorage) Open(oid plumbing.Hash) (io.ReadCloser, error) {
	fh, err := os.Open(f.path(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, plumbing.NoSuchObject(oid)
		}
		return nil, err
	}
	return fh, nil
}

// Exists implements Storage.
func (f *FilesystemStorage) Exists(oid plumbing.Hash) error {
	if _, err := os.Stat(f.path(oid)); err != nil {
		if os.IsNotExist(err) {
			return plumbing.NoSuchObject(oid)
		}
		return err
	}
	return nil
}

// IsCompressed implements Storage: loose objects on disk are always zlib
// compressed.
func (f *FilesystemStorage) IsCompressed() bool { return true }

func (f *FilesystemStorage) Close() error { return nil }

// Store implements WritableStorage: r is written to a temp file in the same
// fanout directory, fsynced, then atomically published under oid via
// strengthen.FinalizeObject so a concurrent reader never observes a partial
// write.
func (f *FilesystemStorage) Store(oid plumbing.Hash, r io.Reader) (int64, error) {
	dir := filepath.Join(f.root, oid.String()[:2])
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}
	tmp, err := os.CreateTemp(dir, "tmp-obj-")
	if err != nil {
		return 0, err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := strengthen.FinalizeObject(tmpPath, f.path(oid)); err != nil {
		return 0, fmt.Errorf("odb: finalize object %s: %w", oid, err)
	}
	return n, nil
}

// LooseObjects implements LooseObjectLister, walking the fanout directories.
func (f *FilesystemStorage) LooseObjects() ([]plumbing.Hash, error) {
	var hashes []plumbing.Hash
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, fanout := range entries {
		if !fanout.IsDir() || !plumbing.IsLooseDir(fanout.Name()) {
			continue
		}
		dirPath := filepath.Join(f.root, fanout.Name())
		objEntries, err := os.ReadDir(dirPath)
		if err != nil {
			return nil, err
		}
		for _, oe := range objEntries {
			if oe.IsDir() {
				continue
			}
			hex := fanout.Name() + oe.Name()
			if !plumbing.ValidateHashHex(hex) {
				continue
			}
			hashes = append(hashes, plumbing.NewHash(hex))
		}
	}
	return hashes, nil
}

// Prune removes empty fanout directories left behind after object removal.
func (f *FilesystemStorage) Prune() error {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, fanout := range entries {
		if !fanout.IsDir() || !plumbing.IsLooseDir(fanout.Name()) {
			continue
		}
		dirPath := filepath.Join(f.root, fanout.Name())
		objEntries, err := os.ReadDir(dirPath)
		if err != nil {
			return err
		}
		if len(objEntries) == 0 {
			if err := os.Remove(dirPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// PruneObject removes a single loose object; an object that is already
// absent is not an error. Only this package's tests call it.
func (f *FilesystemStorage) PruneObject(oid plumbing.Hash) error {
	if err := os.Remove(f.path(oid)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
