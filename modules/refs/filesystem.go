// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package refs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/antgroup/forgecore/modules/plumbing"
)

const (
	refsPath   = "refs"
	headsDir   = "refs/heads"
	tagsDir    = "refs/tags"
	remotesDir = "refs/remotes"
)

// FilesystemBackend stores references as individual files under a
// repository root, the same layout git itself uses for loose refs: HEAD at
// the root, and refs/heads/<name>, refs/tags/<name>, refs/remotes/<r>/<name>
// elsewhere. It never reads or writes a packed-refs file.
type FilesystemBackend struct {
	root string
}

// NewFilesystemBackend returns a Backend rooted at root (a repository's
// top-level metadata directory, analogous to ".git").
func NewFilesystemBackend(root string) *FilesystemBackend {
	return &FilesystemBackend{root: root}
}

func (b *FilesystemBackend) HEAD() (*plumbing.Reference, error) {
	ref, err := b.readReferenceFile("HEAD")
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	return ref, nil
}

func (b *FilesystemBackend) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	return b.readReferenceFile(string(name))
}

func (b *FilesystemBackend) readReferenceFile(name string) (*plumbing.Reference, error) {
	p := filepath.Join(b.root, name)
	si, err := os.Stat(p)
	if err != nil {
		return nil, err
	}
	if si.IsDir() {
		return nil, ErrIsDir
	}
	fd, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer fd.Close()

	data, err := io.ReadAll(fd)
	if err != nil {
		return nil, err
	}
	return plumbing.NewReferenceFromStrings(name, strings.TrimSpace(string(data))), nil
}

func referenceContent(r *plumbing.Reference) string {
	switch r.Type() {
	case plumbing.SymbolicReference:
		return fmt.Sprintf("ref: %s\n", r.Target())
	default:
		return r.Hash().String() + "\n"
	}
}

func openLock(lockName string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(lockName), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(lockName, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0644)
}

// Update performs a lockfile-guarded compare-and-set: a ".lock" sibling file
// is created exclusively, the current on-disk value is compared against
// old, and only then is the new content written and the lock renamed over
// the real ref path. old == nil means the ref must not already exist.
func (b *FilesystemBackend) Update(r, old *plumbing.Reference) error {
	if err := validateReferenceName(r.Name()); err != nil {
		return err
	}
	fileName := filepath.Join(b.root, r.Name().String())
	lockName := fileName + ".lock"

	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reference", r.Name())
		}
		return err
	}
	defer func() {
		_ = os.Remove(lockName)
	}()

	current, err := b.Reference(r.Name())
	switch {
	case err != nil && !os.IsNotExist(err):
		_ = fd.Close()
		return err
	case os.IsNotExist(err):
		if old != nil {
			_ = fd.Close()
			return &plumbing.ErrRefConcurrentlyModified{Name: r.Name()}
		}
	default:
		if old == nil || current.Hash() != old.Hash() || current.Target() != old.Target() {
			_ = fd.Close()
			return &plumbing.ErrRefConcurrentlyModified{Name: r.Name()}
		}
	}

	if _, err := fd.WriteString(referenceContent(r)); err != nil {
		_ = fd.Close()
		return err
	}
	if err := fd.Close(); err != nil {
		return err
	}
	return os.Rename(lockName, fileName)
}

// Remove deletes r's loose-ref file, verifying its current value matches r
// under the same lockfile discipline Update uses.
func (b *FilesystemBackend) Remove(r *plumbing.Reference) error {
	if err := validateReferenceName(r.Name()); err != nil {
		return err
	}
	fileName := filepath.Join(b.root, r.Name().String())
	lockName := fileName + ".lock"

	fd, err := openLock(lockName)
	if err != nil {
		if os.IsExist(err) {
			return plumbing.NewErrResourceLocked("reference", r.Name())
		}
		return err
	}
	_ = fd.Close()
	defer func() {
		_ = os.Remove(lockName)
	}()

	current, err := b.Reference(r.Name())
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if current.Hash() != r.Hash() {
		return &plumbing.ErrRefConcurrentlyModified{Name: r.Name()}
	}
	if err := os.Remove(fileName); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (b *FilesystemBackend) listLeafNames(dir string) ([]string, error) {
	root := filepath.Join(b.root, dir)
	var names []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	return names, nil
}

// ListBranches returns every short branch name under refs/heads.
func (b *FilesystemBackend) ListBranches() ([]string, error) {
	return b.listLeafNames(headsDir)
}

// ListTags returns every short tag name under refs/tags.
func (b *FilesystemBackend) ListTags() ([]string, error) {
	return b.listLeafNames(tagsDir)
}
