// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package refs implements the loose-ref store: one file per reference,
// lockfile-based compare-and-set updates, and symbolic-ref chasing. Packed
// refs are out of scope: the host is expected to write only loose refs.
package refs

import (
	"errors"
	"fmt"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// ErrIsDir is returned when a reference name resolves to a directory rather
// than a leaf file, e.g. looking up "refs/heads" itself.
var ErrIsDir = errors.New("refs: reference name is a directory")

// Backend is satisfied by every ref storage implementation.
type Backend interface {
	// HEAD returns the repository's HEAD reference, or nil if it doesn't
	// exist yet (an empty repository).
	HEAD() (*plumbing.Reference, error)
	// Reference looks up a single reference by its full name.
	Reference(name plumbing.ReferenceName) (*plumbing.Reference, error)
	// Update performs a compare-and-set write of r, failing with
	// ErrRefConcurrentlyModified if the current value does not match old.
	// old == nil means "create only, fail if the ref already exists".
	Update(r, old *plumbing.Reference) error
	// Remove deletes r, failing with ErrRefConcurrentlyModified if the
	// ref's current value has changed since r was read.
	Remove(r *plumbing.Reference) error
	// ListBranches returns every refs/heads/* short name.
	ListBranches() ([]string, error)
	// ListTags returns every refs/tags/* short name.
	ListTags() ([]string, error)
}

// MaxSymbolicRefDepth bounds the number of "ref: ..." indirections Resolve
// will follow before concluding the chain is cyclic or corrupt. It is
// deliberately much smaller than a generic VCS's resolve-recursion cap: a
// legitimate ref chain here is never more than one or two hops deep, so
// anything longer signals corruption rather than valid deep nesting.
const MaxSymbolicRefDepth = 8

// Resolve follows name to its final hash, chasing symbolic-ref indirection
// up to MaxSymbolicRefDepth hops. name may be "HEAD", a bare short name (tried
// against plumbing.RefRevParseRules), or a fully-qualified "refs/..." path.
func Resolve(b Backend, name string) (plumbing.Hash, error) {
	rn, err := normalize(b, name)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	seen := make(map[plumbing.ReferenceName]bool, MaxSymbolicRefDepth)
	for range MaxSymbolicRefDepth {
		if seen[rn] {
			return plumbing.ZeroHash, &plumbing.ErrCycleInSymbolicRef{Name: rn}
		}
		seen[rn] = true

		ref, err := b.Reference(rn)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		switch ref.Type() {
		case plumbing.HashReference:
			return ref.Hash(), nil
		case plumbing.SymbolicReference:
			rn = ref.Target()
		default:
			return plumbing.ZeroHash, plumbing.ErrReferenceNotFound
		}
	}
	return plumbing.ZeroHash, &plumbing.ErrCycleInSymbolicRef{Name: rn}
}

// normalize maps name onto a concrete reference name by trying each of
// plumbing.RefRevParseRules in turn against the backend, the same shorthand
// resolution rule git itself uses for "main" / "v1.0" / "origin/main".
func normalize(b Backend, name string) (plumbing.ReferenceName, error) {
	if name == string(plumbing.HEAD) {
		return plumbing.HEAD, nil
	}
	if rn := plumbing.ReferenceName(name); rn.IsBranch() || rn.IsTag() || rn.IsRemote() {
		return rn, nil
	}
	for _, rule := range plumbing.RefRevParseRules {
		rn := plumbing.ReferenceName(fmt.Sprintf(rule, name))
		if _, err := b.Reference(rn); err == nil {
			return rn, nil
		}
	}
	return plumbing.ReferenceName(name), nil
}

// validateReferenceName rejects any reference name git itself would refuse,
// including the "." and ".." components a FilesystemBackend must never let
// reach filepath.Join against its root.
func validateReferenceName(name plumbing.ReferenceName) error {
	if !plumbing.ValidateReferenceName([]byte(name)) {
		return &plumbing.ErrBadReferenceName{Name: string(name)}
	}
	return nil
}

// Create writes a new reference, failing if name already exists.
func Create(b Backend, name plumbing.ReferenceName, start plumbing.Hash) error {
	if err := validateReferenceName(name); err != nil {
		return err
	}
	return b.Update(plumbing.NewHashReference(name, start), nil)
}

// Delete removes the named reference after verifying it currently points at
// expected.
func Delete(b Backend, name plumbing.ReferenceName, expected plumbing.Hash) error {
	if err := validateReferenceName(name); err != nil {
		return err
	}
	return b.Remove(plumbing.NewHashReference(name, expected))
}
