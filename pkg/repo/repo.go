// Package repo binds the object store, refs store, graph walker, diff
// engine, and merge engine into the operations a code-collaboration host
// actually calls: opening a bare repository, probing and performing
// pull-request merges, diffing two commits, and applying a single-file edit.
package repo

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/antgroup/forgecore/modules/config"
	"github.com/antgroup/forgecore/modules/diferenco"
	"github.com/antgroup/forgecore/modules/graph"
	"github.com/antgroup/forgecore/modules/merge"
	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/odb"
	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/modules/plumbing/filemode"
	"github.com/antgroup/forgecore/modules/refs"
	"github.com/antgroup/forgecore/modules/trace"
)

// Strategy selects how MergePullRequest reconciles two branches.
type Strategy int

const (
	StrategyMerge Strategy = iota
	StrategySquash
	StrategyFastForwardOnly
)

// Identity is the author/committer pair a caller supplies for a synthesized
// commit.
type Identity struct {
	Name  string
	Email string
}

func (id Identity) signature(when time.Time) string {
	return (&object.Signature{Name: id.Name, Email: id.Email, When: when}).String()
}

// Repository is an open handle on a bare, on-disk repository: its object
// store, its ref store, and its ambient config.
type Repository struct {
	path string
	db   *odb.Database
	refs refs.Backend
	cfg  *config.Config
}

// Open opens the bare repository rooted at path. The objects directory must
// already exist (this package has no Init that creates it; a compatible
// foreign bare Git repository works); Open creates only objects/tmp.
func Open(path string) (*Repository, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, trace.Errorf("repo: load config: %v", err)
	}
	objectsDir := filepath.Join(path, "objects")
	if _, err := os.Stat(objectsDir); err != nil {
		return nil, trace.Errorf("repo: open %s: %v", path, err)
	}
	tmp := filepath.Join(objectsDir, "tmp")
	if err := os.MkdirAll(tmp, 0755); err != nil {
		return nil, trace.Errorf("repo: create tmp dir: %v", err)
	}
	storage := odb.NewFilesystemStorage(objectsDir)
	return &Repository{
		path: path,
		db:   odb.NewDatabase(storage, tmp),
		refs: refs.NewFilesystemBackend(path),
		cfg:  cfg,
	}, nil
}

// Close releases the repository's object store handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Database exposes the underlying object store, e.g. for the CLI's verify
// walk.
func (r *Repository) Database() *odb.Database { return r.db }

// Refs exposes the underlying ref backend.
func (r *Repository) Refs() refs.Backend { return r.refs }

// MergeResult is the outcome of MergePullRequest.
type MergeResult struct {
	// MergeSHA is valid whenever Conflicts is empty: the already-merged
	// no-op case, the fast-forward case, and a genuine new merge/squash
	// commit all report the resulting target-branch tip here.
	MergeSHA  plumbing.Hash
	Conflicts []*merge.Conflict
}

// ErrBranchNotFound is returned when a named branch does not resolve.
type ErrBranchNotFound struct{ Branch string }

func (e *ErrBranchNotFound) Error() string { return fmt.Sprintf("repo: branch not found: %s", e.Branch) }

// ErrNoCommonAncestor mirrors graph.ErrNoCommonAncestor at the facade
// boundary, naming the two branches instead of two raw hashes.
type ErrNoCommonAncestor struct{ Source, Target string }

func (e *ErrNoCommonAncestor) Error() string {
	return fmt.Sprintf("repo: no common ancestor between %s and %s", e.Source, e.Target)
}

func (r *Repository) resolveBranch(name string) (plumbing.Hash, error) {
	h, err := refs.Resolve(r.refs, plumbing.NewBranchReferenceName(name).String())
	if err != nil {
		return plumbing.ZeroHash, &ErrBranchNotFound{Branch: name}
	}
	return h, nil
}

// ResolveRef resolves ref as a branch name first, falling back to treating it
// as a literal object hash. Operator tooling accepts either form; the merge
// and edit paths above only ever deal in branch names.
func (r *Repository) ResolveRef(ref string) (plumbing.Hash, error) {
	if h, err := r.resolveBranch(ref); err == nil {
		return h, nil
	}
	h, err := plumbing.NewHashEx(ref)
	if err != nil {
		return plumbing.ZeroHash, &ErrBranchNotFound{Branch: ref}
	}
	return h, nil
}

// MergePullRequest runs the full 11-step server-side merge procedure: resolve
// both branches, short-circuit on already-merged or fast-forward, otherwise
// three-way-merge the trees, synthesize a commit per strategy, and CAS the
// target branch forward. On conflict, no ref is touched and the orphaned
// blobs/trees already written are harmless.
func (r *Repository) MergePullRequest(ctx context.Context, source, target string, strategy Strategy, author Identity, message string) (*MergeResult, error) {
	sourceSHA, err := r.resolveBranch(source)
	if err != nil {
		return nil, err
	}
	targetSHA, err := r.resolveBranch(target)
	if err != nil {
		return nil, err
	}

	if alreadyMerged, err := graph.IsAncestor(ctx, r.db, sourceSHA, targetSHA); err != nil {
		return nil, trace.Errorf("repo: is-ancestor: %v", err)
	} else if alreadyMerged {
		return &MergeResult{MergeSHA: targetSHA}, nil
	}

	if canFastForward, err := graph.IsAncestor(ctx, r.db, targetSHA, sourceSHA); err != nil {
		return nil, trace.Errorf("repo: is-ancestor: %v", err)
	} else if canFastForward && (strategy == StrategyMerge || strategy == StrategyFastForwardOnly) {
		if err := r.advanceBranch(target, sourceSHA, targetSHA); err != nil {
			return nil, err
		}
		return &MergeResult{MergeSHA: sourceSHA}, nil
	}
	if strategy == StrategyFastForwardOnly {
		return nil, fmt.Errorf("repo: %s is not a fast-forward of %s", source, target)
	}

	base, err := graph.MergeBase(ctx, r.db, sourceSHA, targetSHA)
	if err != nil {
		return nil, &ErrNoCommonAncestor{Source: source, Target: target}
	}

	baseCommit, err := r.db.Commit(base)
	if err != nil {
		return nil, trace.Errorf("repo: read base commit: %v", err)
	}
	sourceCommit, err := r.db.Commit(sourceSHA)
	if err != nil {
		return nil, trace.Errorf("repo: read source commit: %v", err)
	}
	targetCommit, err := r.db.Commit(targetSHA)
	if err != nil {
		return nil, trace.Errorf("repo: read target commit: %v", err)
	}

	result, err := merge.MergeTrees(r.db, baseCommit.TreeID, sourceCommit.TreeID, targetCommit.TreeID,
		&merge.Options{SourceLabel: source, TargetLabel: target})
	if err != nil {
		return nil, trace.Errorf("repo: merge trees: %v", err)
	}
	if len(result.Conflicts) > 0 {
		return &MergeResult{Conflicts: result.Conflicts}, nil
	}

	now := time.Now()
	sig := author.signature(now)
	var commit *object.Commit
	switch strategy {
	case StrategySquash:
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("Squash merge branch '%s' into %s", source, target)
		}
		commit = &object.Commit{
			TreeID:    result.Tree,
			ParentIDs: []plumbing.Hash{targetSHA},
			Author:    sig,
			Committer: sig,
			Message:   msg,
		}
	default:
		msg := message
		if msg == "" {
			msg = fmt.Sprintf("Merge branch '%s' into %s", source, target)
		}
		commit = &object.Commit{
			TreeID:    result.Tree,
			ParentIDs: []plumbing.Hash{targetSHA, sourceSHA},
			Author:    sig,
			Committer: sig,
			Message:   msg,
		}
	}

	mergeSHA, err := r.db.WriteCommit(commit)
	if err != nil {
		return nil, trace.Errorf("repo: write merge commit: %v", err)
	}
	if err := r.advanceBranch(target, mergeSHA, targetSHA); err != nil {
		return nil, err
	}
	return &MergeResult{MergeSHA: mergeSHA}, nil
}

func (r *Repository) advanceBranch(branch string, newSHA, expected plumbing.Hash) error {
	name := plumbing.NewBranchReferenceName(branch)
	var old *plumbing.Reference
	if !expected.IsZero() {
		old = plumbing.NewHashReference(name, expected)
	}
	if err := r.refs.Update(plumbing.NewHashReference(name, newSHA), old); err != nil {
		return err
	}
	return nil
}

// MergeabilityReport is the outcome of CheckMergeability.
type MergeabilityReport struct {
	CanMerge  bool
	Conflicts []*merge.Conflict
	AheadBy   int
	BehindBy  int
}

// CheckMergeability runs steps 1-6 of the merge procedure only: no blob,
// tree, or commit is written, and no ref is touched.
func (r *Repository) CheckMergeability(ctx context.Context, source, target string) (*MergeabilityReport, error) {
	sourceSHA, err := r.resolveBranch(source)
	if err != nil {
		return nil, err
	}
	targetSHA, err := r.resolveBranch(target)
	if err != nil {
		return nil, err
	}

	ahead, behind, err := graph.AheadBehind(ctx, r.db, targetSHA, sourceSHA)
	if err != nil {
		return nil, trace.Errorf("repo: ahead/behind: %v", err)
	}

	if alreadyMerged, err := graph.IsAncestor(ctx, r.db, sourceSHA, targetSHA); err != nil {
		return nil, trace.Errorf("repo: is-ancestor: %v", err)
	} else if alreadyMerged {
		return &MergeabilityReport{CanMerge: true, AheadBy: ahead, BehindBy: behind}, nil
	}
	if canFastForward, err := graph.IsAncestor(ctx, r.db, targetSHA, sourceSHA); err != nil {
		return nil, trace.Errorf("repo: is-ancestor: %v", err)
	} else if canFastForward {
		return &MergeabilityReport{CanMerge: true, AheadBy: ahead, BehindBy: behind}, nil
	}

	base, err := graph.MergeBase(ctx, r.db, sourceSHA, targetSHA)
	if err != nil {
		return &MergeabilityReport{CanMerge: false, AheadBy: ahead, BehindBy: behind}, nil
	}

	baseCommit, err := r.db.Commit(base)
	if err != nil {
		return nil, trace.Errorf("repo: read base commit: %v", err)
	}
	sourceCommit, err := r.db.Commit(sourceSHA)
	if err != nil {
		return nil, trace.Errorf("repo: read source commit: %v", err)
	}
	targetCommit, err := r.db.Commit(targetSHA)
	if err != nil {
		return nil, trace.Errorf("repo: read target commit: %v", err)
	}

	result, err := merge.MergeTrees(r.db, baseCommit.TreeID, sourceCommit.TreeID, targetCommit.TreeID,
		&merge.Options{SourceLabel: source, TargetLabel: target})
	if err != nil {
		return nil, trace.Errorf("repo: merge trees: %v", err)
	}
	return &MergeabilityReport{
		CanMerge:  len(result.Conflicts) == 0,
		Conflicts: result.Conflicts,
		AheadBy:   ahead,
		BehindBy:  behind,
	}, nil
}

// DiffCommits renders a per-file unified diff between two commits' trees.
func (r *Repository) DiffCommits(base, head plumbing.Hash) ([]*diferenco.FileDiff, error) {
	baseCommit, err := r.db.Commit(base)
	if err != nil {
		return nil, trace.Errorf("repo: read base commit: %v", err)
	}
	headCommit, err := r.db.Commit(head)
	if err != nil {
		return nil, trace.Errorf("repo: read head commit: %v", err)
	}

	baseMap, err := object.Flatten(baseCommit.TreeID, r.db.Tree)
	if err != nil {
		return nil, trace.Errorf("repo: flatten base tree: %v", err)
	}
	headMap, err := object.Flatten(headCommit.TreeID, r.db.Tree)
	if err != nil {
		return nil, trace.Errorf("repo: flatten head tree: %v", err)
	}

	paths := unionPaths(baseMap, headMap)
	var diffs []*diferenco.FileDiff
	for _, p := range paths {
		b, _ := baseMap.Get(p)
		h, _ := headMap.Get(p)
		if b != nil && h != nil && b.Hash == h.Hash && b.Mode == h.Mode {
			continue
		}
		fd, err := r.diffPath(p, b, h)
		if err != nil {
			return nil, err
		}
		diffs = append(diffs, fd)
	}
	return diffs, nil
}

func (r *Repository) diffPath(path string, b, h *object.PathEntry) (*diferenco.FileDiff, error) {
	fd := &diferenco.FileDiff{Path: path}
	if b != nil {
		fd.From = &diferenco.File{Path: path, Hash: b.Hash.String(), Mode: uint32(b.Mode)}
	}
	if h != nil {
		fd.To = &diferenco.File{Path: path, Hash: h.Hash.String(), Mode: uint32(h.Mode)}
	}

	oldText, oldBinary, err := r.readTextOrBinary(b)
	if err != nil {
		return nil, err
	}
	newText, newBinary, err := r.readTextOrBinary(h)
	if err != nil {
		return nil, err
	}
	if oldBinary || newBinary {
		fd.IsBinary = true
		return fd, nil
	}

	u, err := diferenco.DoUnified(context.Background(), &diferenco.Options{
		From: fd.From,
		To:   fd.To,
		A:    oldText,
		B:    newText,
		Algo: diferenco.Histogram,
	})
	if err != nil {
		return nil, trace.Errorf("repo: diff %s: %v", path, err)
	}
	fd.Unified = u
	return fd, nil
}

func (r *Repository) readTextOrBinary(e *object.PathEntry) (text string, isBinary bool, err error) {
	if e == nil {
		return "", false, nil
	}
	blob, err := r.db.Blob(e.Hash)
	if err != nil {
		return "", false, trace.Errorf("repo: read blob: %v", err)
	}
	defer blob.Close()
	buf, err := io.ReadAll(blob.Contents)
	if err != nil {
		return "", false, err
	}
	if diferenco.IsBinaryContent(buf) {
		return "", true, nil
	}
	return string(buf), false, nil
}

func unionPaths(a, b *object.PathMap) []string {
	seen := make(map[string]bool)
	var paths []string
	for _, m := range []*object.PathMap{a, b} {
		it := m.Iterator()
		for it.Next() {
			p := it.Key().(string)
			if !seen[p] {
				seen[p] = true
				paths = append(paths, p)
			}
		}
	}
	return paths
}

// EditFile applies a single-file change on top of branch's current tip: a
// new blob for newContent (nil meaning "delete path"), a rebuilt tree, and a
// new commit whose sole parent is the previous tip, CAS'd onto the branch.
func (r *Repository) EditFile(branch, path string, newContent []byte, author Identity, message string) (plumbing.Hash, error) {
	tip, err := r.resolveBranch(branch)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	commit, err := r.db.Commit(tip)
	if err != nil {
		return plumbing.ZeroHash, trace.Errorf("repo: read branch tip: %v", err)
	}

	pm, err := object.Flatten(commit.TreeID, r.db.Tree)
	if err != nil {
		return plumbing.ZeroHash, trace.Errorf("repo: flatten tree: %v", err)
	}

	if newContent == nil {
		pm.Remove(path)
	} else {
		hash, err := r.db.WriteBlob(&object.Blob{Size: int64(len(newContent)), Contents: bytes.NewReader(newContent)})
		if err != nil {
			return plumbing.ZeroHash, trace.Errorf("repo: write blob: %v", err)
		}
		mode := filemode.Regular
		if existing, ok := pm.Get(path); ok {
			mode = existing.Mode
		}
		pm.Put(path, &object.PathEntry{Hash: hash, Mode: mode})
	}

	newTree, err := object.Build(pm, r.db.WriteTree)
	if err != nil {
		return plumbing.ZeroHash, trace.Errorf("repo: build tree: %v", err)
	}

	now := time.Now()
	sig := author.signature(now)
	msg := message
	if msg == "" {
		msg = fmt.Sprintf("Update %s", path)
	}
	newCommit := &object.Commit{
		TreeID:    newTree,
		ParentIDs: []plumbing.Hash{tip},
		Author:    sig,
		Committer: sig,
		Message:   msg,
	}
	newSHA, err := r.db.WriteCommit(newCommit)
	if err != nil {
		return plumbing.ZeroHash, trace.Errorf("repo: write commit: %v", err)
	}
	if err := r.advanceBranch(branch, newSHA, tip); err != nil {
		return plumbing.ZeroHash, err
	}
	return newSHA, nil
}
