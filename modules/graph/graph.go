// Package graph walks the commit graph: ancestor enumeration, merge-base
// discovery, ancestry testing, and ahead/behind distance. It generalizes the
// single-iterator BFS walk used elsewhere in this codebase's commit history
// machinery into the handful of set operations a merge engine needs.
package graph

import (
	"context"
	"errors"
	"iter"

	"golang.org/x/sync/errgroup"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
)

// ErrNoCommonAncestor is returned by MergeBase when two commits share no
// ancestor.
var ErrNoCommonAncestor = errors.New("graph: no common ancestor")

// CommitGetter is the subset of odb.Database the graph walker needs.
type CommitGetter interface {
	Commit(oid plumbing.Hash) (*object.Commit, error)
}

// Ancestors returns an iterator over tip and every one of its transitive
// parents, visited breadth-first, each hash yielded exactly once.
func Ancestors(ctx context.Context, db CommitGetter, tip plumbing.Hash) iter.Seq[plumbing.Hash] {
	return func(yield func(plumbing.Hash) bool) {
		seen := map[plumbing.Hash]bool{}
		queue := []plumbing.Hash{tip}
		for len(queue) > 0 {
			select {
			case <-ctx.Done():
				return
			default:
			}
			h := queue[0]
			queue = queue[1:]
			if seen[h] {
				continue
			}
			seen[h] = true
			if !yield(h) {
				return
			}
			c, err := db.Commit(h)
			if err != nil {
				if plumbing.IsNoSuchObject(err) {
					continue
				}
				return
			}
			queue = append(queue, c.ParentIDs...)
		}
	}
}

// IsAncestor reports whether a is an ancestor of (or equal to) b.
func IsAncestor(ctx context.Context, db CommitGetter, a, b plumbing.Hash) (bool, error) {
	if a == b {
		return true, nil
	}
	for h := range Ancestors(ctx, db, b) {
		if h == a {
			return true, nil
		}
	}
	return false, nil
}

func ancestorSet(ctx context.Context, db CommitGetter, tip plumbing.Hash) map[plumbing.Hash]bool {
	set := make(map[plumbing.Hash]bool)
	for h := range Ancestors(ctx, db, tip) {
		set[h] = true
	}
	return set
}

// MergeBase finds the first commit, in BFS order from b, that also appears
// in a's ancestor set. On a criss-cross merge history with multiple equally
// valid bases this returns whichever one BFS discovers first; callers
// needing every base must walk Ancestors themselves.
func MergeBase(ctx context.Context, db CommitGetter, a, b plumbing.Hash) (plumbing.Hash, error) {
	aSet := ancestorSet(ctx, db, a)
	for h := range Ancestors(ctx, db, b) {
		if aSet[h] {
			return h, nil
		}
	}
	return plumbing.ZeroHash, ErrNoCommonAncestor
}

// Distance walks back from tip, counting commits reachable before base is
// hit. base itself is not counted. If base is not an ancestor of tip, every
// reachable commit is counted.
func Distance(ctx context.Context, db CommitGetter, base, tip plumbing.Hash) (int, error) {
	n := 0
	for h := range Ancestors(ctx, db, tip) {
		if h == base {
			break
		}
		n++
	}
	return n, nil
}

// AheadBehind reports how many commits tip has that base lacks (ahead) and
// vice versa (behind), computing both independent directions concurrently.
func AheadBehind(ctx context.Context, db CommitGetter, base, tip plumbing.Hash) (ahead, behind int, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		mb, err := MergeBase(gctx, db, base, tip)
		if err != nil {
			return err
		}
		ahead, err = Distance(gctx, db, mb, tip)
		return err
	})
	g.Go(func() error {
		mb, err := MergeBase(gctx, db, base, tip)
		if err != nil {
			return err
		}
		behind, err = Distance(gctx, db, mb, base)
		return err
	})
	if err = g.Wait(); err != nil {
		return 0, 0, err
	}
	return ahead, behind, nil
}
