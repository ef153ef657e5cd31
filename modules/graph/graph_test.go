package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
)

type fakeCommits struct {
	byHash map[plumbing.Hash]*object.Commit
}

func (f *fakeCommits) Commit(oid plumbing.Hash) (*object.Commit, error) {
	c, ok := f.byHash[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return c, nil
}

func hashOf(b byte) plumbing.Hash {
	var h plumbing.Hash
	h[len(h)-1] = b
	return h
}

// chain: root -> c1 -> c2 -> c3 (c3 is tip)
// branch from c1: c1 -> b1 -> b2 (b2 is other tip)
func newTestGraph() (*fakeCommits, map[string]plumbing.Hash) {
	root := hashOf(1)
	c1 := hashOf(2)
	c2 := hashOf(3)
	c3 := hashOf(4)
	b1 := hashOf(5)
	b2 := hashOf(6)

	db := &fakeCommits{byHash: map[plumbing.Hash]*object.Commit{
		root: {},
		c1:   {ParentIDs: []plumbing.Hash{root}},
		c2:   {ParentIDs: []plumbing.Hash{c1}},
		c3:   {ParentIDs: []plumbing.Hash{c2}},
		b1:   {ParentIDs: []plumbing.Hash{c1}},
		b2:   {ParentIDs: []plumbing.Hash{b1}},
	}}
	return db, map[string]plumbing.Hash{
		"root": root, "c1": c1, "c2": c2, "c3": c3, "b1": b1, "b2": b2,
	}
}

func TestAncestorsVisitsEntireChain(t *testing.T) {
	db, h := newTestGraph()
	var got []plumbing.Hash
	for a := range Ancestors(context.Background(), db, h["c3"]) {
		got = append(got, a)
	}
	assert.ElementsMatch(t, []plumbing.Hash{h["c3"], h["c2"], h["c1"], h["root"]}, got)
}

func TestIsAncestor(t *testing.T) {
	db, h := newTestGraph()
	ok, err := IsAncestor(context.Background(), db, h["root"], h["c3"])
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = IsAncestor(context.Background(), db, h["c3"], h["root"])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = IsAncestor(context.Background(), db, h["c3"], h["c3"])
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMergeBaseFindsDivergencePoint(t *testing.T) {
	db, h := newTestGraph()
	base, err := MergeBase(context.Background(), db, h["c3"], h["b2"])
	require.NoError(t, err)
	assert.Equal(t, h["c1"], base)
}

func TestMergeBaseNoCommonAncestor(t *testing.T) {
	db, h := newTestGraph()
	unrelated := hashOf(9)
	db.byHash[unrelated] = &object.Commit{}
	_, err := MergeBase(context.Background(), db, h["c3"], unrelated)
	assert.ErrorIs(t, err, ErrNoCommonAncestor)
}

func TestDistanceCountsCommitsAheadOfBase(t *testing.T) {
	db, h := newTestGraph()
	n, err := Distance(context.Background(), db, h["c1"], h["c3"])
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestAheadBehindAcrossABranch(t *testing.T) {
	db, h := newTestGraph()
	ahead, behind, err := AheadBehind(context.Background(), db, h["c3"], h["b2"])
	require.NoError(t, err)
	assert.Equal(t, 2, ahead)
	assert.Equal(t, 2, behind)
}
