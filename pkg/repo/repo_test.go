package repo

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
)

func newTestRepo(t *testing.T) (*Repository, plumbing.Hash) {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "objects"), 0755))

	r, err := Open(root)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })

	tree := object.NewTree(nil)
	treeID, err := r.db.WriteTree(tree)
	require.NoError(t, err)

	commit := &object.Commit{
		TreeID:    treeID,
		Author:    "Root <root@example.com> 1700000000 +0000",
		Committer: "Root <root@example.com> 1700000000 +0000",
		Message:   "root commit\n",
	}
	commitID, err := r.db.WriteCommit(commit)
	require.NoError(t, err)

	require.NoError(t, r.advanceBranch("main", commitID, plumbing.ZeroHash))
	return r, commitID
}

func TestOpenRejectsMissingObjectsDir(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.Error(t, err)
}

func TestEditFileCreatesAndAdvancesBranch(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	sha1, err := r.EditFile("main", "README.md", []byte("hello\n"), author, "")
	require.NoError(t, err)
	assert.NotEqual(t, root, sha1)

	tip, err := r.resolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, sha1, tip)

	commit, err := r.db.Commit(sha1)
	require.NoError(t, err)
	require.Len(t, commit.ParentIDs, 1)
	assert.Equal(t, root, commit.ParentIDs[0])

	pm, err := object.Flatten(commit.TreeID, r.db.Tree)
	require.NoError(t, err)
	entry, ok := pm.Get("README.md")
	require.True(t, ok)
	blob, err := r.db.Blob(entry.Hash)
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(6), blob.Size)

	// A second edit deletes the file.
	sha2, err := r.EditFile("main", "README.md", nil, author, "remove readme")
	require.NoError(t, err)
	commit2, err := r.db.Commit(sha2)
	require.NoError(t, err)
	pm2, err := object.Flatten(commit2.TreeID, r.db.Tree)
	require.NoError(t, err)
	_, ok = pm2.Get("README.md")
	assert.False(t, ok)
}

func TestMergePullRequestFastForward(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	require.NoError(t, r.advanceBranch("feature", root, plumbing.ZeroHash))
	sha, err := r.EditFile("feature", "a.txt", []byte("v1\n"), author, "")
	require.NoError(t, err)

	result, err := r.MergePullRequest(context.Background(), "feature", "main", StrategyMerge, author, "")
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, sha, result.MergeSHA)

	tip, err := r.resolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, sha, tip)
}

func TestMergePullRequestAlreadyMergedIsNoOp(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}
	require.NoError(t, r.advanceBranch("feature", root, plumbing.ZeroHash))

	result, err := r.MergePullRequest(context.Background(), "feature", "main", StrategyMerge, author, "")
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)
	assert.Equal(t, root, result.MergeSHA)
}

func TestMergePullRequestThreeWayNoConflict(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	require.NoError(t, r.advanceBranch("feature", root, plumbing.ZeroHash))
	sourceSHA, err := r.EditFile("feature", "a.txt", []byte("from feature\n"), author, "")
	require.NoError(t, err)
	targetSHA, err := r.EditFile("main", "b.txt", []byte("from main\n"), author, "")
	require.NoError(t, err)

	result, err := r.MergePullRequest(context.Background(), "feature", "main", StrategyMerge, author, "merge it")
	require.NoError(t, err)
	require.Empty(t, result.Conflicts)

	commit, err := r.db.Commit(result.MergeSHA)
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.Hash{targetSHA, sourceSHA}, commit.ParentIDs)

	pm, err := object.Flatten(commit.TreeID, r.db.Tree)
	require.NoError(t, err)
	_, ok := pm.Get("a.txt")
	assert.True(t, ok)
	_, ok = pm.Get("b.txt")
	assert.True(t, ok)
}

func TestMergePullRequestContentConflict(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	require.NoError(t, r.advanceBranch("feature", root, plumbing.ZeroHash))
	_, err := r.EditFile("feature", "a.txt", []byte("from feature\n"), author, "")
	require.NoError(t, err)
	_, err = r.EditFile("main", "a.txt", []byte("from main\n"), author, "")
	require.NoError(t, err)

	beforeTip, err := r.resolveBranch("main")
	require.NoError(t, err)

	result, err := r.MergePullRequest(context.Background(), "feature", "main", StrategyMerge, author, "")
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, "a.txt", result.Conflicts[0].Path)

	// A conflicted merge must not touch the ref.
	afterTip, err := r.resolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, beforeTip, afterTip)
}

func TestCheckMergeabilityReportsConflictsWithoutWriting(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	require.NoError(t, r.advanceBranch("feature", root, plumbing.ZeroHash))
	_, err := r.EditFile("feature", "a.txt", []byte("from feature\n"), author, "")
	require.NoError(t, err)
	_, err = r.EditFile("main", "a.txt", []byte("from main\n"), author, "")
	require.NoError(t, err)

	beforeTip, err := r.resolveBranch("main")
	require.NoError(t, err)

	report, err := r.CheckMergeability(context.Background(), "feature", "main")
	require.NoError(t, err)
	assert.False(t, report.CanMerge)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, 1, report.AheadBy)
	assert.Equal(t, 1, report.BehindBy)

	afterTip, err := r.resolveBranch("main")
	require.NoError(t, err)
	assert.Equal(t, beforeTip, afterTip)
}

func TestDiffCommitsReportsAddedFile(t *testing.T) {
	r, root := newTestRepo(t)
	author := Identity{Name: "Ada", Email: "ada@example.com"}

	head, err := r.EditFile("main", "a.txt", []byte("line1\nline2\n"), author, "")
	require.NoError(t, err)

	diffs, err := r.DiffCommits(root, head)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "a.txt", diffs[0].Path)
	assert.Nil(t, diffs[0].From)
	require.NotNil(t, diffs[0].To)
	require.NotNil(t, diffs[0].Unified)
	assert.True(t, strings.Contains(diffs[0].Unified.String(), "+line1"))
}
