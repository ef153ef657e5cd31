package merge

import (
	"bytes"
	"crypto/sha1"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/modules/plumbing/filemode"
)

// fakeDB is an in-memory content-addressed store, enough of odb.Database for
// MergeTrees to flatten, read, and rebuild trees against.
type fakeDB struct {
	blobs map[plumbing.Hash][]byte
	trees map[plumbing.Hash]*object.Tree
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		blobs: make(map[plumbing.Hash][]byte),
		trees: make(map[plumbing.Hash]*object.Tree),
	}
}

func contentHash(b []byte) plumbing.Hash {
	sum := sha1.Sum(b)
	return plumbing.Hash(sum)
}

func (db *fakeDB) Blob(oid plumbing.Hash) (*object.Blob, error) {
	content, ok := db.blobs[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return &object.Blob{Size: int64(len(content)), Contents: bytes.NewReader(content)}, nil
}

func (db *fakeDB) Tree(oid plumbing.Hash) (*object.Tree, error) {
	t, ok := db.trees[oid]
	if !ok {
		return nil, plumbing.NoSuchObject(oid)
	}
	return t, nil
}

func (db *fakeDB) WriteBlob(b *object.Blob) (plumbing.Hash, error) {
	content, err := io.ReadAll(b.Contents)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	h := contentHash(content)
	db.blobs[h] = content
	return h, nil
}

func (db *fakeDB) WriteTree(t *object.Tree) (plumbing.Hash, error) {
	var buf bytes.Buffer
	for _, e := range t.Entries {
		buf.WriteString(e.Mode.String())
		buf.WriteByte(' ')
		buf.WriteString(e.Name)
		buf.WriteByte(0)
		buf.Write(e.Hash[:])
	}
	h := contentHash(buf.Bytes())
	db.trees[h] = t
	return h, nil
}

func (db *fakeDB) putBlob(content string) plumbing.Hash {
	h := contentHash([]byte(content))
	db.blobs[h] = []byte(content)
	return h
}

// flatTree builds a single-level tree (no subdirectories) from a path ->
// content map, every entry recorded as filemode.Regular unless overridden in
// modes.
func (db *fakeDB) flatTree(files map[string]string, modes map[string]filemode.FileMode) plumbing.Hash {
	var entries []*object.TreeEntry
	for name, content := range files {
		mode := filemode.Regular
		if m, ok := modes[name]; ok {
			mode = m
		}
		entries = append(entries, &object.TreeEntry{Name: name, Mode: mode, Hash: db.putBlob(content)})
	}
	h, err := db.WriteTree(object.NewTree(entries))
	if err != nil {
		panic(err)
	}
	return h
}

func (db *fakeDB) readBlob(t *testing.T, hash plumbing.Hash) string {
	t.Helper()
	content, ok := db.blobs[hash]
	require.True(t, ok, "blob %s not found", hash)
	return string(content)
}

func TestMergeTrees_CleanAutoMerge(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{"a.txt": "line1\nline2\nline3\n"}, nil)
	source := db.flatTree(map[string]string{"a.txt": "X\nline2\nline3\n"}, nil)
	target := db.flatTree(map[string]string{"a.txt": "line1\nline2\nY\n"}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	entry, ok := merged.Entry("a.txt")
	require.True(t, ok)
	assert.Equal(t, "X\nline2\nY\n", db.readBlob(t, entry.Hash))
}

func TestMergeTrees_ContentConflict(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{"a.txt": "line1\nline2\n"}, nil)
	source := db.flatTree(map[string]string{"a.txt": "source-change\nline2\n"}, nil)
	target := db.flatTree(map[string]string{"a.txt": "target-change\nline2\n"}, nil)

	result, err := MergeTrees(db, base, source, target, &Options{SourceLabel: "feature", TargetLabel: "main"})
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ContentConflict, result.Conflicts[0].Kind)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	entry, ok := merged.Entry("a.txt")
	require.True(t, ok)
	text := db.readBlob(t, entry.Hash)
	assert.True(t, strings.Contains(text, "<<<<<<< main"))
	assert.True(t, strings.Contains(text, "======="))
	assert.True(t, strings.Contains(text, ">>>>>>> feature"))
	assert.True(t, strings.Contains(text, "source-change"))
	assert.True(t, strings.Contains(text, "target-change"))
}

func TestMergeTrees_UnilateralModeChangeTakesTheChangedSide(t *testing.T) {
	// Only source changed the mode; target matches base exactly. Step 6's
	// "t == b, take s" rule applies before the mode-divergence check ever
	// runs, so this is a clean merge, not a conflict.
	db := newFakeDB()
	base := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Regular})
	source := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Executable})
	target := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Regular})

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	entry, ok := merged.Entry("run.sh")
	require.True(t, ok)
	assert.Equal(t, filemode.Executable, entry.Mode)
}

func TestMergeTrees_DistinctModesConflict(t *testing.T) {
	// Both sides changed the mode, to different values, with content left
	// untouched: neither side matches base, so this can't resolve via the
	// "take the side that didn't change" rule.
	db := newFakeDB()
	base := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Regular})
	source := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Executable})
	target := db.flatTree(map[string]string{"run.sh": "echo hi\n"}, map[string]filemode.FileMode{"run.sh": filemode.Symlink})

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, DistinctModesConflict, result.Conflicts[0].Kind)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	entry, ok := merged.Entry("run.sh")
	require.True(t, ok)
	assert.Equal(t, filemode.Symlink, entry.Mode)
}

func TestMergeTrees_ModifyDeleteConflict(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{"a.txt": "v1\n", "keep.txt": "k\n"}, nil)
	source := db.flatTree(map[string]string{"a.txt": "v2\n", "keep.txt": "k\n"}, nil)
	target := db.flatTree(map[string]string{"keep.txt": "k\n"}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ModifyDeleteConflict, result.Conflicts[0].Kind)
	assert.Equal(t, "a.txt", result.Conflicts[0].Path)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	_, ok := merged.Entry("a.txt")
	assert.False(t, ok, "conflicted modify/delete path is left out of the merged tree")
	_, ok = merged.Entry("keep.txt")
	assert.True(t, ok)
}

func TestMergeTrees_BothDeletedIsSilent(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{"a.txt": "v1\n"}, nil)
	source := db.flatTree(map[string]string{}, nil)
	target := db.flatTree(map[string]string{}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	assert.Equal(t, 0, len(merged.Entries))
}

func TestMergeTrees_BinaryConflict(t *testing.T) {
	db := newFakeDB()
	binA := "\x00\x01binary-a"
	binB := "\x00\x01binary-b"
	base := db.flatTree(map[string]string{"blob.bin": "\x00\x01binary-base"}, nil)
	source := db.flatTree(map[string]string{"blob.bin": binA}, nil)
	target := db.flatTree(map[string]string{"blob.bin": binB}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, BinaryConflict, result.Conflicts[0].Kind)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	entry, ok := merged.Entry("blob.bin")
	require.True(t, ok)
	assert.Equal(t, binA, db.readBlob(t, entry.Hash), "binary conflicts keep the source side")
}

func TestMergeTrees_AddAddConflict(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{}, nil)
	source := db.flatTree(map[string]string{"new.txt": "from source\n"}, nil)
	target := db.flatTree(map[string]string{"new.txt": "from target\n"}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	require.Len(t, result.Conflicts, 1)
	assert.Equal(t, ContentConflict, result.Conflicts[0].Kind)
	assert.Nil(t, result.Conflicts[0].Ancestor)
}

func TestMergeTrees_NonOverlappingAddsNoConflict(t *testing.T) {
	db := newFakeDB()
	base := db.flatTree(map[string]string{"common.txt": "c\n"}, nil)
	source := db.flatTree(map[string]string{"common.txt": "c\n", "source-only.txt": "s\n"}, nil)
	target := db.flatTree(map[string]string{"common.txt": "c\n", "target-only.txt": "t\n"}, nil)

	result, err := MergeTrees(db, base, source, target, nil)
	require.NoError(t, err)
	assert.Empty(t, result.Conflicts)

	merged, err := db.Tree(result.Tree)
	require.NoError(t, err)
	_, ok := merged.Entry("source-only.txt")
	assert.True(t, ok)
	_, ok = merged.Entry("target-only.txt")
	assert.True(t, ok)
}
