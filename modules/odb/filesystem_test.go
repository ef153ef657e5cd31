package odb

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/forgecore/modules/plumbing"
)

func TestFilesystemStorageStoreAndOpenRoundTrip(t *testing.T) {
	fs := NewFilesystemStorage(t.TempDir())
	oid := plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")

	require.ErrorIs(t, fs.Exists(oid), plumbing.NoSuchObject(oid))

	n, err := fs.Store(oid, bytes.NewBufferString("payload"))
	require.NoError(t, err)
	assert.Equal(t, int64(len("payload")), n)

	require.NoError(t, fs.Exists(oid))

	rc, err := fs.Open(oid)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(got))
}

func TestFilesystemStorageOpenMissingReturnsNoSuchObject(t *testing.T) {
	fs := NewFilesystemStorage(t.TempDir())
	oid := plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")

	_, err := fs.Open(oid)
	assert.True(t, plumbing.IsNoSuchObject(err))
}

func TestFilesystemStorageLooseObjects(t *testing.T) {
	fs := NewFilesystemStorage(t.TempDir())
	oid1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	oid2 := plumbing.NewHash("2222222222222222222222222222222222222222")

	_, err := fs.Store(oid1, bytes.NewBufferString("a"))
	require.NoError(t, err)
	_, err = fs.Store(oid2, bytes.NewBufferString("b"))
	require.NoError(t, err)

	hashes, err := fs.LooseObjects()
	require.NoError(t, err)
	assert.ElementsMatch(t, []plumbing.Hash{oid1, oid2}, hashes)
}

func TestFilesystemStoragePruneObjectAndPrune(t *testing.T) {
	fs := NewFilesystemStorage(t.TempDir())
	oid := plumbing.NewHash("3333333333333333333333333333333333333333")

	_, err := fs.Store(oid, bytes.NewBufferString("c"))
	require.NoError(t, err)

	require.NoError(t, fs.PruneObject(oid))
	assert.True(t, plumbing.IsNoSuchObject(fs.Exists(oid)))

	require.NoError(t, fs.Prune())

	hashes, err := fs.LooseObjects()
	require.NoError(t, err)
	assert.Empty(t, hashes)
}

func TestMultiStorageFallsThroughToSecondSource(t *testing.T) {
	primary := NewFilesystemStorage(t.TempDir())
	secondary := NewFilesystemStorage(t.TempDir())

	oid := plumbing.NewHash("4444444444444444444444444444444444444444")
	_, err := secondary.Store(oid, bytes.NewBufferString("from-secondary"))
	require.NoError(t, err)

	ms := MultiStorage(primary, secondary)
	require.NoError(t, ms.Exists(oid))

	rc, err := ms.Open(oid)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "from-secondary", string(got))
}

func TestMultiStorageNotFoundAnywhere(t *testing.T) {
	ms := MultiStorage(NewFilesystemStorage(t.TempDir()), NewFilesystemStorage(t.TempDir()))
	oid := plumbing.NewHash("5555555555555555555555555555555555555555")

	_, err := ms.Open(oid)
	assert.True(t, plumbing.IsNoSuchObject(err))
}
