package object

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlobReturnsCorrectObjectType(t *testing.T) {
	assert.Equal(t, BlobObjectType, new(Blob).Type())
}

func TestBlobEncodeDecodeRoundTrip(t *testing.T) {
	content := "hello, world\n"
	blob := &Blob{Size: int64(len(content)), Contents: strings.NewReader(content)}

	buf := new(bytes.Buffer)
	n, err := blob.Encode(buf)
	require.NoError(t, err)
	assert.Equal(t, len(content), n)
	assert.Equal(t, content, buf.String())

	decoded := new(Blob)
	_, err = decoded.Decode(buf, int64(len(content)))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), decoded.Size)

	got, err := io.ReadAll(decoded.Contents)
	require.NoError(t, err)
	assert.Equal(t, content, string(got))
}

func TestBlobCloseDrainsRemainingContents(t *testing.T) {
	buf := bytes.NewBufferString("0123456789")
	blob := new(Blob)
	_, err := blob.Decode(buf, 5)
	require.NoError(t, err)

	require.NoError(t, blob.Close())
	assert.Equal(t, 5, buf.Len())
}
