package object

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/antgroup/forgecore/modules/plumbing"
)

func assertLine(t *testing.T, buf *bytes.Buffer, wanted string, args ...any) {
	t.Helper()
	wanted = fmt.Sprintf(wanted, args...)

	line, err := buf.ReadString('\n')
	line = strings.TrimSuffix(line, "\n")
	if err != nil && line == "" {
		assert.Empty(t, wanted)
	} else {
		assert.Equal(t, wanted, line)
	}
}

func TestCommitReturnsCorrectObjectType(t *testing.T) {
	assert.Equal(t, CommitObjectType, new(Commit).Type())
}

func TestCommitEncoding(t *testing.T) {
	author := &Signature{Name: "John Doe", Email: "john@example.com", When: time.Now()}
	committer := &Signature{Name: "Jane Doe", Email: "jane@example.com", When: time.Now()}

	sig := "-----BEGIN PGP SIGNATURE-----\n<signature>\n-----END PGP SIGNATURE-----"

	c := &Commit{
		Author:    author.String(),
		Committer: committer.String(),
		ParentIDs: []plumbing.Hash{
			plumbing.NewHash("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
			plumbing.NewHash("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"),
		},
		TreeID: plumbing.NewHash("cccccccccccccccccccccccccccccccccccccccc"),
		ExtraHeaders: []*ExtraHeader{
			{K: "foo", V: "bar"},
			{K: "gpgsig", V: sig},
		},
		Message: "initial commit",
	}

	buf := new(bytes.Buffer)
	_, err := c.Encode(buf)
	require.NoError(t, err)

	assertLine(t, buf, "tree %s", c.TreeID)
	assertLine(t, buf, "parent aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	assertLine(t, buf, "parent bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	assertLine(t, buf, "author %s", author.String())
	assertLine(t, buf, "committer %s", committer.String())
	assertLine(t, buf, "foo bar")
	assertLine(t, buf, "gpgsig -----BEGIN PGP SIGNATURE-----")
	assertLine(t, buf, " <signature>")
	assertLine(t, buf, " -----END PGP SIGNATURE-----")
	assertLine(t, buf, "")
	assertLine(t, buf, "initial commit")

	assert.Equal(t, 0, buf.Len())
}

func TestCommitDecoding(t *testing.T) {
	author := &Signature{Name: "John Doe", Email: "john@example.com", When: time.Now()}
	committer := &Signature{Name: "Jane Doe", Email: "jane@example.com", When: time.Now()}

	p1 := "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	p2 := "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
	treeID := "cccccccccccccccccccccccccccccccccccccccc"

	from := new(bytes.Buffer)
	fmt.Fprintf(from, "tree %s\n", treeID)
	fmt.Fprintf(from, "parent %s\n", p1)
	fmt.Fprintf(from, "parent %s\n", p2)
	fmt.Fprintf(from, "author %s\n", author)
	fmt.Fprintf(from, "committer %s\n", committer)
	fmt.Fprintf(from, "foo bar\n")
	fmt.Fprintf(from, "\ninitial commit")

	flen := from.Len()

	commit := new(Commit)
	n, err := commit.Decode(from, int64(flen))
	require.NoError(t, err)
	assert.Equal(t, flen, n)

	assert.Equal(t, author.String(), commit.Author)
	assert.Equal(t, committer.String(), commit.Committer)
	assert.Equal(t, []plumbing.Hash{plumbing.NewHash(p1), plumbing.NewHash(p2)}, commit.ParentIDs)
	require.Len(t, commit.ExtraHeaders, 1)
	assert.Equal(t, "foo", commit.ExtraHeaders[0].K)
	assert.Equal(t, "bar", commit.ExtraHeaders[0].V)
	assert.Equal(t, "initial commit", commit.Message)
}

func TestCommitDecodingMultilineHeader(t *testing.T) {
	treeID := "cccccccccccccccccccccccccccccccccccccccc"

	from := new(bytes.Buffer)
	fmt.Fprintf(from, "tree %s\n", treeID)
	fmt.Fprintf(from, "author John Doe <john@example.com> 1234567890 +0000\n")
	fmt.Fprintf(from, "committer Jane Doe <jane@example.com> 1234567890 +0000\n")
	fmt.Fprintf(from, "gpgsig -----BEGIN PGP SIGNATURE-----\n")
	fmt.Fprintf(from, " <signature>\n")
	fmt.Fprintf(from, " -----END PGP SIGNATURE-----\n")
	fmt.Fprintf(from, "\ninitial commit")

	flen := from.Len()

	commit := new(Commit)
	n, err := commit.Decode(from, int64(flen))
	require.NoError(t, err)
	assert.Equal(t, flen, n)
	require.Len(t, commit.ExtraHeaders, 1)

	hdr := commit.ExtraHeaders[0]
	assert.Equal(t, "gpgsig", hdr.K)
	assert.Equal(t, []string{
		"-----BEGIN PGP SIGNATURE-----",
		"<signature>",
		"-----END PGP SIGNATURE-----",
	}, strings.Split(hdr.V, "\n"))
}

func TestCommitDecodeWithMergetagContainingTreeLookingLine(t *testing.T) {
	from := new(bytes.Buffer)
	fmt.Fprint(from, `tree e8ad84c41c2acde27c77fa212b8865cd3acfe6fb
parent b343c8beec664ef6f0e9964d3001c7c7966331ae
author Pat Doe <pdoe@example.org> 1337892984 -0700
committer Pat Doe <pdoe@example.org> 1337892984 -0700
mergetag object 1e8a52e18cfb381bc9cc1f0b720540364d2a6edd
 type commit
 tag random
`+" "+`
 This text contains some
 tree support code.

Merge tag 'random' of git://git.example.ca/git/
`)

	flen := from.Len()
	commit := new(Commit)
	n, err := commit.Decode(from, int64(flen))
	require.NoError(t, err)
	assert.Equal(t, flen, n)

	require.Len(t, commit.ExtraHeaders, 1)
	assert.Equal(t, "mergetag", commit.ExtraHeaders[0].K)
	assert.Contains(t, commit.ExtraHeaders[0].V, "tree support code.")
	assert.Equal(t, "Merge tag 'random' of git://git.example.ca/git/\n", commit.Message)
}

func TestCommitDecodeContinuationWithoutPreviousHeaderDoesNotPanic(t *testing.T) {
	cc := `tree e8ad84c41c2acde27c77fa212b8865cd3acfe6fb
author Pat Doe <pdoe@example.org> 1337892984 -0700
committer Pat Doe <pdoe@example.org> 1337892984 -0700
 first continuation line before any extra header

test message`

	commit := new(Commit)
	require.NotPanics(t, func() {
		_, _ = commit.Decode(strings.NewReader(cc), int64(len(cc)))
	})
}

func TestCommitDecodeRejectsMissingTreeHeader(t *testing.T) {
	cc := `author Pat Doe <pdoe@example.org> 1337892984 -0700
committer Pat Doe <pdoe@example.org> 1337892984 -0700

test message`

	commit := new(Commit)
	_, err := commit.Decode(strings.NewReader(cc), int64(len(cc)))
	require.Error(t, err)
	assert.True(t, IsErrMalformedObject(err))
}

func TestCommitDecodeRejectsMissingAuthorHeader(t *testing.T) {
	cc := `tree e8ad84c41c2acde27c77fa212b8865cd3acfe6fb
committer Pat Doe <pdoe@example.org> 1337892984 -0700

test message`

	commit := new(Commit)
	_, err := commit.Decode(strings.NewReader(cc), int64(len(cc)))
	require.Error(t, err)
	assert.True(t, IsErrMalformedObject(err))
}

func TestCommitEqual(t *testing.T) {
	mk := func(msg string) *Commit {
		return &Commit{
			Author:    "a",
			Committer: "b",
			TreeID:    plumbing.NewHash("cccccccccccccccccccccccccccccccccccccccc"),
			Message:   msg,
		}
	}
	assert.True(t, mk("x").Equal(mk("x")))
	assert.False(t, mk("x").Equal(mk("y")))
	assert.True(t, (*Commit)(nil).Equal(nil))
	assert.False(t, mk("x").Equal(nil))
}
