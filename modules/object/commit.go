package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// ExtraHeader encapsulates a key-value pairing of header key to header value.
// It is stored as a struct{string, string} rather than a map[string]string
// to preserve header order through an encode/decode round trip, and to allow
// the same key (e.g. "mergetag") to appear more than once.
type ExtraHeader struct {
	// K is the header key, the run of bytes up to the first ' '.
	K string
	// V is the header value, with continuation lines (those prefixed with
	// a single space in the object body) joined by "\n".
	V string
}

// Commit is a git commit object: a pointer to a tree, zero or more parents,
// an author and committer line, any number of extra headers (encoding,
// gpgsig, mergetag, ...), and a free-form message.
type Commit struct {
	Author    string
	Committer string
	ParentIDs []plumbing.Hash
	TreeID    plumbing.Hash

	ExtraHeaders []*ExtraHeader
	Message      string
}

func (c *Commit) Type() ObjectType { return CommitObjectType }

// Encode writes the commit body in git's canonical field order: tree,
// parent(s), author, committer, extra headers, a blank line, then the
// message.
func (c *Commit) Encode(w io.Writer) (int, error) {
	var b bytes.Buffer

	fmt.Fprintf(&b, "tree %s\n", c.TreeID)
	for _, p := range c.ParentIDs {
		fmt.Fprintf(&b, "parent %s\n", p)
	}
	fmt.Fprintf(&b, "author %s\n", c.Author)
	fmt.Fprintf(&b, "committer %s\n", c.Committer)
	for _, hdr := range c.ExtraHeaders {
		fmt.Fprintf(&b, "%s %s\n", hdr.K, strings.ReplaceAll(hdr.V, "\n", "\n "))
	}
	fmt.Fprintf(&b, "\n%s", c.Message)

	return w.Write(b.Bytes())
}

// Decode parses a commit body of the given size from r. It never returns an
// error for malformed extra-header continuation lines; a continuation line
// encountered with no preceding header starts a new header keyed by its first
// word (the rest of the line is the value) rather than being rejected, since
// historic commits (particularly ones
// migrated from other systems) are not always well-formed here. It does
// reject a body missing its required tree or author header, returning
// *ErrMalformedObject rather than leaving TreeID at the zero hash.
func (c *Commit) Decode(r io.Reader, size int64) (int, error) {
	br := bufio.NewReader(io.LimitReader(r, size))

	var finishedHeaders bool
	var sawTree, sawAuthor bool
	var message strings.Builder

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return 0, readErr
		}

		switch {
		case finishedHeaders:
			message.WriteString(line)
		default:
			text := strings.TrimSuffix(line, "\n")
			switch {
			case len(text) == 0:
				finishedHeaders = true
			case strings.HasPrefix(text, " "):
				cont := text[1:]
				if n := len(c.ExtraHeaders); n > 0 {
					hdr := c.ExtraHeaders[n-1]
					hdr.V = hdr.V + "\n" + cont
				} else {
					k, v, _ := strings.Cut(cont, " ")
					c.ExtraHeaders = append(c.ExtraHeaders, &ExtraHeader{K: k, V: v})
				}
			default:
				field, value, ok := strings.Cut(text, " ")
				if !ok {
					field, value = text, ""
				}
				switch field {
				case "tree":
					h, err := plumbing.NewHashEx(value)
					if err != nil {
						return 0, fmt.Errorf("object: invalid tree header: %w", err)
					}
					c.TreeID = h
					sawTree = true
				case "parent":
					h, err := plumbing.NewHashEx(value)
					if err != nil {
						return 0, fmt.Errorf("object: invalid parent header: %w", err)
					}
					c.ParentIDs = append(c.ParentIDs, h)
				case "author":
					c.Author = value
					sawAuthor = true
				case "committer":
					c.Committer = value
				default:
					c.ExtraHeaders = append(c.ExtraHeaders, &ExtraHeader{K: field, V: value})
				}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	if !sawTree {
		return 0, &ErrMalformedObject{Type: CommitObjectType, Reason: "missing tree header"}
	}
	if !sawAuthor {
		return 0, &ErrMalformedObject{Type: CommitObjectType, Reason: "missing author header"}
	}

	c.Message = message.String()
	return int(size), nil
}

// Equal returns whether the receiving and given Commits would hash to the
// same object ID.
func (c *Commit) Equal(other *Commit) bool {
	if (c == nil) != (other == nil) {
		return false
	}
	if c == nil {
		return true
	}
	if len(c.ParentIDs) != len(other.ParentIDs) {
		return false
	}
	for i := range c.ParentIDs {
		if c.ParentIDs[i] != other.ParentIDs[i] {
			return false
		}
	}
	if len(c.ExtraHeaders) != len(other.ExtraHeaders) {
		return false
	}
	for i := range c.ExtraHeaders {
		if *c.ExtraHeaders[i] != *other.ExtraHeaders[i] {
			return false
		}
	}
	return c.Author == other.Author &&
		c.Committer == other.Committer &&
		c.Message == other.Message &&
		c.TreeID == other.TreeID
}
