package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/antgroup/forgecore/modules/plumbing"
)

// Tag is an annotated tag object: a pointer to another object (almost always
// a commit), the name under which it was created, a tagger line, and a
// message which may carry a trailing PGP/SSH signature block.
type Tag struct {
	Object     plumbing.Hash
	ObjectType ObjectType
	Name       string
	Tagger     string

	Message string
}

func (t *Tag) Type() ObjectType { return TagObjectType }

// Extract splits the tag message from a trailing detached signature, if one
// is present. The split is made at the first occurrence of "-----BEGIN"
// after the start of the message, wherever on its line it appears.
//
// See: https://git-scm.com/docs/signature-format
func (t *Tag) Extract() (message string, signature string) {
	if i := strings.Index(t.Message, "-----BEGIN"); i > 0 {
		return t.Message[:i], t.Message[i:]
	}
	return t.Message, ""
}

// StrictMessage returns the tag message with any trailing signature block
// stripped.
func (t *Tag) StrictMessage() string {
	m, _ := t.Extract()
	return m
}

// Decode parses a tag body of the given size from r.
func (t *Tag) Decode(r io.Reader, size int64) (int, error) {
	br := bufio.NewReader(io.LimitReader(r, size))

	var finishedHeaders bool
	var message strings.Builder

	for {
		line, readErr := br.ReadString('\n')
		if readErr != nil && readErr != io.EOF {
			return 0, readErr
		}

		if finishedHeaders {
			message.WriteString(line)
		} else {
			text := strings.TrimSuffix(line, "\n")
			if len(text) == 0 {
				finishedHeaders = true
			} else {
				field, value, ok := strings.Cut(text, " ")
				if !ok {
					return 0, fmt.Errorf("object: invalid tag header: %s", text)
				}
				switch field {
				case "object":
					h, err := plumbing.NewHashEx(value)
					if err != nil {
						return 0, fmt.Errorf("object: unable to decode tag's object id: %w", err)
					}
					t.Object = h
				case "type":
					t.ObjectType = ObjectTypeFromString(value)
				case "tag":
					t.Name = value
				case "tagger":
					t.Tagger = value
				default:
					return 0, fmt.Errorf("object: unknown tag header: %s", field)
				}
			}
		}

		if readErr == io.EOF {
			break
		}
	}

	t.Message = message.String()
	return int(size), nil
}

// Encode writes the tag body: object, type, tag name, tagger, a blank line,
// then the message.
func (t *Tag) Encode(w io.Writer) (int, error) {
	headers := []string{
		fmt.Sprintf("object %s", t.Object),
		fmt.Sprintf("type %s", t.ObjectType),
		fmt.Sprintf("tag %s", t.Name),
		fmt.Sprintf("tagger %s", t.Tagger),
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "%s\n\n%s", strings.Join(headers, "\n"), t.Message)
	return w.Write(b.Bytes())
}

// Equal returns whether the receiving and given Tags would hash to the same
// object ID.
func (t *Tag) Equal(other *Tag) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t == nil {
		return true
	}
	return t.Object == other.Object &&
		t.ObjectType == other.ObjectType &&
		t.Name == other.Name &&
		t.Tagger == other.Tagger &&
		t.Message == other.Message
}
