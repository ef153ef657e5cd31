// Package object implements the four git object kinds (blob, tree, commit,
// tag) and their canonical on-disk framing: a type/size header followed by
// the type-specific payload, as read and written (uncompressed) from the
// loose object store in modules/odb.
package object

import "io"

// ObjectType identifies which of the four object kinds a payload decodes as.
type ObjectType int

const (
	UnknownObjectType ObjectType = iota
	CommitObjectType
	TreeObjectType
	BlobObjectType
	TagObjectType
)

func (t ObjectType) String() string {
	switch t {
	case CommitObjectType:
		return "commit"
	case TreeObjectType:
		return "tree"
	case BlobObjectType:
		return "blob"
	case TagObjectType:
		return "tag"
	default:
		return "unknown"
	}
}

// ObjectTypeFromString parses the type token that prefixes a loose object's
// header, e.g. the "commit" in "commit 231\x00...".
func ObjectTypeFromString(s string) ObjectType {
	switch s {
	case "commit":
		return CommitObjectType
	case "tree":
		return TreeObjectType
	case "blob":
		return BlobObjectType
	case "tag":
		return TagObjectType
	default:
		return UnknownObjectType
	}
}

// Object is satisfied by all four object kinds.
type Object interface {
	// Type returns the object's kind.
	Type() ObjectType
	// Encode writes the object's payload (not including the "<type> SP
	// <size> NUL" header) to w, returning the number of bytes written.
	Encode(w io.Writer) (int, error)
	// Decode reads an object's payload of the given size from r. The
	// caller is responsible for providing a reader limited to exactly
	// size bytes of payload.
	Decode(r io.Reader, size int64) (int, error)
}
