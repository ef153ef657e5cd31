// Package filemode implements the file modes used by git trees, as
// documented in https://github.com/git/git/blob/master/Documentation/technical/index-format.txt
package filemode

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// A FileMode represents the kind and permission bits of a git tree entry,
// encoded identically to the least significant 32 bits of a Unix stat.st_mode
// field, with a private high bit reserved for fragment decoration.
type FileMode uint32

const (
	// Empty is the zero value, used for entries with no associated mode.
	Empty FileMode = 0
	// Dir represents a tree.
	Dir FileMode = 0040000
	// Regular represents non-executable files.
	Regular FileMode = 0100644
	// Deprecated represents non-executable group-writable files, which
	// appear in trees written by ancient versions of git.
	Deprecated FileMode = 0100664
	// Executable represents executable files.
	Executable FileMode = 0100755
	// Symlink represents symbolic links to files.
	Symlink FileMode = 0120000
	// Submodule represents git submodules (gitlinks), recorded as the
	// commit hash of the submodule's HEAD.
	Submodule FileMode = 0160000
	// Fragments decorates a FileMode to indicate that the referenced blob
	// is stored as a sequence of content-defined chunks rather than a
	// single object. It is not part of the standard git mode bits; callers
	// must mask it off before comparing against the constants above.
	Fragments FileMode = 0400000
)

const (
	sIFMT = FileMode(0170000)
)

// Is returns whether the receiver has the same base mode as m, ignoring the
// Fragments decoration bit.
func (m FileMode) Is(other FileMode) bool {
	return m&^Fragments == other&^Fragments
}

// IsMalformed holds an unrecognized mode value encountered while decoding a
// tree entry.
type IsMalformed struct {
	Val uint32
}

func (e *IsMalformed) Error() string {
	return fmt.Sprintf("filemode: malformed mode: %o", e.Val)
}

// IsErrMalformedMode reports whether err is an IsMalformed error.
func IsErrMalformedMode(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*IsMalformed)
	return ok
}

// New takes the string representation of a tree entry mode (e.g. as found in
// the textual encoding of a tree object, or as output by `git ls-tree`) and
// returns the corresponding FileMode.
func New(s string) (FileMode, error) {
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Empty, fmt.Errorf("filemode: invalid mode %q: %w", s, err)
	}
	m := FileMode(n)
	switch m & sIFMT {
	case 0, Dir, Symlink, Submodule:
		return m, nil
	default:
		if m&sIFMT == FileMode(0100000) {
			return m, nil
		}
	}
	return Empty, &IsMalformed{Val: uint32(n)}
}

// NewFromOS converts a standard library os.FileMode into the nearest
// equivalent git FileMode.
func NewFromOS(m os.FileMode) (FileMode, error) {
	switch {
	case m.IsRegular():
		if isExecutable(m) {
			return Executable, nil
		}
		return Regular, nil
	case m.IsDir():
		return Dir, nil
	case m&os.ModeSymlink != 0:
		return Symlink, nil
	case m&os.ModeSocket != 0, m&os.ModeNamedPipe != 0, m&os.ModeDevice != 0:
		return Empty, fmt.Errorf("filemode: unsupported os.FileMode: %s", m)
	default:
		return Empty, fmt.Errorf("filemode: unsupported os.FileMode: %s", m)
	}
}

func isExecutable(m os.FileMode) bool {
	return m.Perm()&0111 != 0
}

// ToOSFileMode converts a FileMode to its closest equivalent os.FileMode. Git
// submodule entries have no direct OS equivalent and are reported as a
// regular, non-executable mode.
func (m FileMode) ToOSFileMode() (os.FileMode, error) {
	switch m &^ Fragments {
	case Dir:
		return os.ModeDir | 0755, nil
	case Symlink:
		return os.ModeSymlink | 0777, nil
	case Regular, Deprecated:
		return 0644, nil
	case Executable:
		return 0755, nil
	case Submodule:
		return 0644, nil
	case Empty:
		return 0, nil
	}
	return 0, &IsMalformed{Val: uint32(m)}
}

// Bytes returns the two-byte big-endian encoding of the base mode, with the
// Fragments decoration stripped. Used when a fixed-width mode field is
// required in an object's binary framing.
func (m FileMode) Bytes() []byte {
	base := m &^ Fragments
	return []byte{byte(base >> 8), byte(base)}
}

// String formats the mode the way git does in its plumbing commands and in
// the textual tree object encoding: unpadded octal, e.g. "100644".
func (m FileMode) String() string {
	base := m &^ Fragments
	if base == Empty {
		return "0"
	}
	return strconv.FormatUint(uint64(base), 8)
}

func (m FileMode) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *FileMode) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return fmt.Errorf("filemode: invalid mode %q: %w", s, err)
	}
	*m = FileMode(n)
	return nil
}
