package object

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	emap "github.com/emirpasic/gods/maps/linkedhashmap"

	"github.com/antgroup/forgecore/modules/plumbing"
	"github.com/antgroup/forgecore/modules/plumbing/filemode"
)

// TreeEntry is a single entry of a Tree: a name, the mode under which it is
// recorded, and the hash of the blob, tree, or commit (submodule) it points
// at.
type TreeEntry struct {
	Name string
	Mode filemode.FileMode
	Hash plumbing.Hash
}

// Equal returns whether the receiving and given TreeEntry instances are
// identical in name, mode, and hash.
func (e *TreeEntry) Equal(other *TreeEntry) bool {
	if (e == nil) != (other == nil) {
		return false
	}
	if e == nil {
		return true
	}
	return e.Name == other.Name && e.Mode == other.Mode && e.Hash == other.Hash
}

// Type reports which kind of object this entry's Hash refers to.
func (e *TreeEntry) Type() ObjectType {
	switch e.Mode &^ filemode.Fragments {
	case filemode.Dir:
		return TreeObjectType
	case filemode.Submodule:
		return CommitObjectType
	default:
		return BlobObjectType
	}
}

// IsDir reports whether the entry names a subtree.
func (e *TreeEntry) IsDir() bool {
	return e.Mode&^filemode.Fragments == filemode.Dir
}

// Tree is a git tree object: an ordered set of named entries, each pointing
// at a blob, a subtree, or a submodule commit.
type Tree struct {
	Entries []*TreeEntry

	m map[string]*TreeEntry
}

func NewTree(entries []*TreeEntry) *Tree {
	return &Tree{Entries: entries}
}

func (t *Tree) Type() ObjectType { return TreeObjectType }

func (t *Tree) buildMap() {
	t.m = make(map[string]*TreeEntry, len(t.Entries))
	for _, e := range t.Entries {
		t.m[e.Name] = e
	}
}

// Entry looks up an immediate child of the tree by name.
func (t *Tree) Entry(name string) (*TreeEntry, bool) {
	if t.m == nil {
		t.buildMap()
	}
	e, ok := t.m[name]
	return e, ok
}

// Equal returns whether the receiving and given trees are equal, i.e. would
// hash to the same object ID.
func (t *Tree) Equal(other *Tree) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t == nil {
		return true
	}
	if len(t.Entries) != len(other.Entries) {
		return false
	}
	for i := range t.Entries {
		if !t.Entries[i].Equal(other.Entries[i]) {
			return false
		}
	}
	return true
}

// SubtreeOrder is an implementation of sort.Interface that sorts a set of
// *TreeEntry's according to "subtree" order: entries are sorted
// lexicographically in byte-order, with subtrees sorted as if their Name
// fields ended in a "/". This is required to write trees in a format git
// considers canonical.
//
// See: https://github.com/git/git/blob/v2.13.0/fsck.c#L492-L525
type SubtreeOrder []*TreeEntry

func (s SubtreeOrder) Len() int      { return len(s) }
func (s SubtreeOrder) Swap(i, j int) { s[i], s[j] = s[j], s[i] }
func (s SubtreeOrder) Less(i, j int) bool {
	return s.sortName(i) < s.sortName(j)
}

func (s SubtreeOrder) sortName(i int) string {
	if i < 0 || i >= len(s) {
		return ""
	}
	entry := s[i]
	if entry.Type() == TreeObjectType {
		return entry.Name + "/"
	}
	return entry.Name
}

// Encode writes the tree body: for each entry (in SubtreeOrder), the ASCII
// octal mode, a space, the entry name, a NUL byte, and the entry's raw
// 20-byte hash.
func (t *Tree) Encode(w io.Writer) (int, error) {
	entries := make(SubtreeOrder, len(t.Entries))
	copy(entries, t.Entries)
	sort.Sort(entries)

	var b bytes.Buffer
	for _, e := range entries {
		fmt.Fprintf(&b, "%s %s\x00", e.Mode.String(), e.Name)
		b.Write(e.Hash[:])
	}
	return w.Write(b.Bytes())
}

// Decode parses a tree body of the given size from r.
func (t *Tree) Decode(r io.Reader, size int64) (int, error) {
	br := bufio.NewReader(io.LimitReader(r, size))

	var entries []*TreeEntry
	for {
		modeAndName, err := br.ReadString(0x00)
		if err != nil {
			if err == io.EOF {
				break
			}
			return 0, err
		}
		modeAndName = strings.TrimSuffix(modeAndName, "\x00")
		modeStr, name, ok := strings.Cut(modeAndName, " ")
		if !ok {
			return 0, fmt.Errorf("object: malformed tree entry: %q", modeAndName)
		}
		mode, err := filemode.New(modeStr)
		if err != nil {
			return 0, err
		}

		var h plumbing.Hash
		if _, err := io.ReadFull(br, h[:]); err != nil {
			return 0, fmt.Errorf("object: truncated tree entry hash: %w", err)
		}

		entries = append(entries, &TreeEntry{Name: name, Mode: mode, Hash: h})
	}

	t.Entries = entries
	return int(size), nil
}

// Flatten walks the tree rooted at hash (loaded via open), producing an
// ordered path -> TreeEntry map where directory components have been joined
// with "/". The returned PathMap preserves traversal (subtree) order, which
// is also the order git considers canonical for the equivalent flat listing.
func Flatten(hash plumbing.Hash, open func(plumbing.Hash) (*Tree, error)) (*PathMap, error) {
	pm := NewPathMap()
	if err := flattenInto(pm, "", hash, open); err != nil {
		return nil, err
	}
	return pm, nil
}

func flattenInto(pm *PathMap, prefix string, hash plumbing.Hash, open func(plumbing.Hash) (*Tree, error)) error {
	tree, err := open(hash)
	if err != nil {
		return err
	}
	entries := make(SubtreeOrder, len(tree.Entries))
	copy(entries, tree.Entries)
	sort.Sort(entries)

	for _, e := range entries {
		p := e.Name
		if prefix != "" {
			p = prefix + "/" + e.Name
		}
		if e.IsDir() {
			if err := flattenInto(pm, p, e.Hash, open); err != nil {
				return err
			}
			continue
		}
		pm.Put(p, &PathEntry{Hash: e.Hash, Mode: e.Mode})
	}
	return nil
}

// ErrEmptyDirectory is returned by Build when a PathMap contains a path
// whose prefix is already recorded as a leaf (e.g. both "a" and "a/b"),
// or whose immediate parent has no entries once its own leaf is removed.
// Either way the directory component named can't be represented as a tree.
type ErrEmptyDirectory struct {
	Path string
}

func (err ErrEmptyDirectory) Error() string {
	return fmt.Sprintf("object: empty directory: %q", err.Path)
}

func IsErrEmptyDirectory(err error) bool {
	_, ok := err.(ErrEmptyDirectory)
	return ok
}

// Build reconstructs a nested tree structure from a flat PathMap and returns
// the hash of the root tree, writing every tree object it creates (including
// intermediate subtrees) via write. Build is the inverse of Flatten: for any
// hash h, Build(Flatten(h, open), write) == h.
func Build(pm *PathMap, write func(*Tree) (plumbing.Hash, error)) (plumbing.Hash, error) {
	root := newBuildNode()
	it := pm.Iterator()
	for it.Next() {
		path := it.Key().(string)
		entry := it.Value().(*PathEntry)
		if err := root.insert(path, strings.Split(path, "/"), entry); err != nil {
			return plumbing.ZeroHash, err
		}
	}
	return root.write(write)
}

type buildNode struct {
	entry    *PathEntry
	children map[string]*buildNode
	order    []string
}

func newBuildNode() *buildNode {
	return &buildNode{children: make(map[string]*buildNode)}
}

func (n *buildNode) insert(fullPath string, parts []string, entry *PathEntry) error {
	if len(parts) == 1 {
		if child, ok := n.children[parts[0]]; ok && len(child.children) > 0 {
			return ErrEmptyDirectory{Path: fullPath}
		}
		if _, ok := n.children[parts[0]]; !ok {
			n.order = append(n.order, parts[0])
		}
		n.children[parts[0]] = &buildNode{entry: entry, children: make(map[string]*buildNode)}
		return nil
	}
	child, ok := n.children[parts[0]]
	if !ok {
		child = newBuildNode()
		n.children[parts[0]] = child
		n.order = append(n.order, parts[0])
	} else if child.entry != nil {
		return ErrEmptyDirectory{Path: fullPath}
	}
	return child.insert(fullPath, parts[1:], entry)
}

func (n *buildNode) write(write func(*Tree) (plumbing.Hash, error)) (plumbing.Hash, error) {
	entries := make([]*TreeEntry, 0, len(n.order))
	for _, name := range n.order {
		child := n.children[name]
		if child.entry != nil {
			if len(child.children) > 0 {
				return plumbing.ZeroHash, ErrEmptyDirectory{Path: name}
			}
			entries = append(entries, &TreeEntry{Name: name, Mode: child.entry.Mode, Hash: child.entry.Hash})
			continue
		}
		if len(child.order) == 0 {
			return plumbing.ZeroHash, ErrEmptyDirectory{Path: name}
		}
		h, err := child.write(write)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		entries = append(entries, &TreeEntry{Name: name, Mode: filemode.Dir, Hash: h})
	}
	sort.Sort(SubtreeOrder(entries))
	return write(&Tree{Entries: entries})
}

// PathEntry is the value type stored in a PathMap: the file mode and object
// hash a flattened path resolves to.
type PathEntry struct {
	Hash plumbing.Hash
	Mode filemode.FileMode
}

// PathMap is an insertion-ordered map from a flattened repository path to its
// PathEntry, backed by emirpasic/gods' linked hash map so that iteration
// order matches insertion (and therefore subtree) order.
type PathMap struct {
	m *emap.Map
}

func NewPathMap() *PathMap {
	return &PathMap{m: emap.New()}
}

func (pm *PathMap) Put(path string, entry *PathEntry) {
	pm.m.Put(path, entry)
}

func (pm *PathMap) Get(path string) (*PathEntry, bool) {
	v, ok := pm.m.Get(path)
	if !ok {
		return nil, false
	}
	return v.(*PathEntry), true
}

func (pm *PathMap) Remove(path string) {
	pm.m.Remove(path)
}

func (pm *PathMap) Len() int {
	return pm.m.Size()
}

func (pm *PathMap) Iterator() emap.Iterator {
	return pm.m.Iterator()
}
