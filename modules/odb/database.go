package odb

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync/atomic"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
)

// UnexpectedObjectType is returned by Database lookups when the object found
// under a hash does not match the type the caller asked for.
type UnexpectedObjectType struct {
	Got    object.ObjectType
	Wanted object.ObjectType
}

func (e *UnexpectedObjectType) Error() string {
	return fmt.Sprintf("odb: unexpected object type: got %q, wanted %q", e.Got, e.Wanted)
}

// Database reads and writes framed, compressed objects against a read
// backend and a write backend, which may be the same store.
type Database struct {
	closed uint32

	ro     Storage
	rw     WritableStorage
	shared bool // ro and rw are the same backend
	tmp    string
}

// NewDatabase constructs a Database backed by a single read/write storage
// implementation, using tmp as the staging directory for new object writes.
func NewDatabase(rw WritableStorage, tmp string) *Database {
	return &Database{ro: rw, rw: rw, shared: true, tmp: tmp}
}

// NewLayeredDatabase constructs a Database that reads from ro (falling
// through multiple sources, see MultiStorage) but only ever writes to rw.
func NewLayeredDatabase(ro Storage, rw WritableStorage, tmp string) *Database {
	return &Database{ro: ro, rw: rw, tmp: tmp}
}

// Close closes both the read and write backends. It is an error to call
// Close twice.
func (d *Database) Close() error {
	if !atomic.CompareAndSwapUint32(&d.closed, 0, 1) {
		return fmt.Errorf("odb: database already closed")
	}
	if err := d.ro.Close(); err != nil {
		return err
	}
	if d.shared {
		return nil
	}
	return d.rw.Close()
}

// Object returns the object named by oid, with its concrete type determined
// by its stored header.
func (d *Database) Object(oid plumbing.Hash) (object.Object, error) {
	r, err := d.open(oid)
	if err != nil {
		return nil, err
	}

	typ, _, err := r.Header()
	if err != nil {
		return nil, err
	}

	var into object.Object
	switch typ {
	case object.BlobObjectType:
		into = new(object.Blob)
	case object.TreeObjectType:
		into = object.NewTree(nil)
	case object.CommitObjectType:
		into = new(object.Commit)
	case object.TagObjectType:
		into = new(object.Tag)
	default:
		return nil, &ErrMalformedObject{Reason: fmt.Sprintf("unknown object type %q", typ)}
	}
	return into, d.decodeInto(r, into)
}

// Blob looks up oid and decodes it as a Blob.
func (d *Database) Blob(oid plumbing.Hash) (*object.Blob, error) {
	b := new(object.Blob)
	if err := d.openDecode(oid, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Tree looks up oid and decodes it as a Tree.
func (d *Database) Tree(oid plumbing.Hash) (*object.Tree, error) {
	t := object.NewTree(nil)
	if err := d.openDecode(oid, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Commit looks up oid and decodes it as a Commit.
func (d *Database) Commit(oid plumbing.Hash) (*object.Commit, error) {
	c := new(object.Commit)
	if err := d.openDecode(oid, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Tag looks up oid and decodes it as a Tag.
func (d *Database) Tag(oid plumbing.Hash) (*object.Tag, error) {
	t := new(object.Tag)
	if err := d.openDecode(oid, t); err != nil {
		return nil, err
	}
	return t, nil
}

// WriteBlob stores b and returns its hash.
func (d *Database) WriteBlob(b *object.Blob) (plumbing.Hash, error) {
	tmp, err := os.CreateTemp(d.tmp, "blob-")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer d.cleanup(tmp)

	to := NewObjectWriter(tmp)
	if _, err = to.WriteHeader(b.Type(), b.Size); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err = io.Copy(to, b.Contents); err != nil {
		return plumbing.ZeroHash, err
	}
	if err = b.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	if err = to.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return plumbing.ZeroHash, err
	}
	return d.save(to.Sha(), tmp)
}

// WriteTree stores t and returns its hash.
func (d *Database) WriteTree(t *object.Tree) (plumbing.Hash, error) {
	return d.encode(t)
}

// WriteCommit stores c and returns its hash.
func (d *Database) WriteCommit(c *object.Commit) (plumbing.Hash, error) {
	return d.encode(c)
}

// WriteTag stores t and returns its hash.
func (d *Database) WriteTag(t *object.Tag) (plumbing.Hash, error) {
	return d.encode(t)
}

// Exists reports whether oid is present in the read backend.
func (d *Database) Exists(oid plumbing.Hash) error {
	return d.ro.Exists(oid)
}

func (d *Database) encode(obj object.Object) (plumbing.Hash, error) {
	buf := bytes.NewBuffer(nil)
	n, err := obj.Encode(buf)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	tmp, err := os.CreateTemp(d.tmp, "obj-")
	if err != nil {
		return plumbing.ZeroHash, err
	}
	defer d.cleanup(tmp)

	to := NewObjectWriter(tmp)
	if _, err = to.WriteHeader(obj.Type(), int64(n)); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err = io.Copy(to, buf); err != nil {
		return plumbing.ZeroHash, err
	}
	if err = to.Close(); err != nil {
		return plumbing.ZeroHash, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return plumbing.ZeroHash, err
	}
	return d.save(to.Sha(), tmp)
}

func (d *Database) save(oid plumbing.Hash, r io.Reader) (plumbing.Hash, error) {
	if _, err := d.rw.Store(oid, r); err != nil {
		return plumbing.ZeroHash, err
	}
	return oid, nil
}

func (d *Database) open(oid plumbing.Hash) (*ObjectReader, error) {
	if atomic.LoadUint32(&d.closed) == 1 {
		return nil, fmt.Errorf("odb: database is closed")
	}
	f, err := d.ro.Open(oid)
	if err != nil {
		if plumbing.IsNoSuchObject(err) {
			return nil, err
		}
		return nil, &ErrIO{Op: "open", Err: err}
	}
	if d.ro.IsCompressed() {
		return NewObjectReadCloser(f)
	}
	return NewUncompressedObjectReadCloser(f)
}

func (d *Database) openDecode(oid plumbing.Hash, into object.Object) error {
	r, err := d.open(oid)
	if err != nil {
		return err
	}
	return d.decodeInto(r, into)
}

// decodeInto validates the stored header against into's declared type before
// decoding. Blobs are left open (their Contents is a lazy LimitReader) and
// must be closed explicitly by the caller via Blob.Close.
func (d *Database) decodeInto(r *ObjectReader, into object.Object) error {
	typ, size, err := r.Header()
	if err != nil {
		return err
	}
	if typ != into.Type() {
		return &UnexpectedObjectType{Got: typ, Wanted: into.Type()}
	}
	if _, err = into.Decode(r, size); err != nil {
		return err
	}
	if into.Type() == object.BlobObjectType {
		return nil
	}
	return r.Close()
}

func (d *Database) cleanup(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}
