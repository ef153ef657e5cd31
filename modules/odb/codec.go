package odb

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zlib"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/plumbing"
)

// ObjectWriter frames an object's type/size header plus payload the way git
// writes loose objects: "<type> SP <size> NUL <payload>", zlib-compressed,
// with the object ID computed as the SHA-1 of the uncompressed framing.
type ObjectWriter struct {
	zw     *zlib.Writer
	hasher plumbing.Hasher
	mw     io.Writer
}

// NewObjectWriter wraps w, compressing everything subsequently written
// through the returned *ObjectWriter and hashing the uncompressed bytes.
func NewObjectWriter(w io.Writer) *ObjectWriter {
	return NewObjectWriterLevel(w, zlib.DefaultCompression)
}

// NewObjectWriterLevel is NewObjectWriter with an explicit zlib level.
func NewObjectWriterLevel(w io.Writer, level int) *ObjectWriter {
	zw, err := zlib.NewWriterLevel(w, level)
	if err != nil {
		zw = zlib.NewWriter(w)
	}
	ow := &ObjectWriter{zw: zw, hasher: plumbing.NewHasher()}
	ow.mw = io.MultiWriter(ow.zw, ow.hasher)
	return ow
}

// WriteHeader writes the "<type> SP <size> NUL" header that must precede the
// object's encoded payload.
func (w *ObjectWriter) WriteHeader(typ object.ObjectType, size int64) (int, error) {
	return fmt.Fprintf(w.mw, "%s %d\x00", typ, size)
}

func (w *ObjectWriter) Write(p []byte) (int, error) {
	return w.mw.Write(p)
}

// Sha returns the SHA-1 object ID of everything written so far.
func (w *ObjectWriter) Sha() plumbing.Hash {
	return w.hasher.Sum()
}

// Close flushes and closes the underlying zlib stream.
func (w *ObjectWriter) Close() error {
	return w.zw.Close()
}

// ObjectReader reads a zlib-compressed loose object, exposing its header and
// then its raw (already-inflated) payload via Read.
type ObjectReader struct {
	rc         io.ReadCloser
	zr         io.ReadCloser
	br         *bufio.Reader
	typ        object.ObjectType
	size       int64
	headerRead bool
}

// NewObjectReadCloser wraps rc, inflating the zlib stream it contains.
func NewObjectReadCloser(rc io.ReadCloser) (*ObjectReader, error) {
	zr, err := zlib.NewReader(rc)
	if err != nil {
		_ = rc.Close()
		return nil, &ErrCorruptObject{Reason: "zlib stream won't inflate", Err: err}
	}
	return &ObjectReader{rc: rc, zr: zr, br: bufio.NewReader(zr)}, nil
}

// NewUncompressedObjectReadCloser wraps rc directly, for backends (such as
// multiStorage's normalized view) whose bytes are already inflated.
func NewUncompressedObjectReadCloser(rc io.ReadCloser) (*ObjectReader, error) {
	return &ObjectReader{rc: rc, br: bufio.NewReader(rc)}, nil
}

// Header reads (memoizing) the object's type/size header.
func (r *ObjectReader) Header() (object.ObjectType, int64, error) {
	if r.headerRead {
		return r.typ, r.size, nil
	}
	line, err := r.br.ReadString(0x00)
	if err != nil {
		return object.UnknownObjectType, 0, &ErrMalformedObject{Reason: "truncated header", Err: err}
	}
	line = strings.TrimSuffix(line, "\x00")
	typStr, sizeStr, ok := strings.Cut(line, " ")
	if !ok {
		return object.UnknownObjectType, 0, &ErrMalformedObject{Reason: fmt.Sprintf("malformed header %q", line)}
	}
	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil {
		return object.UnknownObjectType, 0, &ErrMalformedObject{Reason: fmt.Sprintf("malformed size %q", sizeStr), Err: err}
	}
	r.typ = object.ObjectTypeFromString(typStr)
	r.size = size
	r.headerRead = true
	return r.typ, r.size, nil
}

func (r *ObjectReader) Read(p []byte) (int, error) {
	return r.br.Read(p)
}

// Close closes both the inflate stream and the underlying reader.
func (r *ObjectReader) Close() error {
	if r.zr != nil {
		if err := r.zr.Close(); err != nil {
			_ = r.rc.Close()
			return err
		}
	}
	return r.rc.Close()
}
