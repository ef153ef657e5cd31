package object

import "io"

// Blob is an opaque sequence of bytes: file content, with no further
// structure imposed by the object model.
type Blob struct {
	Size     int64
	Contents io.Reader
}

func (b *Blob) Type() ObjectType { return BlobObjectType }

// Encode copies the blob's contents to w. The caller must have already set
// Size to the number of bytes Contents will yield.
func (b *Blob) Encode(w io.Writer) (int, error) {
	n, err := io.Copy(w, b.Contents)
	return int(n), err
}

// Decode wraps an io.LimitReader over r as the blob's Contents. Unlike Tree,
// Commit, and Tag, Decode does not eagerly consume the stream: callers must
// read (or discard) Contents themselves before reusing the underlying
// reader.
func (b *Blob) Decode(r io.Reader, size int64) (int, error) {
	b.Size = size
	b.Contents = io.LimitReader(r, size)
	return int(size), nil
}

// Close drains and discards any remaining bytes of Contents, as required
// before a *Blob can be safely discarded without reading it fully.
func (b *Blob) Close() error {
	if b.Contents == nil {
		return nil
	}
	_, err := io.Copy(io.Discard, b.Contents)
	return err
}
