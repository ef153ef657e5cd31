// Package cache fronts an odb.Database with a ristretto in-memory cache so
// hot commits/trees/tags served repeatedly during a merge or diff walk don't
// pay the decode cost (and, for remote backends, the round trip) twice.
package cache

import (
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/antgroup/forgecore/modules/object"
	"github.com/antgroup/forgecore/modules/odb"
	"github.com/antgroup/forgecore/modules/plumbing"
)

// Database decorates *odb.Database with a decode cache. Blobs are never
// cached: their Contents is a lazy stream tied to the underlying reader and
// caching the decoded value would outlive it.
type Database struct {
	db    *odb.Database
	cache *ristretto.Cache[string, any]
}

// Config sizes the cache. MaxCostGiB is shifted left by 30 to form ristretto's
// MaxCost, but every entry is stored with a cost of 1, so the bound counts
// entries rather than bytes of memory.
type Config struct {
	NumCounters int64
	MaxCostGiB  int64
	BufferItems int64
}

// DefaultConfig is a reasonable size for a single-process CLI or server
// handling one repository at a time.
var DefaultConfig = Config{NumCounters: 1e6, MaxCostGiB: 1, BufferItems: 64}

// New wraps db with a decode cache sized per cfg.
func New(db *odb.Database, cfg Config) (*Database, error) {
	c, err := ristretto.NewCache(&ristretto.Config[string, any]{
		NumCounters: cfg.NumCounters,
		MaxCost:     cfg.MaxCostGiB << 30,
		BufferItems: cfg.BufferItems,
	})
	if err != nil {
		return nil, fmt.Errorf("cache: unable to initialize decode cache: %w", err)
	}
	return &Database{db: db, cache: c}, nil
}

func key(oid plumbing.Hash) string {
	return oid.String()
}

// Commit returns the commit named by oid, decoding and caching it on a miss.
func (d *Database) Commit(oid plumbing.Hash) (*object.Commit, error) {
	if v, ok := d.cache.Get(key(oid)); ok {
		if c, ok := v.(*object.Commit); ok {
			return c, nil
		}
	}
	c, err := d.db.Commit(oid)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key(oid), c, 1)
	return c, nil
}

// Tree returns the tree named by oid, decoding and caching it on a miss.
func (d *Database) Tree(oid plumbing.Hash) (*object.Tree, error) {
	if v, ok := d.cache.Get(key(oid)); ok {
		if t, ok := v.(*object.Tree); ok {
			return t, nil
		}
	}
	t, err := d.db.Tree(oid)
	if err != nil {
		return nil, err
	}
	d.cache.SetWithTTL(key(oid), t, 1, 24*time.Hour)
	return t, nil
}

// Tag returns the tag named by oid, decoding and caching it on a miss.
func (d *Database) Tag(oid plumbing.Hash) (*object.Tag, error) {
	if v, ok := d.cache.Get(key(oid)); ok {
		if t, ok := v.(*object.Tag); ok {
			return t, nil
		}
	}
	t, err := d.db.Tag(oid)
	if err != nil {
		return nil, err
	}
	d.cache.Set(key(oid), t, 1)
	return t, nil
}

// Blob always delegates to the underlying database uncached.
func (d *Database) Blob(oid plumbing.Hash) (*object.Blob, error) {
	return d.db.Blob(oid)
}

// WriteBlob delegates to the underlying database.
func (d *Database) WriteBlob(b *object.Blob) (plumbing.Hash, error) {
	return d.db.WriteBlob(b)
}

// WriteTree writes t and caches it under its new hash.
func (d *Database) WriteTree(t *object.Tree) (plumbing.Hash, error) {
	oid, err := d.db.WriteTree(t)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	d.cache.SetWithTTL(key(oid), t, 1, 24*time.Hour)
	return oid, nil
}

// WriteCommit writes c and caches it under its new hash.
func (d *Database) WriteCommit(c *object.Commit) (plumbing.Hash, error) {
	oid, err := d.db.WriteCommit(c)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	d.cache.Set(key(oid), c, 1)
	return oid, nil
}

// WriteTag writes t and caches it under its new hash.
func (d *Database) WriteTag(t *object.Tag) (plumbing.Hash, error) {
	oid, err := d.db.WriteTag(t)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	d.cache.Set(key(oid), t, 1)
	return oid, nil
}

// Exists reports whether oid is present in the underlying database.
func (d *Database) Exists(oid plumbing.Hash) error {
	return d.db.Exists(oid)
}

// Close closes the underlying database and releases the cache.
func (d *Database) Close() error {
	d.cache.Close()
	return d.db.Close()
}
