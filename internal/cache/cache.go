// Package cache provides the parse cache used by the entry reader:
// repeated runs over an unchanged tree skip re-decoding documents that
// were parsed before. Keys incorporate every document's modification
// time and size, so an edited, added, or removed document never serves
// a stale record.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"
)

// Cache defines the interface for caching serialized parse results
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte, ttl time.Duration) error
	Delete(key string) error
	Clear() error
}

// DocStamp is one document's on-disk state. An absent document is
// stamped with Size -1 so presence itself is part of the key.
type DocStamp struct {
	Name    string
	ModTime time.Time
	Size    int64
}

// AbsentDoc stamps a document that does not exist on disk
func AbsentDoc(name string) DocStamp {
	return DocStamp{Name: name, Size: -1}
}

// EntryKey generates a cache key for one entry directory from its path
// and the stamps of every document the entry may carry. A cached record
// aggregates all of an entry's documents, so a change to any one of
// them must invalidate the key.
func EntryKey(path string, docs []DocStamp) string {
	raw := path
	for _, d := range docs {
		raw += fmt.Sprintf("|%s|%d|%d", d.Name, d.ModTime.UnixNano(), d.Size)
	}
	hash := sha256.Sum256([]byte(raw))
	return "tervyx:parse:v1:" + hex.EncodeToString(hash[:])
}
