// core/metadatastore.go
package core

// In-memory metadata store: access-timestamp + MRU ArNS-name bookkeeping
// keyed by content hash (spec §3, §4.1). Bounded by an LRU rather than a
// plain map so a gateway that has seen many distinct hashes doesn't grow
// this store without limit — the same bounded-cap idea as the teacher's
// diskLRU (core/storage.go), here backed by hashicorp/golang-lru/v2 instead
// of a hand-rolled index+order slice.

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultMetadataCap = 50_000

// MetadataStore is the in-package MetadataStoreBackend implementation.
type MetadataStore struct {
	mu    sync.Mutex
	cache *lru.Cache[string, MetadataRecord]
}

// NewMetadataStore builds a MetadataStore capped at maxEntries records
// (defaultMetadataCap if maxEntries <= 0).
func NewMetadataStore(maxEntries int) (*MetadataStore, error) {
	if maxEntries <= 0 {
		maxEntries = defaultMetadataCap
	}
	c, err := lru.New[string, MetadataRecord](maxEntries)
	if err != nil {
		return nil, NewError(KindInternal, "NewMetadataStore", err)
	}
	return &MetadataStore{cache: c}, nil
}

// Get returns hash's record, or nil if none is on file.
func (m *MetadataStore) Get(ctx context.Context, hash string) (*MetadataRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.cache.Get(hash)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// Set overwrites hash's record. Last-write-wins; no CAS (spec §5's
// "concurrent readers, single writer per key, last-write-wins" policy).
func (m *MetadataStore) Set(ctx context.Context, hash string, rec MetadataRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Add(hash, rec)
	return nil
}
