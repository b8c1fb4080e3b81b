// core/attributesstore.go
package core

// In-memory attributes store — generalises the teacher's
// marshal-into-keyed-store pattern (CreateListing/OpenDeal/CloseDeal in
// core/storage.go, each JSON-encoding a record under a string key) from a
// listing/deal/escrow domain into data-item and transaction attributes.
// The teacher's records went through a persistent KV abstraction
// (CurrentStore()) that belonged to the wider ledger and isn't part of this
// gateway; a plain mutex-guarded map serves the same "record keyed by id,
// read/write whole" shape without dragging that dependency in.

import (
	"context"
	"sync"
)

// AttributesStoreImpl is the in-package AttributesStore implementation. It
// also tracks parent links and legacy root-tx records, the two other shapes
// the resolver (§4.3) consults.
type AttributesStoreImpl struct {
	mu       sync.RWMutex
	attrs    map[string]DataAttributes
	parents  map[string]DataParent
	rootTx   map[string]RootTxInfo
}

// NewAttributesStore builds an empty AttributesStoreImpl.
func NewAttributesStore() *AttributesStoreImpl {
	return &AttributesStoreImpl{
		attrs:   make(map[string]DataAttributes),
		parents: make(map[string]DataParent),
		rootTx:  make(map[string]RootTxInfo),
	}
}

// GetDataAttributes returns id's attributes, or nil if none are on file.
func (s *AttributesStoreImpl) GetDataAttributes(ctx context.Context, id string) (*DataAttributes, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.attrs[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// SetDataAttributes merges partial into id's stored attributes. Only
// non-zero fields of partial are applied, so callers can set individual
// fields (e.g. the resolver persisting discovered offsets) without
// clobbering fields set by an earlier writer.
func (s *AttributesStoreImpl) SetDataAttributes(ctx context.Context, id string, partial DataAttributes) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.attrs[id]
	mergeDataAttributes(&cur, partial)
	s.attrs[id] = cur
	return nil
}

func mergeDataAttributes(dst *DataAttributes, src DataAttributes) {
	if src.Size != 0 {
		dst.Size = src.Size
	}
	if src.ContentType != "" {
		dst.ContentType = src.ContentType
	}
	if src.ContentEncoding != "" {
		dst.ContentEncoding = src.ContentEncoding
	}
	if src.Hash != "" {
		dst.Hash = src.Hash
	}
	if src.DataRoot != "" {
		dst.DataRoot = src.DataRoot
	}
	if src.ParentID != "" {
		dst.ParentID = src.ParentID
	}
	if src.RootTransactionID != "" {
		dst.RootTransactionID = src.RootTransactionID
	}
	if src.HasOffset {
		dst.Offset = src.Offset
		dst.HasOffset = true
	}
	if src.HasDataOffset {
		dst.DataOffset = src.DataOffset
		dst.HasDataOffset = true
	}
	if src.HasRootItemOffset {
		dst.RootDataItemOffset = src.RootDataItemOffset
		dst.HasRootItemOffset = true
	}
	if src.HasRootDataOffset {
		dst.RootDataOffset = src.RootDataOffset
		dst.HasRootDataOffset = true
	}
	if src.Verified {
		dst.Verified = true
	}
	if src.Stable {
		dst.Stable = true
	}
}

// GetDataParent returns id's immediate parent link, or nil if id has none
// on file (i.e. it is an L1 transaction as far as this store knows).
func (s *AttributesStoreImpl) GetDataParent(ctx context.Context, id string) (*DataParent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.parents[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// SetDataParent records id's parent link; used by test fixtures and
// ingestion paths that populate the parent-chain walk (§4.3 step 2).
func (s *AttributesStoreImpl) SetDataParent(id string, parent DataParent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parents[id] = parent
}

// GetRootTx returns id's legacy root-tx index record, or nil if none
// exists (§4.3 step 3, the legacy fallback).
func (s *AttributesStoreImpl) GetRootTx(ctx context.Context, id string) (*RootTxInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.rootTx[id]
	if !ok {
		return nil, nil
	}
	return &r, nil
}

// SetRootTx records id's legacy root-tx index entry.
func (s *AttributesStoreImpl) SetRootTx(id string, info RootTxInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rootTx[id] = info
}
