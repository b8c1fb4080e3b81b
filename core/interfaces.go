package core

import "context"

// ---------------------------------------------------------------------------
// Consumed interfaces (spec §6) — small collaborators this core is handed,
// not implementations it owns. Default in-package implementations exist for
// AttributesStore, ContentStore and MetadataStore (attributesstore.go,
// contentstore.go, metadatastore.go) because the core also owns those three
// concretely; UpstreamDataSource, BundleOffsetSource, ChainClient and
// UnvalidatedChunkSource are pure interfaces fulfilled by external
// collaborators (indexers, chain clients, peer/gateway transports).
// ---------------------------------------------------------------------------

// AttributesStore is the consumed collaborator for data-item/transaction
// attributes.
type AttributesStore interface {
	GetDataAttributes(ctx context.Context, id string) (*DataAttributes, error)
	GetDataParent(ctx context.Context, id string) (*DataParent, error)
	SetDataAttributes(ctx context.Context, id string, partial DataAttributes) error
	GetRootTx(ctx context.Context, id string) (*RootTxInfo, error)
}

// ContentStoreBackend is the consumed collaborator that owns raw bytes,
// keyed by content hash.
type ContentStoreBackend interface {
	Get(ctx context.Context, hash string, region *Region) (ReadCloser, error)
	CreateWriteStream(ctx context.Context) (WriteStream, error)
	Finalize(ctx context.Context, ws WriteStream, hash string) error
	Cleanup(ctx context.Context, ws WriteStream) error
}

// WriteStream is an in-flight write against the content store; Finalize or
// Cleanup must be called exactly once to close it out.
type WriteStream interface {
	Write(p []byte) (int, error)
}

// MetadataStoreBackend is the consumed collaborator for the MRU/access-time
// metadata record keyed by content hash.
type MetadataStoreBackend interface {
	Get(ctx context.Context, hash string) (*MetadataRecord, error)
	Set(ctx context.Context, hash string, rec MetadataRecord) error
}

// UpstreamGetDataRequest bundles a getData call's parameters (spec §6).
type UpstreamGetDataRequest struct {
	ID           string
	Attrs        *DataAttributes
	RequestAttrs *RequestAttrs
	Region       *Region
}

// UpstreamDataSource is the consumed collaborator a DataSource backend (or
// the composite source as a whole, from the cache's point of view) presents.
type UpstreamDataSource interface {
	GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error)
}

// BundleOffsetSource resolves a data item's offset within its immediate
// bundle container (spec §6 "Bundle offset source").
type BundleOffsetSource interface {
	GetDataItemOffset(ctx context.Context, itemID, rootTxID string) (*DataItemOffset, error)
}

// DataItemOffset is the result of a bundle offset lookup.
type DataItemOffset struct {
	ItemOffset  int64
	DataOffset  int64
	ItemSize    int64
	DataSize    int64
	ContentType string
}

// ChainClient is the consumed collaborator for block lookups used by the
// tx-path validator's callers to locate the surrounding block boundaries.
type ChainClient interface {
	BinarySearchBlocks(ctx context.Context, absoluteOffset Weave) (*BlockHeader, error)
	GetBlockByHeight(ctx context.Context, height uint64) (*BlockHeader, error)
}

// UnvalidatedChunkSource is the consumed collaborator for peer-contributed
// bytes that must be proven via the tx-path validator before they are
// trusted (spec §4.4).
type UnvalidatedChunkSource interface {
	GetUnvalidatedChunk(ctx context.Context, offset Weave, reqAttrs *RequestAttrs) (*UnvalidatedChunk, error)
}

// UnvalidatedChunk is what a peer hands back before validation.
type UnvalidatedChunk struct {
	TxPath   []byte
	DataPath []byte
	Chunk    []byte
	Source   string
}

// ---------------------------------------------------------------------------
// Provided interfaces (spec §6) — what this core exposes to its caller.
// ---------------------------------------------------------------------------

// DataSource is the composite data source's public shape, also satisfied by
// the read-through Cache (which wraps a DataSource as its miss path).
type DataSource interface {
	GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error)
}

// TxBoundary is the result of resolving an absolute weave offset to the
// transaction it falls within.
type TxBoundary struct {
	ID          string
	HasID       bool
	DataRoot    [32]byte
	DataSize    Weave
	WeaveOffset Weave
}

// TxBoundarySource resolves an absolute weave offset to its owning
// transaction boundary.
type TxBoundarySource interface {
	GetTxBoundary(ctx context.Context, absoluteOffset Weave) (*TxBoundary, error)
}
