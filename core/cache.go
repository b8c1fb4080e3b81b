// core/cache.go
package core

// Read-through contiguous-data cache — the teacher's storage.go paired a
// disk LRU with a single gateway fallback (Retrieve: cache hit, else fetch
// and best-effort cache.put). This generalises that same "check cache, miss
// to upstream, best-effort store the result" shape into the full contract:
// attribute-driven cache-key derivation through a parent chain, a streaming
// tee that hashes while forwarding bytes rather than buffering the whole
// blob, and an eligibility rule that only caches bytes the system can
// trust or later verify.

import (
	"context"
	"io"
	"time"

	sha256simd "github.com/minio/sha256-simd"
	"github.com/sirupsen/logrus"
)

const defaultMRUCap = 10

// Cache wires the attributes, content and metadata collaborators together
// behind the DataSource interface, falling through to upstream on miss.
type Cache struct {
	logger   *logrus.Logger
	attrs    AttributesStore
	content  ContentStoreBackend
	metadata MetadataStoreBackend
	upstream DataSource
	counters Counters

	mruCap                 int
	preferredArNSNames     map[string]bool
	preferredArNSBaseNames map[string]bool
}

// CacheConfig configures NewCache's optional knobs.
type CacheConfig struct {
	MRUCap                 int
	PreferredArNSNames     []string
	PreferredArNSBaseNames []string
}

// NewCache wires a Cache. counters may be nil (defaults to NoopCounters).
func NewCache(logger *logrus.Logger, attrs AttributesStore, content ContentStoreBackend, metadata MetadataStoreBackend, upstream DataSource, counters Counters, cfg CacheConfig) *Cache {
	if logger == nil {
		logger = logrus.New()
	}
	if counters == nil {
		counters = NoopCounters
	}
	mruCap := cfg.MRUCap
	if mruCap <= 0 {
		mruCap = defaultMRUCap
	}
	preferredNames := make(map[string]bool, len(cfg.PreferredArNSNames))
	for _, n := range cfg.PreferredArNSNames {
		preferredNames[n] = true
	}
	preferredBases := make(map[string]bool, len(cfg.PreferredArNSBaseNames))
	for _, n := range cfg.PreferredArNSBaseNames {
		preferredBases[n] = true
	}
	return &Cache{
		logger:                 logger,
		attrs:                  attrs,
		content:                content,
		metadata:               metadata,
		upstream:               upstream,
		counters:               counters,
		mruCap:                 mruCap,
		preferredArNSNames:     preferredNames,
		preferredArNSBaseNames: preferredBases,
	}
}

// GetData implements spec §4.1's operation of the same name.
func (c *Cache) GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error) {
	attrs := req.Attrs
	if attrs == nil {
		a, err := c.attrs.GetDataAttributes(ctx, req.ID)
		if err != nil {
			c.counters.IncError(KindOf(err))
			return nil, err
		}
		attrs = a
	}

	var hash string
	var size int64
	if attrs != nil {
		hash = attrs.Hash
		size = attrs.Size
		if hash != "" {
			go c.touchMetadata(hash, req.RequestAttrs)
		}
	}

	cached, err := c.getCacheData(ctx, req.ID, hash, size, req.Region)
	if err != nil {
		c.counters.IncError(KindOf(err))
		return nil, err
	}
	if cached != nil {
		c.counters.IncCacheHit()
		cached.Verified = attrs != nil && attrs.Verified
		cached.RequestAttrs = req.RequestAttrs
		return cached, nil
	}
	c.counters.IncCacheMiss()

	upstreamReq := req
	upstreamReq.Attrs = attrs
	data, err := c.upstream.GetData(ctx, upstreamReq)
	if err != nil {
		c.counters.IncError(KindOf(err))
		return nil, err
	}

	if req.Region == nil && (data.Trusted || hash != "") {
		data.Stream = c.wrapForCaching(ctx, req.ID, attrs, data, hash)
	}
	data.RequestAttrs = req.RequestAttrs
	return data, nil
}

// getCacheData is the internal helper spec §4.1 names: if hash is known,
// ask the content store directly; otherwise climb one parent link and
// recurse with the parent's hash and a region shifted by its offset.
func (c *Cache) getCacheData(ctx context.Context, id, hash string, size int64, region *Region) (*ContiguousData, error) {
	if hash != "" {
		rc, err := c.content.Get(ctx, hash, region)
		if err != nil {
			if KindOf(err) == KindNotFound {
				return nil, nil
			}
			return nil, err
		}
		sz := size
		if region != nil {
			sz = region.Size
		}
		return &ContiguousData{Stream: rc, Size: sz, Hash: hash, Trusted: true, Cached: true}, nil
	}

	parent, err := c.attrs.GetDataParent(ctx, id)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, nil
	}
	shifted := shiftRegion(region, parent.Offset, parent.Size)
	return c.getCacheData(ctx, parent.ParentID, parent.ParentHash, parent.Size, &shifted)
}

func shiftRegion(region *Region, parentOffset, childSize int64) Region {
	if region == nil {
		return Region{Offset: parentOffset, Size: childSize}
	}
	return Region{Offset: parentOffset + region.Offset, Size: region.Size}
}

// touchMetadata bumps hash's access record and MRU ArNS lists; fire-and-
// forget per spec §4.1, so it runs detached from the request's context.
func (c *Cache) touchMetadata(hash string, reqAttrs *RequestAttrs) {
	ctx := context.Background()
	rec, err := c.metadata.Get(ctx, hash)
	if err != nil {
		c.logger.WithError(err).Warn("metadata get failed")
		return
	}
	if rec == nil {
		rec = &MetadataRecord{}
	}
	var name, base string
	if reqAttrs != nil {
		name, base = reqAttrs.ArNSName, reqAttrs.ArNSBaseName
	}
	rec.TouchAccess(time.Now(), name, base, c.mruCap)
	if err := c.metadata.Set(ctx, hash, *rec); err != nil {
		c.logger.WithError(err).Warn("metadata set failed")
	}
}

func (c *Cache) verificationPriority(reqAttrs *RequestAttrs) VerificationPriority {
	if reqAttrs == nil {
		return PriorityNone
	}
	if reqAttrs.ArNSName == "" && reqAttrs.ArNSBaseName == "" {
		return PriorityNone
	}
	if c.preferredArNSNames[reqAttrs.ArNSName] || c.preferredArNSBaseNames[reqAttrs.ArNSBaseName] {
		return PriorityPreferredArNS
	}
	return PriorityArNS
}

// wrapForCaching tees data's stream through a content-store write while
// still forwarding every byte to the caller. Each chunk is written to the
// content store inside the caller's Read, so the slower of the caller and
// the cache write sets the pace.
func (c *Cache) wrapForCaching(ctx context.Context, id string, attrs *DataAttributes, data *ContiguousData, expectedHash string) ReadCloser {
	ws, err := c.content.CreateWriteStream(ctx)
	if err != nil {
		c.logger.WithError(err).Warn("cache write stream unavailable, serving uncached")
		return data.Stream
	}
	var dataRoot, contentType string
	if attrs != nil {
		dataRoot = attrs.DataRoot
		contentType = attrs.ContentType
	}
	if contentType == "" {
		contentType = data.SourceContentType
	}
	return &cacheTee{
		ctx:          ctx,
		src:          data.Stream,
		ws:           ws,
		content:      c.content,
		hasher:       sha256simd.New(),
		declaredSize: data.Size,
		trusted:      data.Trusted,
		expectedHash: expectedHash,
		onFinalize: func(computedHash string) {
			priority := c.verificationPriority(data.RequestAttrs)
			partial := DataAttributes{
				Hash:        computedHash,
				Size:        data.Size,
				ContentType: contentType,
				DataRoot:    dataRoot,
				Verified:    data.Trusted || computedHash == expectedHash,
			}
			_ = priority // derived but not passed on: DataAttributes has no field for it
			if err := c.attrs.SetDataAttributes(context.Background(), id, partial); err != nil {
				c.logger.WithError(err).Warn("content attributes persist failed")
			}
		},
		logger: c.logger,
	}
}

// cacheTee forwards bytes to the caller while hashing and writing them to
// a content-store write stream; finalize/discard happens on end-of-stream
// (spec §4.1 step 5).
type cacheTee struct {
	ctx          context.Context
	src          ReadCloser
	ws           WriteStream
	content      ContentStoreBackend
	hasher       interface {
		io.Writer
		Sum([]byte) []byte
	}
	declaredSize int64
	observed     int64
	trusted      bool
	expectedHash string
	onFinalize   func(computedHash string)
	logger       *logrus.Logger
	done         bool
}

func (t *cacheTee) Read(p []byte) (int, error) {
	n, err := t.src.Read(p)
	if n > 0 && t.ws != nil {
		t.hasher.Write(p[:n])
		if _, werr := t.ws.Write(p[:n]); werr != nil {
			t.logger.WithError(werr).Warn("cache write failed, abandoning cache for this stream")
			_ = t.content.Cleanup(t.ctx, t.ws)
			t.ws = nil
		}
		t.observed += int64(n)
	}
	if err == io.EOF {
		t.finalize()
	}
	return n, err
}

func (t *cacheTee) finalize() {
	if t.done || t.ws == nil {
		t.done = true
		return
	}
	t.done = true
	if t.observed != t.declaredSize {
		t.logger.Warnf("cache write size mismatch: observed %d declared %d", t.observed, t.declaredSize)
		_ = t.content.Cleanup(t.ctx, t.ws)
		return
	}
	computedHash := EncodeHash(t.hasher.Sum(nil))
	if !t.trusted && computedHash != t.expectedHash {
		_ = t.content.Cleanup(t.ctx, t.ws)
		return
	}
	if err := t.content.Finalize(t.ctx, t.ws, computedHash); err != nil {
		t.logger.WithError(err).Warn("cache finalize failed")
		return
	}
	if t.onFinalize != nil {
		go t.onFinalize(computedHash)
	}
}

// Close tears down the tee. If the stream had not reached end-of-file
// (caller cancelled mid-read), the write is aborted and discarded rather
// than risk finalizing a partial blob under a wrong hash.
func (t *cacheTee) Close() error {
	if !t.done && t.ws != nil {
		_ = t.content.Cleanup(t.ctx, t.ws)
		t.ws = nil
		t.done = true
	}
	return t.src.Close()
}
