// core/contentstore.go
package core

// Content-addressed disk store — generalises the teacher's diskLRU
// (core/storage.go in the teacher tree), which pinned IPFS blobs under their
// CIDv1 string keyed by a bounded in-memory index. This version keeps the
// same content-addressing idea (go-cid/go-multihash, minio/sha256-simd) but
// drops the IPFS-gateway pin/fetch round trip: bytes arrive already resolved
// by the composite data source, and the store's only job is durable,
// content-addressed write-once storage with a temp-file-then-rename
// finalize protocol (spec's concurrent-finalize-is-safe requirement).

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"
	"github.com/sirupsen/logrus"
)

// ContentStore is the disk-backed ContentStoreBackend implementation.
type ContentStore struct {
	logger  *logrus.Logger
	dir     string
	tmpDir  string
	mu      sync.Mutex
	resident map[string]struct{} // hashes finalized by this process; Get does not consult it
}

// NewContentStore wires a ContentStore rooted at dir; dir/tmp holds
// in-progress writes until Finalize renames them into place.
func NewContentStore(logger *logrus.Logger, dir string) (*ContentStore, error) {
	if logger == nil {
		logger = logrus.New()
	}
	tmp := filepath.Join(dir, "tmp")
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return nil, fmt.Errorf("content store: %w", err)
	}
	return &ContentStore{
		logger:   logger,
		dir:      dir,
		tmpDir:   tmp,
		resident: make(map[string]struct{}),
	}, nil
}

// pathFor maps a wire-format content hash (unpadded URL-safe base64 SHA-256,
// spec §3) to its on-disk path. The directory entry name is the CIDv1/raw
// multihash encoding of the same digest, purely for operational
// readability (e.g. `ipfs cat` against the raw bytes); it carries no wire
// meaning outside this store.
func (c *ContentStore) pathFor(hash string) (string, error) {
	digest, err := DecodeIdentifierBytes(hash)
	if err != nil {
		return "", NewError(KindValidationFailed, "ContentStore.pathFor", err)
	}
	encodedMH, err := mh.Encode(digest, mh.SHA2_256)
	if err != nil {
		return "", NewError(KindInternal, "ContentStore.pathFor", err)
	}
	c2 := cid.NewCidV1(cid.Raw, encodedMH)
	return filepath.Join(c.dir, c2.String()), nil
}

// Get opens hash's bytes, optionally restricted to region.
func (c *ContentStore) Get(ctx context.Context, hash string, region *Region) (ReadCloser, error) {
	p, err := c.pathFor(hash)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, NewError(KindNotFound, "ContentStore.Get", err)
		}
		return nil, NewError(KindInternal, "ContentStore.Get", err)
	}
	if region == nil {
		return f, nil
	}
	if _, err := f.Seek(region.Offset, io.SeekStart); err != nil {
		f.Close()
		return nil, NewError(KindOutOfRange, "ContentStore.Get", err)
	}
	return &limitedReadCloser{r: io.LimitReader(f, region.Size), c: f}, nil
}

type limitedReadCloser struct {
	r io.Reader
	c io.Closer
}

func (l *limitedReadCloser) Read(p []byte) (int, error) { return l.r.Read(p) }
func (l *limitedReadCloser) Close() error                { return l.c.Close() }

// contentWriteStream is a WriteStream backed by a temp file under tmpDir;
// Finalize renames it to its content-addressed path, Cleanup removes it.
type contentWriteStream struct {
	f    *os.File
	path string
}

func (w *contentWriteStream) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// CreateWriteStream opens a fresh temp file to receive bytes ahead of
// knowing their final content hash.
func (c *ContentStore) CreateWriteStream(ctx context.Context) (WriteStream, error) {
	f, err := os.CreateTemp(c.tmpDir, "write-*")
	if err != nil {
		return nil, NewError(KindInternal, "ContentStore.CreateWriteStream", err)
	}
	return &contentWriteStream{f: f, path: f.Name()}, nil
}

// Finalize renames ws's temp file into place under hash. A concurrent
// finalize of the same hash either no-ops (target already exists with
// identical bytes, since both writers hashed the same content) or races
// harmlessly on rename — both are acceptable per the spec's content-
// addressed-finalize-is-safe rule.
func (c *ContentStore) Finalize(ctx context.Context, ws WriteStream, hash string) error {
	cs, ok := ws.(*contentWriteStream)
	if !ok {
		return NewError(KindInternal, "ContentStore.Finalize", fmt.Errorf("foreign write stream"))
	}
	if err := cs.f.Close(); err != nil {
		os.Remove(cs.path)
		return NewError(KindInternal, "ContentStore.Finalize", err)
	}
	target, err := c.pathFor(hash)
	if err != nil {
		os.Remove(cs.path)
		return err
	}
	if err := os.Rename(cs.path, target); err != nil {
		os.Remove(cs.path)
		return NewError(KindInternal, "ContentStore.Finalize", err)
	}
	c.mu.Lock()
	c.resident[hash] = struct{}{}
	c.mu.Unlock()
	return nil
}

// Cleanup discards ws's temp file without finalizing, used on size
// mismatch or untrusted-hash-mismatch (spec §4.1 step 5).
func (c *ContentStore) Cleanup(ctx context.Context, ws WriteStream) error {
	cs, ok := ws.(*contentWriteStream)
	if !ok {
		return NewError(KindInternal, "ContentStore.Cleanup", fmt.Errorf("foreign write stream"))
	}
	cs.f.Close()
	return os.Remove(cs.path)
}

// DecodeIdentifierBytes decodes hash into its raw digest bytes; content
// hashes and identifiers share the same unpadded URL-safe base64 encoding
// (spec §3), so this reuses DecodeIdentifier's codec and returns the digest
// as a slice. Like DecodeIdentifier, it rejects input that does not decode
// to exactly 32 bytes.
func DecodeIdentifierBytes(hash string) ([]byte, error) {
	id, err := DecodeIdentifier(hash)
	if err != nil {
		return nil, err
	}
	return id[:], nil
}
