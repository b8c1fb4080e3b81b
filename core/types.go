package core

import (
	"encoding/base64"
	"time"
)

// Identifier is a 32-byte binary value shared by transaction ids and
// data-item ids. It is exchanged on the wire as unpadded URL-safe base64.
type Identifier [32]byte

// EncodeIdentifier renders id as unpadded URL-safe base64 (43 chars).
func EncodeIdentifier(id Identifier) string {
	return base64.RawURLEncoding.EncodeToString(id[:])
}

// DecodeIdentifier parses the 43-char unpadded URL-safe base64 form of an
// identifier. It returns an error if s does not decode to exactly 32 bytes.
func DecodeIdentifier(s string) (Identifier, error) {
	var id Identifier
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return id, err
	}
	if len(b) != len(id) {
		return id, ErrOutOfRange
	}
	copy(id[:], b)
	return id, nil
}

// EncodeHash renders a raw SHA-256 digest as unpadded URL-safe base64. This
// is the wire format of a content hash (spec §3) and is bit-for-bit the same
// encoding used for Identifier.
func EncodeHash(digest []byte) string {
	return base64.RawURLEncoding.EncodeToString(digest)
}

// Region selects a byte range of a logical id's data: [Offset, Offset+Size).
type Region struct {
	Offset int64
	Size   int64
}

// DataAttributes mirrors spec §3's attributes record. Any field may be
// absent; zero values mean "absent" for the string and size fields, and each
// offset field carries an explicit Has* flag.
type DataAttributes struct {
	Size               int64
	ContentType        string
	ContentEncoding    string
	Hash               string // content hash, base64, empty if unknown
	DataRoot           string
	ParentID           string
	RootTransactionID  string
	Offset             int64
	HasOffset          bool
	DataOffset         int64
	HasDataOffset      bool
	RootDataItemOffset int64
	HasRootItemOffset  bool
	RootDataOffset     int64
	HasRootDataOffset  bool
	Verified           bool
	Stable             bool
}

// HasRoot reports whether the fast-path fields the resolver needs
// (rootTransactionId, rootDataItemOffset, rootDataOffset, size) are all
// already populated.
func (a DataAttributes) HasRoot() bool {
	return a.RootTransactionID != "" && a.HasRootItemOffset && a.HasRootDataOffset && a.Size > 0
}

// RequestAttrs carries per-request context that does not belong to the
// logical id itself: ArNS naming, hop-count/trace state, payment receipts.
type RequestAttrs struct {
	ArNSName      string
	ArNSBaseName  string
	HopCount      int
	TraceID       string
	PaymentReceipt bool
}

// VerificationPriority is derived by the cache from request attributes. The
// attributes update the cache writes after a fill does not include it.
type VerificationPriority string

const (
	PriorityPreferredArNS VerificationPriority = "preferredArNS"
	PriorityArNS          VerificationPriority = "arns"
	PriorityNone          VerificationPriority = ""
)

// ContiguousData is the result of a getData call: a byte stream plus the
// metadata a caller needs to build response headers.
type ContiguousData struct {
	Stream            ReadCloser
	Size              int64
	Hash              string
	SourceContentType string
	Verified          bool
	Trusted           bool
	Cached            bool
	RequestAttrs      *RequestAttrs
}

// ReadCloser is the minimal streaming interface the cache and its
// collaborators pass data through. It is satisfied by io.ReadCloser; it is
// redeclared here so core does not need to import io in every file that only
// needs the interface shape.
type ReadCloser interface {
	Read(p []byte) (int, error)
	Close() error
}

// MetadataRecord is keyed by content hash (spec §3).
type MetadataRecord struct {
	AccessTimestampMs int64
	MRUArNSNames      []string
	MRUArNSBaseNames  []string
}

// TouchAccess bumps the access timestamp and folds name into the MRU list,
// most-recent-first, deduplicated, bounded at maxLen entries.
func (m *MetadataRecord) TouchAccess(now time.Time, arnsName, arnsBaseName string, maxLen int) {
	m.AccessTimestampMs = now.UnixMilli()
	m.MRUArNSNames = pushMRU(m.MRUArNSNames, arnsName, maxLen)
	m.MRUArNSBaseNames = pushMRU(m.MRUArNSBaseNames, arnsBaseName, maxLen)
}

func pushMRU(list []string, name string, maxLen int) []string {
	if name == "" {
		return list
	}
	out := make([]string, 0, maxLen)
	out = append(out, name)
	for _, n := range list {
		if n == name {
			continue
		}
		if len(out) >= maxLen {
			break
		}
		out = append(out, n)
	}
	return out
}

// BlockHeader is consumed, not owned, by this core. WeaveSize and
// PrevWeaveSize are cumulative byte offsets that may exceed 2^53 and are
// carried as Weave values (see weave.go), never as plain int64/uint64.
type BlockHeader struct {
	Height        uint64
	TxRoot        [32]byte
	WeaveSize     Weave
	PrevWeaveSize Weave
}

// DataParent is returned by the attributes store's getDataParent call: the
// immediate parent of a nested data item.
type DataParent struct {
	ParentID   string
	ParentHash string
	Offset     int64
	Size       int64
}

// RootTxInfo is returned by the attributes store's getRootTx call, the
// legacy fallback path of the resolver (spec §4.3 step 3).
type RootTxInfo struct {
	RootTxID       string
	RootOffset     int64
	HasRootOffset  bool
	RootDataOffset int64
	HasRootData    bool
	Size           int64
	HasSize        bool
	DataSize       int64
	HasDataSize    bool
	ContentType    string
}

// RootParent is the resolver's result: a root transaction plus an absolute,
// payload-relative byte range (spec §4.3).
type RootParent struct {
	RootTransactionID string
	RootDataOffset    int64
	Size              int64
}
