package core

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"
)

type nopCloser struct {
	io.Reader
}

func (nopCloser) Close() error { return nil }

type fakeUpstream struct {
	data        []byte
	contentType string
	trusted     bool
	calls       int
}

func (f *fakeUpstream) GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error) {
	f.calls++
	return &ContiguousData{
		Stream:            nopCloser{bytes.NewReader(f.data)},
		Size:              int64(len(f.data)),
		SourceContentType: f.contentType,
		Trusted:           f.trusted,
	}, nil
}

func drain(t *testing.T, rc ReadCloser) []byte {
	t.Helper()
	b, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return b
}

func waitForAttrs(t *testing.T, attrs AttributesStore, id string) *DataAttributes {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		a, err := attrs.GetDataAttributes(context.Background(), id)
		if err != nil {
			t.Fatalf("GetDataAttributes: %v", err)
		}
		if a != nil && a.Hash != "" {
			return a
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for cached attributes")
	return nil
}

func TestCacheGetDataMissThenHit(t *testing.T) {
	dir := t.TempDir()
	content, err := NewContentStore(nil, dir)
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	metadata, err := NewMetadataStore(0)
	if err != nil {
		t.Fatalf("NewMetadataStore: %v", err)
	}
	attrs := NewAttributesStore()
	upstream := &fakeUpstream{data: []byte("hello weavegate"), trusted: true}

	c := NewCache(nil, attrs, content, metadata, upstream, nil, CacheConfig{})

	data, err := c.GetData(context.Background(), UpstreamGetDataRequest{ID: "tx-1"})
	if err != nil {
		t.Fatalf("GetData (miss): %v", err)
	}
	if data.Cached {
		t.Fatal("expected first call to be a live fetch, not cached")
	}
	if got := drain(t, data.Stream); string(got) != "hello weavegate" {
		t.Fatalf("unexpected body: %q", got)
	}
	if upstream.calls != 1 {
		t.Fatalf("expected 1 upstream call, got %d", upstream.calls)
	}

	cachedAttrs := waitForAttrs(t, attrs, "tx-1")
	if !cachedAttrs.Verified {
		t.Fatal("expected trusted data to be marked verified on cache")
	}

	second, err := c.GetData(context.Background(), UpstreamGetDataRequest{ID: "tx-1"})
	if err != nil {
		t.Fatalf("GetData (hit): %v", err)
	}
	if !second.Cached {
		t.Fatal("expected second call to be served from the content store")
	}
	if got := drain(t, second.Stream); string(got) != "hello weavegate" {
		t.Fatalf("unexpected cached body: %q", got)
	}
	if upstream.calls != 1 {
		t.Fatalf("expected upstream not to be called again, got %d calls", upstream.calls)
	}
}

func TestCacheGetDataViaParentChain(t *testing.T) {
	dir := t.TempDir()
	content, err := NewContentStore(nil, dir)
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	metadata, err := NewMetadataStore(0)
	if err != nil {
		t.Fatalf("NewMetadataStore: %v", err)
	}
	attrs := NewAttributesStore()
	upstream := &fakeUpstream{}

	payload := []byte("0123456789abcdefghij")
	hash := EncodeHash(hash32(payload)[:])
	if err := content.Finalize(context.Background(), mustWrite(t, content, payload), hash); err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	attrs.SetDataParent("item-child", DataParent{ParentID: "item-root", ParentHash: hash, Offset: 5, Size: 10})

	c := NewCache(nil, attrs, content, metadata, upstream, nil, CacheConfig{})
	data, err := c.GetData(context.Background(), UpstreamGetDataRequest{ID: "item-child"})
	if err != nil {
		t.Fatalf("GetData: %v", err)
	}
	if !data.Cached {
		t.Fatal("expected parent-chain lookup to be served from content store")
	}
	got := drain(t, data.Stream)
	if string(got) != "56789abcde" {
		t.Fatalf("unexpected region body: %q", got)
	}
	if upstream.calls != 0 {
		t.Fatalf("expected no upstream call for a cached parent, got %d", upstream.calls)
	}
}

func mustWrite(t *testing.T, cs *ContentStore, data []byte) WriteStream {
	t.Helper()
	ws, err := cs.CreateWriteStream(context.Background())
	if err != nil {
		t.Fatalf("CreateWriteStream: %v", err)
	}
	if _, err := ws.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	return ws
}
