package core

import (
	"context"
	"testing"
	"time"
)

func TestMetadataStoreSetGetRoundTrip(t *testing.T) {
	m, err := NewMetadataStore(10)
	if err != nil {
		t.Fatalf("NewMetadataStore: %v", err)
	}
	ctx := context.Background()

	got, err := m.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("Get (miss): %v", err)
	}
	if got != nil {
		t.Fatal("expected nil record for unknown hash")
	}

	rec := MetadataRecord{AccessTimestampMs: 12345}
	if err := m.Set(ctx, "h1", rec); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err = m.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("Get (hit): %v", err)
	}
	if got == nil || got.AccessTimestampMs != 12345 {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestMetadataStoreEvictsBeyondCapacity(t *testing.T) {
	m, err := NewMetadataStore(2)
	if err != nil {
		t.Fatalf("NewMetadataStore: %v", err)
	}
	ctx := context.Background()
	_ = m.Set(ctx, "a", MetadataRecord{})
	_ = m.Set(ctx, "b", MetadataRecord{})
	_ = m.Set(ctx, "c", MetadataRecord{})

	got, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatal("expected the oldest entry to be evicted once capacity is exceeded")
	}
}

func TestTouchAccessDedupesAndBoundsMRU(t *testing.T) {
	rec := MetadataRecord{}
	now := time.Now()
	rec.TouchAccess(now, "name-a", "base-a", 2)
	rec.TouchAccess(now, "name-b", "base-b", 2)
	rec.TouchAccess(now, "name-a", "base-a", 2)

	if len(rec.MRUArNSNames) != 2 {
		t.Fatalf("expected MRU list bounded at 2, got %v", rec.MRUArNSNames)
	}
	if rec.MRUArNSNames[0] != "name-a" {
		t.Fatalf("expected most-recently-touched name first, got %v", rec.MRUArNSNames)
	}
}
