package core

import (
	"context"
	"testing"
)

type fakeLegacyIndex struct {
	info *RootTxInfo
}

func (f *fakeLegacyIndex) GetRootTx(ctx context.Context, id string) (*RootTxInfo, error) {
	return f.info, nil
}

func TestResolverFastPath(t *testing.T) {
	attrs := NewAttributesStore()
	if err := attrs.SetDataAttributes(context.Background(), "item-1", DataAttributes{
		RootTransactionID: "tx-root",
		RootDataOffset:    100,
		HasRootDataOffset: true,
		RootDataItemOffset: 100,
		HasRootItemOffset: true,
		Size:              50,
	}); err != nil {
		t.Fatalf("SetDataAttributes: %v", err)
	}

	r := NewResolver(attrs, nil, ResolverConfig{})
	rp, err := r.Resolve(context.Background(), "item-1")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rp.RootTransactionID != "tx-root" || rp.RootDataOffset != 100 || rp.Size != 50 {
		t.Fatalf("unexpected fast-path result: %+v", rp)
	}
}

func TestResolverWalksParentChain(t *testing.T) {
	attrs := NewAttributesStore()
	ctx := context.Background()

	if err := attrs.SetDataAttributes(ctx, "leaf", DataAttributes{
		ParentID: "mid", Offset: 10, HasOffset: true, DataOffset: 2, HasDataOffset: true, Size: 30,
	}); err != nil {
		t.Fatalf("SetDataAttributes leaf: %v", err)
	}
	if err := attrs.SetDataAttributes(ctx, "mid", DataAttributes{
		ParentID: "root", Offset: 5, HasOffset: true, DataOffset: 1, HasDataOffset: true,
	}); err != nil {
		t.Fatalf("SetDataAttributes mid: %v", err)
	}

	r := NewResolver(attrs, nil, ResolverConfig{})
	rp, err := r.Resolve(ctx, "leaf")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rp.RootTransactionID != "root" {
		t.Fatalf("expected root transaction id 'root', got %q", rp.RootTransactionID)
	}
	if rp.Size != 30 {
		t.Fatalf("expected size 30, got %d", rp.Size)
	}

	persisted, err := attrs.GetDataAttributes(ctx, "leaf")
	if err != nil {
		t.Fatalf("GetDataAttributes: %v", err)
	}
	if persisted.RootTransactionID != "root" {
		t.Fatal("expected resolved root to be persisted back onto the leaf's attributes")
	}
}

func TestResolverDetectsCycle(t *testing.T) {
	attrs := NewAttributesStore()
	ctx := context.Background()
	if err := attrs.SetDataAttributes(ctx, "a", DataAttributes{ParentID: "b"}); err != nil {
		t.Fatalf("set a: %v", err)
	}
	if err := attrs.SetDataAttributes(ctx, "b", DataAttributes{ParentID: "a"}); err != nil {
		t.Fatalf("set b: %v", err)
	}

	r := NewResolver(attrs, nil, ResolverConfig{})
	if _, err := r.Resolve(ctx, "a"); err == nil {
		t.Fatal("expected a cycle to be rejected")
	}
}

func TestResolverLegacyFallback(t *testing.T) {
	attrs := NewAttributesStore()
	legacy := &fakeLegacyIndex{info: &RootTxInfo{
		RootTxID: "legacy-root", RootOffset: 7, HasRootOffset: true,
		RootDataOffset: 7, HasRootData: true, Size: 99, HasSize: true,
	}}
	r := NewResolver(attrs, legacy, ResolverConfig{LegacyEnabled: true})

	rp, err := r.Resolve(context.Background(), "orphan")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if rp == nil || rp.RootTransactionID != "legacy-root" {
		t.Fatalf("expected legacy fallback result, got %+v", rp)
	}
}

func TestResolveRegionClampsToRemainingSize(t *testing.T) {
	rp := &RootParent{RootTransactionID: "tx", RootDataOffset: 1000, Size: 20}

	region, err := ResolveRegion(rp, &Region{Offset: 15, Size: 100})
	if err != nil {
		t.Fatalf("ResolveRegion: %v", err)
	}
	if region.Offset != 1015 || region.Size != 5 {
		t.Fatalf("expected clamped region {1015,5}, got %+v", region)
	}

	if _, err := ResolveRegion(rp, &Region{Offset: 20, Size: 1}); err == nil {
		t.Fatal("expected out-of-range rejection for offset >= size")
	}
}
