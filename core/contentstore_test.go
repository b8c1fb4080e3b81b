package core

import (
	"context"
	"io"
	"testing"
)

func TestContentStoreWriteFinalizeGet(t *testing.T) {
	cs, err := NewContentStore(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	ctx := context.Background()
	payload := []byte("arweave data item bytes")
	hash := EncodeHash(hash32(payload)[:])

	ws, err := cs.CreateWriteStream(ctx)
	if err != nil {
		t.Fatalf("CreateWriteStream: %v", err)
	}
	if _, err := ws.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cs.Finalize(ctx, ws, hash); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	rc, err := cs.Get(ctx, hash, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	_ = rc.Close()
	if string(got) != string(payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestContentStoreGetRegion(t *testing.T) {
	cs, err := NewContentStore(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	ctx := context.Background()
	payload := []byte("0123456789")
	hash := EncodeHash(hash32(payload)[:])

	ws, _ := cs.CreateWriteStream(ctx)
	_, _ = ws.Write(payload)
	if err := cs.Finalize(ctx, ws, hash); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	rc, err := cs.Get(ctx, hash, &Region{Offset: 3, Size: 4})
	if err != nil {
		t.Fatalf("Get region: %v", err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	if string(got) != "3456" {
		t.Fatalf("got %q want %q", got, "3456")
	}
}

func TestContentStoreGetMissing(t *testing.T) {
	cs, err := NewContentStore(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	missingHash := EncodeHash(hash32([]byte("never written"))[:])
	_, err = cs.Get(context.Background(), missingHash, nil)
	if KindOf(err) != KindNotFound {
		t.Fatalf("expected KindNotFound, got %v (%v)", KindOf(err), err)
	}
}

func TestContentStoreCleanupDiscardsWrite(t *testing.T) {
	cs, err := NewContentStore(nil, t.TempDir())
	if err != nil {
		t.Fatalf("NewContentStore: %v", err)
	}
	ctx := context.Background()
	ws, err := cs.CreateWriteStream(ctx)
	if err != nil {
		t.Fatalf("CreateWriteStream: %v", err)
	}
	if _, err := ws.Write([]byte("discard me")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := cs.Cleanup(ctx, ws); err != nil {
		t.Fatalf("Cleanup: %v", err)
	}

	hash := EncodeHash(hash32([]byte("discard me"))[:])
	if _, err := cs.Get(ctx, hash, nil); KindOf(err) != KindNotFound {
		t.Fatal("expected cleaned-up write to never be retrievable")
	}
}
