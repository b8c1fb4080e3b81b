package core

import (
	"bytes"
	"context"
	"testing"
)

func buildFixtureLeaves(n int) []txPathLeafInput {
	leaves := make([]txPathLeafInput, n)
	end := WeaveFromUint64(0)
	for i := 0; i < n; i++ {
		var root [32]byte
		root[0] = byte(i + 1)
		end = end.Add(WeaveFromUint64(1000 + uint64(i)*17))
		leaves[i] = txPathLeafInput{DataRoot: root, TxEndOffsetRel: end}
	}
	return leaves
}

func TestBuildAndValidateTxPathRoundTrip(t *testing.T) {
	leaves := buildFixtureLeaves(5)
	for idx := range leaves {
		path, root, err := BuildTxPath(leaves, idx)
		if err != nil {
			t.Fatalf("BuildTxPath(%d): %v", idx, err)
		}

		lower := WeaveFromUint64(0)
		if idx > 0 {
			lower = leaves[idx-1].TxEndOffsetRel
		}
		target := lower.Add(WeaveFromUint64(1))
		weaveSize := leaves[len(leaves)-1].TxEndOffsetRel
		prevWeaveSize := WeaveFromUint64(0)

		result, err := ValidateTxPath(context.Background(), path, root, target, weaveSize, prevWeaveSize)
		if err != nil {
			t.Fatalf("ValidateTxPath(%d): %v", idx, err)
		}
		if result.DataRoot != leaves[idx].DataRoot {
			t.Fatalf("leaf %d: data root mismatch", idx)
		}
		gotEnd, err := result.TxEndOffset.Int64()
		if err != nil {
			t.Fatalf("TxEndOffset.Int64: %v", err)
		}
		wantEnd, _ := leaves[idx].TxEndOffsetRel.Int64()
		if gotEnd != wantEnd {
			t.Fatalf("leaf %d: end offset got %d want %d", idx, gotEnd, wantEnd)
		}
	}
}

func TestValidateTxPathRejectsTamperedBranch(t *testing.T) {
	leaves := buildFixtureLeaves(4)
	path, root, err := BuildTxPath(leaves, 2)
	if err != nil {
		t.Fatalf("BuildTxPath: %v", err)
	}
	tampered := append([]byte{}, path...)
	tampered[0] ^= 0xff

	target := leaves[1].TxEndOffsetRel.Add(WeaveFromUint64(1))
	weaveSize := leaves[len(leaves)-1].TxEndOffsetRel

	if _, err := ValidateTxPath(context.Background(), tampered, root, target, weaveSize, WeaveFromUint64(0)); err == nil {
		t.Fatal("expected validation failure for tampered branch")
	}
}

func TestValidateTxPathRejectsOutOfRangeOffset(t *testing.T) {
	leaves := buildFixtureLeaves(3)
	path, root, err := BuildTxPath(leaves, 0)
	if err != nil {
		t.Fatalf("BuildTxPath: %v", err)
	}
	weaveSize := leaves[len(leaves)-1].TxEndOffsetRel
	// target far beyond leaf 0's boundary, checked against the path built
	// for leaf 0 — must be rejected since it does not fall in leaf 0's
	// (lower, end]; the validator descends right at the root branch, so the
	// leaf hash no longer matches.
	beyond := leaves[len(leaves)-1].TxEndOffsetRel

	if _, err := ValidateTxPath(context.Background(), path, root, beyond, weaveSize, WeaveFromUint64(0)); err == nil {
		t.Fatal("expected out-of-range rejection")
	}
}

func TestValidateTxPathMalformedLength(t *testing.T) {
	_, err := ValidateTxPath(context.Background(), []byte{1, 2, 3}, [32]byte{}, WeaveFromUint64(1), WeaveFromUint64(10), WeaveFromUint64(0))
	if err == nil {
		t.Fatal("expected malformed tx_path rejection")
	}
}

func TestSortTxIDsOrdersByRawBytes(t *testing.T) {
	ids := [][32]byte{{2}, {0}, {1}}
	SortTxIDs(ids)
	want := [][32]byte{{0}, {1}, {2}}
	for i := range ids {
		if !bytes.Equal(ids[i][:], want[i][:]) {
			t.Fatalf("index %d: got %v want %v", i, ids[i], want[i])
		}
	}
}
