package core

import "testing"

func TestWeaveInt64WithinBounds(t *testing.T) {
	w := WeaveFromUint64(MaxSafeInteger)
	n, err := w.Int64()
	if err != nil {
		t.Fatalf("Int64: %v", err)
	}
	if uint64(n) != MaxSafeInteger {
		t.Fatalf("got %d want %d", n, MaxSafeInteger)
	}
}

func TestWeaveInt64RejectsOverflow(t *testing.T) {
	over := WeaveFromUint64(MaxSafeInteger).Add(WeaveFromUint64(1))
	if _, err := over.Int64(); err == nil {
		t.Fatal("expected narrowing past MAX_SAFE_INTEGER to fail loudly")
	}
}

func TestWeaveBytes32RoundTrip(t *testing.T) {
	w, err := WeaveFromDecimal("123456789012345")
	if err != nil {
		t.Fatalf("WeaveFromDecimal: %v", err)
	}
	b := w.Bytes32()
	back := WeaveFromBytes32(b)
	if back.Cmp(w) != 0 {
		t.Fatalf("round trip mismatch: %s != %s", back, w)
	}
}

func TestWeaveFromDecimalRejectsGarbage(t *testing.T) {
	if _, err := WeaveFromDecimal("not-a-number"); err == nil {
		t.Fatal("expected an error for a non-numeric decimal string")
	}
}

func TestWeaveArithmeticAndComparisons(t *testing.T) {
	a := WeaveFromUint64(10)
	b := WeaveFromUint64(3)
	if got := a.Sub(b); got.Cmp(WeaveFromUint64(7)) != 0 {
		t.Fatalf("10-3 = %s, want 7", got)
	}
	if !b.LessThan(a) {
		t.Fatal("expected 3 < 10")
	}
	if !a.LessOrEqual(a) {
		t.Fatal("expected a <= a")
	}
	if WeaveFromUint64(0).IsZero() != true {
		t.Fatal("expected zero value to report IsZero")
	}
}
