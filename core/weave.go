package core

import (
	"fmt"

	"github.com/holiman/uint256"
)

// MaxSafeInteger is 2^53-1, the narrowing boundary spec §4.4 and §9 require:
// weave offsets are unsigned arbitrary-precision values on the wire, and may
// only be converted to a machine integer after an explicit range check.
const MaxSafeInteger uint64 = 1<<53 - 1

// Weave is an unsigned, arbitrary-precision weave offset or size. It wraps
// uint256.Int — the fixed 256-bit unsigned integer used throughout the
// go-ethereum-derived corpus for exactly this purpose — rather than stdlib
// math/big, since weave offsets never need more than 256 bits and uint256
// avoids math/big's heap-allocated word slice on every arithmetic op.
type Weave struct {
	v uint256.Int
}

// WeaveFromUint64 builds a Weave from a machine integer.
func WeaveFromUint64(n uint64) Weave {
	var w Weave
	w.v.SetUint64(n)
	return w
}

// WeaveFromDecimal parses a base-10 string into a Weave, the format CLI
// flags and config values use for weave offsets too large for a flag
// parser's native int64.
func WeaveFromDecimal(s string) (Weave, error) {
	var w Weave
	if err := w.v.SetFromDecimal(s); err != nil {
		return Weave{}, NewError(KindValidationFailed, "WeaveFromDecimal", err)
	}
	return w, nil
}

// WeaveFromBytes32 builds a Weave from a 32-byte big-endian encoding, the
// wire format used inside Merkle tree-path nodes (spec §3).
func WeaveFromBytes32(b [32]byte) Weave {
	var w Weave
	w.v.SetBytes(b[:])
	return w
}

// Bytes32 renders w as a 32-byte big-endian value, the inverse of
// WeaveFromBytes32.
func (w Weave) Bytes32() [32]byte {
	return w.v.Bytes32()
}

// Add returns w + o.
func (w Weave) Add(o Weave) Weave {
	var out Weave
	out.v.Add(&w.v, &o.v)
	return out
}

// Sub returns w - o. Behaviour is undefined (wraps) if o > w, matching
// uint256's unchecked Sub; callers that cannot guarantee o <= w must compare
// first via Cmp.
func (w Weave) Sub(o Weave) Weave {
	var out Weave
	out.v.Sub(&w.v, &o.v)
	return out
}

// Cmp returns -1, 0 or 1 as w is less than, equal to, or greater than o.
func (w Weave) Cmp(o Weave) int {
	return w.v.Cmp(&o.v)
}

// LessThan reports whether w < o.
func (w Weave) LessThan(o Weave) bool {
	return w.v.Lt(&o.v)
}

// LessOrEqual reports whether w <= o.
func (w Weave) LessOrEqual(o Weave) bool {
	return !o.v.Lt(&w.v)
}

// IsZero reports whether w is the zero offset.
func (w Weave) IsZero() bool {
	return w.v.IsZero()
}

// String renders the decimal form, useful for logging.
func (w Weave) String() string {
	return w.v.Dec()
}

// Int64 narrows w to an int64, the one explicit checked boundary spec §4.4
// and §9 mandate: it fails loudly rather than silently wrapping when w
// exceeds MaxSafeInteger.
func (w Weave) Int64() (int64, error) {
	if !w.v.IsUint64() || w.v.Uint64() > MaxSafeInteger {
		return 0, NewError(KindOutOfRange, "Weave.Int64",
			fmt.Errorf("value %s exceeds MAX_SAFE_INTEGER (%d)", w.v.Dec(), MaxSafeInteger))
	}
	return int64(w.v.Uint64()), nil
}

// MustInt64 is Int64 without the error return, for call sites that have
// already range-checked (e.g. tests constructing fixtures). It panics on
// overflow, which is acceptable because it is never used on attacker-
// controlled input.
func (w Weave) MustInt64() int64 {
	n, err := w.Int64()
	if err != nil {
		panic(err)
	}
	return n
}
