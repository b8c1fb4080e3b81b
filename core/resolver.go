// core/resolver.go
package core

// Root-parent resolver (spec §4.3) — generalises the teacher's
// merkle_tree_operations.go walk-and-accumulate style (climbing a tree
// level by level, accumulating an offset as it goes) into a walk up a
// parent-attribute chain instead of a hash tree, stopping at a visited-set
// cycle guard or a configured depth bound.

import (
	"context"

	"go.uber.org/zap"
)

// DefaultMaxBundleNestingDepth is spec §4.3's default depth bound.
const DefaultMaxBundleNestingDepth = 10

// Resolver turns a data-item id into its root transaction and an absolute,
// payload-relative byte range.
type Resolver struct {
	attrs             AttributesStore
	legacy            LegacyRootIndex
	legacyEnabled     bool
	maxNestingDepth    int
}

// LegacyRootIndex is the consumed collaborator for spec §4.3 step 3, the
// legacy fallback: an external index of root-tx offsets, used when the
// parent-chain walk can't resolve (e.g. attributes were never populated).
type LegacyRootIndex interface {
	GetRootTx(ctx context.Context, id string) (*RootTxInfo, error)
}

// ResolverConfig configures NewResolver's optional knobs.
type ResolverConfig struct {
	MaxNestingDepth int
	LegacyEnabled   bool
}

// NewResolver builds a Resolver. legacy may be nil if LegacyEnabled is false.
func NewResolver(attrs AttributesStore, legacy LegacyRootIndex, cfg ResolverConfig) *Resolver {
	depth := cfg.MaxNestingDepth
	if depth <= 0 {
		depth = DefaultMaxBundleNestingDepth
	}
	return &Resolver{
		attrs:           attrs,
		legacy:          legacy,
		legacyEnabled:   cfg.LegacyEnabled,
		maxNestingDepth: depth,
	}
}

// Resolve implements spec §4.3's three-step algorithm. A nil result with a
// nil error means "pass through" — id is itself an L1 transaction, or no
// information could be found and the caller should treat it as one.
func (r *Resolver) Resolve(ctx context.Context, id string) (*RootParent, error) {
	attrs, err := r.attrs.GetDataAttributes(ctx, id)
	if err != nil {
		return nil, err
	}

	// Step 1: pre-computed attributes fast path.
	if attrs != nil && attrs.HasRoot() {
		return &RootParent{
			RootTransactionID: attrs.RootTransactionID,
			RootDataOffset:    attrs.RootDataOffset,
			Size:              attrs.Size,
		}, nil
	}

	// Step 2: parent-chain walk.
	result, walked, err := r.walkParentChain(ctx, id)
	if err != nil {
		return nil, err
	}
	if walked {
		r.persist(ctx, id, result)
		return result, nil
	}

	// Step 3: legacy fallback.
	if r.legacyEnabled && r.legacy != nil {
		info, err := r.legacy.GetRootTx(ctx, id)
		if err != nil {
			return nil, err
		}
		if info != nil && info.HasRootOffset && info.HasRootData {
			rp := &RootParent{
				RootTransactionID: info.RootTxID,
				RootDataOffset:    info.RootDataOffset,
				Size:              sizeFromRootTxInfo(info),
			}
			r.persist(ctx, id, rp)
			return rp, nil
		}
	}

	return nil, nil
}

func sizeFromRootTxInfo(info *RootTxInfo) int64 {
	if info.HasSize {
		return info.Size
	}
	return info.DataSize
}

// walkParentChain climbs id's attribute chain via ParentID, accumulating
// offset+dataOffset at each step, until it hits an item with no parent (the
// root) or detects a cycle/depth violation. walked is false if id itself
// has no parent (an L1 transaction as far as the attributes store knows) —
// the step-2 "we never moved" special case.
func (r *Resolver) walkParentChain(ctx context.Context, id string) (result *RootParent, walked bool, err error) {
	initialAttrs, err := r.attrs.GetDataAttributes(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if initialAttrs == nil || initialAttrs.ParentID == "" {
		return nil, false, nil
	}
	initialDataOffset := initialAttrs.DataOffset
	size := initialAttrs.Size

	visited := map[string]bool{id: true}
	currentID := id
	currentAttrs := initialAttrs
	totalOffset := int64(0)

	for depth := 0; depth < r.maxNestingDepth; depth++ {
		if currentAttrs.ParentID == "" || currentAttrs.ParentID == currentID {
			return &RootParent{
				RootTransactionID: currentID,
				RootDataOffset:    totalOffset + initialDataOffset,
				Size:              size,
			}, true, nil
		}
		if visited[currentAttrs.ParentID] {
			return nil, true, NewError(KindValidationFailed, "Resolver.walkParentChain", ErrValidationFailed)
		}
		totalOffset += currentAttrs.Offset + currentAttrs.DataOffset
		visited[currentAttrs.ParentID] = true
		currentID = currentAttrs.ParentID

		next, err := r.attrs.GetDataAttributes(ctx, currentID)
		if err != nil {
			return nil, true, err
		}
		if next == nil {
			return &RootParent{
				RootTransactionID: currentID,
				RootDataOffset:    totalOffset + initialDataOffset,
				Size:              size,
			}, true, nil
		}
		currentAttrs = next
	}
	return nil, true, NewError(KindValidationFailed, "Resolver.walkParentChain",
		NewError(KindOutOfRange, "MAX_BUNDLE_NESTING_DEPTH exceeded", ErrOutOfRange))
}

// persist caches a resolved root parent back onto id's attributes so the
// next Resolve takes the step-1 fast path. Best effort: the resolver has no
// injected logger (it runs ahead of any per-request logging middleware), so
// a failed write here only costs a repeated walk next time and is logged
// through the global zap logger rather than failing resolution.
func (r *Resolver) persist(ctx context.Context, id string, rp *RootParent) {
	if rp == nil {
		return
	}
	if err := r.attrs.SetDataAttributes(ctx, id, DataAttributes{
		RootTransactionID:  rp.RootTransactionID,
		RootDataOffset:     rp.RootDataOffset,
		HasRootDataOffset:  true,
		RootDataItemOffset: rp.RootDataOffset,
		HasRootItemOffset:  true,
		Size:               rp.Size,
	}); err != nil {
		zap.L().Sugar().Warnw("resolver attribute cache persist failed", "id", id, "error", err)
	}
}

// ResolveRegion applies spec §4.3's region arithmetic against a resolved
// root parent.
func ResolveRegion(rp *RootParent, region *Region) (Region, error) {
	if region == nil {
		return Region{Offset: rp.RootDataOffset, Size: rp.Size}, nil
	}
	if region.Offset >= rp.Size {
		return Region{}, NewError(KindOutOfRange, "ResolveRegion", ErrOutOfRange)
	}
	size := region.Size
	if max := rp.Size - region.Offset; size > max {
		size = max
	}
	return Region{Offset: rp.RootDataOffset + region.Offset, Size: size}, nil
}
