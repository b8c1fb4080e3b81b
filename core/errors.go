package core

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure the way spec §7 enumerates them. It is
// carried on CodedError and fed to the Counters hook so a per-class error
// count can be kept without every call site knowing about metrics.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindOutOfRange
	KindValidationFailed
	KindUpstreamUnavailable
	KindRateLimited
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "NotFound"
	case KindOutOfRange:
		return "OutOfRange"
	case KindValidationFailed:
		return "ValidationFailed"
	case KindUpstreamUnavailable:
		return "UpstreamUnavailable"
	case KindRateLimited:
		return "RateLimited"
	case KindCancelled:
		return "Cancelled"
	default:
		return "Internal"
	}
}

// Sentinel errors for errors.Is comparisons at call sites, mirroring the
// teacher's ErrNotFound/ErrInvalidState package-level sentinels.
var (
	ErrNotFound            = errors.New("resource not found")
	ErrOutOfRange          = errors.New("region out of bounds")
	ErrValidationFailed    = errors.New("validation failed")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrCancelled           = errors.New("request cancelled")
	ErrInternal            = errors.New("internal error")
)

func sentinelFor(k ErrorKind) error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindOutOfRange:
		return ErrOutOfRange
	case KindValidationFailed:
		return ErrValidationFailed
	case KindUpstreamUnavailable:
		return ErrUpstreamUnavailable
	case KindRateLimited:
		return ErrRateLimited
	case KindCancelled:
		return ErrCancelled
	default:
		return ErrInternal
	}
}

// CodedError pairs an ErrorKind with a wrapped cause so callers can both
// errors.Is against the sentinel and inspect the kind for metrics/retry
// policy (composite source: retry on NotFound/UpstreamUnavailable).
type CodedError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *CodedError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *CodedError) Unwrap() error {
	return e.Err
}

func (e *CodedError) Is(target error) bool {
	return target == sentinelFor(e.Kind)
}

// NewError builds a CodedError.
func NewError(kind ErrorKind, op string, cause error) error {
	return &CodedError{Kind: kind, Op: op, Err: cause}
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal when err
// is not a CodedError.
func KindOf(err error) ErrorKind {
	var ce *CodedError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindInternal
}

// Retryable reports whether the composite data source should try the next
// backend after seeing err (spec §7: NotFound and UpstreamUnavailable are
// "try the next backend").
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNotFound, KindUpstreamUnavailable:
		return true
	default:
		return false
	}
}
