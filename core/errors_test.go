package core

import (
	"errors"
	"testing"
)

func TestCodedErrorIsMatchesSentinel(t *testing.T) {
	err := NewError(KindNotFound, "Cache.GetData", ErrNotFound)
	if !errors.Is(err, ErrNotFound) {
		t.Fatal("expected errors.Is to match the NotFound sentinel")
	}
	if errors.Is(err, ErrValidationFailed) {
		t.Fatal("expected errors.Is to not match an unrelated sentinel")
	}
}

func TestKindOfDefaultsToInternal(t *testing.T) {
	if KindOf(errors.New("plain error")) != KindInternal {
		t.Fatal("expected a non-CodedError to default to KindInternal")
	}
	if KindOf(nil) != KindInternal {
		t.Fatal("expected a nil error to default to KindInternal")
	}
}

func TestRetryablePolicy(t *testing.T) {
	cases := []struct {
		kind      ErrorKind
		retryable bool
	}{
		{KindNotFound, true},
		{KindUpstreamUnavailable, true},
		{KindValidationFailed, false},
		{KindRateLimited, false},
		{KindCancelled, false},
		{KindInternal, false},
	}
	for _, c := range cases {
		err := NewError(c.kind, "op", nil)
		if got := Retryable(err); got != c.retryable {
			t.Fatalf("kind %s: Retryable got %v want %v", c.kind, got, c.retryable)
		}
	}
}
