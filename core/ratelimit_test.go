package core

import (
	"context"
	"testing"
)

func TestRateLimiterConsumeDrainsResourceBucket(t *testing.T) {
	rl, err := NewRateLimiter(RateLimiterConfig{Capacity: 2, RefillPerSec: 0, BucketCap: 10})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	ctx := context.Background()

	// Each call predicts ceil(2048/1024) = 2 tokens; the resource bucket
	// starts with capacity 2, so the first call exactly drains it.
	res := rl.Consume(ctx, "GET", "arweave.net", "/tx/abc", []string{"1.2.3.4"}, 2048, 1)
	if !res.Allowed {
		t.Fatal("expected first consume to be allowed")
	}

	res2 := rl.Consume(ctx, "GET", "arweave.net", "/tx/abc", []string{"1.2.3.4"}, 2048, 1)
	if res2.Allowed {
		t.Fatal("expected second consume to be denied once the bucket is drained")
	}
	if res2.DeniedBucket != "resource" {
		t.Fatalf("expected denial on the resource bucket, got %q", res2.DeniedBucket)
	}
}

func TestRateLimiterIPBucketRollsBackResourceBucket(t *testing.T) {
	// IP capacity of 1 means the second distinct-resource request from the
	// same IP is denied on the IP bucket; the resource bucket it
	// provisionally drained must be rolled back, so a subsequent request to
	// that same resource still succeeds at full capacity.
	rl, err := NewRateLimiter(RateLimiterConfig{Capacity: 1, RefillPerSec: 0, BucketCap: 10})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	ctx := context.Background()

	first := rl.Consume(ctx, "GET", "arweave.net", "/tx/one", []string{"9.9.9.9"}, 1024, 1)
	if !first.Allowed {
		t.Fatal("expected first request to be allowed")
	}
	denied := rl.Consume(ctx, "GET", "arweave.net", "/tx/two", []string{"9.9.9.9"}, 1024, 1)
	if denied.Allowed {
		t.Fatal("expected second request to be denied on the exhausted IP bucket")
	}
	if denied.DeniedBucket != "ip" {
		t.Fatalf("expected denial on the ip bucket, got %q", denied.DeniedBucket)
	}

	retry := rl.Consume(ctx, "GET", "arweave.net", "/tx/two", []string{"8.8.8.8"}, 1024, 1)
	if !retry.Allowed {
		t.Fatal("expected /tx/two's resource bucket to have been rolled back, not drained")
	}
}

func TestRateLimiterAllowlistBypassesConsume(t *testing.T) {
	rl, err := NewRateLimiter(RateLimiterConfig{Capacity: 1, RefillPerSec: 0, AllowlistCIDRs: []string{"10.0.0.0/8"}})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		res := rl.Consume(ctx, "GET", "arweave.net", "/tx/x", []string{"10.1.2.3"}, 1024, 1)
		if !res.Allowed {
			t.Fatalf("call %d: expected allowlisted IP to always be allowed", i)
		}
	}
}

func TestRateLimiterAdjustReconciles(t *testing.T) {
	rl, err := NewRateLimiter(RateLimiterConfig{Capacity: 10, RefillPerSec: 0, BucketCap: 10})
	if err != nil {
		t.Fatalf("NewRateLimiter: %v", err)
	}
	ctx := context.Background()

	// hintBytes predicts 1 token (ceil(512/1024)=1); actual response turns
	// out far larger, so Adjust should take more tokens from the bucket.
	res := rl.Consume(ctx, "GET", "arweave.net", "/tx/y", []string{"2.2.2.2"}, 512, 1)
	if !res.Allowed {
		t.Fatal("expected initial consume to be allowed")
	}
	rl.Adjust(ctx, "GET", "arweave.net", "/tx/y", []string{"2.2.2.2"}, 1, 1024*9)

	// Capacity was 10, 1 token taken on Consume, then 8 more taken by
	// Adjust (actual 9 - predicted 1 = 8), leaving 1 token — any call
	// needing more than that must now be denied.
	res2 := rl.Consume(ctx, "GET", "arweave.net", "/tx/y", []string{"2.2.2.2"}, 1024*2, 1)
	if res2.Allowed {
		t.Fatal("expected post-adjust bucket to be nearly drained")
	}
}

func TestCanonicalizeKeyCollapsesDoubleSlashes(t *testing.T) {
	resKey, ipKey := CanonicalizeKey("GET", "arweave.net", "//tx//abc", "1.1.1.1")
	if resKey != "{rl:GET:arweave.net:/tx/abc}:resource" {
		t.Fatalf("unexpected resource key: %q", resKey)
	}
	if ipKey != "rl:ip:1.1.1.1" {
		t.Fatalf("unexpected ip key: %q", ipKey)
	}
}
