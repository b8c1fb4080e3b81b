// core/ratelimit.go
package core

// Token-bucket rate limiter (spec §4.5) — generalises the teacher's
// diskLRU (core/storage.go) bounded-map-with-eviction shape into a
// bounded map of token buckets, guarded the same way (one mutex, evict
// oldest on overflow), fronted by hashicorp/golang-lru/v2 instead of a
// hand-rolled index+order slice since the eviction policy here is plain
// LRU with no on-disk component.

import (
	"context"
	"math"
	"net"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const (
	bytesPerToken       = 1024
	defaultBucketCap    = 100_000
	defaultCapacity     = 100
	defaultRefillPerSec = 10
)

// ConsumeResult is RateLimiter.Consume's outcome.
type ConsumeResult struct {
	Allowed             bool
	DeniedBucket        string // "resource" or "ip", set iff !Allowed
	CachedContentLength int64
	HasCachedLength     bool
}

// bucket is one token-bucket's mutable state.
type bucket struct {
	mu                sync.Mutex
	tokens            float64
	capacity          float64
	refillPerSec      float64
	lastRefillAtMs    int64
	cachedContentLen  int64
	hasCachedLen      bool
}

func newBucket(capacity, refillPerSec float64, nowMs int64) *bucket {
	return &bucket{tokens: capacity, capacity: capacity, refillPerSec: refillPerSec, lastRefillAtMs: nowMs}
}

func (b *bucket) refillLocked(nowMs int64, capacityMultiplier float64) {
	elapsed := float64(nowMs-b.lastRefillAtMs) / 1000
	if elapsed > 0 {
		b.tokens = math.Min(b.capacity*capacityMultiplier, b.tokens+elapsed*b.refillPerSec)
		b.lastRefillAtMs = nowMs
	}
}

// tryConsume refills then attempts to take `need` tokens; returns whether
// it succeeded.
func (b *bucket) tryConsume(nowMs int64, need, capacityMultiplier float64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refillLocked(nowMs, capacityMultiplier)
	if b.tokens < need {
		return false
	}
	b.tokens -= need
	return true
}

// give adds tokens back (used on rollback and on a negative adjust delta).
func (b *bucket) give(n float64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tokens += n
}

// RateLimiter implements spec §4.5's two-bucket admission and adjustment
// protocol. The in-memory backend here is one *RateLimiter per process;
// RemoteRateLimiter is the alternative wired by a multi-instance
// deployment (spec §4.5's "remote key-value backend" with server-side
// atomic consume).
type RateLimiter struct {
	resourceBuckets *lru.Cache[string, *bucket]
	ipBuckets       *lru.Cache[string, *bucket]
	allowlist       []*net.IPNet
	capacity        float64
	refillPerSec    float64
	nowMs           func() int64
}

// RateLimiterConfig configures NewRateLimiter.
type RateLimiterConfig struct {
	BucketCap    int
	Capacity     float64
	RefillPerSec float64
	AllowlistCIDRs []string
}

// NewRateLimiter builds an in-memory RateLimiter.
func NewRateLimiter(cfg RateLimiterConfig) (*RateLimiter, error) {
	cap := cfg.BucketCap
	if cap <= 0 {
		cap = defaultBucketCap
	}
	capacity := cfg.Capacity
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	refill := cfg.RefillPerSec
	if refill <= 0 {
		refill = defaultRefillPerSec
	}
	resourceBuckets, err := lru.New[string, *bucket](cap)
	if err != nil {
		return nil, NewError(KindInternal, "NewRateLimiter", err)
	}
	ipBuckets, err := lru.New[string, *bucket](cap)
	if err != nil {
		return nil, NewError(KindInternal, "NewRateLimiter", err)
	}
	var nets []*net.IPNet
	for _, c := range cfg.AllowlistCIDRs {
		_, n, err := net.ParseCIDR(c)
		if err != nil {
			continue
		}
		nets = append(nets, n)
	}
	return &RateLimiter{
		resourceBuckets: resourceBuckets,
		ipBuckets:       ipBuckets,
		allowlist:       nets,
		capacity:        capacity,
		refillPerSec:    refill,
		nowMs:           func() int64 { return time.Now().UnixMilli() },
	}, nil
}

// CanonicalizeKey builds the resource-bucket and IP-bucket keys for a
// request per spec §4.5's canonicalization rule.
func CanonicalizeKey(method, host, path, ip string) (resourceKey, ipKey string) {
	p := path
	if p == "" {
		p = "/"
	}
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	if len(p) > 256 {
		p = p[:256]
	}
	h := host
	if len(h) > 256 {
		h = h[:256]
	}
	resourceKey = "{rl:" + method + ":" + h + ":" + p + "}:resource"
	ipKey = "rl:ip:" + ip
	return resourceKey, ipKey
}

// IsAllowlisted reports whether any of ips matches the configured CIDR
// allowlist.
func (r *RateLimiter) IsAllowlisted(ips []string) bool {
	for _, s := range ips {
		parsed := net.ParseIP(s)
		if parsed == nil {
			continue
		}
		for _, n := range r.allowlist {
			if n.Contains(parsed) {
				return true
			}
		}
	}
	return false
}

func predictedTokens(cachedLen int64, hasCachedLen bool, hintBytes int64) float64 {
	if hasCachedLen {
		return math.Max(1, math.Ceil(float64(cachedLen)/bytesPerToken))
	}
	return math.Max(1, math.Ceil(float64(hintBytes)/bytesPerToken))
}

func (r *RateLimiter) bucketFor(store *lru.Cache[string, *bucket], key string) *bucket {
	if b, ok := store.Get(key); ok {
		return b
	}
	b := newBucket(r.capacity, r.refillPerSec, r.nowMs())
	store.Add(key, b)
	return b
}

// Consume admits or rejects a request, implementing spec §4.5's two-phase
// consume with rollback. ips is every address the caller claims (for
// allowlist matching); capacityMultiplier scales effective capacity (x402
// payment receipts).
func (r *RateLimiter) Consume(ctx context.Context, method, host, path string, ips []string, hintBytes int64, capacityMultiplier float64) ConsumeResult {
	if r.IsAllowlisted(ips) {
		return ConsumeResult{Allowed: true}
	}
	if capacityMultiplier <= 0 {
		capacityMultiplier = 1
	}
	ip := ""
	if len(ips) > 0 {
		ip = ips[0]
	}
	resourceKey, ipKey := CanonicalizeKey(method, host, path, ip)
	resourceBucket := r.bucketFor(r.resourceBuckets, resourceKey)
	ipBucket := r.bucketFor(r.ipBuckets, ipKey)

	now := r.nowMs()
	resourceBucket.mu.Lock()
	cachedLen, hasCachedLen := resourceBucket.cachedContentLen, resourceBucket.hasCachedLen
	resourceBucket.mu.Unlock()
	predicted := predictedTokens(cachedLen, hasCachedLen, hintBytes)

	if !resourceBucket.tryConsume(now, predicted, capacityMultiplier) {
		return ConsumeResult{Allowed: false, DeniedBucket: "resource"}
	}
	if !ipBucket.tryConsume(now, predicted, capacityMultiplier) {
		resourceBucket.give(predicted)
		return ConsumeResult{Allowed: false, DeniedBucket: "ip"}
	}
	return ConsumeResult{Allowed: true, CachedContentLength: cachedLen, HasCachedLength: hasCachedLen}
}

// Adjust reconciles predicted vs. actual token cost after the response is
// known (spec §4.5's post-response adjust).
func (r *RateLimiter) Adjust(ctx context.Context, method, host, path string, ips []string, predicted, responseBytes int64) {
	if r.IsAllowlisted(ips) {
		return
	}
	ip := ""
	if len(ips) > 0 {
		ip = ips[0]
	}
	resourceKey, ipKey := CanonicalizeKey(method, host, path, ip)
	actual := int64(math.Max(1, math.Ceil(float64(responseBytes)/bytesPerToken)))
	delta := float64(actual - predicted)

	if b, ok := r.resourceBuckets.Get(resourceKey); ok {
		b.give(-delta)
		b.mu.Lock()
		b.cachedContentLen = responseBytes
		b.hasCachedLen = true
		b.mu.Unlock()
	}
	if b, ok := r.ipBuckets.Get(ipKey); ok {
		b.give(-delta)
	}
}
