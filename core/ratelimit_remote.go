// core/ratelimit_remote.go
package core

// Remote rate-limiter backend (spec §4.5: "a remote key-value backend,
// atomic consume implemented server-side so the refill/check/consume is a
// single round trip"). Wired over gRPC, the transport the teacher's wider
// Synnergy tree uses for its node-to-node RPCs; the request/response
// payload uses protobuf's well-known structpb.Struct rather than a
// hand-generated message type, since the backend's job is a single atomic
// numeric operation and a generic struct keeps this file free of
// checked-in protoc output.

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const remoteConsumeMethod = "/weavegate.ratelimit.v1.RateLimiter/ConsumeDelta"

// RemoteRateLimiter delegates the refill/check/consume of one bucket key to
// a remote service over conn, so multiple gateway instances share one set of
// buckets. It exposes per-key ConsumeDelta and Adjust calls only; it does
// not implement RateLimiter's two-bucket Consume, its rollback, or the
// allowlist check.
type RemoteRateLimiter struct {
	conn grpc.ClientConnInterface
}

// NewRemoteRateLimiter wraps an established gRPC connection.
func NewRemoteRateLimiter(conn grpc.ClientConnInterface) *RemoteRateLimiter {
	return &RemoteRateLimiter{conn: conn}
}

// ConsumeDelta asks the remote service to refill, check and consume need
// tokens from key atomically, returning whether it succeeded and the
// bucket's cached content length (if any) for prediction on the next call.
func (r *RemoteRateLimiter) ConsumeDelta(ctx context.Context, key string, need, capacityMultiplier float64) (ConsumeResult, error) {
	req, err := structpb.NewStruct(map[string]any{
		"key":                 key,
		"need":                need,
		"capacity_multiplier": capacityMultiplier,
	})
	if err != nil {
		return ConsumeResult{}, NewError(KindInternal, "RemoteRateLimiter.ConsumeDelta", err)
	}

	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, remoteConsumeMethod, req, resp); err != nil {
		return ConsumeResult{}, NewError(KindUpstreamUnavailable, "RemoteRateLimiter.ConsumeDelta", err)
	}

	fields := resp.GetFields()
	allowed := fields["allowed"].GetBoolValue()
	result := ConsumeResult{Allowed: allowed}
	if v, ok := fields["cached_content_length"]; ok {
		result.CachedContentLength = int64(v.GetNumberValue())
		result.HasCachedLength = true
	}
	if !allowed {
		result.DeniedBucket = fields["denied_bucket"].GetStringValue()
	}
	return result, nil
}

// Adjust submits a post-response token delta to the remote service. A
// failure is returned to the caller; this method does not log it.
func (r *RemoteRateLimiter) Adjust(ctx context.Context, key string, delta float64, responseBytes int64) error {
	req, err := structpb.NewStruct(map[string]any{
		"key":            key,
		"delta":          delta,
		"response_bytes": float64(responseBytes),
	})
	if err != nil {
		return NewError(KindInternal, "RemoteRateLimiter.Adjust", err)
	}
	resp := &structpb.Struct{}
	if err := r.conn.Invoke(ctx, remoteAdjustMethod, req, resp); err != nil {
		return NewError(KindUpstreamUnavailable, "RemoteRateLimiter.Adjust", err)
	}
	return nil
}

const remoteAdjustMethod = "/weavegate.ratelimit.v1.RateLimiter/Adjust"
