// core/datasource.go
package core

// Composite data source — generalises the teacher's GatewayNode
// (core/gateway_node.go), which kept a mutex-guarded registry of named
// external HTTP sources (`externals map[string]string`) queried one at a
// time via QueryExternalData. This keeps that same "named, registered,
// mutex-guarded set of external sources" shape but turns it into an
// ordered retry chain with weighted backend selection within the
// trusted-gateway tier, per spec §4.2.

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const (
	defaultMaxHops         = 3
	temperatureWindow      = 20
	defaultReweighInterval = 5 * time.Second
)

// CompositeSource tries an ordered list of DataSource backends, advancing
// to the next iff the previous failed with a retryable error or not-found.
type CompositeSource struct {
	logger   *logrus.Logger
	backends []DataSource
	maxHops  int
}

// NewCompositeSource builds a CompositeSource over backends in priority
// order (spec §4.2: "one order for on-demand reads, one for background
// work" — callers build two CompositeSource instances from the same
// backend set in different orders for that).
func NewCompositeSource(logger *logrus.Logger, backends []DataSource, maxHops int) *CompositeSource {
	if logger == nil {
		logger = logrus.New()
	}
	if maxHops <= 0 {
		maxHops = defaultMaxHops
	}
	return &CompositeSource{logger: logger, backends: backends, maxHops: maxHops}
}

// GetData tries each backend in order, stopping at the first that yields a
// stream. A hop count beyond maxHops is rejected outright so proxying
// backends never recurse unboundedly (spec §4.2).
func (c *CompositeSource) GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error) {
	if req.RequestAttrs != nil && req.RequestAttrs.HopCount > c.maxHops {
		return nil, NewError(KindUpstreamUnavailable, "CompositeSource.GetData", errHopLimitExceeded)
	}
	if req.RequestAttrs != nil && req.RequestAttrs.TraceID == "" {
		req.RequestAttrs.TraceID = uuid.New().String()
	}

	var lastErr error
	for _, backend := range c.backends {
		select {
		case <-ctx.Done():
			return nil, NewError(KindCancelled, "CompositeSource.GetData", ctx.Err())
		default:
		}

		data, err := backend.GetData(ctx, req)
		if err == nil {
			return data, nil
		}
		lastErr = err
		if !Retryable(err) {
			return nil, err
		}
		c.logger.WithError(err).Debug("composite source backend missed, trying next")
	}
	if lastErr == nil {
		return nil, NewError(KindNotFound, "CompositeSource.GetData", ErrNotFound)
	}
	return nil, lastErr
}

var errHopLimitExceeded = NewError(KindUpstreamUnavailable, "hop-count", ErrUpstreamUnavailable)

// GatewayEndpoint is one member of a TrustedGatewaySource's weighted pool.
type GatewayEndpoint struct {
	Name    string
	Weight  float64
	Timeout time.Duration
}

// gatewayState tracks the rolling outcome window and derived temperature
// for one endpoint.
type gatewayState struct {
	outcomes    []bool // true = success, bounded at temperatureWindow
	temperature float64
}

// Fetcher performs the actual byte retrieval against one named gateway; a
// real deployment backs this with an HTTP client, kept as an interface here
// so the temperature-weighted selection logic is independently testable.
type Fetcher interface {
	Fetch(ctx context.Context, gateway string, req UpstreamGetDataRequest) (*ContiguousData, error)
}

// TrustedGatewaySource implements DataSource over a weighted pool of
// trusted gateways, selected by temperature-weighted random per request
// (spec §4.2).
type TrustedGatewaySource struct {
	logger  *logrus.Logger
	fetcher Fetcher

	mu              sync.Mutex
	endpoints       []GatewayEndpoint
	state           map[string]*gatewayState
	lastReweigh     time.Time
	reweighInterval time.Duration
	rng             *rand.Rand
}

// NewTrustedGatewaySource builds a TrustedGatewaySource over endpoints.
func NewTrustedGatewaySource(logger *logrus.Logger, fetcher Fetcher, endpoints []GatewayEndpoint) *TrustedGatewaySource {
	if logger == nil {
		logger = logrus.New()
	}
	state := make(map[string]*gatewayState, len(endpoints))
	for _, e := range endpoints {
		state[e.Name] = &gatewayState{temperature: 1}
	}
	return &TrustedGatewaySource{
		logger:          logger,
		fetcher:         fetcher,
		endpoints:       endpoints,
		state:           state,
		reweighInterval: defaultReweighInterval,
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// GetData selects a gateway by temperature-weighted random and fetches
// through it, recording the outcome for future selections.
func (t *TrustedGatewaySource) GetData(ctx context.Context, req UpstreamGetDataRequest) (*ContiguousData, error) {
	name, ok := t.selectGateway()
	if !ok {
		return nil, NewError(KindUpstreamUnavailable, "TrustedGatewaySource.GetData", ErrUpstreamUnavailable)
	}
	data, err := t.fetcher.Fetch(ctx, name, req)
	t.recordOutcome(name, err == nil)
	if err != nil {
		return nil, NewError(KindUpstreamUnavailable, "TrustedGatewaySource.GetData", err)
	}
	data.Trusted = true
	return data, nil
}

// selectGateway picks an endpoint with probability proportional to
// weight * temperature, recomputing temperatures first if the reweigh
// interval has elapsed.
func (t *TrustedGatewaySource) selectGateway() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.endpoints) == 0 {
		return "", false
	}
	if time.Since(t.lastReweigh) >= t.reweighInterval {
		for _, e := range t.endpoints {
			t.state[e.Name].temperature = computeTemperature(t.state[e.Name].outcomes)
		}
		t.lastReweigh = time.Now()
	}

	total := 0.0
	weights := make([]float64, len(t.endpoints))
	for i, e := range t.endpoints {
		w := e.Weight * t.state[e.Name].temperature
		if w < 0 {
			w = 0
		}
		weights[i] = w
		total += w
	}
	if total <= 0 {
		// every endpoint has a zero (or negative) configured weight; fall
		// back to uniform so the pool still serves rather than wedging.
		idx := t.rng.Intn(len(t.endpoints))
		return t.endpoints[idx].Name, true
	}
	pick := t.rng.Float64() * total
	for i, w := range weights {
		if pick < w {
			return t.endpoints[i].Name, true
		}
		pick -= w
	}
	return t.endpoints[len(t.endpoints)-1].Name, true
}

func computeTemperature(outcomes []bool) float64 {
	if len(outcomes) == 0 {
		return 1
	}
	successes := 0
	for _, ok := range outcomes {
		if ok {
			successes++
		}
	}
	temp := float64(successes) / float64(len(outcomes))
	if temp <= 0 {
		return 0.01 // never fully zero out a recoverable endpoint
	}
	return temp
}

func (t *TrustedGatewaySource) recordOutcome(name string, ok bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	st, found := t.state[name]
	if !found {
		return
	}
	st.outcomes = append(st.outcomes, ok)
	if len(st.outcomes) > temperatureWindow {
		st.outcomes = st.outcomes[len(st.outcomes)-temperatureWindow:]
	}
}
