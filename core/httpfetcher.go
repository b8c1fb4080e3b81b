// core/httpfetcher.go
package core

// HTTPFetcher is the default Fetcher implementation: one named gateway maps
// to a base URL, and a data-item/transaction id is appended as the request
// path. This mirrors the teacher's externals map[string]string registry
// (core/gateway_node.go), which kept a name -> URL mapping and dispatched an
// http.Client GET against it; here the mapping is static configuration
// (spec §6 "trusted gateway source") rather than a runtime-registered map,
// since the pool of trusted gateways is operator-configured, not
// peer-discovered.

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTPFetcher fetches data-item/transaction bytes from a named pool of
// gateway base URLs over HTTP(S).
type HTTPFetcher struct {
	client  *http.Client
	baseURL map[string]string
}

// NewHTTPFetcher builds an HTTPFetcher. baseURL maps a gateway endpoint name
// (as used in GatewayEndpoint.Name) to its HTTP(S) base URL.
func NewHTTPFetcher(client *http.Client, baseURL map[string]string) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPFetcher{client: client, baseURL: baseURL}
}

// Fetch implements Fetcher by issuing a GET against gateway's base URL, using
// a byte-range header when req.Region narrows the request.
func (f *HTTPFetcher) Fetch(ctx context.Context, gateway string, req UpstreamGetDataRequest) (*ContiguousData, error) {
	base, ok := f.baseURL[gateway]
	if !ok {
		return nil, NewError(KindUpstreamUnavailable, "HTTPFetcher.Fetch", fmt.Errorf("unknown gateway %q", gateway))
	}
	url := strings.TrimRight(base, "/") + "/" + req.ID

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, NewError(KindInternal, "HTTPFetcher.Fetch", err)
	}
	if req.Region != nil {
		httpReq.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", req.Region.Offset, req.Region.Offset+req.Region.Size-1))
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return nil, NewError(KindUpstreamUnavailable, "HTTPFetcher.Fetch", err)
	}
	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent:
	case http.StatusNotFound:
		resp.Body.Close()
		return nil, NewError(KindNotFound, "HTTPFetcher.Fetch", ErrNotFound)
	default:
		resp.Body.Close()
		return nil, NewError(KindUpstreamUnavailable, "HTTPFetcher.Fetch",
			fmt.Errorf("gateway %s returned status %d", gateway, resp.StatusCode))
	}

	size := resp.ContentLength
	if size < 0 {
		if cl := resp.Header.Get("Content-Length"); cl != "" {
			if n, perr := strconv.ParseInt(cl, 10, 64); perr == nil {
				size = n
			}
		}
	}

	return &ContiguousData{
		Stream:            resp.Body,
		Size:              size,
		SourceContentType: resp.Header.Get("Content-Type"),
	}, nil
}
