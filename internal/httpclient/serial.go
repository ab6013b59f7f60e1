package httpclient

import (
	"net/url"
	"sync"
)

// HostGate is a process-global per-host serializer. Guide data providers
// publish a serial-access policy: one request at a time per client. The
// scheduler already drains its queue serially, but any other code path
// that touches the provider (icon fetches, ad hoc CLI commands) goes
// through the same gate so the process as a whole honours the contract.
//
// Usage: acquire before sending a request, release when the response
// has been consumed.
//
//	release := httpclient.GlobalHostGate.Acquire(url)
//	defer release()
type HostGate struct {
	mu    sync.Mutex
	gates map[string]chan struct{}
	limit int
}

// GlobalHostGate is the shared gate: one in-flight request per host.
var GlobalHostGate = NewHostGate(1)

func NewHostGate(concurrency int) *HostGate {
	if concurrency < 1 {
		concurrency = 1
	}
	return &HostGate{
		gates: make(map[string]chan struct{}),
		limit: concurrency,
	}
}

// Acquire blocks until a slot is available for the URL's host and
// returns a release func.
func (g *HostGate) Acquire(rawURL string) func() {
	gate := g.gateFor(rawURL)
	gate <- struct{}{}
	return func() { <-gate }
}

func (g *HostGate) gateFor(rawURL string) chan struct{} {
	// Normalise: strip path/query, keep scheme+host.
	key := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		key = u.Scheme + "://" + u.Host
	}
	g.mu.Lock()
	c, ok := g.gates[key]
	if !ok {
		c = make(chan struct{}, g.limit)
		g.gates[key] = c
	}
	g.mu.Unlock()
	return c
}
