// Package correlator implements send-and-await request/reply correlation
// (spec §4.1): given an outbound envelope, register a pending request keyed
// by its id, and resolve it with the first inbound envelope whose
// RequestID matches — or fail it on timeout or hub shutdown.
//
// The pending map is guarded by a mutex rather than owned by a single
// goroutine as in arkeep-io-arkeep/server/internal/websocket/hub.go, and
// the job changes from "broadcast to subscribed websocket clients" to
// "resolve exactly one future by id."
package correlator

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/orchestratorhub/hub/internal/envelope"
	"github.com/orchestratorhub/hub/internal/huberrors"
)

// Filter narrows which inbound envelope satisfies a pending request beyond
// the RequestID match. A nil Filter accepts any frame whose RequestID
// matches. Non-matching frames are left untouched so other subscribers —
// this correlator only ever tracks its own pending set — are unaffected.
type Filter func(envelope.Envelope) bool

// pending is one outstanding PendingRequest (spec §3).
type pending struct {
	resolve  chan envelope.Envelope
	fail     chan error
	filter   Filter
	deadline time.Time
	once     sync.Once
}

func (p *pending) resolveOnce(env envelope.Envelope) {
	p.once.Do(func() { p.resolve <- env })
}

func (p *pending) failOnce(err error) {
	p.once.Do(func() { p.fail <- err })
}

// Correlator tracks PendingRequests keyed by id. The hub shares one
// instance across the router's dispatched agent and service tasks; the MCP
// supervisor's stdio link keeps its own pending map. Each id has
// at most one outstanding PendingRequest (spec invariant #4): it is
// resolved exactly once, by a matching reply, a timeout, or shutdown.
type Correlator struct {
	mu      sync.Mutex
	waiting map[string]*pending
	logger  *zap.Logger
	closed  bool

	latency prometheus.Histogram
}

// New creates an empty Correlator.
func New(logger *zap.Logger) *Correlator {
	return &Correlator{
		waiting: make(map[string]*pending),
		logger:  logger.Named("correlator"),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orchestratorhub_correlator_round_trip_seconds",
			Help:    "Time between a correlated send and its matching reply.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// MetricsCollector exposes the round-trip latency histogram for
// registration with the admin API's Prometheus registry.
func (c *Correlator) MetricsCollector() prometheus.Collector {
	return c.latency
}

// Await registers a PendingRequest for id and blocks until a matching reply
// arrives (via Resolve), the deadline elapses, or the Correlator is shut
// down. The caller is responsible for having already sent the envelope
// whose id this call awaits.
func (c *Correlator) Await(id string, timeout time.Duration, filter Filter) (envelope.Envelope, error) {
	p := &pending{
		resolve:  make(chan envelope.Envelope, 1),
		fail:     make(chan error, 1),
		filter:   filter,
		deadline: time.Now().Add(timeout),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return envelope.Envelope{}, huberrors.ErrShutdown
	}
	c.waiting[id] = p
	c.mu.Unlock()

	start := time.Now()
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case env := <-p.resolve:
		c.remove(id)
		c.latency.Observe(time.Since(start).Seconds())
		return env, nil
	case err := <-p.fail:
		c.remove(id)
		return envelope.Envelope{}, err
	case <-timer.C:
		c.remove(id)
		p.failOnce(huberrors.ErrTimeout)
		return envelope.Envelope{}, huberrors.ErrTimeout
	}
}

// Resolve attempts to match an inbound envelope against a pending request.
// It returns true if a PendingRequest was resolved (i.e. this frame was
// consumed); false means no pending request matched and the caller should
// route the frame elsewhere.
//
// A reply arriving after its PendingRequest already timed out is silently
// discarded (spec boundary behavior): by the time Resolve runs the entry
// is gone, so this is automatic.
func (c *Correlator) Resolve(env envelope.Envelope) bool {
	if env.RequestID == "" {
		return false
	}

	c.mu.Lock()
	p, ok := c.waiting[env.RequestID]
	c.mu.Unlock()
	if !ok {
		return false
	}

	if p.filter != nil && !p.filter(env) {
		return false
	}

	p.resolveOnce(env)
	return true
}

// SweepExpired fails any PendingRequest whose deadline has passed. Intended
// to be called periodically by the maintenance scheduler as a backstop —
// Await's own timer already fails requests on its own goroutine, but a
// sweep also reclaims entries if a caller's goroutine was never scheduled
// promptly (spec §5 gives no real-time guarantee).
func (c *Correlator) SweepExpired(now time.Time) int {
	c.mu.Lock()
	var expired []*pending
	for id, p := range c.waiting {
		if now.After(p.deadline) {
			expired = append(expired, p)
			delete(c.waiting, id)
		}
	}
	c.mu.Unlock()

	for _, p := range expired {
		p.failOnce(huberrors.ErrTimeout)
	}
	return len(expired)
}

// Shutdown fails every outstanding PendingRequest with ErrShutdown and
// marks the Correlator closed so future Await calls fail immediately
// (spec §5: "on hub stop, every PendingRequest ... is failed with
// Shutdown").
func (c *Correlator) Shutdown() {
	c.mu.Lock()
	c.closed = true
	var all []*pending
	for id, p := range c.waiting {
		all = append(all, p)
		delete(c.waiting, id)
	}
	c.mu.Unlock()

	for _, p := range all {
		p.failOnce(huberrors.ErrShutdown)
	}
}

// Pending returns the number of outstanding PendingRequests. Intended for
// metrics.
func (c *Correlator) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiting)
}

func (c *Correlator) remove(id string) {
	c.mu.Lock()
	delete(c.waiting, id)
	c.mu.Unlock()
}
