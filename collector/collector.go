package collector

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/jonwraymond/workerhealth/bus"
	"github.com/jonwraymond/workerhealth/health"
	"github.com/jonwraymond/workerhealth/observe"
)

// Defaults for Config.
const (
	DefaultTimeout       = 5 * time.Second
	DefaultStaleAfter    = 30 * time.Second
	DefaultSweepInterval = 10 * time.Second
)

// Config configures a Collector.
type Config struct {
	// Timeout bounds each collection. Default: 5s.
	Timeout time.Duration `yaml:"timeout"`

	// StaleAfter is the age at which the sweeper drops a pending request
	// regardless of its own deadline. Default: 30s.
	StaleAfter time.Duration `yaml:"stale_after"`

	// SweepInterval is how often the sweeper runs. Default: 10s.
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

func (c Config) withDefaults() Config {
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = DefaultStaleAfter
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = DefaultSweepInterval
	}
	return c
}

// Option configures a Collector.
type Option func(*Collector)

// WithInstrumentation sets tracing, metrics and logging.
func WithInstrumentation(inst observe.Instrumentation) Option {
	return func(c *Collector) {
		c.inst = inst
	}
}

// request is the bookkeeping for one outstanding Collect call.
type request struct {
	expected  int
	started   time.Time
	responses []bus.Message
	done      chan struct{}
	resolved  bool
}

// resolve must be called with Collector.mu held.
func (r *request) resolve() {
	if !r.resolved {
		r.resolved = true
		close(r.done)
	}
}

// Collector collects registry snapshots across execution contexts.
//
// Contract:
// - Concurrency: safe for concurrent use; concurrent Collect calls get
// independent request ids and response buckets.
// - Errors: only Collect returns errors; CollectAcrossThreads and the
// aggregate views degrade to local data instead.
type Collector struct {
	cfg      Config
	registry *health.Registry
	bus      bus.Bus
	threads  bus.Threads
	inst     observe.Instrumentation

	nextID atomic.Uint64

	mu      sync.Mutex
	pending map[uint64]*request
	closed  bool

	unsubscribe []func()
	stop        chan struct{}
	closeOnce   sync.Once
	wg          sync.WaitGroup

	now func() time.Time
}

var _ health.StatusSource = (*Collector)(nil)

// New subscribes to status requests and responses on b and starts the
// stale-request sweeper.
func New(cfg Config, registry *health.Registry, b bus.Bus, threads bus.Threads, opts ...Option) (*Collector, error) {
	if registry == nil {
		return nil, ErrNilRegistry
	}
	if b == nil || threads == nil {
		return nil, ErrNilBus
	}

	c := &Collector{
		cfg:      cfg.withDefaults(),
		registry: registry,
		bus:      b,
		threads:  threads,
		pending:  make(map[uint64]*request),
		stop:     make(chan struct{}),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.inst = c.inst.Named("collector")
	c.inst.Logger = c.inst.Logger.With(observe.F("thread", threads.Current().Label()))

	for _, sub := range []struct {
		t bus.MessageType
		h bus.Handler
	}{
		{bus.StatusRequest, c.handleRequest},
		{bus.StatusResponse, c.handleResponse},
	} {
		unsub, err := b.Subscribe(sub.t, sub.h)
		if err != nil {
			c.unsubscribeAll()
			return nil, fmt.Errorf("collector: subscribe %s: %w", sub.t, err)
		}
		c.unsubscribe = append(c.unsubscribe, unsub)
	}

	c.wg.Add(1)
	go c.sweepLoop()

	return c, nil
}

// Collect broadcasts a status request and waits for peer responses. It
// returns when every peer has answered, when the collection timeout or ctx
// expires, or when the Collector is closed; the last three return whatever
// arrived so far with a nil error. A failed broadcast returns ErrBroadcast.
func (c *Collector) Collect(ctx context.Context) ([]bus.Message, error) {
	id := c.nextID.Add(1)
	req := &request{
		expected: c.threads.PeerCount(),
		started:  c.now(),
		done:     make(chan struct{}),
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = req
	c.mu.Unlock()
	defer c.forget(id)

	ctx, span := c.inst.Tracer.StartSpan(ctx, observe.SpanCollect,
		attribute.Int64("workerhealth.request_id", int64(id)),
		attribute.Int("workerhealth.expected", req.expected),
	)

	err := c.bus.SendToPeers(ctx, bus.Message{Type: bus.StatusRequest, RequestID: id})
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrBroadcast, err)
		c.record(ctx, req, observe.OutcomeFailed, 0)
		c.inst.Tracer.EndSpan(span, err)
		return nil, err
	}

	// Zero peers, or every peer already answered.
	c.mu.Lock()
	if len(req.responses) >= req.expected {
		req.resolve()
	}
	c.mu.Unlock()

	timer := time.NewTimer(c.cfg.Timeout)
	defer timer.Stop()

	select {
	case <-req.done:
	case <-timer.C:
		c.inst.Logger.Debug(ctx, "collection timed out",
			observe.F("request_id", id),
			observe.F("timeout", c.cfg.Timeout.String()),
		)
	case <-ctx.Done():
	}

	c.mu.Lock()
	req.resolve()
	responses := append([]bus.Message(nil), req.responses...)
	c.mu.Unlock()

	outcome := observe.OutcomeComplete
	if len(responses) < req.expected {
		outcome = observe.OutcomePartial
	}
	c.record(ctx, req, outcome, len(responses))
	span.SetAttributes(
		attribute.Int("workerhealth.received", len(responses)),
		attribute.String("workerhealth.outcome", outcome),
	)
	c.inst.Tracer.EndSpan(span, nil)

	return responses, nil
}

func (c *Collector) record(ctx context.Context, req *request, outcome string, received int) {
	c.inst.Metrics.RecordCollection(ctx, observe.CollectionOutcome{
		Outcome:  outcome,
		Expected: req.expected,
		Received: received,
		Duration: c.now().Sub(req.started),
	})
}

func (c *Collector) forget(id uint64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

// Pending returns the number of outstanding collections.
func (c *Collector) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// handleRequest answers a peer's status request with the local snapshot.
func (c *Collector) handleRequest(ctx context.Context, msg bus.Message) {
	self := c.threads.Current()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	ctx, span := c.inst.Tracer.StartSpan(ctx, observe.SpanRespond,
		attribute.Int64("workerhealth.request_id", int64(msg.RequestID)),
		attribute.String("workerhealth.requester", msg.From.Label()),
	)

	err := c.bus.Send(ctx, msg.From, bus.Message{
		Type:         bus.StatusResponse,
		RequestID:    msg.RequestID,
		WorkerIndex:  self.WorkerIndex(),
		IsMainThread: self.IsMain(),
		Statuses:     bus.EntriesFromSummaries(c.registry.Summaries(self.WorkerIndex())),
	})
	if err != nil {
		c.inst.Logger.Error(ctx, "failed to answer status request",
			observe.F("request_id", msg.RequestID),
			observe.F("requester", msg.From.Label()),
			observe.Err(err),
		)
	}
	c.inst.Tracer.EndSpan(span, err)
}

// handleResponse files a response under its request. Responses for requests
// that already resolved are dropped.
func (c *Collector) handleResponse(ctx context.Context, msg bus.Message) {
	c.mu.Lock()
	req, ok := c.pending[msg.RequestID]
	if ok && !req.resolved {
		req.responses = append(req.responses, msg)
		if len(req.responses) >= req.expected {
			req.resolve()
		}
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.inst.Metrics.RecordLateResponse(ctx)
	c.inst.Logger.Debug(ctx, "dropping late status response",
		observe.F("request_id", msg.RequestID),
		observe.F("from", msg.From.Label()),
	)
}

func (c *Collector) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			if n := c.sweep(); n > 0 {
				c.inst.Logger.Warn(context.Background(), "swept stale status requests", observe.F("count", n))
			}
		}
	}
}

// sweep releases and drops requests older than StaleAfter.
func (c *Collector) sweep() int {
	cutoff := c.now().Add(-c.cfg.StaleAfter)

	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for id, req := range c.pending {
		if !req.started.After(cutoff) {
			req.resolve()
			delete(c.pending, id)
			n++
		}
	}
	return n
}

// Close unsubscribes from the bus, stops the sweeper and releases waiting
// Collect calls with the responses they already have.
func (c *Collector) Close() error {
	c.closeOnce.Do(func() {
		c.unsubscribeAll()
		close(c.stop)
		c.wg.Wait()

		c.mu.Lock()
		c.closed = true
		for _, req := range c.pending {
			req.resolve()
		}
		c.mu.Unlock()
	})
	return nil
}

func (c *Collector) unsubscribeAll() {
	for _, unsub := range c.unsubscribe {
		unsub()
	}
}
