package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// DefaultMailboxSize is the per-endpoint inbound queue length.
const DefaultMailboxSize = 64

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithMailboxSize sets the inbound queue length of every endpoint.
func WithMailboxSize(n int) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.mailboxSize = n
		}
	}
}

// Hub is an in-process transport connecting one main endpoint and a fixed
// number of worker endpoints. Each endpoint drains its mailbox on its own
// goroutine, so handlers for one endpoint never run concurrently.
type Hub struct {
	mailboxSize int
	endpoints   map[ThreadID]*Endpoint
	order       []ThreadID

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewHub starts a hub with a main endpoint and workers worker endpoints.
func NewHub(workers int, opts ...HubOption) *Hub {
	if workers < 0 {
		workers = 0
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		mailboxSize: DefaultMailboxSize,
		endpoints:   make(map[ThreadID]*Endpoint, workers+1),
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.add(MainThread)
	for i := 0; i < workers; i++ {
		h.add(ThreadID(i))
	}

	for _, id := range h.order {
		ep := h.endpoints[id]
		h.wg.Add(1)
		go ep.loop()
	}
	return h
}

func (h *Hub) add(id ThreadID) {
	h.endpoints[id] = &Endpoint{
		hub:     h,
		id:      id,
		mailbox: make(chan Message, h.mailboxSize),
	}
	h.order = append(h.order, id)
}

// Endpoint returns the endpoint for id.
func (h *Hub) Endpoint(id ThreadID) (*Endpoint, error) {
	ep, ok := h.endpoints[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownThread, id)
	}
	return ep, nil
}

// Main returns the main endpoint.
func (h *Hub) Main() *Endpoint {
	return h.endpoints[MainThread]
}

// Workers returns the worker endpoints in index order.
func (h *Hub) Workers() []*Endpoint {
	out := make([]*Endpoint, 0, len(h.order)-1)
	for _, id := range h.order {
		if !id.IsMain() {
			out = append(out, h.endpoints[id])
		}
	}
	return out
}

// Close stops every dispatch loop and waits for running handlers to return.
// Queued messages are discarded.
func (h *Hub) Close() error {
	h.closeOnce.Do(func() {
		h.cancel()
		h.wg.Wait()
	})
	return nil
}

func (h *Hub) closed() bool {
	return h.ctx.Err() != nil
}

// Endpoint is one context's view of a Hub. It implements Bus and Threads.
type Endpoint struct {
	hub      *Hub
	id       ThreadID
	mailbox  chan Message
	handlers handlerSet
}

var (
	_ Bus     = (*Endpoint)(nil)
	_ Threads = (*Endpoint)(nil)
)

// Current returns the endpoint's thread.
func (e *Endpoint) Current() ThreadID {
	return e.id
}

// PeerCount returns the number of other endpoints on the hub.
func (e *Endpoint) PeerCount() int {
	return len(e.hub.order) - 1
}

// Subscribe registers h for messages of type t.
func (e *Endpoint) Subscribe(t MessageType, h Handler) (func(), error) {
	return e.handlers.add(t, h)
}

// Send delivers msg to one endpoint. From is set to the sender.
func (e *Endpoint) Send(ctx context.Context, to ThreadID, msg Message) error {
	dst, err := e.hub.Endpoint(to)
	if err != nil {
		return err
	}
	msg.From = e.id
	return dst.deliver(ctx, msg)
}

// SendToPeers delivers msg to every other endpoint. Every peer is attempted;
// the returned error joins the individual failures.
func (e *Endpoint) SendToPeers(ctx context.Context, msg Message) error {
	if e.hub.closed() {
		return ErrClosed
	}
	msg.From = e.id

	var errs []error
	for _, id := range e.hub.order {
		if id == e.id {
			continue
		}
		if err := e.hub.endpoints[id].deliver(ctx, msg); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}

func (e *Endpoint) deliver(ctx context.Context, msg Message) error {
	if e.hub.closed() {
		return ErrClosed
	}
	select {
	case e.mailbox <- msg:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrMailboxFull, ctx.Err())
	case <-e.hub.ctx.Done():
		return ErrClosed
	}
}

func (e *Endpoint) loop() {
	defer e.hub.wg.Done()
	for {
		select {
		case <-e.hub.ctx.Done():
			return
		case msg := <-e.mailbox:
			e.handlers.dispatch(e.hub.ctx, msg)
		}
	}
}
