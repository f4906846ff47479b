package bus

import (
	"context"
	"sync"
)

// Handler receives inbound messages. Handlers for one endpoint run one at a
// time and must not block for long.
type Handler func(ctx context.Context, msg Message)

// Bus sends and receives messages for one execution context.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Errors: send errors are transport failures; delivery is not acknowledged.
// - Ordering: none across senders.
type Bus interface {
	// SendToPeers delivers msg to every other context.
	SendToPeers(ctx context.Context, msg Message) error

	// Send delivers msg to one context.
	Send(ctx context.Context, to ThreadID, msg Message) error

	// Subscribe registers h for messages of type t. The returned function
	// removes the subscription.
	Subscribe(t MessageType, h Handler) (unsubscribe func(), err error)
}

// Threads describes the local context and how many peers it has.
type Threads interface {
	Current() ThreadID
	PeerCount() int
}

// handlerSet is the subscription table shared by the transports.
type handlerSet struct {
	mu     sync.RWMutex
	nextID uint64
	byType map[MessageType]map[uint64]Handler
}

func (s *handlerSet) add(t MessageType, h Handler) (func(), error) {
	if h == nil {
		return nil, ErrNilHandler
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.byType == nil {
		s.byType = make(map[MessageType]map[uint64]Handler)
	}
	if s.byType[t] == nil {
		s.byType[t] = make(map[uint64]Handler)
	}
	s.nextID++
	id := s.nextID
	s.byType[t][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.byType[t], id)
			s.mu.Unlock()
		})
	}, nil
}

func (s *handlerSet) dispatch(ctx context.Context, msg Message) {
	s.mu.RLock()
	hs := make([]Handler, 0, len(s.byType[msg.Type]))
	for _, h := range s.byType[msg.Type] {
		hs = append(hs, h)
	}
	s.mu.RUnlock()

	for _, h := range hs {
		h(ctx, msg)
	}
}
