package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/jonwraymond/workerhealth/observe"
)

const (
	// DefaultSubjectPrefix prefixes every subject used by NATSBus.
	DefaultSubjectPrefix = "workerhealth"

	// HeaderInstance carries the publishing NATSBus instance id.
	HeaderInstance = "Workerhealth-Instance"
)

// NATSConfig configures a NATSBus.
type NATSConfig struct {
	// Prefix for subjects. Defaults to DefaultSubjectPrefix.
	Prefix string

	// Self is the thread this process represents.
	Self ThreadID

	// Peers is the number of other processes sharing the prefix.
	Peers int

	// Logger receives decode failures. Defaults to a no-op logger.
	Logger observe.Logger
}

// DirectSubject is the subject a thread listens on for directed messages.
func DirectSubject(prefix string, id ThreadID) string {
	return prefix + "." + id.Label()
}

// BroadcastSubject is the subject every thread listens on.
func BroadcastSubject(prefix string) string {
	return prefix + ".broadcast"
}

// ConnectNATS dials a NATS server with unlimited reconnects.
func ConnectNATS(url, name string) (*nats.Conn, error) {
	nc, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(500*time.Millisecond),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect nats: %w", err)
	}
	return nc, nil
}

// NATSBus is a cross-process transport over NATS core subjects. Messages are
// JSON encoded. Inbound messages are dispatched on a single goroutine.
type NATSBus struct {
	nc       *nats.Conn
	prefix   string
	self     ThreadID
	peers    int
	instance string
	logger   observe.Logger

	handlers handlerSet
	inbox    chan *nats.Msg
	subs     []*nats.Subscription

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	done      chan struct{}
}

var (
	_ Bus     = (*NATSBus)(nil)
	_ Threads = (*NATSBus)(nil)
)

// NewNATSBus subscribes to the thread's direct subject and the broadcast
// subject. The connection stays owned by the caller.
func NewNATSBus(nc *nats.Conn, cfg NATSConfig) (*NATSBus, error) {
	if nc == nil {
		return nil, fmt.Errorf("bus: nats connection is nil")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultSubjectPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = observe.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	b := &NATSBus{
		nc:       nc,
		prefix:   cfg.Prefix,
		self:     cfg.Self,
		peers:    cfg.Peers,
		instance: uuid.NewString(),
		logger:   cfg.Logger.With(observe.F("thread", cfg.Self.Label())),
		inbox:    make(chan *nats.Msg, DefaultMailboxSize),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	for _, subj := range []string{DirectSubject(b.prefix, b.self), BroadcastSubject(b.prefix)} {
		sub, err := nc.ChanSubscribe(subj, b.inbox)
		if err != nil {
			b.unsubscribeAll()
			cancel()
			return nil, fmt.Errorf("bus: subscribe %s: %w", subj, err)
		}
		b.subs = append(b.subs, sub)
	}

	// Peers may broadcast as soon as we return.
	if err := nc.Flush(); err != nil {
		b.unsubscribeAll()
		cancel()
		return nil, fmt.Errorf("bus: flush subscriptions: %w", err)
	}

	go b.loop()
	return b, nil
}

// Current returns the thread this bus represents.
func (b *NATSBus) Current() ThreadID {
	return b.self
}

// PeerCount returns the configured number of peers.
func (b *NATSBus) PeerCount() int {
	return b.peers
}

// Subscribe registers h for messages of type t.
func (b *NATSBus) Subscribe(t MessageType, h Handler) (func(), error) {
	return b.handlers.add(t, h)
}

// SendToPeers publishes msg on the broadcast subject.
func (b *NATSBus) SendToPeers(ctx context.Context, msg Message) error {
	return b.publish(ctx, BroadcastSubject(b.prefix), msg)
}

// Send publishes msg on the recipient's direct subject.
func (b *NATSBus) Send(ctx context.Context, to ThreadID, msg Message) error {
	return b.publish(ctx, DirectSubject(b.prefix, to), msg)
}

func (b *NATSBus) publish(ctx context.Context, subject string, msg Message) error {
	if b.ctx.Err() != nil || b.nc.IsClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg.From = b.self
	data, err := Encode(msg)
	if err != nil {
		return err
	}

	out := nats.NewMsg(subject)
	out.Header.Set(HeaderInstance, b.instance)
	out.Data = data
	if err := b.nc.PublishMsg(out); err != nil {
		return fmt.Errorf("bus: publish %s: %w", subject, err)
	}
	return nil
}

// Close unsubscribes and stops the dispatch goroutine.
func (b *NATSBus) Close() error {
	b.closeOnce.Do(func() {
		b.unsubscribeAll()
		b.cancel()
		<-b.done
	})
	return nil
}

func (b *NATSBus) unsubscribeAll() {
	for _, sub := range b.subs {
		_ = sub.Unsubscribe()
	}
}

func (b *NATSBus) loop() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case m := <-b.inbox:
			msg, ok := b.accept(m)
			if ok {
				b.handlers.dispatch(b.ctx, msg)
			}
		}
	}
}

// accept decodes an inbound NATS message, dropping our own broadcasts.
func (b *NATSBus) accept(m *nats.Msg) (Message, bool) {
	if m.Header.Get(HeaderInstance) == b.instance {
		return Message{}, false
	}
	msg, err := Decode(m.Data)
	if err != nil {
		b.logger.Warn(b.ctx, "dropping undecodable message",
			observe.F("subject", m.Subject),
			observe.Err(err),
		)
		return Message{}, false
	}
	return msg, true
}
