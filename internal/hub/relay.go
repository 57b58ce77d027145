package hub

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
)

var ErrRelayClosed = errors.New("relay closed")

// Channel is a session's transmission channel: every pushed command is delivered to every
// subscriber, the sender included, in push order.
//
// Subscribe registers a watcher that is dropped, outbox closed, once it falls behind.
// SubscribeReliable registers a feed that is never dropped: delivery waits for it, and the
// wait backs up into PushState.
type Channel interface {
	ClaimTransmitRight(issuer int)
	PushState(ctx context.Context, cmd engine.Command) error
	Subscribe(id string, outbox chan engine.Command)
	SubscribeReliable(id string, outbox chan engine.Command)
	Unsubscribe(id string)
	Close() error
}

type relayMsg interface{ isRelayMsg() }

type claim struct{ issuer int }

type publish struct {
	cmd engine.Command
}

type subscribe struct {
	id     string
	outbox chan engine.Command
	// reliable subscribers block delivery instead of being dropped.
	reliable bool
}

type subscriber struct {
	out      chan engine.Command
	reliable bool
}

type unsubscribe struct{ id string }

func (claim) isRelayMsg()       {}
func (publish) isRelayMsg()     {}
func (subscribe) isRelayMsg()   {}
func (unsubscribe) isRelayMsg() {}

// Relay is the in-process Channel. Plain subscribers that fall behind are dropped and their
// outbox closed, the same way the lobby treats slow watchers.
type Relay struct {
	inbox  chan relayMsg
	subs   map[string]subscriber
	order  []string
	issuer int
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewRelay(parent context.Context, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(parent)
	r := &Relay{
		inbox:  make(chan relayMsg, 256),
		subs:   make(map[string]subscriber),
		log:    log.Named("relay"),
		ctx:    ctx,
		cancel: cancel,
	}
	go r.loop()
	return r
}

func (r *Relay) ClaimTransmitRight(issuer int) { r.post(claim{issuer: issuer}) }

func (r *Relay) PushState(ctx context.Context, cmd engine.Command) error {
	if r.ctx.Err() != nil {
		return ErrRelayClosed
	}
	select {
	case r.inbox <- publish{cmd: cmd}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-r.ctx.Done():
		return ErrRelayClosed
	}
}

func (r *Relay) Subscribe(id string, outbox chan engine.Command) {
	r.post(subscribe{id: id, outbox: outbox})
}

func (r *Relay) SubscribeReliable(id string, outbox chan engine.Command) {
	r.post(subscribe{id: id, outbox: outbox, reliable: true})
}

func (r *Relay) Unsubscribe(id string) { r.post(unsubscribe{id: id}) }

// Close stops the relay and closes every remaining outbox.
func (r *Relay) Close() error {
	r.cancel()
	return nil
}

func (r *Relay) post(m relayMsg) {
	select {
	case r.inbox <- m:
	case <-r.ctx.Done():
	}
}

func (r *Relay) loop() {
	for {
		select {
		case <-r.ctx.Done():
			for id, s := range r.subs {
				close(s.out)
				delete(r.subs, id)
			}
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case claim:
				r.issuer = msg.issuer

			case publish:
				r.log.Debug("relaying command", zap.Stringer("command", msg.cmd), zap.Int("issuer", r.issuer))
				for _, id := range slices.Clone(r.order) {
					r.deliver(id, msg.cmd)
				}

			case subscribe:
				if old, ok := r.subs[msg.id]; ok && old.out != msg.outbox {
					close(old.out)
				} else if !ok {
					r.order = append(r.order, msg.id)
				}
				r.subs[msg.id] = subscriber{out: msg.outbox, reliable: msg.reliable}

			case unsubscribe:
				r.remove(msg.id)
			}
		}
	}
}

func (r *Relay) deliver(id string, cmd engine.Command) {
	s, ok := r.subs[id]
	if !ok {
		return
	}
	if s.reliable {
		select {
		case s.out <- cmd:
		case <-r.ctx.Done():
		}
		return
	}
	select {
	case s.out <- cmd:
	default:
		r.log.Warn("dropping slow subscriber", zap.String("subscriber", id))
		close(s.out)
		r.remove(id)
	}
}

func (r *Relay) remove(id string) {
	delete(r.subs, id)
	r.order = slices.DeleteFunc(r.order, func(s string) bool { return s == id })
}
