// Package natsbus carries a session's commands over a NATS subject so participants in other
// processes see the same ordered stream.
package natsbus

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"sync"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
)

const IssuerHeader = "Roster-Issuer"

func Subject(code string) string { return "roster." + code + ".commands" }

type wireCommand struct {
	Version     int64 `json:"version"`
	Operation   int   `json:"operation"`
	TargetID    int   `json:"target_id"`
	TargetValue int   `json:"target_value"`
}

func Encode(cmd engine.Command, issuer int) *nats.Msg {
	data, _ := json.Marshal(wireCommand{
		Version:     cmd.Version,
		Operation:   int(cmd.Operation),
		TargetID:    cmd.TargetID,
		TargetValue: cmd.TargetValue,
	})
	msg := nats.NewMsg("")
	msg.Data = data
	msg.Header.Set(IssuerHeader, strconv.Itoa(issuer))
	return msg
}

// Decode returns the command and the issuer recorded in the header (0 if absent).
func Decode(msg *nats.Msg) (engine.Command, int, error) {
	var w wireCommand
	if err := json.Unmarshal(msg.Data, &w); err != nil {
		return engine.Command{}, 0, fmt.Errorf("decode command: %w", err)
	}
	issuer := 0
	if h := msg.Header.Get(IssuerHeader); h != "" {
		n, err := strconv.Atoi(h)
		if err != nil {
			return engine.Command{}, 0, fmt.Errorf("decode issuer %q: %w", h, err)
		}
		issuer = n
	}
	return engine.Command{
		Version:     w.Version,
		Operation:   engine.Operation(w.Operation),
		TargetID:    w.TargetID,
		TargetValue: w.TargetValue,
	}, issuer, nil
}

type subscriber struct {
	out      chan engine.Command
	reliable bool
}

// Channel implements the hub's transmission channel on one NATS subject. Local subscribers
// are fed from a single NATS subscription, whose callbacks run in arrival order. A reliable
// subscriber that falls behind stalls that callback until it catches up or the channel closes.
type Channel struct {
	conn    *nats.Conn
	subject string
	sub     *nats.Subscription
	log     *zap.Logger
	done    chan struct{}
	stop    sync.Once

	mu     sync.Mutex
	issuer int
	subs   map[string]subscriber
	order  []string
	closed bool
}

func newChannel(conn *nats.Conn, code string, log *zap.Logger) *Channel {
	if log == nil {
		log = zap.NewNop()
	}
	return &Channel{
		conn:    conn,
		subject: Subject(code),
		subs:    make(map[string]subscriber),
		done:    make(chan struct{}),
		log:     log.Named("natsbus").With(zap.String("subject", Subject(code))),
	}
}

func Open(conn *nats.Conn, code string, log *zap.Logger) (*Channel, error) {
	c := newChannel(conn, code, log)
	sub, err := conn.Subscribe(c.subject, c.receive)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", c.subject, err)
	}
	// Stalled callbacks must queue, not trip the client's slow consumer drop.
	if err := sub.SetPendingLimits(-1, -1); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("pending limits %s: %w", c.subject, err)
	}
	c.sub = sub
	return c, nil
}

func (c *Channel) ClaimTransmitRight(issuer int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.issuer = issuer
}

func (c *Channel) PushState(ctx context.Context, cmd engine.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	issuer := c.issuer
	c.mu.Unlock()

	msg := Encode(cmd, issuer)
	msg.Subject = c.subject
	if err := c.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("publish %s: %w", c.subject, err)
	}
	return nil
}

func (c *Channel) Subscribe(id string, outbox chan engine.Command) {
	c.subscribe(id, subscriber{out: outbox})
}

func (c *Channel) SubscribeReliable(id string, outbox chan engine.Command) {
	c.subscribe(id, subscriber{out: outbox, reliable: true})
}

func (c *Channel) subscribe(id string, s subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(s.out)
		return
	}
	if old, ok := c.subs[id]; ok && old.out != s.out {
		close(old.out)
	} else if !ok {
		c.order = append(c.order, id)
	}
	c.subs[id] = s
}

func (c *Channel) Unsubscribe(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remove(id)
}

func (c *Channel) Close() error {
	// Release a callback stalled on a reliable subscriber before taking the lock.
	c.stop.Do(func() { close(c.done) })

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	for id, s := range c.subs {
		close(s.out)
		delete(c.subs, id)
	}
	c.order = nil
	if c.sub == nil {
		return nil
	}
	return c.sub.Unsubscribe()
}

func (c *Channel) receive(msg *nats.Msg) {
	cmd, issuer, err := Decode(msg)
	if err != nil {
		c.log.Warn("dropping malformed message", zap.Error(err))
		return
	}
	c.log.Debug("received command", zap.Stringer("command", cmd), zap.Int("issuer", issuer))

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range slices.Clone(c.order) {
		s := c.subs[id]
		if s.reliable {
			select {
			case s.out <- cmd:
			case <-c.done:
				return
			}
			continue
		}
		select {
		case s.out <- cmd:
		default:
			c.log.Warn("dropping slow subscriber", zap.String("subscriber", id))
			close(s.out)
			c.remove(id)
		}
	}
}

func (c *Channel) remove(id string) {
	delete(c.subs, id)
	c.order = slices.DeleteFunc(c.order, func(s string) bool { return s == id })
}
