package hub

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/dispatch"
	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/journal"
	"github.com/DoyleJ11/roster-sync/internal/lobby"
	"github.com/DoyleJ11/roster-sync/internal/metrics"
	"github.com/DoyleJ11/roster-sync/internal/report"
	"github.com/DoyleJ11/roster-sync/internal/roles"
)

// Session is one shared roster: its channel, this process's lobby and the dispatcher
// every participant issues through.
type Session struct {
	Code       string
	Channel    Channel
	Lobby      *lobby.Lobby
	Dispatcher *dispatch.Dispatcher
	Roles      roles.Lookup
}

func (s *Session) close() error {
	s.Lobby.Send(lobby.Shutdown{})
	return s.Channel.Close()
}

// ChannelFactory opens the transmission channel for a session code.
type ChannelFactory func(ctx context.Context, code string) (Channel, error)

type Options struct {
	Capacity      int
	Layout        engine.Layout
	TeleportDelay time.Duration
	Roles         roles.Lookup
	Journal       journal.Recorder
	// Channels defaults to an in-memory Relay per session.
	Channels ChannelFactory
	// Follower opens every session lobby as a Follower. Exactly one process sharing a
	// channel leaves this unset and applies commands.
	Follower bool
	Logger   *zap.Logger
}

type HubMsg interface{ isHubMsg() }

type CreateSession struct {
	Code  string
	Reply chan *Session
}

type GetSession struct {
	Code  string
	Reply chan *Session
}

type EnsureSession struct {
	Code  string
	Reply chan *Session
}

type RemoveSession struct {
	Code string
}

type ListSessions struct {
	Reply chan []string
}

type ShutdownHub struct {
	// Done, if set, receives the combined close error once every session is down.
	Done chan error
}

func (CreateSession) isHubMsg() {}
func (GetSession) isHubMsg()    {}
func (EnsureSession) isHubMsg() {}
func (RemoveSession) isHubMsg() {}
func (ListSessions) isHubMsg()  {}
func (ShutdownHub) isHubMsg()   {}

type Hub struct {
	// id keeps this hub's channel subscriptions apart from other processes on the same channel.
	id       string
	inbox    chan HubMsg
	sessions map[string]*Session
	opts     Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Layout.Regions == nil && opts.Layout.Anchors == nil {
		opts.Layout = engine.DefaultLayout()
	}
	if opts.Roles == nil {
		opts.Roles = roles.NewStatic(nil, nil)
	}
	h := &Hub{
		id:       uuid.NewString(),
		inbox:    make(chan HubMsg, 64),
		sessions: make(map[string]*Session),
		opts:     opts,
		log:      opts.Logger.Named("hub"),
		ctx:      ctx,
		cancel:   cancel,
	}
	if h.opts.Channels == nil {
		h.opts.Channels = func(ctx context.Context, _ string) (Channel, error) {
			return NewRelay(ctx, opts.Logger), nil
		}
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Get is a convenience wrapper around GetSession; it returns nil if the code is unknown.
func (h *Hub) Get(ctx context.Context, code string) *Session {
	return h.request(ctx, func(reply chan *Session) HubMsg { return GetSession{Code: code, Reply: reply} })
}

// Ensure returns the session for code, creating it if needed.
func (h *Hub) Ensure(ctx context.Context, code string) *Session {
	return h.request(ctx, func(reply chan *Session) HubMsg { return EnsureSession{Code: code, Reply: reply} })
}

// List returns the open session codes in sorted order, or nil if the hub is gone.
func (h *Hub) List(ctx context.Context) []string {
	reply := make(chan []string, 1)
	select {
	case h.inbox <- ListSessions{Reply: reply}:
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case codes := <-reply:
		return codes
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) request(ctx context.Context, build func(chan *Session) HubMsg) *Session {
	reply := make(chan *Session, 1)
	select {
	case h.inbox <- build(reply):
	case <-ctx.Done():
		return nil
	case <-h.ctx.Done():
		return nil
	}
	select {
	case s := <-reply:
		return s
	case <-ctx.Done():
		return nil
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateSession, EnsureSession:
				code, reply := sessionRequest(msg)
				if s := h.sessions[code]; s != nil {
					reply <- s
					break
				}
				reply <- h.open(code) // nil on failure

			case GetSession:
				msg.Reply <- h.sessions[msg.Code] // May be nil

			case RemoveSession:
				if s, ok := h.sessions[msg.Code]; ok {
					if err := s.close(); err != nil {
						h.log.Warn("closing session", zap.String("session", msg.Code), zap.Error(err))
					}
					delete(h.sessions, msg.Code)
					metrics.SessionsActive.Dec()
				}

			case ListSessions:
				codes := make([]string, 0, len(h.sessions))
				for code := range h.sessions {
					codes = append(codes, code)
				}
				slices.Sort(codes)
				msg.Reply <- codes

			case ShutdownHub:
				err := h.shutdown()
				if msg.Done != nil {
					msg.Done <- err
				}
				h.cancel()
				return
			}
		}
	}
}

func sessionRequest(m HubMsg) (string, chan *Session) {
	switch msg := m.(type) {
	case CreateSession:
		return msg.Code, msg.Reply
	case EnsureSession:
		return msg.Code, msg.Reply
	}
	return "", nil
}

func (h *Hub) open(code string) *Session {
	ch, err := h.opts.Channels(h.ctx, code)
	if err != nil {
		h.log.Error("opening channel", zap.String("session", code), zap.Error(err))
		return nil
	}
	log := h.opts.Logger.With(zap.String("session", code))
	sink := report.Zap(log)

	role := lobby.Authority
	if h.opts.Follower {
		role = lobby.Follower
	}
	lb := lobby.NewLobby(h.ctx, lobby.Config{
		Session:       code,
		Role:          role,
		Capacity:      h.opts.Capacity,
		Layout:        h.opts.Layout,
		TeleportDelay: h.opts.TeleportDelay,
		Roles:         h.opts.Roles,
		Sink:          sink,
		Journal:       h.opts.Journal,
		Logger:        h.opts.Logger,
	})
	deliveries := make(chan engine.Command, 256)
	ch.SubscribeReliable(h.id+"/lobby", deliveries)
	lb.Attach(deliveries)

	d := dispatch.New(dispatch.Config{
		Channel:  ch,
		Roles:    h.opts.Roles,
		Capacity: h.opts.Capacity,
		Regions:  len(h.opts.Layout.Regions),
		Sink:     sink,
		Logger:   log,
	})
	observed := make(chan engine.Command, 256)
	ch.SubscribeReliable(h.id+"/dispatch", observed)
	d.Follow(observed)

	s := &Session{
		Code:       code,
		Channel:    ch,
		Lobby:      lb,
		Dispatcher: d,
		Roles:      h.opts.Roles,
	}
	h.sessions[code] = s
	metrics.SessionsActive.Inc()
	h.log.Info("session opened", zap.String("session", code), zap.Stringer("role", role))
	return s
}

func (h *Hub) shutdown() error {
	var err error
	for code, s := range h.sessions {
		err = multierr.Append(err, s.close())
		delete(h.sessions, code)
		metrics.SessionsActive.Dec()
	}
	return err
}
