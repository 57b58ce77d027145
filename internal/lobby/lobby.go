package lobby

import (
	"context"
	"fmt"
	"math/rand/v2"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/journal"
	"github.com/DoyleJ11/roster-sync/internal/metrics"
	"github.com/DoyleJ11/roster-sync/internal/report"
	"github.com/DoyleJ11/roster-sync/internal/roles"
	"github.com/DoyleJ11/roster-sync/internal/roster"
)

type Msg interface{ isLobbyMsg() }

// Deliver is a command received from the transmission channel.
type Deliver struct {
	Cmd engine.Command
}

func (Deliver) isLobbyMsg() {}

type Join struct {
	ClientID string
	PlayerID int
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

// Move reports where a connected player currently stands.
type Move struct {
	PlayerID int
	Position engine.Vec3
}

func (Move) isLobbyMsg() {}

type SetRole struct{ Role Role }

func (SetRole) isLobbyMsg() {}

// CancelTeleport drops a scheduled team teleport before it fires.
type CancelTeleport struct{}

func (CancelTeleport) isLobbyMsg() {}

// Eliminate records that KillerID took VictimID out. Only the authority keeps tallies.
type Eliminate struct {
	KillerID int
	VictimID int
}

func (Eliminate) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Snapshot is pushed to watchers after every applied command and on teleport.
type Snapshot struct {
	Version int64
	Roster  roster.Snapshot
	// Changed lists entry indices presented since the previous snapshot.
	Changed  []int
	Teleport *Teleport
}

type View struct {
	Version         int64
	Role            Role
	NumClients      int
	Players         []roster.PlayerEntry
	Settings        roster.Settings
	TeleportPending bool
}

type Config struct {
	Session       string
	Role          Role
	LocalID       int
	Capacity      int
	Layout        engine.Layout
	TeleportDelay time.Duration
	Roles         roles.Lookup
	Sink          report.Sink
	Journal       journal.Recorder
	Rand          *rand.Rand
	Logger        *zap.Logger
}

type client struct {
	playerID int
	outbox   chan Snapshot
}

type Lobby struct {
	inbox     chan Msg
	cfg       Config
	roster    *roster.Roster
	exec      *Executor
	teleport  *teleportScheduler
	clients   map[string]client
	positions map[int]engine.Vec3
	changed   []int
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewLobby(parent context.Context, cfg Config) *Lobby {
	ctx, cancel := context.WithCancel(parent)
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Sink == nil {
		cfg.Sink = report.Zap(cfg.Logger)
	}
	if cfg.Roles == nil {
		cfg.Roles = roles.NewStatic(nil, nil)
	}
	if cfg.TeleportDelay <= 0 {
		cfg.TeleportDelay = DefaultTeleportDelay
	}
	log := cfg.Logger.With(zap.String("session", cfg.Session))

	l := &Lobby{
		inbox:     make(chan Msg, 64), // Small buffer
		cfg:       cfg,
		clients:   make(map[string]client),
		positions: make(map[int]engine.Vec3),
		log:       log,
		ctx:       ctx,
		cancel:    cancel,
	}
	l.roster = roster.New(roster.Options{
		Capacity:  cfg.Capacity,
		Roles:     cfg.Roles,
		Directory: l,
		Presenter: l,
		Logger:    log,
	})
	l.teleport = &teleportScheduler{delay: cfg.TeleportDelay, post: l.post}
	l.exec = NewExecutor(ExecutorConfig{
		Session: cfg.Session,
		Roster:  l.roster,
		Regions: cfg.Layout.Regions,
		Rand:    cfg.Rand,
		Sink:    cfg.Sink,
		Journal: cfg.Journal,
		Logger:  log,
		OnShuffle: func(opts engine.ShuffleOptions) {
			l.teleport.Schedule(opts.IncludeModerators)
		},
	})
	l.exec.SetRole(cfg.Role)

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = client{playerID: msg.PlayerID, outbox: msg.Outbox}
				l.send(msg.ClientID, Snapshot{Version: l.exec.LastApplied(), Roster: l.roster.Snapshot()})

			case Leave:
				c, ok := l.clients[msg.ClientID]
				if !ok {
					break
				}
				delete(l.clients, msg.ClientID)
				if !l.isConnected(c.playerID) {
					delete(l.positions, c.playerID)
				}

			case Move:
				l.positions[msg.PlayerID] = msg.Position

			case Deliver:
				// Failures are logged and reported by the executor.
				if applied, _ := l.exec.Execute(msg.Cmd); applied {
					l.broadcast(Snapshot{Version: l.exec.LastApplied(), Roster: l.roster.Snapshot()})
				}

			case SetRole:
				l.exec.SetRole(msg.Role)
				if msg.Role != Authority {
					l.teleport.Cancel()
				}

			case CancelTeleport:
				if l.teleport.Pending() {
					l.cfg.Sink.Report("Cancelled pending team teleport")
				}
				l.teleport.Cancel()

			case Eliminate:
				if l.exec.Role() != Authority {
					break
				}
				if err := l.roster.RecordElimination(msg.KillerID, msg.VictimID); err != nil {
					l.log.Debug("elimination ignored", zap.Int("victim", msg.VictimID), zap.Error(err))
					break
				}
				l.broadcast(Snapshot{Version: l.exec.LastApplied(), Roster: l.roster.Snapshot()})

			case teleportFired:
				if !l.teleport.Fired(msg.gen) {
					break
				}
				l.fireTeleport(msg.includeModerators)

			case GetState:
				msg.Reply <- View{
					Version:         l.exec.LastApplied(),
					Role:            l.exec.Role(),
					NumClients:      len(l.clients),
					Players:         l.roster.Players(),
					Settings:        l.roster.Settings(),
					TeleportPending: l.teleport.Pending(),
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

func (l *Lobby) fireTeleport(includeModerators bool) {
	metrics.RecordTeleport(includeModerators)
	if includeModerators {
		l.cfg.Sink.Report("Teleporting All players to team position")
	} else {
		l.cfg.Sink.Report("Teleporting All players except moderator to team position")
	}
	l.broadcast(Snapshot{
		Version:  l.exec.LastApplied(),
		Roster:   l.roster.Snapshot(),
		Teleport: &Teleport{IncludeModerators: includeModerators},
	})
}

func (l *Lobby) shutdown() {
	l.teleport.Cancel()
	for id, c := range l.clients {
		close(c.outbox) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	snap.Changed = l.changed
	l.changed = nil
	for id := range l.clients {
		l.send(id, snap)
	}
}

func (l *Lobby) send(id string, snap Snapshot) {
	c := l.clients[id]
	select {
	case c.outbox <- snap:
		//ok
	default:
		// Client is slow/full - drop them.
		l.log.Warn("dropping slow watcher", zap.String("client_id", id))
		close(c.outbox)
		delete(l.clients, id)
	}
}

func (l *Lobby) post(m Msg) { l.Send(m) }

// Send queues m unless the lobby has stopped.
func (l *Lobby) Send(m Msg) bool {
	select {
	case l.inbox <- m:
		return true
	case <-l.ctx.Done():
		return false
	}
}

func (l *Lobby) isConnected(playerID int) bool {
	for _, c := range l.clients {
		if c.playerID == playerID {
			return true
		}
	}
	return false
}

// Present implements roster.Presenter by collecting changed entries for the next snapshot.
func (l *Lobby) Present(e roster.PlayerEntry) {
	if !slices.Contains(l.changed, e.Index) {
		l.changed = append(l.changed, e.Index)
	}
}

// Connected implements roster.Directory.
func (l *Lobby) Connected() []int {
	var ids []int
	for _, c := range l.clients {
		if c.playerID > 0 && !slices.Contains(ids, c.playerID) {
			ids = append(ids, c.playerID)
		}
	}
	slices.Sort(ids)
	return ids
}

func (l *Lobby) LocalID() int { return l.cfg.LocalID }

func (l *Lobby) Position(playerID int) (engine.Vec3, bool) {
	p, ok := l.positions[playerID]
	return p, ok
}

// Attach forwards every command from deliveries into the lobby until the channel closes.
// After the lobby stops, the rest is drained and discarded so the sender never stalls.
func (l *Lobby) Attach(deliveries <-chan engine.Command) {
	go func() {
		for cmd := range deliveries {
			l.Send(Deliver{Cmd: cmd})
		}
	}()
}

func (l *Lobby) Layout() engine.Layout { return l.cfg.Layout }

func (l *Lobby) Session() string { return l.cfg.Session }

// Done is closed once the lobby loop has been asked to stop.
func (l *Lobby) Done() <-chan struct{} { return l.ctx.Done() }

func (l *Lobby) String() string { return fmt.Sprintf("lobby(%s)", l.cfg.Session) }

// State asks the loop for a View. ok is false if ctx ends or the lobby has stopped first.
func (l *Lobby) State(ctx context.Context) (v View, ok bool) {
	reply := make(chan View, 1)
	select {
	case l.inbox <- GetState{Reply: reply}:
	case <-ctx.Done():
		return View{}, false
	case <-l.ctx.Done():
		return View{}, false
	}
	select {
	case v = <-reply:
		return v, true
	case <-ctx.Done():
		return View{}, false
	case <-l.ctx.Done():
		return View{}, false
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }
