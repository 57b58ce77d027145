package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/hub"
	"github.com/DoyleJ11/roster-sync/internal/lobby"
	"github.com/DoyleJ11/roster-sync/internal/metrics"
	"github.com/DoyleJ11/roster-sync/internal/types"
	wire "github.com/DoyleJ11/roster-sync/pkg/types"
)

const (
	readTimeout  = 2 * time.Minute
	writeTimeout = 3 * time.Second
)

// Handler upgrades /ws?code=&player= and bridges one participant to its session: Issue
// frames go to the dispatcher, Position and Elimination frames to the lobby, and snapshots,
// relayed commands and teleports come back. Moderators may send CancelTeleport.
func Handler(h *hub.Hub, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("ws")

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}
		player, err := strconv.Atoi(r.URL.Query().Get("player"))
		if err != nil || player < 0 {
			http.Error(w, "missing or bad player", http.StatusBadRequest)
			return
		}

		s := h.Get(r.Context(), code)
		if s == nil {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			// In dev ONLY, you can loosen origin checks:
			// OriginPatterns: []string{"http://localhost:*", "http://127.0.0.1:*"},
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		clientID := uuid.NewString()
		clog := log.With(zap.String("session", code), zap.String("client_id", clientID), zap.Int("player", player))
		metrics.RecordConnection(1)
		defer metrics.RecordConnection(-1)

		snaps := make(chan lobby.Snapshot, 8)
		cmds := make(chan engine.Command, 64)
		replies := make(chan types.ServerMessage, 8)

		s.Lobby.Send(lobby.Join{ClientID: clientID, PlayerID: player, Outbox: snaps})
		defer s.Lobby.Send(lobby.Leave{ClientID: clientID})
		s.Channel.Subscribe(clientID, cmds)
		defer s.Channel.Unsubscribe(clientID)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			for {
				var msg types.ServerMessage
				select {
				case <-ctx.Done():
					return
				case snap, ok := <-snaps:
					if !ok {
						clog.Info("lobby dropped client")
						return
					}
					if snap.Teleport != nil {
						pos, ok := teleportTarget(s.Lobby.Layout(), snap, player, *snap.Teleport)
						if !ok {
							continue
						}
						msg = types.ServerMessage{Type: types.TypeTeleport, Version: snap.Version, Teleport: pos}
					} else {
						msg = types.ServerMessage{
							Type:    types.TypeStateSnapshot,
							Version: snap.Version,
							State:   types.Snapshot(code, snap.Version, snap.Roster, snap.Changed),
						}
					}
				case cmd, ok := <-cmds:
					if !ok {
						clog.Info("channel dropped client")
						return
					}
					msg = types.ServerMessage{Type: types.TypeCommand, Version: cmd.Version, Command: types.Command(cmd)}
				case msg = <-replies:
				}

				wctx, wcancel := context.WithTimeout(ctx, writeTimeout)
				err := wsjson.Write(wctx, conn, msg)
				wcancel()
				if err != nil {
					clog.Debug("write failed", zap.Error(err))
					return
				}
			}
		}()

		reply := func(m types.ServerMessage) {
			select {
			case replies <- m:
			case <-ctx.Done():
			}
		}

		// Reader loop
		for {
			rctx, rcancel := context.WithTimeout(ctx, readTimeout)
			_, data, err := conn.Read(rctx)
			rcancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if !errors.Is(err, context.Canceled) {
						clog.Debug("read failed", zap.Error(err))
					}
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				reply(types.ServerMessage{Type: types.TypeError, Error: "bad json"})
				continue
			}

			switch cm.Type {
			case types.TypeIssue:
				cmd, err := s.Dispatcher.IssueNamed(ctx, player, cm.Operation, cm.TargetOrAll(), cm.Value)
				if err != nil {
					reply(types.ServerMessage{Type: types.TypeError, Error: err.Error()})
					continue
				}
				reply(types.ServerMessage{Type: types.TypeResult, Version: cmd.Version, Command: types.Command(cmd)})

			case types.TypePosition:
				if player > 0 {
					s.Lobby.Send(lobby.Move{PlayerID: player, Position: cm.Position()})
				}

			case types.TypeElimination:
				// The victim reports its own elimination.
				if player > 0 {
					s.Lobby.Send(lobby.Eliminate{KillerID: cm.Killer, VictimID: player})
				}

			case types.TypeCancelTeleport:
				if !s.Roles.HasPermission(player) {
					reply(types.ServerMessage{Type: types.TypeError, Error: engine.ErrPermissionDenied.Error() + ": cancelling a teleport requires moderator"})
					continue
				}
				s.Lobby.Send(lobby.CancelTeleport{})

			default:
				reply(types.ServerMessage{Type: types.TypeError, Error: "unknown type"})
			}
		}
	}
}

// teleportTarget finds where player should move for a teleport broadcast. ok is false when
// the player is not in the roster, is an excluded moderator, or its team has no anchor.
func teleportTarget(layout engine.Layout, snap lobby.Snapshot, player int, tp lobby.Teleport) (*wire.Position, bool) {
	var self *engine.Member
	for _, e := range snap.Roster.Entries {
		if e.Active && e.ID == player {
			m := e.Member
			self = &m
			break
		}
	}
	isModerator := self != nil && self.IsStaff()
	dest, err := engine.Destination(layout.Anchors, self, tp.IncludeModerators, isModerator)
	if err != nil {
		return nil, false
	}
	return &wire.Position{X: dest.X, Y: dest.Y, Z: dest.Z}, true
}
