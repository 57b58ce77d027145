package types

import (
	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/roster"
	wire "github.com/DoyleJ11/roster-sync/pkg/types"
)

const (
	TypeIssue          = "Issue"
	TypePosition       = "Position"
	TypeElimination    = "Elimination"
	TypeCancelTeleport = "CancelTeleport"

	TypeStateSnapshot = "StateSnapshot"
	TypeCommand       = "Command"
	TypeResult        = "Result"
	TypeTeleport      = "Teleport"
	TypeError         = "Error"
)

type ClientMessage struct {
	Type      string  `json:"type"` // "Issue" | "Position" | "Elimination" | "CancelTeleport"
	Operation string  `json:"operation,omitempty"`
	Target    *int    `json:"target,omitempty"`
	Value     int     `json:"value,omitempty"`
	X         float64 `json:"x,omitempty"`
	Y         float64 `json:"y,omitempty"`
	Z         float64 `json:"z,omitempty"`
	// Killer is who eliminated the sender, for Elimination frames.
	Killer int `json:"killer,omitempty"`
}

// TargetOrAll returns Target, or engine.TargetAll when the client left it out.
func (m ClientMessage) TargetOrAll() int {
	if m.Target == nil {
		return engine.TargetAll
	}
	return *m.Target
}

func (m ClientMessage) Position() engine.Vec3 { return engine.Vec3{X: m.X, Y: m.Y, Z: m.Z} }

type ServerMessage struct {
	Type     string         `json:"type"` // "StateSnapshot" | "Command" | "Result" | "Teleport" | "Error"
	Version  int64          `json:"version,omitempty"`
	State    *wire.Snapshot `json:"state,omitempty"`
	Command  *wire.Command  `json:"command,omitempty"`
	Teleport *wire.Position `json:"teleport,omitempty"`
	Error    string         `json:"error,omitempty"`
}

func Command(cmd engine.Command) *wire.Command {
	return &wire.Command{
		Version:     cmd.Version,
		Operation:   cmd.Operation.String(),
		OpCode:      int(cmd.Operation),
		TargetID:    cmd.TargetID,
		TargetValue: cmd.TargetValue,
	}
}

// Snapshot converts a roster snapshot to its wire shape, keeping only occupied slots.
func Snapshot(session string, version int64, snap roster.Snapshot, changed []int) *wire.Snapshot {
	out := &wire.Snapshot{
		Session: session,
		Version: version,
		Settings: wire.Settings{
			FriendlyFire:     snap.Settings.FriendlyFire,
			FriendlyFireMode: snap.Settings.FriendlyFireMode.String(),
			ShowTeamTag:      snap.Settings.ShowTeamTag,
			ShowStaffTag:     snap.Settings.ShowStaffTag,
			ShowCreatorTag:   snap.Settings.ShowCreatorTag,
		},
		Players: []wire.Player{},
		Changed: changed,
	}
	for _, e := range snap.Entries {
		if !e.Active {
			continue
		}
		out.Players = append(out.Players, Player(e))
	}
	return out
}

func Player(e roster.PlayerEntry) wire.Player {
	p := wire.Player{
		Index:   e.Index,
		ID:      e.ID,
		TeamID:  int(e.TeamID),
		Team:    e.TeamID.String(),
		Role:    e.Role,
		Staff:   e.Staff,
		Creator: e.Creator,
		Dead:    e.Dead,
		Kills:   e.Kills,
		Deaths:  e.Deaths,
	}
	if e.Deaths != 0 {
		kdr := float64(e.Kills) / float64(e.Deaths)
		p.KDR = &kdr
	}
	return p
}
