// Package roster is the canonical store of player entries, teams, stats and visibility flags
// for one session.
//
// Mutators are only ever called by the session authority's executor. Roster does not check
// that itself: the lobby loop that owns it is the single caller. Queries are safe to call
// from the same loop at any time.
package roster

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/roles"
)

var ErrPlayerNotFound = errors.New("player not in roster")
var ErrRosterFull = errors.New("roster is full")
var ErrInvalidIndex = errors.New("invalid entry index")

type PlayerEntry struct {
	engine.Member
	Dead    bool   `json:"dead"`
	Kills   int    `json:"kills"`
	Deaths  int    `json:"deaths"`
	Role    string `json:"role"`
	Creator bool   `json:"creator"`
}

// Directory is the session's view of who is connected and where they stand.
type Directory interface {
	Connected() []int
	LocalID() int
	Position(playerID int) (engine.Vec3, bool)
}

// Presenter receives every entry whose team, visibility or sync state changed.
type Presenter interface {
	Present(e PlayerEntry)
}

type Settings struct {
	FriendlyFire     bool                    `json:"friendly_fire"`
	FriendlyFireMode engine.FriendlyFireMode `json:"friendly_fire_mode"`
	ShowTeamTag      bool                    `json:"show_team_tag"`
	ShowStaffTag     bool                    `json:"show_staff_tag"`
	ShowCreatorTag   bool                    `json:"show_creator_tag"`
}

type Snapshot struct {
	Entries  []PlayerEntry `json:"entries"`
	Settings Settings      `json:"settings"`
}

type Options struct {
	Capacity  int
	Roles     roles.Lookup
	Directory Directory
	Presenter Presenter
	Logger    *zap.Logger
}

type Roster struct {
	entries   []PlayerEntry
	settings  Settings
	roles     roles.Lookup
	dir       Directory
	presenter Presenter
	log       *zap.Logger
}

const DefaultCapacity = 80

func New(opts Options) *Roster {
	if opts.Capacity <= 0 {
		opts.Capacity = DefaultCapacity
	}
	if opts.Roles == nil {
		opts.Roles = roles.NewStatic(nil, nil)
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	r := &Roster{
		entries: make([]PlayerEntry, opts.Capacity),
		settings: Settings{
			FriendlyFireMode: engine.FriendlyFireWarning,
			ShowTeamTag:      true,
			ShowStaffTag:     true,
			ShowCreatorTag:   true,
		},
		roles:     opts.Roles,
		dir:       opts.Directory,
		presenter: opts.Presenter,
		log:       opts.Logger.Named("roster"),
	}
	for i := range r.entries {
		r.entries[i].Index = i
	}
	return r
}

func (r *Roster) Capacity() int { return len(r.entries) }

// --- mutators ---

func (r *Roster) AddPlayer(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w: player id %d", engine.ErrInvalidTarget, id)
	}
	if _, ok := r.find(id); ok {
		return nil
	}
	for i := range r.entries {
		if r.entries[i].Active {
			continue
		}
		role := r.roles.RoleOf(id)
		r.entries[i] = PlayerEntry{
			Member: engine.Member{
				Index:  i,
				ID:     id,
				Active: true,
				Staff:  role.Moderator,
			},
			Role:    role.Name,
			Creator: role.Creator,
		}
		r.log.Debug("player added", zap.Int("player_id", id), zap.Int("index", i))
		r.present(i)
		return nil
	}
	return fmt.Errorf("%w: capacity %d", ErrRosterFull, len(r.entries))
}

func (r *Roster) RemovePlayer(id int) error {
	i, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	r.clear(i)
	r.log.Debug("player removed", zap.Int("player_id", id), zap.Int("index", i))
	return nil
}

func (r *Roster) ResetAll() {
	for i := range r.entries {
		if r.entries[i].Active {
			r.clear(i)
		}
	}
}

// AddAllConnected adds every connected participant that is not already in the roster.
func (r *Roster) AddAllConnected() error {
	if r.dir == nil {
		return nil
	}
	var errs error
	for _, id := range r.dir.Connected() {
		errs = multierr.Append(errs, r.AddPlayer(id))
	}
	return errs
}

func (r *Roster) ResetTeam() {
	for i := range r.entries {
		if r.entries[i].Active && r.entries[i].TeamID != engine.TeamNone {
			r.entries[i].TeamID = engine.TeamNone
			r.present(i)
		}
	}
}

func (r *Roster) SetTeam(index int, team engine.TeamID) error {
	if err := r.checkIndex(index); err != nil {
		return err
	}
	if !team.Valid() {
		return fmt.Errorf("%w: %d", engine.ErrInvalidTeam, int(team))
	}
	e := &r.entries[index]
	if !e.Active {
		return fmt.Errorf("%w: entry %d is empty", ErrPlayerNotFound, index)
	}
	e.TeamID = team
	r.present(index)
	return nil
}

func (r *Roster) SetFriendlyFire(enabled bool) { r.settings.FriendlyFire = enabled }

func (r *Roster) SetFriendlyFireMode(mode engine.FriendlyFireMode) error {
	if !mode.Valid() {
		return fmt.Errorf("%w: friendly fire mode %d", engine.ErrInvalidValue, int(mode))
	}
	r.settings.FriendlyFireMode = mode
	return nil
}

func (r *Roster) ResetPlayerStats(id int) error {
	i, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	r.entries[i].Kills, r.entries[i].Deaths = 0, 0
	return nil
}

func (r *Roster) ResetAllStats() {
	for i := range r.entries {
		r.entries[i].Kills, r.entries[i].Deaths = 0, 0
	}
}

// RecordElimination is the hook hit resolution calls into; it only keeps the tallies.
func (r *Roster) RecordElimination(killerID, victimID int) error {
	v, ok := r.find(victimID)
	if !ok {
		return fmt.Errorf("%w: victim %d", ErrPlayerNotFound, victimID)
	}
	r.entries[v].Deaths++
	r.entries[v].Dead = true
	r.present(v)
	if k, ok := r.find(killerID); ok && k != v {
		r.entries[k].Kills++
		r.present(k)
	}
	return nil
}

func (r *Roster) SyncPlayer(index int) error {
	if err := r.checkIndex(index); err != nil {
		return err
	}
	r.present(index)
	return nil
}

func (r *Roster) SyncAll() {
	r.presentActive()
}

func (r *Roster) SetTeamTagShown(enabled bool) {
	r.settings.ShowTeamTag = enabled
	r.presentActive()
}

func (r *Roster) SetStaffTagShown(enabled bool) {
	r.settings.ShowStaffTag = enabled
	r.presentActive()
}

func (r *Roster) SetCreatorTagShown(enabled bool) {
	r.settings.ShowCreatorTag = enabled
	r.presentActive()
}

func (r *Roster) Revive(id int) error {
	i, ok := r.find(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, id)
	}
	r.entries[i].Dead = false
	r.present(i)
	return nil
}

// --- queries ---

// Players returns a copy of every slot, empty ones included, with positions filled in.
func (r *Roster) Players() []PlayerEntry {
	out := make([]PlayerEntry, len(r.entries))
	copy(out, r.entries)
	for i := range out {
		if out[i].Active {
			out[i].Position, out[i].Located = r.position(out[i].ID)
		}
	}
	return out
}

func (r *Roster) Members() []engine.Member {
	players := r.Players()
	out := make([]engine.Member, len(players))
	for i, p := range players {
		out[i] = p.Member
	}
	return out
}

func (r *Roster) PlayerByID(id int) (PlayerEntry, bool) {
	i, ok := r.find(id)
	if !ok {
		return PlayerEntry{}, false
	}
	e := r.entries[i]
	e.Position, e.Located = r.position(id)
	return e, true
}

func (r *Roster) LocalPlayer() (PlayerEntry, bool) {
	if r.dir == nil {
		return PlayerEntry{}, false
	}
	return r.PlayerByID(r.dir.LocalID())
}

func (r *Roster) HasPlayerID(id int) bool {
	_, ok := r.find(id)
	return ok
}

func (r *Roster) IsStaffTeamID(team engine.TeamID) bool { return engine.IsStaffTeam(team) }

func (r *Roster) Settings() Settings { return r.settings }

// Snapshot copies roster state; two snapshots compare equal iff no mutator changed anything.
func (r *Roster) Snapshot() Snapshot {
	entries := make([]PlayerEntry, len(r.entries))
	copy(entries, r.entries)
	return Snapshot{Entries: entries, Settings: r.settings}
}

// --- helpers ---

func (r *Roster) find(id int) (int, bool) {
	if id <= 0 {
		return 0, false
	}
	for i := range r.entries {
		if r.entries[i].Active && r.entries[i].ID == id {
			return i, true
		}
	}
	return 0, false
}

func (r *Roster) checkIndex(index int) error {
	if index < 0 || index >= len(r.entries) {
		return fmt.Errorf("%w: %d of %d", ErrInvalidIndex, index, len(r.entries))
	}
	return nil
}

func (r *Roster) clear(i int) {
	r.entries[i] = PlayerEntry{Member: engine.Member{Index: i}}
	r.present(i)
}

func (r *Roster) position(id int) (engine.Vec3, bool) {
	if r.dir == nil {
		return engine.Vec3{}, false
	}
	return r.dir.Position(id)
}

func (r *Roster) present(i int) {
	if r.presenter != nil {
		r.presenter.Present(r.entries[i])
	}
}

func (r *Roster) presentActive() {
	for i := range r.entries {
		if r.entries[i].Active {
			r.present(i)
		}
	}
}
