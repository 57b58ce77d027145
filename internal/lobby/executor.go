package lobby

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/journal"
	"github.com/DoyleJ11/roster-sync/internal/metrics"
	"github.com/DoyleJ11/roster-sync/internal/report"
	"github.com/DoyleJ11/roster-sync/internal/roster"
)

var ErrNoRoster = errors.New("roster is not initialized")

const receivedFormat = "Received %s for %s with request version of %d"

type Role int

const (
	Follower Role = iota
	Authority
)

func (r Role) String() string {
	if r == Authority {
		return "authority"
	}
	return "follower"
}

type ExecutorConfig struct {
	Session string
	Roster  *roster.Roster
	Regions []engine.Region
	Rand    *rand.Rand
	Sink    report.Sink
	Journal journal.Recorder
	Logger  *zap.Logger
	// OnShuffle runs after a shuffle's team assignments are committed.
	OnShuffle func(engine.ShuffleOptions)
}

// Executor applies delivered commands to the roster. Only an Authority executes, and each
// version is applied at most once. It is not safe for concurrent use; the lobby loop owns it.
type Executor struct {
	session     string
	role        Role
	lastApplied int64
	roster      *roster.Roster
	regions     []engine.Region
	rng         *rand.Rand
	sink        report.Sink
	journal     journal.Recorder
	log         *zap.Logger
	onShuffle   func(engine.ShuffleOptions)
}

func NewExecutor(cfg ExecutorConfig) *Executor {
	if cfg.Rand == nil {
		cfg.Rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if cfg.Sink == nil {
		cfg.Sink = report.Func(func(string) {})
	}
	if cfg.Journal == nil {
		cfg.Journal = journal.Nop
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Executor{
		session:   cfg.Session,
		roster:    cfg.Roster,
		regions:   cfg.Regions,
		rng:       cfg.Rand,
		sink:      cfg.Sink,
		journal:   cfg.Journal,
		log:       cfg.Logger.Named("executor"),
		onShuffle: cfg.OnShuffle,
	}
}

func (e *Executor) Role() Role { return e.role }

// SetRole is driven by whoever assigns session authority.
func (e *Executor) SetRole(r Role) {
	if r != e.role {
		e.log.Info("role changed", zap.Stringer("from", e.role), zap.Stringer("to", r))
	}
	e.role = r
}

func (e *Executor) LastApplied() int64 { return e.lastApplied }

// Execute applies cmd if this executor is the authority and has not yet seen its version.
// applied is false for followers, stale or duplicate versions and unknown operations.
// A returned error means the command was consumed but the roster rejected it.
func (e *Executor) Execute(cmd engine.Command) (applied bool, err error) {
	if e.role != Authority {
		return false, nil
	}
	if cmd.Version <= e.lastApplied {
		metrics.RecordDuplicate()
		e.log.Debug("ignoring stale or duplicate command",
			zap.Int64("version", cmd.Version), zap.Int64("last_applied", e.lastApplied))
		return false, nil
	}
	e.lastApplied = cmd.Version

	if e.roster == nil {
		e.log.Error("cannot apply command", zap.Stringer("command", cmd), zap.Error(ErrNoRoster))
		return false, ErrNoRoster
	}

	e.sink.Report(fmt.Sprintf(receivedFormat, cmd.Operation, describeTarget(cmd), cmd.Version))

	if !cmd.Operation.Known() {
		e.log.Warn("unknown operation", zap.Int("op", int(cmd.Operation)), zap.Int64("version", cmd.Version))
		return false, nil
	}

	err = e.apply(cmd)
	metrics.RecordApplied(cmd.Operation.String(), err == nil)
	entry := journal.Entry{
		Session:     e.session,
		Version:     cmd.Version,
		Operation:   cmd.Operation.String(),
		OpCode:      int(cmd.Operation),
		TargetID:    cmd.TargetID,
		TargetValue: cmd.TargetValue,
		AppliedAt:   time.Now(),
	}
	if err != nil {
		entry.Err = err.Error()
		e.log.Warn("command failed", zap.Stringer("command", cmd), zap.Error(err))
		e.sink.Report(fmt.Sprintf("Failed to apply %s: %v", cmd.Operation, err))
	}
	e.journal.Record(entry)
	return true, err
}

func (e *Executor) apply(cmd engine.Command) error {
	r := e.roster
	switch cmd.Operation {
	case engine.OpReset:
		r.ResetAll()
	case engine.OpAdd:
		return r.AddPlayer(cmd.TargetID)
	case engine.OpRemove:
		return r.RemovePlayer(cmd.TargetID)
	case engine.OpAddAll:
		return r.AddAllConnected()
	case engine.OpSync:
		return r.SyncPlayer(cmd.TargetID)
	case engine.OpSyncAll:
		r.SyncAll()
	case engine.OpStatsReset:
		return r.ResetPlayerStats(cmd.TargetID)
	case engine.OpStatsResetAll:
		r.ResetAllStats()
	case engine.OpFriendlyFireChange:
		r.SetFriendlyFire(cmd.TargetValue == 1)
	case engine.OpFriendlyFireModeChange:
		return r.SetFriendlyFireMode(engine.FriendlyFireMode(cmd.TargetValue))
	case engine.OpTeamReset:
		r.ResetTeam()
	case engine.OpTeamChange:
		p, ok := r.PlayerByID(cmd.TargetID)
		if !ok {
			return fmt.Errorf("change team: %w: %d", roster.ErrPlayerNotFound, cmd.TargetID)
		}
		return r.SetTeam(p.Index, engine.TeamID(cmd.TargetValue))
	case engine.OpTeamShuffle:
		return e.shuffle(engine.DecodeShuffleOptions(cmd.TargetValue))
	case engine.OpTeamTagChange:
		r.SetTeamTagShown(cmd.TargetValue == 1)
	case engine.OpStaffTagChange:
		r.SetStaffTagShown(cmd.TargetValue == 1)
	case engine.OpCreatorTagChange:
		r.SetCreatorTagShown(cmd.TargetValue == 1)
	case engine.OpTeamRegionChange:
		assigns, err := engine.AssignRegion(cmd.TargetID, engine.TeamID(cmd.TargetValue), r.Members(), e.regions)
		if err != nil {
			return err
		}
		if err := e.assign(assigns); err != nil {
			return err
		}
		e.sink.Report(fmt.Sprintf("Successfully finished process of %s", cmd.Operation))
	case engine.OpRevive:
		return r.Revive(cmd.TargetID)
	}
	return nil
}

func (e *Executor) shuffle(opts engine.ShuffleOptions) error {
	assigns := engine.Shuffle(e.roster.Members(), opts, e.rng)
	if err := e.assign(assigns); err != nil {
		return err
	}
	metrics.RecordShuffle(len(assigns))
	e.log.Info("teams shuffled",
		zap.Int("assigned", len(assigns)),
		zap.Bool("include_moderators", opts.IncludeModerators),
		zap.Bool("include_green_blue", opts.IncludeGreenBlueTeams))
	if e.onShuffle != nil {
		e.onShuffle(opts)
	}
	return nil
}

func (e *Executor) assign(assigns []engine.Assignment) error {
	for _, a := range assigns {
		if err := e.roster.SetTeam(a.Index, a.TeamID); err != nil {
			return err
		}
	}
	return nil
}

func describeTarget(cmd engine.Command) string {
	switch {
	case cmd.Operation == engine.OpTeamShuffle:
		o := engine.DecodeShuffleOptions(cmd.TargetValue)
		s := "All"
		if o.IncludeModerators {
			s += " +include_moderators"
		}
		if o.IncludeGreenBlueTeams {
			s += " +include_greenAndBlue"
		}
		return s
	case cmd.Operation == engine.OpTeamRegionChange:
		return fmt.Sprintf("All inside region id of %d to team id of %d", cmd.TargetID, cmd.TargetValue)
	case cmd.Operation == engine.OpFriendlyFireModeChange:
		return engine.FriendlyFireMode(cmd.TargetValue).String()
	case cmd.Operation == engine.OpTeamChange:
		return fmt.Sprintf("player %d to %s", cmd.TargetID, engine.TeamID(cmd.TargetValue))
	case cmd.Operation == engine.OpSync:
		return fmt.Sprintf("entry %d", cmd.TargetID)
	case cmd.Operation.IsToggle():
		return fmt.Sprintf("All to %d", cmd.TargetValue)
	case cmd.Operation.TargetsPlayer():
		return fmt.Sprintf("player %d", cmd.TargetID)
	default:
		return "All"
	}
}
