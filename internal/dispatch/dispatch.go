// Package dispatch validates roster change requests and turns accepted ones into versioned
// commands on the session's transmission channel.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/DoyleJ11/roster-sync/internal/engine"
	"github.com/DoyleJ11/roster-sync/internal/metrics"
	"github.com/DoyleJ11/roster-sync/internal/report"
	"github.com/DoyleJ11/roster-sync/internal/roles"
	"github.com/DoyleJ11/roster-sync/internal/roster"
)

// Transmitter is the sending half of a transmission channel.
type Transmitter interface {
	ClaimTransmitRight(issuer int)
	PushState(ctx context.Context, cmd engine.Command) error
}

type Config struct {
	Channel  Transmitter
	Roles    roles.Lookup
	Capacity int
	// Regions is the number of regions in the session layout.
	Regions int
	Sink    report.Sink
	Logger  *zap.Logger
}

type Dispatcher struct {
	ch       Transmitter
	roles    roles.Lookup
	capacity int
	regions  int
	sink     report.Sink
	log      *zap.Logger

	mu      sync.Mutex
	version int64
	// seen is the highest version observed on the channel, from any issuer.
	seen atomic.Int64
}

func New(cfg Config) *Dispatcher {
	if cfg.Roles == nil {
		cfg.Roles = roles.NewStatic(nil, nil)
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = roster.DefaultCapacity
	}
	if cfg.Sink == nil {
		cfg.Sink = report.Func(func(string) {})
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Dispatcher{
		ch:       cfg.Channel,
		roles:    cfg.Roles,
		capacity: cfg.Capacity,
		regions:  cfg.Regions,
		sink:     cfg.Sink,
		log:      cfg.Logger.Named("dispatch"),
	}
}

// Version is the last version handed out or observed on the channel.
func (d *Dispatcher) Version() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return max(d.version, d.seen.Load())
}

// Observe records a version seen on the channel. Dispatchers in other processes share the
// channel, so the next Issue continues from the highest version anyone has used.
// It never takes the issue lock: Issue may be blocked pushing while the channel delivers.
func (d *Dispatcher) Observe(version int64) {
	for {
		cur := d.seen.Load()
		if version <= cur || d.seen.CompareAndSwap(cur, version) {
			return
		}
	}
}

// Follow observes every command on feed until it closes.
func (d *Dispatcher) Follow(feed <-chan engine.Command) {
	go func() {
		for cmd := range feed {
			d.Observe(cmd.Version)
		}
	}()
}

// Issue validates a request from caller and, if accepted, transmits it under the next version.
// It returns once the command is pushed; application happens later on the authority.
// Rejected requests never consume a version.
func (d *Dispatcher) Issue(ctx context.Context, caller int, op engine.Operation, target, value int) (engine.Command, error) {
	target, err := d.validate(caller, op, target, value)
	if err == nil && !d.permitted(op, caller, target) {
		err = fmt.Errorf("%w: %s requires moderator", engine.ErrPermissionDenied, op)
	}
	if err != nil {
		d.reject(caller, op, err)
		return engine.Command{}, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	d.version = max(d.version, d.seen.Load()) + 1
	cmd := engine.Command{Version: d.version, Operation: op, TargetID: target, TargetValue: value}
	d.ch.ClaimTransmitRight(caller)
	if err := d.ch.PushState(ctx, cmd); err != nil {
		// Nothing went out under this version; hand it to the next caller.
		d.version--
		metrics.RecordRejected(op.String(), "transport")
		d.log.Warn("push failed", zap.Stringer("command", cmd), zap.Error(err))
		d.sink.Report(fmt.Sprintf("Failed to transmit %s from player %d: %v", op, caller, err))
		return engine.Command{}, fmt.Errorf("push %s: %w", cmd, err)
	}

	metrics.RecordIssued(op.String())
	d.sink.Report(fmt.Sprintf("Requested to %s player %d with request version of %d", op, target, cmd.Version))
	d.log.Debug("command issued", zap.Stringer("command", cmd), zap.Int("caller", caller))
	return cmd, nil
}

// IssueNamed resolves op by name first, for text front ends.
func (d *Dispatcher) IssueNamed(ctx context.Context, caller int, op string, target, value int) (engine.Command, error) {
	parsed, err := engine.ParseOperation(op)
	if err != nil {
		d.reject(caller, engine.Operation(0), err)
		return engine.Command{}, err
	}
	return d.Issue(ctx, caller, parsed, target, value)
}

// validate returns the resolved target.
func (d *Dispatcher) validate(caller int, op engine.Operation, target, value int) (int, error) {
	if !op.Known() {
		return 0, fmt.Errorf("%w: %d", engine.ErrUnknownOperation, int(op))
	}

	if op.TargetsPlayer() {
		if target < 0 {
			target = caller
		}
		if target <= 0 {
			return 0, fmt.Errorf("%w: player id %d", engine.ErrInvalidTarget, target)
		}
	}

	switch {
	case op == engine.OpSync:
		if target < 0 || target >= d.capacity {
			return 0, fmt.Errorf("%w: entry %d of %d", engine.ErrInvalidTarget, target, d.capacity)
		}
	case op == engine.OpTeamChange:
		if !engine.TeamID(value).Valid() {
			return 0, fmt.Errorf("%w: %d", engine.ErrInvalidTeam, value)
		}
	case op == engine.OpTeamRegionChange:
		if target < 0 || target >= d.regions {
			return 0, fmt.Errorf("%w: %d of %d", engine.ErrInvalidRegion, target, d.regions)
		}
		if !engine.TeamID(value).Valid() {
			return 0, fmt.Errorf("%w: %d", engine.ErrInvalidTeam, value)
		}
	case op == engine.OpFriendlyFireModeChange:
		if !engine.FriendlyFireMode(value).Valid() {
			return 0, fmt.Errorf("%w: friendly fire mode %d", engine.ErrInvalidValue, value)
		}
	case op == engine.OpTeamShuffle:
		if value < 0 || value > engine.EncodeShuffleOptions(engine.ShuffleOptions{IncludeModerators: true, IncludeGreenBlueTeams: true}) {
			return 0, fmt.Errorf("%w: shuffle options %d", engine.ErrInvalidValue, value)
		}
	case op.IsToggle():
		if value != 0 && value != 1 {
			return 0, fmt.Errorf("%w: %s wants 0 or 1, got %d", engine.ErrInvalidValue, op, value)
		}
	}
	return target, nil
}

func (d *Dispatcher) permitted(op engine.Operation, caller, target int) bool {
	if engine.RequiredCapability(op, caller, target) == engine.CapabilityOrdinary {
		return true
	}
	return d.roles.HasPermission(caller)
}

func (d *Dispatcher) reject(caller int, op engine.Operation, err error) {
	metrics.RecordRejected(op.String(), rejectReason(err))
	d.log.Info("request rejected", zap.Int("caller", caller), zap.Stringer("op", op), zap.Error(err))
	d.sink.Report(fmt.Sprintf("Rejected %s from player %d: %v", op, caller, err))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrPermissionDenied):
		return "permission"
	case errors.Is(err, engine.ErrInvalidTarget):
		return "target"
	case errors.Is(err, engine.ErrInvalidRegion):
		return "region"
	case errors.Is(err, engine.ErrInvalidTeam):
		return "team"
	case errors.Is(err, engine.ErrInvalidValue):
		return "value"
	default:
		return "unknown"
	}
}
