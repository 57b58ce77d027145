package engine

import (
	"errors"
	"fmt"

	"golang.org/x/text/cases"
)

var ErrUnknownOperation = errors.New("unknown operation")
var ErrPermissionDenied = errors.New("permission denied")
var ErrInvalidTarget = errors.New("invalid target")
var ErrInvalidRegion = errors.New("invalid region")
var ErrInvalidTeam = errors.New("invalid team")
var ErrInvalidValue = errors.New("invalid value")

// TargetAll marks a command that addresses the whole roster rather than one player.
const TargetAll = -1

type Operation int

// Codes match the numbering used on the wire since the first protocol revision.
const (
	OpReset                  Operation = -1
	OpAdd                    Operation = 1
	OpRemove                 Operation = 2
	OpAddAll                 Operation = 3
	OpSync                   Operation = 5
	OpSyncAll                Operation = 6
	OpStatsReset             Operation = 7
	OpStatsResetAll          Operation = 8
	OpFriendlyFireChange     Operation = 9
	OpTeamReset              Operation = 10
	OpTeamChange             Operation = 11
	OpTeamShuffle            Operation = 12
	OpTeamTagChange          Operation = 13
	OpStaffTagChange         Operation = 14
	OpTeamRegionChange       Operation = 15
	OpCreatorTagChange       Operation = 16
	OpFriendlyFireModeChange Operation = 17
	OpRevive                 Operation = 18
)

var operationNames = map[Operation]string{
	OpReset:                  "Reset",
	OpAdd:                    "Add",
	OpRemove:                 "Remove",
	OpAddAll:                 "AddAll",
	OpSync:                   "Sync",
	OpSyncAll:                "SyncAll",
	OpStatsReset:             "StatsReset",
	OpStatsResetAll:          "StatsResetAll",
	OpFriendlyFireChange:     "FriendlyFireChange",
	OpTeamReset:              "TeamReset",
	OpTeamChange:             "TeamChange",
	OpTeamShuffle:            "TeamShuffle",
	OpTeamTagChange:          "TeamTagChange",
	OpStaffTagChange:         "StaffTagChange",
	OpTeamRegionChange:       "TeamRegionChange",
	OpCreatorTagChange:       "CreatorTagChange",
	OpFriendlyFireModeChange: "FriendlyFireModeChange",
	OpRevive:                 "Revive",
}

var operationsByName = func() map[string]Operation {
	m := make(map[string]Operation, len(operationNames))
	for op, name := range operationNames {
		m[fold(name)] = op
	}
	return m
}()

func (op Operation) String() string {
	if name, ok := operationNames[op]; ok {
		return name
	}
	return fmt.Sprintf("Invalid:%d", int(op))
}

func (op Operation) Known() bool {
	_, ok := operationNames[op]
	return ok
}

// TargetsPlayer reports whether TargetID carries a player id.
func (op Operation) TargetsPlayer() bool {
	switch op {
	case OpAdd, OpRemove, OpStatsReset, OpTeamChange, OpRevive:
		return true
	}
	return false
}

// IsToggle reports whether TargetValue is a 0/1 boolean.
func (op Operation) IsToggle() bool {
	switch op {
	case OpFriendlyFireChange, OpTeamTagChange, OpStaffTagChange, OpCreatorTagChange:
		return true
	}
	return false
}

// ParseOperation accepts operation names case-insensitively ("teamShuffle", "TEAMSHUFFLE").
func ParseOperation(name string) (Operation, error) {
	op, ok := operationsByName[fold(name)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownOperation, name)
	}
	return op, nil
}

// Command is the replicated request. It is built once by the issuer and never mutated.
type Command struct {
	Version     int64
	Operation   Operation
	TargetID    int
	TargetValue int
}

func (c Command) String() string {
	return fmt.Sprintf("%s(target=%d value=%d)@v%d", c.Operation, c.TargetID, c.TargetValue, c.Version)
}

type Capability int

const (
	CapabilityOrdinary Capability = iota
	CapabilityModerator
)

// RequiredCapability returns what the caller needs to issue op against target.
// target must already be resolved (no TargetAll for player operations).
func RequiredCapability(op Operation, caller, target int) Capability {
	switch op {
	case OpSync, OpSyncAll:
		return CapabilityOrdinary
	case OpAdd, OpRemove, OpTeamChange, OpRevive:
		if target != caller {
			return CapabilityModerator
		}
		return CapabilityOrdinary
	default:
		return CapabilityModerator
	}
}

// Casers keep state between calls, so each fold gets its own.
func fold(s string) string { return cases.Fold().String(s) }
