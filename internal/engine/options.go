package engine

import "fmt"

type TeamID int

const (
	TeamNone   TeamID = 0
	TeamRed    TeamID = 1
	TeamYellow TeamID = 2
	TeamGreen  TeamID = 3
	TeamBlue   TeamID = 4
	TeamStaff  TeamID = 5
)

func (t TeamID) Valid() bool { return t >= TeamNone && t <= TeamStaff }

// Short names as shown in roster listings.
func (t TeamID) String() string {
	switch t {
	case TeamNone:
		return "non"
	case TeamRed:
		return "red"
	case TeamYellow:
		return "yel"
	case TeamGreen:
		return "gre"
	case TeamBlue:
		return "blu"
	case TeamStaff:
		return "stf"
	default:
		return fmt.Sprintf("?:%d", int(t))
	}
}

func IsStaffTeam(t TeamID) bool { return t == TeamStaff }

type FriendlyFireMode int

const (
	FriendlyFireAlways FriendlyFireMode = iota
	FriendlyFireBoth
	FriendlyFireReverse
	FriendlyFireWarning
	FriendlyFireNever
)

var friendlyFireNames = []string{"always", "both", "reverse", "warning", "never"}

func (m FriendlyFireMode) Valid() bool { return m >= FriendlyFireAlways && m <= FriendlyFireNever }

func (m FriendlyFireMode) String() string {
	if !m.Valid() {
		return fmt.Sprintf("invalid(%d)", int(m))
	}
	return friendlyFireNames[m]
}

func ParseFriendlyFireMode(s string) (FriendlyFireMode, error) {
	key := fold(s)
	for i, name := range friendlyFireNames {
		if key == name {
			return FriendlyFireMode(i), nil
		}
	}
	return 0, fmt.Errorf("%w: friendly fire mode %q", ErrInvalidValue, s)
}

// ShuffleOptions selects the staff filter and the 2-team or 4-team split of a shuffle.
type ShuffleOptions struct {
	IncludeModerators     bool
	IncludeGreenBlueTeams bool
}

func (o ShuffleOptions) TeamCount() int {
	if o.IncludeGreenBlueTeams {
		return 4
	}
	return 2
}

// EncodeShuffleOptions packs options into a Command's TargetValue:
// bit 1 = include moderators, bit 2 = include green/blue teams.
func EncodeShuffleOptions(o ShuffleOptions) int {
	v := 0
	if o.IncludeModerators {
		v |= 1
	}
	if o.IncludeGreenBlueTeams {
		v |= 2
	}
	return v
}

func DecodeShuffleOptions(v int) ShuffleOptions {
	return ShuffleOptions{
		IncludeModerators:     v&1 != 0,
		IncludeGreenBlueTeams: v&2 != 0,
	}
}
