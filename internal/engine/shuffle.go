package engine

import "math/rand/v2"

// Member is the part of a roster entry the partition algorithms read.
type Member struct {
	Index    int    `json:"index"`
	ID       int    `json:"id"`
	TeamID   TeamID `json:"team_id"`
	Active   bool   `json:"active"`
	Staff    bool   `json:"staff"`
	Position Vec3   `json:"position"`
	// Located is false when nothing is known about where the player stands.
	Located bool `json:"located"`
}

func (m Member) IsStaff() bool { return m.Staff || IsStaffTeam(m.TeamID) }

type Assignment struct {
	Index  int
	TeamID TeamID
}

// Shuffle partitions eligible members into opts.TeamCount() teams of n/teamCount each.
//
// With an odd eligible count the trailing member goes to TeamRed. When more than one member
// is left over (n mod teamCount > 1) the extra members get no assignment and keep their team.
func Shuffle(members []Member, opts ShuffleOptions, rng *rand.Rand) []Assignment {
	eligible := make([]Member, 0, len(members))
	for _, m := range members {
		if !m.Active || (!opts.IncludeModerators && m.IsStaff()) {
			continue
		}
		eligible = append(eligible, m)
	}

	n := len(eligible)
	for i := 0; i < n-1; i++ {
		j := i + rng.IntN(n-i)
		eligible[i], eligible[j] = eligible[j], eligible[i]
	}

	teamCount := opts.TeamCount()
	teamSize := n / teamCount

	out := make([]Assignment, 0, n)
	for team := 0; team < teamCount; team++ {
		for slot := 0; slot < teamSize; slot++ {
			i := teamSize*team + slot
			if i >= n {
				break
			}
			out = append(out, Assignment{Index: eligible[i].Index, TeamID: TeamID(team + 1)})
		}
	}

	if n%2 != 0 {
		out = append(out, Assignment{Index: eligible[n-1].Index, TeamID: TeamRed})
	}
	return out
}
