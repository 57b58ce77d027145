package engine

import "fmt"

// AssignRegion moves every active member standing inside regions[region] onto team.
// Members already on team, or outside the volume, are left out of the result.
func AssignRegion(region int, team TeamID, members []Member, regions []Region) ([]Assignment, error) {
	if region < 0 || region >= len(regions) {
		return nil, fmt.Errorf("%w: %d of %d", ErrInvalidRegion, region, len(regions))
	}
	bounds := regions[region].Bounds

	var out []Assignment
	for _, m := range members {
		if !m.Active || !m.Located || m.TeamID == team {
			continue
		}
		if bounds.Contains(m.Position) {
			out = append(out, Assignment{Index: m.Index, TeamID: team})
		}
	}
	return out, nil
}
