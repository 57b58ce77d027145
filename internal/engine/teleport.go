package engine

import "errors"

var ErrNoLocalPlayer = errors.New("no local player")
var ErrModeratorExcluded = errors.New("moderators excluded from teleport")
var ErrNoAnchors = errors.New("no team anchors configured")
var ErrNoAnchorForTeam = errors.New("no anchor for team")

// Destination computes where a participant relocates after a shuffle: its team's anchor
// offset by the entry's slot index along the anchor's forward direction.
func Destination(anchors []Anchor, self *Member, includeModerators, isModerator bool) (Vec3, error) {
	if self == nil {
		return Vec3{}, ErrNoLocalPlayer
	}
	if !includeModerators && isModerator {
		return Vec3{}, ErrModeratorExcluded
	}
	if len(anchors) == 0 {
		return Vec3{}, ErrNoAnchors
	}
	team := int(self.TeamID)
	if team <= 0 || team >= len(anchors) {
		return Vec3{}, ErrNoAnchorForTeam
	}
	a := anchors[team]
	return a.Position.Add(a.Forward.Scale(float64(self.Index))), nil
}
