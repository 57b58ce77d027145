// Package types holds the JSON shapes a client sees. They carry names rather than internal
// codes wherever a reader would want one.
package types

// Snapshot is the roster view sent in StateSnapshot frames and served by GET /sessions/{code}.
type Snapshot struct {
	Session  string   `json:"session"`
	Version  int64    `json:"version"`
	Settings Settings `json:"settings"`
	Players  []Player `json:"players"`
	// Changed lists player indices updated since the previous snapshot.
	Changed []int `json:"changed,omitempty"`
}

type Settings struct {
	FriendlyFire     bool   `json:"friendly_fire"`
	FriendlyFireMode string `json:"friendly_fire_mode"`
	ShowTeamTag      bool   `json:"show_team_tag"`
	ShowStaffTag     bool   `json:"show_staff_tag"`
	ShowCreatorTag   bool   `json:"show_creator_tag"`
}

// Player is one occupied roster slot.
type Player struct {
	Index  int    `json:"index"`
	ID     int    `json:"id"`
	TeamID int    `json:"team_id"`
	Team   string `json:"team"`
	Role   string `json:"role"`
	Staff  bool   `json:"staff,omitempty"`
	// Creator marks players shown with the creator tag.
	Creator bool `json:"creator,omitempty"`
	Dead    bool `json:"dead,omitempty"`
	Kills   int  `json:"kills"`
	Deaths  int  `json:"deaths"`
	// KDR is omitted while Deaths is zero.
	KDR *float64 `json:"kdr,omitempty"`
}
