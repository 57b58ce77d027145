// Package roles answers who may issue moderator-gated roster commands.
package roles

type Role struct {
	Name      string
	Moderator bool
	Creator   bool
}

func (r Role) HasPermission() bool { return r.Moderator }

var (
	Player    = Role{Name: "player"}
	Moderator = Role{Name: "moderator", Moderator: true}
	Creator   = Role{Name: "creator", Moderator: true, Creator: true}
)

type Lookup interface {
	RoleOf(playerID int) Role
	HasPermission(playerID int) bool
}

// Static is a fixed role table, typically built from configuration at startup.
type Static struct {
	roles map[int]Role
}

func NewStatic(moderators, creators []int) *Static {
	s := &Static{roles: make(map[int]Role, len(moderators)+len(creators))}
	for _, id := range moderators {
		s.roles[id] = Moderator
	}
	for _, id := range creators {
		s.roles[id] = Creator
	}
	return s
}

func (s *Static) RoleOf(playerID int) Role {
	if r, ok := s.roles[playerID]; ok {
		return r
	}
	return Player
}

func (s *Static) HasPermission(playerID int) bool { return s.RoleOf(playerID).HasPermission() }
