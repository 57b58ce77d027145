package engine

type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v.X + o.X, v.Y + o.Y, v.Z + o.Z} }

func (v Vec3) Scale(f float64) Vec3 { return Vec3{v.X * f, v.Y * f, v.Z * f} }

// AABB is an axis-aligned box given by its center and half extents.
type AABB struct {
	Center  Vec3 `json:"center"`
	Extents Vec3 `json:"extents"`
}

// Contains is inclusive on every face.
func (b AABB) Contains(p Vec3) bool {
	return within(p.X, b.Center.X, b.Extents.X) &&
		within(p.Y, b.Center.Y, b.Extents.Y) &&
		within(p.Z, b.Center.Z, b.Extents.Z)
}

func within(v, center, extent float64) bool {
	return v >= center-extent && v <= center+extent
}

type Region struct {
	Name   string `json:"name"`
	Bounds AABB   `json:"bounds"`
	TeamID TeamID `json:"team_id"`
}

// Anchor is a team's spawn line: entries are spread along Forward from Position.
type Anchor struct {
	Position Vec3 `json:"position"`
	Forward  Vec3 `json:"forward"`
}

// Layout is the static map configuration. Anchors are indexed by team id; index 0 is unused.
type Layout struct {
	Regions []Region `json:"regions"`
	Anchors []Anchor `json:"anchors"`
}

func DefaultLayout() Layout {
	return Layout{
		Regions: []Region{
			{Name: "red-base", TeamID: TeamRed, Bounds: AABB{Center: Vec3{X: -40}, Extents: Vec3{X: 10, Y: 5, Z: 10}}},
			{Name: "yellow-base", TeamID: TeamYellow, Bounds: AABB{Center: Vec3{X: 40}, Extents: Vec3{X: 10, Y: 5, Z: 10}}},
			{Name: "green-base", TeamID: TeamGreen, Bounds: AABB{Center: Vec3{Z: -40}, Extents: Vec3{X: 10, Y: 5, Z: 10}}},
			{Name: "blue-base", TeamID: TeamBlue, Bounds: AABB{Center: Vec3{Z: 40}, Extents: Vec3{X: 10, Y: 5, Z: 10}}},
		},
		Anchors: []Anchor{
			{},
			{Position: Vec3{X: -40}, Forward: Vec3{Z: 1}},
			{Position: Vec3{X: 40}, Forward: Vec3{Z: -1}},
			{Position: Vec3{Z: -40}, Forward: Vec3{X: 1}},
			{Position: Vec3{Z: 40}, Forward: Vec3{X: -1}},
		},
	}
}
