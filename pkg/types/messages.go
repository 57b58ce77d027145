package types

// Client -> Server
//
// Issue:
//   operation: string   // case-insensitive name, e.g. "TeamShuffle"
//   target?: number     // player id, entry index or region index; omitted means "all" / self
//   value?: number      // team id, 0/1, friendly fire mode or shuffle flags
//
// Position:
//   x, y, z: number     // where the sender's player stands; used by region reassignment

// Server -> Client
//
// StateSnapshot: version, state (Snapshot)
// Command:       a command as relayed on the session channel
// Result:        the command the sender's Issue produced
// Teleport:      x, y, z of the receiver's own destination after a shuffle
// Error:         error

type Command struct {
	Version     int64  `json:"version"`
	Operation   string `json:"operation"`
	OpCode      int    `json:"op_code"`
	TargetID    int    `json:"target_id"`
	TargetValue int    `json:"target_value"`
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}
