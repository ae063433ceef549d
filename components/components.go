// Package components defines ECS components for the simulation.
package components

// Position is the top-left corner of an agent's sprite box in world units.
type Position struct {
	X, Y float64
}

// Velocity is an agent's vertical velocity in world units per tick.
// Agents never move horizontally; obstacles scroll past them instead.
type Velocity struct {
	Y float64
}

// Bird holds per-agent bookkeeping.
type Bird struct {
	ID         string  // Key into the generation's decision and fitness maps
	Index      int     // Population order
	Age        int     // Ticks survived
	LastOutput float64 // Most recent decision output[0]
	Jumped     bool    // Whether the last decision issued a jump
	Faults     int     // Decisions rejected as malformed
}
