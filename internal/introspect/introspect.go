// Package introspect serves the Debug control-API call (spec.md 6:
// "Debug introspection returning the full state snapshot"), adapted from
// the teacher's snapshot manager. Unlike that manager it is computed fresh
// from live state on every call and never written to disk automatically:
// spec.md's Non-goals exclude persistence across restarts, and this
// package is not a recovery mechanism, only a read-only view for operators.
package introspect

import "time"

// LaborView is the serializable projection of one registry entry.
type LaborView struct {
	Name             string    `json:"name"`
	Handle           string    `json:"handle"`
	Phase            string    `json:"phase"`
	PairPID          string    `json:"pair_pid,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
	LastTransitionAt time.Time `json:"last_transition_at"`
}

// Snapshot is the full state returned by Debug.
type Snapshot struct {
	SchemaVer    int                `json:"schema_ver"`
	OverseerID   string             `json:"overseer_id"`
	Strategy     string             `json:"strategy"`
	MaxNodes     int                `json:"max_nodes"`
	ActiveLabors int                `json:"active_labors"`
	Labors       map[string]LaborView `json:"labors"`
	GeneratedAt  time.Time          `json:"generated_at"`
}

const schemaVersion = 1

// Build assembles a Snapshot. It takes plain values rather than overseer
// types so this package never imports the root package.
func Build(overseerID, strategy string, maxNodes int, labors map[string]LaborView) Snapshot {
	active := 0
	for _, l := range labors {
		if l.Phase != "terminated" {
			active++
		}
	}
	return Snapshot{
		SchemaVer:    schemaVersion,
		OverseerID:   overseerID,
		Strategy:     strategy,
		MaxNodes:     maxNodes,
		ActiveLabors: active,
		Labors:       labors,
		GeneratedAt:  time.Now(),
	}
}
