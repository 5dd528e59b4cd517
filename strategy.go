package overseer

// Strategy selects how Overseer names and restarts children, mirroring the
// behaviour naming from the original Elixir library this package is a Go
// port of.
type Strategy string

const (
	// SimpleOneForOne treats every labor as an anonymous pool member:
	// StartChild assigns a generated name, and a labor removed by a
	// conn_timeout or by a node_down after termination is not respawned.
	// An explicit TerminateChild keeps the labor in the registry in the
	// Terminated phase. This is the only strategy StartLink currently
	// accepts.
	SimpleOneForOne Strategy = "simple_one_for_one"

	// OneForOne names children explicitly and is documented, not
	// implemented: the source material leaves its auto-respawn contract
	// ambiguous (does a respawned labor keep its old Name? does it replay
	// the same Release?) and this package refuses to guess. StartLink
	// rejects it with ErrBadStartSpec. See DESIGN.md "Open Questions".
	OneForOne Strategy = "one_for_one"
)

func (s Strategy) valid() bool {
	switch s {
	case SimpleOneForOne, OneForOne:
		return true
	default:
		return false
	}
}
