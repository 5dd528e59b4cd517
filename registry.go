package overseer

import "github.com/fleetkeep/overseer/internal/introspect"

// registry is the controller's exclusive-access map from labor name to
// Labor (spec invariant 5: the controller is the sole mutator). It carries
// no lock: every read and write happens on the controller goroutine.
type registry map[string]Labor

func (r registry) activeCount() int {
	n := 0
	for _, l := range r {
		if l.active() {
			n++
		}
	}
	return n
}

// views projects the registry into introspect.LaborView for Debug calls.
func (r registry) views() map[string]introspect.LaborView {
	out := make(map[string]introspect.LaborView, len(r))
	for name, l := range r {
		out[name] = introspect.LaborView{
			Name:             l.Name,
			Handle:           l.Handle,
			Phase:            string(l.Phase),
			PairPID:          l.PairPID,
			CreatedAt:        l.CreatedAt,
			LastTransitionAt: l.LastTransitionAt,
		}
	}
	return out
}
