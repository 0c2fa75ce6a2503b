package governor

import (
	"log/slog"

	"github.com/barepower/genpd/pkg/genpd"
)

// MinActiveGovernor refuses to power a domain down while doing so would
// leave fewer than MinActive domains active across the set it watches,
// generalizing pkg/strategy/min_node_count.go's MinNodeCountScaleUp (a
// scale-up trigger keyed on a floor) into a power-down veto keyed on the
// same floor. It never vetoes a runtime-suspend of an individual device —
// suspending a device does not necessarily power its domain off (masters
// with siblings, QoS constraints, and so on may keep it active), so the
// floor is enforced at PowerDownOk.
type MinActiveGovernor struct {
	MinActive int

	// ActiveDomains returns the current count of active domains among the
	// set this governor watches (normally every domain in the Registry);
	// supplied by the caller so this package stays free of a Registry
	// dependency.
	ActiveDomains func() int
}

func (g *MinActiveGovernor) StopOk(dev *genpd.Device) bool { return true }

// PowerDownOk allows d to power off only if the active-domain count would
// remain at or above MinActive afterward.
func (g *MinActiveGovernor) PowerDownOk(d *genpd.Domain) bool {
	if g.MinActive <= 0 || g.ActiveDomains == nil {
		return true
	}
	active := g.ActiveDomains()
	if active-1 < g.MinActive {
		slog.Info("governor: refusing power-down, would breach minActive floor", "domain", d.Name, "active", active, "minActive", g.MinActive)
		return false
	}
	return true
}
