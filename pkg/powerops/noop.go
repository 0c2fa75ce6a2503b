package powerops

import (
	"context"
	"log/slog"

	"github.com/barepower/genpd/pkg/genpd"
)

// NoopDomainOps is a genpd.DomainOps whose PowerOn/PowerOff only log,
// used for domains whose powerOnMode/powerOffMode config is "disabled".
// Grounded on pkg/power/noop.go.
type NoopDomainOps struct{}

func (NoopDomainOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	slog.Info("power-on skipped — mode=disabled", "domain", d.Name)
	return nil
}

func (NoopDomainOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	slog.Info("power-off skipped — mode=disabled", "domain", d.Name)
	return nil
}

// pairOps composes a power-on half and a power-off half into one
// genpd.DomainOps, so a domain can be configured with, say, WOL for on and
// HTTP-shutdown for off without either implementation needing to know about
// the other.
type pairOps struct {
	on  genpd.DomainOps
	off genpd.DomainOps
}

func (p *pairOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	if p.on == nil {
		return nil
	}
	return p.on.PowerOn(ctx, d)
}

func (p *pairOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	if p.off == nil {
		return nil
	}
	return p.off.PowerOff(ctx, d)
}

// Pair combines a power-on implementation and a power-off implementation
// into a single genpd.DomainOps. Either may be nil, in which case that half
// of the pair always succeeds immediately.
func Pair(on, off genpd.DomainOps) genpd.DomainOps {
	return &pairOps{on: on, off: off}
}
