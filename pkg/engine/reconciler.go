package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
	"github.com/barepower/genpd/pkg/metrics"
)

// Reconciler drives one Registry through repeated ticks: it sweeps every
// device for a runtime-suspend opportunity (letting the governor and the
// walker's own accounting decide whether that cascades into a domain
// power-off), and separately powers a domain back on when too few domains
// are left active to satisfy the configured floor. Grounded on
// pkg/controller/reconciler.go's Reconcile (global-cooldown gate, scale-up
// before scale-down, structured logs, metrics-on-every-attempt).
type Reconciler struct {
	Cfg      *config.Config
	Topology *Topology
	State    *DeviceStateTracker

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewReconciler returns a Reconciler over an already-built Topology.
func NewReconciler(cfg *config.Config, topo *Topology) *Reconciler {
	return &Reconciler{
		Cfg:      cfg,
		Topology: topo,
		State:    NewDeviceStateTracker(),
		Now:      time.Now,
	}
}

func (r *Reconciler) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}

// Reconcile runs one tick of the loop: a global-cooldown check, then an
// attempt to restore the configured minimum of active domains, then (only
// if no scale-up happened) a runtime-suspend sweep over every device.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	metrics.ReconcileTicks.Inc()
	now := r.now()

	if r.State.IsGlobalCooldownActive(now, r.Cfg.Cooldown) {
		slog.Info("genpd: global cooldown active, skipping reconcile")
		return nil
	}

	if r.maybeScaleUp(ctx, now) {
		return nil
	}

	r.sweepRuntimeSuspend(ctx, now)
	return nil
}

// maybeScaleUp powers on the first eligible powered-off domain when the
// count of active domains has fallen below the configured MinActive floor.
// Generalizes pkg/controller/reconciler.go's MaybeScaleUp from "pick a node
// and call PowerOner" to "pick a domain and call genpd.PowerOn".
func (r *Reconciler) maybeScaleUp(ctx context.Context, now time.Time) bool {
	floor := r.Cfg.MinActive.MinActive
	if floor <= 0 {
		return false
	}

	active := 0
	var off []*genpd.Domain
	for _, d := range r.Topology.Registry.Domains() {
		if d.IsOff() {
			off = append(off, d)
		} else {
			active++
		}
	}
	if active >= floor || len(off) == 0 {
		return false
	}

	for _, d := range off {
		if r.State.IsInCooldown(d.Name, now, r.Cfg.Cooldown) {
			continue
		}

		slog.Info("genpd: powering on domain to restore minActive floor",
			"domain", d.Name, "active", active, "minActive", floor)

		err := genpd.PowerOn(ctx, d)
		outcome := outcomeOf(err)
		metrics.PowerOnTotal.WithLabelValues(d.Name, outcome).Inc()
		if onNs, _ := d.Latencies(); onNs > 0 {
			metrics.PowerOnLatencySeconds.WithLabelValues(d.Name).Observe(float64(onNs) / 1e9)
		}

		if err != nil {
			slog.Warn("genpd: power-on failed", "domain", d.Name, "err", err)
			continue
		}

		metrics.DomainStatus.WithLabelValues(d.Name).Set(1)
		r.State.MarkResumed(d.Name, now)
		r.State.MarkGlobalAction(now)
		return true
	}
	return false
}

// sweepRuntimeSuspend attempts RuntimeSuspend on every device not presently
// in cooldown. The governor attached to each device's domain vetoes
// anything that should not actually suspend yet; this loop just offers the
// opportunity on every tick, the same role pkg/controller/reconciler.go's
// MaybeScaleDown candidate scan plays for nodes.
func (r *Reconciler) sweepRuntimeSuspend(ctx context.Context, now time.Time) {
	for name, dev := range r.Topology.Devices {
		if r.State.IsBootCooldownActive(name, now, r.Cfg.BootCooldown) {
			continue
		}
		if r.State.IsInCooldown(name, now, r.Cfg.Cooldown) {
			continue
		}

		domain, ok := r.Topology.Registry.Lookup(dev)
		if !ok || domain.IsOff() {
			continue
		}

		err := genpd.RuntimeSuspend(ctx, r.Topology.Registry, dev)
		outcome := outcomeOf(err)
		metrics.RuntimeSuspendTotal.WithLabelValues(name, outcome).Inc()

		switch {
		case err == nil:
			r.State.MarkSuspended(name, now)
			if domain.IsOff() {
				metrics.DomainStatus.WithLabelValues(domain.Name).Set(0)
				if _, offNs := domain.Latencies(); offNs > 0 {
					metrics.PowerOffLatencySeconds.WithLabelValues(domain.Name).Observe(float64(offNs) / 1e9)
				}
				r.State.MarkGlobalAction(now)
			}
		case genpd.Is(err, genpd.KindBusy):
			slog.Debug("genpd: device busy, not suspending", "device", name)
		default:
			slog.Warn("genpd: runtime suspend failed", "device", name, "err", err)
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case genpd.Is(err, genpd.KindBusy):
		return metrics.OutcomeBusy
	case genpd.Is(err, genpd.KindAgain):
		return metrics.OutcomeAgain
	default:
		return metrics.OutcomeError
	}
}
