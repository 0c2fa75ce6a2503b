package engine

import (
	"context"
	"fmt"
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
	"github.com/barepower/genpd/pkg/governor"
	"github.com/barepower/genpd/pkg/powerops"
)

// Deps bundles the external collaborators topology building needs beyond
// the config file itself.
type Deps struct {
	Client   kubernetes.Interface
	Observer genpd.Observer // optional; typically a *k8sevents.Recorder
}

// Topology is the fully-wired result of loading a Config: the Registry plus
// name-keyed lookup tables of its domains and devices (the Registry itself
// does not index devices by name).
type Topology struct {
	Registry *genpd.Registry
	Domains  map[string]*genpd.Domain
	Devices  map[string]*genpd.Device
}

// BuildRegistry constructs a Registry from cfg: one Domain per
// config.DomainConfig (wired with a Factory-built DomainOps and a
// MultiGovernor assembled from whichever of LoadAverageGovernor/
// MinActiveGovernor are enabled), subdomain links for every Master
// reference, and one Device per config.DeviceConfig bound to its domain.
// Grounded on pkg/controller/reconciler.go's NewReconciler, which performs
// the equivalent one-time wiring step (building strategies and controllers
// from cfg) before the reconcile loop starts.
func BuildRegistry(ctx context.Context, cfg *config.Config, deps Deps) (*Topology, error) {
	reg := genpd.NewRegistry(cfg.DeferredWorkers)

	devicesByDomain := make(map[string][]config.DeviceConfig, len(cfg.Domains))
	deviceCfgByName := make(map[string]config.DeviceConfig, len(cfg.Devices))
	for _, dvc := range cfg.Devices {
		devicesByDomain[dvc.Domain] = append(devicesByDomain[dvc.Domain], dvc)
		deviceCfgByName[dvc.Name] = dvc
	}

	factory := &powerops.Factory{
		DryRun:         cfg.DryRun,
		Client:         deps.Client,
		WolAgent:       cfg.WolAgent,
		ShutdownMg:     cfg.ShutdownManager,
		BootTimeoutSec: cfg.WOLBootTimeoutSec,
		BroadcastAddr:  cfg.WOLBroadcastAddr,
	}

	var minActiveGov *governor.MinActiveGovernor
	if cfg.MinActive.MinActive > 0 {
		minActiveGov = &governor.MinActiveGovernor{
			MinActive: cfg.MinActive.MinActive,
			ActiveDomains: func() int {
				n := 0
				for _, d := range reg.Domains() {
					if !d.IsOff() {
						n++
					}
				}
				return n
			},
		}
	}

	var loadGov *governor.LoadAverageGovernor
	if cfg.LoadAverage.Enabled {
		loadGov = &governor.LoadAverageGovernor{
			AgentAddr: func(dev *genpd.Device) (string, bool) {
				dc, ok := deviceCfgByName[dev.Name]
				if !ok || dc.LoadAgentIP == "" {
					return "", false
				}
				return fmt.Sprintf("%s:%d", dc.LoadAgentIP, cfg.LoadAverage.Port), true
			},
			SuspendBelow: cfg.LoadAverage.SuspendBelow,
			ResumeAbove:  cfg.LoadAverage.ResumeAbove,
			EvalMode:     governor.ParseEvalMode(cfg.LoadAverage.ClusterEval),
		}
		if cfg.LoadAverage.TimeoutSeconds > 0 {
			loadGov.HTTPTimeout = time.Duration(cfg.LoadAverage.TimeoutSeconds) * time.Second
		}
	}

	domains := make(map[string]*genpd.Domain, len(cfg.Domains))
	for _, dc := range cfg.Domains {
		ops, err := factory.Build(dc, devicesByDomain[dc.Name])
		if err != nil {
			return nil, fmt.Errorf("building ops for domain %q: %w", dc.Name, err)
		}

		var govs []genpd.Governor
		if minActiveGov != nil {
			govs = append(govs, minActiveGov)
		}
		if loadGov != nil {
			govs = append(govs, loadGov)
		}

		opts := []genpd.DomainOption{genpd.WithDomainOps(ops)}
		if len(govs) > 0 {
			opts = append(opts, genpd.WithGovernor(genpd.NewMultiGovernor(govs...)))
		}
		if deps.Observer != nil {
			opts = append(opts, genpd.WithObserver(deps.Observer))
		}
		if dc.InitiallyOff {
			opts = append(opts, genpd.WithInitialOff())
		}

		d, err := reg.NewDomain(dc.Name, opts...)
		if err != nil {
			return nil, fmt.Errorf("registering domain %q: %w", dc.Name, err)
		}
		domains[dc.Name] = d
	}

	for _, dc := range cfg.Domains {
		if dc.Master == "" {
			continue
		}
		master, ok := domains[dc.Master]
		if !ok {
			return nil, fmt.Errorf("domain %q references unknown master %q", dc.Name, dc.Master)
		}
		if err := reg.AddSubdomain(master, domains[dc.Name]); err != nil {
			return nil, fmt.Errorf("linking %q under master %q: %w", dc.Name, dc.Master, err)
		}
	}

	devices := make(map[string]*genpd.Device, len(cfg.Devices))
	for _, dvc := range cfg.Devices {
		d, ok := domains[dvc.Domain]
		if !ok {
			return nil, fmt.Errorf("device %q references unknown domain %q", dvc.Name, dvc.Domain)
		}
		dev := genpd.NewDevice(dvc.Name)
		dev.IRQSafe = dvc.IRQSafe
		dev.CanWakeup = dvc.CanWakeup

		if err := reg.AddDevice(ctx, d, dev, genpd.TimingData{}); err != nil {
			return nil, fmt.Errorf("attaching device %q to domain %q: %w", dvc.Name, dvc.Domain, err)
		}
		devices[dvc.Name] = dev
	}

	return &Topology{Registry: reg, Domains: domains, Devices: devices}, nil
}
