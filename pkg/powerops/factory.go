package powerops

import (
	"fmt"
	"time"

	"k8s.io/client-go/kubernetes"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
)

// Factory builds genpd.DomainOps for a domain from its config entry,
// resolving the node name and MAC address of the (at most one, by
// convention) device that anchors the domain's power-on/off path.
// Grounded on pkg/power/factory.go's NewPowerControllerFromConfig.
type Factory struct {
	DryRun     bool
	Client     kubernetes.Interface
	WolAgent   config.WolAgentConfig
	ShutdownMg config.ShutdownManagerConfig
	BootTimeoutSec int
	BroadcastAddr  string
}

// Build returns the DomainOps for domain dc, given the (possibly empty) set
// of devices configured against it.
func (f *Factory) Build(dc config.DomainConfig, devices []config.DeviceConfig) (genpd.DomainOps, error) {
	var on, off genpd.DomainOps

	switch dc.PowerOnMode {
	case "", "disabled":
		on = NoopDomainOps{}
	case "wol":
		mac, node := anchorDevice(devices)
		on = &WOLDomainOps{
			DryRun:        f.DryRun,
			Client:        f.Client,
			NodeName:      node,
			MACAddr:       mac,
			Namespace:     f.WolAgent.Namespace,
			PodLabel:      f.WolAgent.PodLabel,
			Port:          f.WolAgent.Port,
			BootTimeout:   time.Duration(f.BootTimeoutSec) * time.Second,
			BroadcastAddr: f.BroadcastAddr,
			MaxRetries:    3,
		}
	default:
		return nil, fmt.Errorf("powerops: unknown powerOnMode %q for domain %q", dc.PowerOnMode, dc.Name)
	}

	switch dc.PowerOffMode {
	case "", "disabled":
		off = NoopDomainOps{}
	case "http":
		_, node := anchorDevice(devices)
		off = &HTTPShutdownDomainOps{
			DryRun:    f.DryRun,
			Client:    f.Client,
			NodeName:  node,
			Namespace: f.ShutdownMg.Namespace,
			PodLabel:  f.ShutdownMg.PodLabel,
			Port:      f.ShutdownMg.Port,
		}
	default:
		return nil, fmt.Errorf("powerops: unknown powerOffMode %q for domain %q", dc.PowerOffMode, dc.Name)
	}

	return Pair(on, off), nil
}

func anchorDevice(devices []config.DeviceConfig) (mac, node string) {
	for _, d := range devices {
		if d.NodeName != "" {
			return d.WOLMacAddr, d.NodeName
		}
	}
	return "", ""
}
