package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
)

func TestBuildRegistry_WiresDomainsDevicesAndLinks(t *testing.T) {
	cfg := &config.Config{
		DeferredWorkers: 1,
		Domains: []config.DomainConfig{
			{Name: "rack", PowerOnMode: "disabled", PowerOffMode: "disabled"},
			{Name: "node-1", Master: "rack", PowerOnMode: "disabled", PowerOffMode: "disabled"},
		},
		Devices: []config.DeviceConfig{
			{Name: "nic-1", Domain: "node-1"},
		},
	}

	topo, err := BuildRegistry(context.Background(), cfg, Deps{})
	require.NoError(t, err)
	require.Len(t, topo.Domains, 2)
	require.Len(t, topo.Devices, 1)

	rack, ok := topo.Registry.Domain("rack")
	require.True(t, ok)
	require.Equal(t, int32(1), rack.SubdomainCount())

	dev := topo.Devices["nic-1"]
	bound, ok := topo.Registry.Lookup(dev)
	require.True(t, ok)
	require.Equal(t, "node-1", bound.Name)
}

func TestBuildRegistry_UnknownMasterFails(t *testing.T) {
	cfg := &config.Config{
		DeferredWorkers: 1,
		Domains: []config.DomainConfig{
			{Name: "node-1", Master: "does-not-exist"},
		},
	}

	_, err := BuildRegistry(context.Background(), cfg, Deps{})
	require.Error(t, err)
}

func TestBuildRegistry_UnknownDeviceDomainFails(t *testing.T) {
	cfg := &config.Config{
		DeferredWorkers: 1,
		Domains: []config.DomainConfig{
			{Name: "rack"},
		},
		Devices: []config.DeviceConfig{
			{Name: "nic-1", Domain: "missing"},
		},
	}

	_, err := BuildRegistry(context.Background(), cfg, Deps{})
	require.Error(t, err)
}

func TestBuildRegistry_MinActiveGovernorAppliedToAllDomains(t *testing.T) {
	cfg := &config.Config{
		DeferredWorkers: 1,
		Domains: []config.DomainConfig{
			{Name: "a"},
			{Name: "b"},
		},
		MinActive: config.MinActiveGovernorConfig{MinActive: 2},
	}

	topo, err := BuildRegistry(context.Background(), cfg, Deps{})
	require.NoError(t, err)

	a := topo.Domains["a"]
	require.False(t, a.IsOff())

	// With two active domains and a floor of two, the minActive governor
	// must veto powering off either one.
	for _, name := range []string{"a", "b"} {
		d := topo.Domains[name]
		err := genpd.PowerOff(context.Background(), d, false)
		require.True(t, genpd.Is(err, genpd.KindAgain), "domain %q: expected governor veto, got %v", name, err)
		require.False(t, d.IsOff())
	}
}
