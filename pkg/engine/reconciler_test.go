package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
)

// countingDomainOps records PowerOn/PowerOff calls per domain, for
// assertions that do not care about the underlying transport.
type countingDomainOps struct {
	mu   sync.Mutex
	on   map[string]int
	off  map[string]int
}

func newCountingDomainOps() *countingDomainOps {
	return &countingDomainOps{on: map[string]int{}, off: map[string]int{}}
}

func (c *countingDomainOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.on[d.Name]++
	return nil
}

func (c *countingDomainOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.off[d.Name]++
	return nil
}

func (c *countingDomainOps) count(name string) (on, off int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.on[name], c.off[name]
}

func buildTestTopology(t *testing.T, domainName, deviceName string, initiallyOff bool) (*Topology, *countingDomainOps) {
	t.Helper()
	reg := genpd.NewRegistry(1)
	ops := newCountingDomainOps()

	opts := []genpd.DomainOption{genpd.WithDomainOps(ops)}
	if initiallyOff {
		opts = append(opts, genpd.WithInitialOff())
	}
	d, err := reg.NewDomain(domainName, opts...)
	require.NoError(t, err)

	dev := genpd.NewDevice(deviceName)
	require.NoError(t, reg.AddDevice(context.Background(), d, dev, genpd.TimingData{}))

	return &Topology{
		Registry: reg,
		Domains:  map[string]*genpd.Domain{domainName: d},
		Devices:  map[string]*genpd.Device{deviceName: dev},
	}, ops
}

func TestReconciler_MaybeScaleUp_RestoresFloor(t *testing.T) {
	topo, ops := buildTestTopology(t, "rack", "nic", true)
	cfg := &config.Config{MinActive: config.MinActiveGovernorConfig{MinActive: 1}}
	r := NewReconciler(cfg, topo)

	require.NoError(t, r.Reconcile(context.Background()))

	on, _ := ops.count("rack")
	require.Equal(t, 1, on)
	require.False(t, topo.Domains["rack"].IsOff())
	require.True(t, r.State.IsGlobalCooldownActive(r.now(), time.Hour))
}

func TestReconciler_GlobalCooldownSkipsTick(t *testing.T) {
	topo, ops := buildTestTopology(t, "rack", "nic", true)
	cfg := &config.Config{MinActive: config.MinActiveGovernorConfig{MinActive: 1}, Cooldown: time.Hour}
	r := NewReconciler(cfg, topo)
	r.State.MarkGlobalAction(time.Now())

	require.NoError(t, r.Reconcile(context.Background()))

	on, _ := ops.count("rack")
	require.Equal(t, 0, on)
}

func TestReconciler_SweepRuntimeSuspend_PowersDomainOff(t *testing.T) {
	topo, ops := buildTestTopology(t, "rack", "nic", false)
	cfg := &config.Config{}
	r := NewReconciler(cfg, topo)

	require.NoError(t, r.Reconcile(context.Background()))

	_, off := ops.count("rack")
	require.Equal(t, 1, off)
	require.True(t, topo.Domains["rack"].IsOff())
}

func TestReconciler_CooldownPreventsRepeatSuspend(t *testing.T) {
	topo, ops := buildTestTopology(t, "rack", "nic", false)
	cfg := &config.Config{Cooldown: time.Hour}
	r := NewReconciler(cfg, topo)

	require.NoError(t, r.Reconcile(context.Background()))
	_, off := ops.count("rack")
	require.Equal(t, 1, off)

	// Domain is off and in global cooldown now; a second tick should be a
	// no-op rather than attempting another suspend.
	require.NoError(t, r.Reconcile(context.Background()))
	_, off2 := ops.count("rack")
	require.Equal(t, 1, off2)
}
