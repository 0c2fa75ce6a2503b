package powerops

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barepower/genpd/pkg/config"
	"github.com/barepower/genpd/pkg/genpd"
)

func TestNoopDomainOps_AlwaysSucceeds(t *testing.T) {
	ops := NoopDomainOps{}
	d := &genpd.Domain{Name: "rack"}
	assert.NoError(t, ops.PowerOn(context.Background(), d))
	assert.NoError(t, ops.PowerOff(context.Background(), d))
}

func TestPair_DelegatesToEachHalf(t *testing.T) {
	var onCalled, offCalled bool
	on := fakeOps{onFn: func() error { onCalled = true; return nil }}
	off := fakeOps{offFn: func() error { offCalled = true; return nil }}

	paired := Pair(on, off)
	d := &genpd.Domain{Name: "rack"}
	require.NoError(t, paired.PowerOn(context.Background(), d))
	require.NoError(t, paired.PowerOff(context.Background(), d))
	assert.True(t, onCalled)
	assert.True(t, offCalled)
}

func TestPair_NilHalvesAreNoop(t *testing.T) {
	paired := Pair(nil, nil)
	d := &genpd.Domain{Name: "rack"}
	assert.NoError(t, paired.PowerOn(context.Background(), d))
	assert.NoError(t, paired.PowerOff(context.Background(), d))
}

type fakeOps struct {
	onFn  func() error
	offFn func() error
}

func (f fakeOps) PowerOn(ctx context.Context, d *genpd.Domain) error {
	if f.onFn == nil {
		return nil
	}
	return f.onFn()
}

func (f fakeOps) PowerOff(ctx context.Context, d *genpd.Domain) error {
	if f.offFn == nil {
		return nil
	}
	return f.offFn()
}

func TestFactory_Build_DisabledModesReturnNoop(t *testing.T) {
	f := &Factory{}
	ops, err := f.Build(config.DomainConfig{Name: "rack"}, nil)
	require.NoError(t, err)

	d := &genpd.Domain{Name: "rack"}
	assert.NoError(t, ops.PowerOn(context.Background(), d))
	assert.NoError(t, ops.PowerOff(context.Background(), d))
}

func TestFactory_Build_UnknownModeErrors(t *testing.T) {
	f := &Factory{}
	_, err := f.Build(config.DomainConfig{Name: "rack", PowerOnMode: "bogus"}, nil)
	assert.Error(t, err)

	_, err = f.Build(config.DomainConfig{Name: "rack", PowerOffMode: "bogus"}, nil)
	assert.Error(t, err)
}

func TestAnchorDevice_PicksFirstWithNodeName(t *testing.T) {
	devices := []config.DeviceConfig{
		{Name: "dev-a"},
		{Name: "dev-b", NodeName: "node-b", WOLMacAddr: "aa:bb:cc:dd:ee:ff"},
		{Name: "dev-c", NodeName: "node-c"},
	}
	mac, node := anchorDevice(devices)
	assert.Equal(t, "node-b", node)
	assert.Equal(t, "aa:bb:cc:dd:ee:ff", mac)
}

func TestAnchorDevice_NoneConfigured(t *testing.T) {
	mac, node := anchorDevice(nil)
	assert.Empty(t, mac)
	assert.Empty(t, node)
}

func TestHTTPShutdownDomainOps_DryRun(t *testing.T) {
	ops := &HTTPShutdownDomainOps{DryRun: true}
	d := &genpd.Domain{Name: "rack"}
	assert.NoError(t, ops.PowerOff(context.Background(), d))
	assert.NoError(t, ops.PowerOn(context.Background(), d))
}

func TestGenericDeviceOps_SaveState_DispatchPriority(t *testing.T) {
	var called string
	g := &GenericDeviceOps{
		ClassHooks: &SaveRestoreHook{Save: func(ctx context.Context, dev *genpd.Device) error {
			called = "class"
			return nil
		}},
		DriverHooks: &SaveRestoreHook{Save: func(ctx context.Context, dev *genpd.Device) error {
			called = "driver"
			return nil
		}},
	}
	dev := genpd.NewDevice("nic")
	require.NoError(t, g.SaveState(context.Background(), dev))
	assert.Equal(t, "class", called, "class hook takes priority over driver hook")
}

func TestGenericDeviceOps_SaveState_NoHooksIsNoop(t *testing.T) {
	g := &GenericDeviceOps{}
	assert.NoError(t, g.SaveState(context.Background(), genpd.NewDevice("nic")))
	assert.NoError(t, g.RestoreState(context.Background(), genpd.NewDevice("nic")))
}

func TestGenericDeviceOps_StartStop_DelegateToFuncs(t *testing.T) {
	var started, stopped bool
	g := &GenericDeviceOps{
		StartFunc: func(ctx context.Context, dev *genpd.Device) error { started = true; return nil },
		StopFunc:  func(ctx context.Context, dev *genpd.Device) error { stopped = true; return nil },
	}
	dev := genpd.NewDevice("nic")
	require.NoError(t, g.Start(context.Background(), dev))
	require.NoError(t, g.Stop(context.Background(), dev))
	assert.True(t, started)
	assert.True(t, stopped)
}

func TestGenericDeviceOps_ActiveWakeup_DefaultsFalse(t *testing.T) {
	g := &GenericDeviceOps{}
	assert.False(t, g.ActiveWakeup(genpd.NewDevice("nic")))
}

func TestWOLDomainOps_PowerOn_MissingMACFails(t *testing.T) {
	w := &WOLDomainOps{}
	d := &genpd.Domain{Name: "rack"}
	err := w.PowerOn(context.Background(), d)
	assert.Error(t, err)
}

func TestWOLDomainOps_PowerOn_DryRunSkipsNetwork(t *testing.T) {
	w := &WOLDomainOps{DryRun: true, MACAddr: "aa:bb:cc:dd:ee:ff"}
	d := &genpd.Domain{Name: "rack"}
	assert.NoError(t, w.PowerOn(context.Background(), d))
}

func TestWOLDomainOps_PowerOff_IsNoop(t *testing.T) {
	w := &WOLDomainOps{}
	assert.NoError(t, w.PowerOff(context.Background(), &genpd.Domain{Name: "rack"}))
}
