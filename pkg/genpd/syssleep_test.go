package genpd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSleepWakeupDeviceKeepsDomainActive covers a wakeup-capable
// device whose ops report it as the active wakeup source keeps its domain
// active across the noirq phase, and resume_noirq is a no-op.
func TestSleepWakeupDeviceKeepsDomainActive(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	devOps := &fakeDeviceOps{activeWakeup: true}
	d, err := r.NewDomain("D", WithDeviceOps(devOps), WithGovernor(alwaysOffGovernor{}))
	require.NoError(t, err)

	w := NewDevice("w")
	w.CanWakeup = true
	w.SetWakeupPath(true)
	require.NoError(t, r.AddDevice(ctx, d, w, TimingData{}))

	sc := NewSleepController(r, nil)
	require.NoError(t, sc.Prepare(ctx, w))
	assert.Equal(t, StatusActive, d.Status())

	require.NoError(t, sc.SuspendNoirq(ctx, w))
	assert.Equal(t, StatusActive, d.Status(), "an active wakeup source on the wakeup path must keep its domain active")

	require.NoError(t, sc.ResumeNoirq(ctx, w))
	assert.Equal(t, StatusActive, d.Status())

	require.NoError(t, sc.Complete(ctx, w))
}

// TestSleepPrepareLatchesOff covers a domain already PowerOff at
// the first prepare has every sleep-phase call short-circuit, and complete
// clears the latch so a later runtime_resume behaves normally.
func TestSleepPrepareLatchesOff(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	ops := newFakeDomainOps()
	d, err := r.NewDomain("D", WithDomainOps(ops), WithGovernor(alwaysOffGovernor{}), WithInitialOff())
	require.NoError(t, err)

	dev := NewDevice("dev")
	require.NoError(t, r.AddDevice(ctx, d, dev, TimingData{}))

	sc := NewSleepController(r, nil)
	require.NoError(t, sc.Prepare(ctx, dev))
	assert.Equal(t, StatusPowerOff, d.Status())

	require.NoError(t, sc.Suspend(ctx, dev))
	require.NoError(t, sc.SuspendLate(ctx, dev))
	require.NoError(t, sc.SuspendNoirq(ctx, dev))
	require.NoError(t, sc.ResumeNoirq(ctx, dev))
	require.NoError(t, sc.ResumeEarly(ctx, dev))
	require.NoError(t, sc.Resume(ctx, dev))

	on, _ := ops.calls()
	assert.Empty(t, on, "a domain latched off at prepare must never be powered on mid-cycle")

	require.NoError(t, sc.Complete(ctx, dev))

	require.NoError(t, RuntimeResume(ctx, r, dev))
	assert.Equal(t, StatusActive, d.Status())
}

// TestAddDeviceRefusedDuringSleep covers the case where, after prepare but before
// complete, adding a device to the domain must fail with KindAgain and
// leave the domain's device list unchanged.
func TestAddDeviceRefusedDuringSleep(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	d, err := r.NewDomain("D", WithGovernor(alwaysOffGovernor{}))
	require.NoError(t, err)

	existing := NewDevice("existing")
	require.NoError(t, r.AddDevice(ctx, d, existing, TimingData{}))

	sc := NewSleepController(r, nil)
	require.NoError(t, sc.Prepare(ctx, existing))

	d.mu.Lock()
	countBefore := d.deviceCount
	d.mu.Unlock()

	other := NewDevice("x")
	err = r.AddDevice(ctx, d, other, TimingData{})
	require.Error(t, err)
	assert.True(t, Is(err, KindAgain))

	d.mu.Lock()
	countAfter := d.deviceCount
	d.mu.Unlock()
	assert.Equal(t, countBefore, countAfter)

	require.NoError(t, sc.Complete(ctx, existing))
}

// TestSleepPrepareBusyOnPendingSystemWakeup covers a wakeup-capable device
// raising a system-wide wakeup event at prepare causes a later device's
// prepare, in the same cycle, to be refused with KindBusy, and clearing the
// flag lets prepare succeed again.
func TestSleepPrepareBusyOnPendingSystemWakeup(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	d, err := r.NewDomain("D", WithGovernor(alwaysOffGovernor{}))
	require.NoError(t, err)

	waker := NewDevice("waker")
	waker.CanWakeup = true
	waker.SetMayWakeup(true)
	require.NoError(t, r.AddDevice(ctx, d, waker, TimingData{}))

	other := NewDevice("other")
	require.NoError(t, r.AddDevice(ctx, d, other, TimingData{}))

	sc := NewSleepController(r, nil)
	require.NoError(t, sc.Prepare(ctx, waker))
	assert.True(t, r.SystemWakeupPending())

	err = sc.Prepare(ctx, other)
	require.Error(t, err)
	assert.True(t, Is(err, KindBusy))

	r.ClearSystemWakeupPending()
	require.NoError(t, sc.Prepare(ctx, other))
}
