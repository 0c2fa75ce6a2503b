package genpd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifyQoSChangeWalksAncestors(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	dChild, _ := r.NewDomain("child")
	dParent, _ := r.NewDomain("parent")

	parent := NewDevice("parent-dev")
	child := NewDevice("child-dev")
	child.Parent = parent

	require.NoError(t, r.AddDevice(ctx, dParent, parent, TimingData{}))
	require.NoError(t, r.AddDevice(ctx, dChild, child, TimingData{}))

	r.NotifyQoSChange(child)

	childBinding, ok := r.lookupBinding(child)
	require.True(t, ok)
	assert.True(t, childBinding.TimingData().ConstraintChanged)

	parentBinding, ok := r.lookupBinding(parent)
	require.True(t, ok)
	assert.True(t, parentBinding.TimingData().ConstraintChanged)
}

func TestPowerOffBlockedByQoSFlag(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(1)
	defer r.Shutdown()

	ops := newFakeDomainOps()
	d, _ := r.NewDomain("D", WithDomainOps(ops), WithGovernor(alwaysOffGovernor{}))
	dev := NewDevice("dev")
	require.NoError(t, r.AddDevice(ctx, d, dev, TimingData{}))
	require.NoError(t, r.SetDeviceQoSFlags(dev, QoSNoPowerOff))
	dev.setRuntimeSuspended(true)

	err := PowerOff(ctx, d, false)
	require.Error(t, err)
	assert.True(t, Is(err, KindBusy))
}
