package governor

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barepower/genpd/pkg/genpd"
)

func TestParseEvalMode(t *testing.T) {
	assert.Equal(t, EvalMedian, ParseEvalMode("median"))
	assert.Equal(t, EvalP90, ParseEvalMode("p90"))
	assert.Equal(t, EvalP75, ParseEvalMode("p75"))
	assert.Equal(t, EvalAverage, ParseEvalMode("average"))
	assert.Equal(t, EvalAverage, ParseEvalMode("bogus"))
}

func TestPercentile(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	assert.InDelta(t, 3, percentile(values, 0.5), 0.001)
	assert.InDelta(t, 1, percentile(values, 0), 0.001)
	assert.InDelta(t, 5, percentile(values, 1), 0.001)
}

func TestLoadAverageGovernor_StopOk_DryRunOverride(t *testing.T) {
	below := 0.3
	g := &LoadAverageGovernor{SuspendBelow: 0.5, DryRunOverride: &below}
	dev := genpd.NewDevice("nic-1")
	assert.True(t, g.StopOk(dev))

	above := 0.9
	g2 := &LoadAverageGovernor{SuspendBelow: 0.5, DryRunOverride: &above}
	assert.False(t, g2.StopOk(dev))
}

func TestLoadAverageGovernor_PowerDownOk_NoDevices(t *testing.T) {
	g := &LoadAverageGovernor{ResumeAbove: 0.5}
	reg := genpd.NewRegistry(1)
	d, err := reg.NewDomain("rack")
	require.NoError(t, err)
	assert.True(t, g.PowerDownOk(d))
}

func TestLoadAverageGovernor_PowerDownOk_AggregatesDeviceLoad(t *testing.T) {
	high := 0.8
	g := &LoadAverageGovernor{ResumeAbove: 0.5, DryRunOverride: &high, EvalMode: EvalAverage}

	reg := genpd.NewRegistry(1)
	d, err := reg.NewDomain("rack")
	require.NoError(t, err)
	dev := genpd.NewDevice("nic-1")
	require.NoError(t, reg.AddDevice(context.Background(), d, dev, genpd.TimingData{}))

	assert.False(t, g.PowerDownOk(d))
}

func TestMinActiveGovernor_PowerDownOk_RespectsFloor(t *testing.T) {
	active := 2
	g := &MinActiveGovernor{MinActive: 2, ActiveDomains: func() int { return active }}
	d := &genpd.Domain{Name: "rack"}

	assert.False(t, g.PowerDownOk(d), "powering off would drop below the floor")

	active = 3
	assert.True(t, g.PowerDownOk(d))
}

func TestMinActiveGovernor_StopOk_AlwaysTrue(t *testing.T) {
	g := &MinActiveGovernor{MinActive: 5, ActiveDomains: func() int { return 0 }}
	assert.True(t, g.StopOk(genpd.NewDevice("any")))
}

func TestMinActiveGovernor_NoFloorConfigured(t *testing.T) {
	g := &MinActiveGovernor{}
	assert.True(t, g.PowerDownOk(&genpd.Domain{Name: "rack"}))
}
