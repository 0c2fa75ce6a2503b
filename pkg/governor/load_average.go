// Package governor provides concrete genpd.Governor implementations wired
// against this repository's companion agent processes, generalizing
// per-node load-average scale-down/up strategies
// (pkg/strategy/load_average*.go) from "should this node scale down" to
// "should this device's domain power down".
package governor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/barepower/genpd/pkg/genpd"
)

// EvalMode picks how per-device loads are aggregated into one number a
// domain-wide decision can be made against, the Go counterpart of
// ClusterLoadEvalMode.
type EvalMode string

const (
	EvalAverage EvalMode = "average"
	EvalMedian  EvalMode = "median"
	EvalP90     EvalMode = "p90"
	EvalP75     EvalMode = "p75"
)

// ParseEvalMode mirrors strategy.ParseClusterEvalMode's "unknown falls back
// to average" behavior.
func ParseEvalMode(mode string) EvalMode {
	switch EvalMode(mode) {
	case EvalMedian, EvalP90, EvalP75:
		return EvalMode(mode)
	default:
		return EvalAverage
	}
}

var evalFuncs = map[EvalMode]func([]float64) float64{
	EvalAverage: average,
	EvalMedian:  func(v []float64) float64 { return percentile(v, 0.5) },
	EvalP90:     func(v []float64) float64 { return percentile(v, 0.9) },
	EvalP75:     func(v []float64) float64 { return percentile(v, 0.75) },
}

func average(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	pos := p * float64(len(sorted)-1)
	lower := int(pos)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[lower]
	}
	weight := pos - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// LoadAverageGovernor vetoes runtime-suspend and domain power-down based on
// a normalized load (15-minute load average divided by CPU count) fetched
// over HTTP from each device's companion metrics agent, grounded on
// pkg/strategy/load_average_utils.go's FetchNormalizedLoad and
// pkg/strategy/load_average_down.go's threshold comparison.
type LoadAverageGovernor struct {
	// AgentAddr resolves a device to the address of its metrics agent
	// ("host:port"); a device with no resolvable address is treated as
	// having no load data and never vetoes a transition.
	AgentAddr func(dev *genpd.Device) (string, bool)

	HTTPTimeout time.Duration

	// SuspendBelow: a device may be runtime-suspended only when its load is
	// strictly below this value.
	SuspendBelow float64
	// ResumeAbove: PowerDownOk refuses a domain while the aggregate (per
	// EvalMode) of its bound devices' loads is at or above this value.
	ResumeAbove float64

	EvalMode EvalMode

	// DryRunOverride, when set, is returned instead of making an HTTP call,
	// mirroring the DryRunNodeLoad/DryRunClusterLoad CLI overrides used in
	// tests and manual runs.
	DryRunOverride *float64
}

func (g *LoadAverageGovernor) normalizedLoad(ctx context.Context, dev *genpd.Device) (float64, bool) {
	if g.DryRunOverride != nil {
		return *g.DryRunOverride, true
	}
	addr, ok := g.AgentAddr(dev)
	if !ok {
		return 0, false
	}
	load, err := fetchNormalizedLoad(ctx, addr, g.httpTimeout())
	if err != nil {
		slog.Warn("governor: failed to fetch device load", "device", dev.Name, "err", err)
		return 0, false
	}
	return load, true
}

func (g *LoadAverageGovernor) httpTimeout() time.Duration {
	if g.HTTPTimeout <= 0 {
		return 3 * time.Second
	}
	return g.HTTPTimeout
}

// StopOk allows runtime-suspend only when the device's own load is below
// SuspendBelow. Unknown load is treated as permissive, matching the
// Governor contract's "advisory only" semantics .
func (g *LoadAverageGovernor) StopOk(dev *genpd.Device) bool {
	load, ok := g.normalizedLoad(context.Background(), dev)
	if !ok {
		return true
	}
	if load >= g.SuspendBelow {
		slog.Debug("governor: device load too high to suspend", "device", dev.Name, "load", load, "threshold", g.SuspendBelow)
		return false
	}
	return true
}

// PowerDownOk aggregates the normalized load of every device currently
// bound to d and refuses power-down if the aggregate is at or above
// ResumeAbove, generalizing a cluster-wide aggregate check from
// "all cluster nodes" to "devices of this domain".
func (g *LoadAverageGovernor) PowerDownOk(d *genpd.Domain) bool {
	devices := d.Devices()
	if len(devices) == 0 {
		return true
	}

	loads := make([]float64, 0, len(devices))
	for _, dev := range devices {
		if load, ok := g.normalizedLoad(context.Background(), dev); ok {
			loads = append(loads, load)
		}
	}
	if len(loads) == 0 {
		return true
	}

	agg := evaluateAggregate(loads, g.EvalMode)
	if agg >= g.ResumeAbove {
		slog.Info("governor: domain load too high to power down", "domain", d.Name, "aggregateLoad", agg, "threshold", g.ResumeAbove)
		return false
	}
	return true
}

func evaluateAggregate(loads []float64, mode EvalMode) float64 {
	if fn := evalFuncs[mode]; fn != nil {
		return fn(loads)
	}
	return average(loads)
}

func fetchNormalizedLoad(ctx context.Context, addr string, timeout time.Duration) (float64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	url := fmt.Sprintf("http://%s/load", addr)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("calling load endpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var data struct {
		Load15   float64 `json:"load15"`
		CPUCount int     `json:"cpuCount"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode failed: %w", err)
	}
	if data.CPUCount == 0 {
		return 0, fmt.Errorf("cpuCount is zero")
	}
	return data.Load15 / float64(data.CPUCount), nil
}
