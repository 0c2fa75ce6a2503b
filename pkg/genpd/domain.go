package genpd

import "sync"

// Status is a Domain's power state.
type Status int

const (
	StatusActive Status = iota
	StatusPowerOff
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "power_off"
}

// Domain is a node in the power-domain DAG: struct generic_pm_domain's Go
// counterpart. Two domains are connected by a Link when one (the master)
// must stay powered for the other (the slave) to function.
type Domain struct {
	Name string

	mu sync.Mutex

	status          Status
	deviceCount     int
	suspendedCount  int
	preparedCount   int
	suspendPowerOff bool

	// maxOffTimeChanged and maxOffTimeNs track the PM-QoS-derived deepest
	// allowed power-off duration; set by NotifyQoSChange / consulted by a
	// Governor.
	maxOffTimeChanged bool
	maxOffTimeNs      int64

	powerOnLatencyNs  int64
	powerOffLatencyNs int64

	masterLinks []*Link // links where this Domain is the master
	slaveLinks  []*Link // links where this Domain is the slave

	devList []*DeviceBinding

	ops    DomainOps
	devOps DeviceOps
	gov    Governor

	sdCount int32 // atomic; see sdCounterInc/Dec in walker.go

	observer Observer
	queue    *DeferredQueue
	registry *Registry
}

// Status returns the domain's current power state.
func (d *Domain) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status
}

// IsOff reports whether the domain is currently powered off.
func (d *Domain) IsOff() bool { return d.Status() == StatusPowerOff }

// SetGovernor installs (or clears, with nil) the domain's policy.
func (d *Domain) SetGovernor(g Governor) {
	d.mu.Lock()
	d.gov = g
	d.mu.Unlock()
}

// SetObserver installs an optional transition observer.
func (d *Domain) SetObserver(o Observer) {
	d.mu.Lock()
	d.observer = o
	d.mu.Unlock()
}

// Latencies returns the longest power-on/off durations measured so far.
func (d *Domain) Latencies() (onNs, offNs int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.powerOnLatencyNs, d.powerOffLatencyNs
}

// SubdomainCount returns the current sd_count: the number of this domain's
// subdomains that are currently active. Bound devices are not counted.
func (d *Domain) SubdomainCount() int32 {
	return sdCounterLoad(d)
}

// Devices returns a snapshot of the devices currently bound to d, in
// attachment order. Safe for a Governor or orchestration code to call
// without holding d's lock.
func (d *Domain) Devices() []*Device {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*Device, 0, len(d.devList))
	for _, b := range d.devList {
		out = append(out, b.Dev)
	}
	return out
}

// DeviceCount returns the number of devices currently bound to d.
func (d *Domain) DeviceCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.deviceCount
}

func (d *Domain) notifyPowerOn(err error) {
	if d.observer != nil {
		d.observer.OnPowerOn(d, err)
	}
}

func (d *Domain) notifyPowerOff(err error) {
	if d.observer != nil {
		d.observer.OnPowerOff(d, err)
	}
}
