package genpd

import "sync"

// QoSFlag is a bitmask of power-management quality-of-service constraints a
// device may hold, mirroring the kernel's PM_QOS_FLAG_NO_POWER_OFF and
// PM_QOS_FLAG_REMOTE_WAKEUP.
type QoSFlag uint8

const (
	// QoSNoPowerOff means the device's domain must never be powered off
	// while the constraint is held.
	QoSNoPowerOff QoSFlag = 1 << iota
	// QoSRemoteWakeup means the device needs to stay able to wake the
	// system up remotely, which likewise blocks its domain's power-off.
	QoSRemoteWakeup
)

// Device is the external handle callers pass into every genpd operation. It
// carries the identity and wakeup-related knobs of a device; it does not
// carry domain-membership state, which lives on DeviceBinding.
type Device struct {
	Name string

	// IRQSafe marks a device whose runtime-PM callbacks may run in a
	// context that cannot take the domain mutex (the kernel's
	// "irq safe dev" concept). Such a device bypasses domain locking in
	// RuntimeSuspend/RuntimeResume entirely.
	IRQSafe bool

	// CanWakeup is fixed at device-registration time: whether the device
	// is capable of acting as a wakeup source at all.
	CanWakeup bool

	// Parent, when set, is walked by NotifyQoSChange to propagate a QoS
	// constraint change up the device hierarchy. IgnoreChildren stops a
	// propagating walk from treating this device's constraint as relevant
	// to its own children (it has no children that matter here, but the
	// flag is kept for symmetry with the kernel's device_links
	// DL_FLAG_PM_RUNTIME-adjacent "ignore children" knob).
	Parent         *Device
	IgnoreChildren bool

	mu               sync.Mutex
	mayWakeup        bool
	wakeupPath       bool
	wakeupPending    bool
	runtimeEnabled   bool
	runtimeSuspended bool
}

// NewDevice constructs a Device with runtime PM enabled by default, matching
// a freshly registered kernel device (pm_runtime_enable is implicit until a
// driver calls pm_runtime_disable).
func NewDevice(name string) *Device {
	return &Device{Name: name, runtimeEnabled: true}
}

func (d *Device) SetMayWakeup(v bool) {
	d.mu.Lock()
	d.mayWakeup = v
	d.mu.Unlock()
}

func (d *Device) MayWakeup() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mayWakeup
}

func (d *Device) SetWakeupPath(v bool) {
	d.mu.Lock()
	d.wakeupPath = v
	d.mu.Unlock()
}

func (d *Device) WakeupPath() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wakeupPath
}

func (d *Device) SetWakeupPending(v bool) {
	d.mu.Lock()
	d.wakeupPending = v
	d.mu.Unlock()
}

func (d *Device) WakeupPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.wakeupPending
}

func (d *Device) setRuntimeEnabled(v bool) {
	d.mu.Lock()
	d.runtimeEnabled = v
	d.mu.Unlock()
}

func (d *Device) isRuntimeEnabled() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runtimeEnabled
}

func (d *Device) setRuntimeSuspended(v bool) {
	d.mu.Lock()
	d.runtimeSuspended = v
	d.mu.Unlock()
}

func (d *Device) isRuntimeSuspended() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.runtimeSuspended
}

// resumeNeeded mirrors the kernel's resume_needed(): a device capable of
// waking the system needs an unconditional resume before suspend if its
// "may wakeup" setting disagrees with whatever its domain ops currently
// report as the active wakeup source.
func resumeNeeded(dev *Device, devOps DeviceOps) bool {
	if !dev.CanWakeup {
		return false
	}
	active := devOps != nil && devOps.ActiveWakeup(dev)
	return dev.MayWakeup() != active
}

// TimingData holds the measured suspend/resume latencies and the
// PM-QoS-derived resume-latency constraint for one device binding, exactly
// as the kernel's struct gpd_timing_data does.
type TimingData struct {
	SuspendLatencyNs      int64
	ResumeLatencyNs       int64
	EffectiveConstraintNs int64
	ConstraintChanged     bool
}

// DeviceBinding is the per-domain attachment record for a Device: it is
// created by Registry.AddDevice and destroyed by Registry.RemoveDevice, and
// a Device belongs to at most one DeviceBinding (one domain) at a time.
type DeviceBinding struct {
	Dev    *Device
	domain *Domain

	mu       sync.Mutex
	td       TimingData
	qosFlags QoSFlag
}

func (b *DeviceBinding) TimingData() TimingData {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.td
}

func (b *DeviceBinding) QoSFlags() QoSFlag {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.qosFlags
}

func (b *DeviceBinding) setQoSFlags(f QoSFlag) {
	b.mu.Lock()
	b.qosFlags = f
	b.mu.Unlock()
}

// recordSuspendLatency only replaces td.SuspendLatencyNs when ns exceeds the
// stored value, mirroring the kernel's gpd_timing_data update rule: a
// faster suspend never shrinks the recorded worst case.
func (b *DeviceBinding) recordSuspendLatency(ns int64) {
	b.mu.Lock()
	if ns > b.td.SuspendLatencyNs {
		b.td.SuspendLatencyNs = ns
	}
	b.mu.Unlock()
}

// recordResumeLatency is the resume-side counterpart of recordSuspendLatency.
func (b *DeviceBinding) recordResumeLatency(ns int64) {
	b.mu.Lock()
	if ns > b.td.ResumeLatencyNs {
		b.td.ResumeLatencyNs = ns
	}
	b.mu.Unlock()
}

func (b *DeviceBinding) setConstraintChanged(v bool) {
	b.mu.Lock()
	b.td.ConstraintChanged = v
	b.mu.Unlock()
}
