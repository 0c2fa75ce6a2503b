package genpd

import "context"

// DownstreamOps is the generic system-sleep callback table invoked on a
// device once genpd's own bookkeeping for a phase is done, the Go
// counterpart of the kernel's pm_generic_prepare/suspend/resume/... family
// that a bus/class/driver layer below genpd supplies. NopDownstreamOps
// supplies a harmless default for every phase.
type DownstreamOps interface {
	Prepare(ctx context.Context, dev *Device) error
	Suspend(ctx context.Context, dev *Device) error
	SuspendLate(ctx context.Context, dev *Device) error
	Resume(ctx context.Context, dev *Device) error
	ResumeEarly(ctx context.Context, dev *Device) error
	Complete(ctx context.Context, dev *Device)
	Freeze(ctx context.Context, dev *Device) error
	FreezeLate(ctx context.Context, dev *Device) error
	Thaw(ctx context.Context, dev *Device) error
	ThawEarly(ctx context.Context, dev *Device) error
}

// NopDownstreamOps implements DownstreamOps with no-op successes.
type NopDownstreamOps struct{}

func (NopDownstreamOps) Prepare(ctx context.Context, dev *Device) error     { return nil }
func (NopDownstreamOps) Suspend(ctx context.Context, dev *Device) error     { return nil }
func (NopDownstreamOps) SuspendLate(ctx context.Context, dev *Device) error { return nil }
func (NopDownstreamOps) Resume(ctx context.Context, dev *Device) error      { return nil }
func (NopDownstreamOps) ResumeEarly(ctx context.Context, dev *Device) error { return nil }
func (NopDownstreamOps) Complete(ctx context.Context, dev *Device)          {}
func (NopDownstreamOps) Freeze(ctx context.Context, dev *Device) error      { return nil }
func (NopDownstreamOps) FreezeLate(ctx context.Context, dev *Device) error  { return nil }
func (NopDownstreamOps) Thaw(ctx context.Context, dev *Device) error        { return nil }
func (NopDownstreamOps) ThawEarly(ctx context.Context, dev *Device) error   { return nil }

// SleepController drives the system-sleep pipeline over a Registry's
// devices, dispatching each phase's leftover work to DownstreamOps once
// genpd's own per-domain bookkeeping for that phase has run. One
// SleepController is typically shared by an entire suspend/resume cycle.
type SleepController struct {
	Registry   *Registry
	Downstream DownstreamOps
}

func NewSleepController(r *Registry, downstream DownstreamOps) *SleepController {
	if downstream == nil {
		downstream = NopDownstreamOps{}
	}
	return &SleepController{Registry: r, Downstream: downstream}
}

func (sc *SleepController) lookup(dev *Device) (*Domain, error) {
	d, ok := sc.Registry.Lookup(dev)
	if !ok {
		return nil, errInvalidArgument("sleep")
	}
	return d, nil
}

// Prepare runs pm_genpd_prepare: wakes dev if it has a wakeup of its own
// pending, bails out busy if some other device already raised a system-wide
// wakeup event earlier in this cycle, and otherwise surfaces a system-wide
// wakeup event of its own if dev may wake the system (for later devices'
// Prepare calls to observe). It then latches d.suspendPowerOff on the first
// prepare of a cycle, forces dev to be resumed and runtime-pm-disabled
// before downstream.Prepare runs, and rolls the prepared count back if
// downstream preparation fails.
func (sc *SleepController) Prepare(ctx context.Context, dev *Device) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}

	if dev.WakeupPending() {
		_ = RuntimeResume(ctx, sc.Registry, dev)
		dev.SetWakeupPending(false)
	}

	if sc.Registry.SystemWakeupPending() {
		return errBusy("Prepare")
	}

	if dev.MayWakeup() {
		sc.Registry.RaiseSystemWakeupEvent()
	}

	if resumeNeeded(dev, d.devOps) {
		_ = RuntimeResume(ctx, sc.Registry, dev)
	}

	d.mu.Lock()
	if d.preparedCount == 0 {
		d.suspendedCount = 0
		d.suspendPowerOff = d.status == StatusPowerOff
	}
	d.preparedCount++
	latched := d.suspendPowerOff
	d.mu.Unlock()

	if latched {
		return nil
	}

	if err := RuntimeResume(ctx, sc.Registry, dev); err != nil {
		d.mu.Lock()
		d.preparedCount--
		if d.preparedCount == 0 {
			d.suspendPowerOff = false
		}
		d.mu.Unlock()
		return err
	}
	dev.setRuntimeEnabled(false)

	if err := sc.Downstream.Prepare(ctx, dev); err != nil {
		d.mu.Lock()
		d.preparedCount--
		if d.preparedCount == 0 {
			d.suspendPowerOff = false
		}
		d.mu.Unlock()
		dev.setRuntimeEnabled(true)
		return err
	}
	return nil
}

func (sc *SleepController) runIfNotLatched(ctx context.Context, dev *Device, fn func(context.Context, *Device) error) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}
	d.mu.Lock()
	latched := d.suspendPowerOff
	d.mu.Unlock()
	if latched {
		return nil
	}
	return fn(ctx, dev)
}

func (sc *SleepController) Suspend(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.Suspend)
}

func (sc *SleepController) SuspendLate(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.SuspendLate)
}

func (sc *SleepController) Resume(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.Resume)
}

func (sc *SleepController) ResumeEarly(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.ResumeEarly)
}

func (sc *SleepController) Freeze(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.Freeze)
}

func (sc *SleepController) FreezeLate(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.FreezeLate)
}

func (sc *SleepController) Thaw(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.Thaw)
}

func (sc *SleepController) ThawEarly(ctx context.Context, dev *Device) error {
	return sc.runIfNotLatched(ctx, dev, sc.Downstream.ThawEarly)
}

// wakeupPathActive reports the kernel's "wakeup path, device already active
// wakeup source" short-circuit used by the noirq phases.
func wakeupPathActive(d *Domain, dev *Device) bool {
	return dev.WakeupPath() && d.devOps != nil && d.devOps.ActiveWakeup(dev)
}

// SuspendNoirq is pm_genpd_suspend_noirq: the noirq phase is globally
// serialized by the caller (no two devices' noirq callbacks run
// concurrently), so it touches suspendedCount and calls SyncPowerOff
// without taking d.mu.
func (sc *SleepController) SuspendNoirq(ctx context.Context, dev *Device) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}
	if d.suspendPowerOff || wakeupPathActive(d, dev) {
		return nil
	}
	if err := callDeviceStop(ctx, d, dev); err != nil {
		return err
	}
	d.suspendedCount++
	SyncPowerOff(ctx, d, true)
	return nil
}

// ResumeNoirq is pm_genpd_resume_noirq.
func (sc *SleepController) ResumeNoirq(ctx context.Context, dev *Device) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}
	if d.suspendPowerOff || wakeupPathActive(d, dev) {
		return nil
	}
	SyncPowerOn(ctx, d, true)
	d.suspendedCount--
	return callDeviceStart(ctx, d, dev)
}

// RestoreNoirq is pm_genpd_restore_noirq: the first device restored in a
// cycle forces the domain's status to StatusPowerOff, overriding whatever
// state firmware left the hardware in, since genpd cannot trust a status it
// did not itself observe across a restore.
func (sc *SleepController) RestoreNoirq(ctx context.Context, dev *Device) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}

	first := d.suspendedCount == 0
	d.suspendedCount++

	if first {
		d.mu.Lock()
		d.status = StatusPowerOff
		d.mu.Unlock()
		if d.suspendPowerOff {
			callPowerOffForRestore(ctx, d)
			return nil
		}
	}

	if d.suspendPowerOff {
		return nil
	}

	SyncPowerOn(ctx, d, true)
	return callDeviceStart(ctx, d, dev)
}

func callPowerOffForRestore(ctx context.Context, d *Domain) {
	d.mu.Lock()
	defer d.mu.Unlock()
	err := callPowerOff(ctx, d, true)
	d.notifyPowerOff(err)
}

// Complete is pm_genpd_complete: decrements the prepared count (clearing the
// suspendPowerOff latch once it reaches zero) and, unless the domain was
// latched off for this cycle, hands the device back to normal runtime
// operation, whether or not other devices of the domain are still prepared.
func (sc *SleepController) Complete(ctx context.Context, dev *Device) error {
	d, err := sc.lookup(dev)
	if err != nil {
		return err
	}

	d.mu.Lock()
	runComplete := !d.suspendPowerOff
	d.preparedCount--
	if d.preparedCount == 0 {
		d.suspendPowerOff = false
	}
	d.mu.Unlock()

	if !runComplete {
		return nil
	}

	sc.Downstream.Complete(ctx, dev)
	dev.setRuntimeSuspended(false)
	dev.setRuntimeEnabled(true)
	// A real kernel calls pm_request_idle here to schedule an
	// asynchronous runtime-suspend check; this engine leaves that to
	// whatever reconcile loop owns the device (pkg/engine), since there
	// is no implicit idle-notification channel in userspace.
	return nil
}
