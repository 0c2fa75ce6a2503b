package genpd

import "context"

// RuntimeSuspend runtime-suspends dev: the Go counterpart of
// pm_genpd_runtime_suspend. If dev's domain has a Governor and runtime PM is
// enabled on dev, StopOk is consulted first; SaveState/Stop run, with RestoreState invoked to roll
// back if Stop fails. An IRQ-safe device skips the domain power-off that
// would otherwise follow (it bypasses domain locking entirely, the same as
// the kernel's irq_safe devices).
func RuntimeSuspend(ctx context.Context, r *Registry, dev *Device) error {
	b, ok := r.lookupBinding(dev)
	if !ok {
		return errInvalidArgument("RuntimeSuspend")
	}
	d := b.domain

	timed := dev.isRuntimeEnabled()
	if timed && !governorStopOk(d.gov, dev) {
		return errBusy("RuntimeSuspend")
	}

	var start int64
	if timed {
		start = clockNow().UnixNano()
	}

	if err := callDeviceSaveState(ctx, d, dev); err != nil {
		return err
	}
	if err := callDeviceStop(ctx, d, dev); err != nil {
		callDeviceRestoreState(ctx, d, dev)
		return err
	}

	if timed {
		b.recordSuspendLatency(clockNow().UnixNano() - start)
	}

	dev.setRuntimeSuspended(true)

	if dev.IRQSafe {
		return nil
	}

	d.mu.Lock()
	_ = powerOffLocked(ctx, d, false)
	d.mu.Unlock()
	return nil
}

// RuntimeResume runtime-resumes dev: the Go counterpart of
// pm_genpd_runtime_resume. Unless dev is IRQ-safe, its domain (and
// transitively its masters) is powered on first.
func RuntimeResume(ctx context.Context, r *Registry, dev *Device) error {
	b, ok := r.lookupBinding(dev)
	if !ok {
		return errInvalidArgument("RuntimeResume")
	}
	d := b.domain

	if !dev.IRQSafe {
		if err := PowerOn(ctx, d); err != nil {
			return err
		}
	}

	timed := !dev.IRQSafe && dev.isRuntimeEnabled()
	var start int64
	if timed {
		start = clockNow().UnixNano()
	}

	if err := callDeviceStart(ctx, d, dev); err != nil {
		return err
	}
	if err := callDeviceRestoreState(ctx, d, dev); err != nil {
		return err
	}

	if timed {
		b.recordResumeLatency(clockNow().UnixNano() - start)
	}

	dev.setRuntimeSuspended(false)
	return nil
}

func callDeviceSaveState(ctx context.Context, d *Domain, dev *Device) error {
	if d.devOps == nil {
		return nil
	}
	return d.devOps.SaveState(ctx, dev)
}

func callDeviceRestoreState(ctx context.Context, d *Domain, dev *Device) error {
	if d.devOps == nil {
		return nil
	}
	return d.devOps.RestoreState(ctx, dev)
}

func callDeviceStop(ctx context.Context, d *Domain, dev *Device) error {
	if d.devOps == nil {
		return nil
	}
	return d.devOps.Stop(ctx, dev)
}

func callDeviceStart(ctx context.Context, d *Domain, dev *Device) error {
	if d.devOps == nil {
		return nil
	}
	return d.devOps.Start(ctx, dev)
}
