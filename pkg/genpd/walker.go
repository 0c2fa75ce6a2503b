package genpd

import (
	"context"
	"sync/atomic"
)

func sdCounterLoad(d *Domain) int32 { return atomic.LoadInt32(&d.sdCount) }

// sdCounterIncLocked increments d's sd_count. Callers need not hold d.mu:
// powerOnLocked bumps a master's count while holding only the slave's lock,
// and SyncPowerOn holds no lock at all. The kernel pairs the increment with
// a memory barrier (atomic_inc_return) so that a concurrent power-off
// reading sd_count observes it; Go's sync/atomic operations are
// sequentially consistent, which supplies the same ordering here.
func sdCounterIncLocked(d *Domain) { atomic.AddInt32(&d.sdCount, 1) }

func sdCounterDecLocked(d *Domain) { atomic.AddInt32(&d.sdCount, -1) }

// PowerOn brings d, and transitively every domain it depends on, to
// StatusActive. It is the Go counterpart of genpd_poweron: on failure it
// rolls back every master it had already powered up and queues their
// deferred power-off, exactly as list_for_each_entry_continue_reverse does
// in the kernel.
func PowerOn(ctx context.Context, d *Domain) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return powerOnLocked(ctx, d)
}

func powerOnLocked(ctx context.Context, d *Domain) error {
	if d.status == StatusActive {
		return nil
	}
	if d.preparedCount > 0 && d.suspendPowerOff {
		return nil
	}

	processed := make([]*Domain, 0, len(d.slaveLinks))
	rollback := func() {
		for i := len(processed) - 1; i >= 0; i-- {
			m := processed[i]
			sdCounterDecLocked(m)
			m.queue.enqueue(m)
		}
	}

	for _, link := range d.slaveLinks {
		m := link.Master
		sdCounterIncLocked(m)
		if err := PowerOn(ctx, m); err != nil {
			sdCounterDecLocked(m)
			rollback()
			return err
		}
		processed = append(processed, m)
	}

	err := callPowerOn(ctx, d, true)
	d.notifyPowerOn(err)
	if err != nil {
		rollback()
		return err
	}

	d.status = StatusActive
	return nil
}

// PowerOff attempts to power d off, the Go counterpart of genpd_poweroff.
// isAsync distinguishes a caller that cannot block (the deferred-work path)
// from one that can; it changes the busy-device accounting rule (an async
// caller cannot tolerate even one not-yet-suspended device, while a
// synchronous caller tolerates exactly one).
func PowerOff(ctx context.Context, d *Domain, isAsync bool) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return powerOffLocked(ctx, d, isAsync)
}

func powerOffLocked(ctx context.Context, d *Domain, isAsync bool) error {
	governorConsulted := false
recheck:
	if d.status == StatusPowerOff {
		return nil
	}
	if d.preparedCount > 0 {
		return nil
	}
	if sdCounterLoad(d) > 0 {
		return errBusy("PowerOff")
	}

	notSuspended := 0
	for _, b := range d.devList {
		if b.QoSFlags()&(QoSNoPowerOff|QoSRemoteWakeup) != 0 {
			return errBusy("PowerOff")
		}
		if !b.Dev.isRuntimeSuspended() || b.Dev.IRQSafe {
			notSuspended++
		}
	}
	if notSuspended > 1 || (notSuspended == 1 && isAsync) {
		return errBusy("PowerOff")
	}

	// The governor runs with d.mu released, since Governor implementations
	// read domain state through locking accessors (Domain.Devices,
	// Domain.IsOff). Every check above is then repeated under the lock: a
	// subdomain may have powered on, or a device resumed, while the governor
	// was deciding. See DESIGN.md Open Question 1.
	if !governorConsulted {
		gov := d.gov
		d.mu.Unlock()
		ok := governorPowerDownOk(gov, d)
		d.mu.Lock()
		if !ok {
			return errAgain("PowerOff")
		}
		governorConsulted = true
		goto recheck
	}

	err := callPowerOff(ctx, d, true)
	d.notifyPowerOff(err)
	if err != nil {
		return err
	}

	d.status = StatusPowerOff
	for _, link := range d.slaveLinks {
		m := link.Master
		sdCounterDecLocked(m)
		m.queue.enqueue(m)
	}
	return nil
}

// SyncPowerOff is the lock-free noirq-phase variant of PowerOff: it is only
// safe to call while the whole system-sleep noirq phase is globally
// serialized (no concurrent genpd operation can be in flight), exactly like
// the kernel's genpd_sync_poweroff.
func SyncPowerOff(ctx context.Context, d *Domain, timed bool) {
	if d.status == StatusPowerOff {
		return
	}
	if d.suspendedCount != d.deviceCount || sdCounterLoad(d) > 0 {
		return
	}

	err := callPowerOff(ctx, d, timed)
	d.notifyPowerOff(err)
	if err != nil {
		return
	}
	d.status = StatusPowerOff

	for _, link := range d.slaveLinks {
		m := link.Master
		sdCounterDecLocked(m)
		SyncPowerOff(ctx, m, timed)
	}
}

// SyncPowerOn is the lock-free noirq-phase variant of PowerOn, the Go
// counterpart of genpd_sync_poweron.
func SyncPowerOn(ctx context.Context, d *Domain, timed bool) {
	if d.status == StatusActive {
		return
	}

	for _, link := range d.slaveLinks {
		m := link.Master
		SyncPowerOn(ctx, m, timed)
		sdCounterIncLocked(m)
	}

	err := callPowerOn(ctx, d, timed)
	d.notifyPowerOn(err)
	if err == nil {
		d.status = StatusActive
	}
}
