package genpd

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
	"k8s.io/client-go/util/retry"
)

// Registry is the process-wide catalog of domains, links and device
// bindings: the Go counterpart of the kernel's global gpd_list plus the
// lock that guards it. It also owns the shared DeferredQueue that backs
// deferred power-off work for every domain it creates.
type Registry struct {
	mu       sync.Mutex
	byName   map[string]*Domain
	bindings map[*Device]*DeviceBinding
	queue    *DeferredQueue

	// wakeupPending is the Go counterpart of the kernel's process-wide
	// pm_wakeup_pending(): true once any device that may wake the system has
	// raised a wakeup event during the current sleep cycle, regardless of
	// which device's Prepare call observes it.
	wakeupPending atomic.Bool
}

// DomainOption configures a Domain at creation time (functional options
// passed to NewDomain).
type DomainOption func(*Domain)

func WithDomainOps(ops DomainOps) DomainOption {
	return func(d *Domain) { d.ops = ops }
}

func WithDeviceOps(ops DeviceOps) DomainOption {
	return func(d *Domain) { d.devOps = ops }
}

func WithGovernor(g Governor) DomainOption {
	return func(d *Domain) { d.gov = g }
}

func WithObserver(o Observer) DomainOption {
	return func(d *Domain) { d.observer = o }
}

// WithInitialOff marks the domain as already powered off at creation, the
// Go counterpart of genpd_init's is_off argument.
func WithInitialOff() DomainOption {
	return func(d *Domain) { d.status = StatusPowerOff }
}

// NewRegistry creates an empty Registry with its own deferred power-off
// worker pool of the given size.
func NewRegistry(deferredWorkers int) *Registry {
	r := &Registry{
		byName:   make(map[string]*Domain),
		bindings: make(map[*Device]*DeviceBinding),
	}
	r.queue = newDeferredQueue(r, deferredWorkers)
	return r
}

// Shutdown stops the deferred power-off worker pool. Call once, at process
// exit.
func (r *Registry) Shutdown() {
	r.queue.shutdown()
}

// RaiseSystemWakeupEvent records a system-wide wakeup event, the Go
// counterpart of pm_wakeup_event firing for a device that may wake the
// system.
// Once raised, SystemWakeupPending reports true for every device until the
// sleep orchestrator clears it with ClearSystemWakeupPending.
func (r *Registry) RaiseSystemWakeupEvent() {
	r.wakeupPending.Store(true)
}

// SystemWakeupPending reports whether a system-wide wakeup event is
// currently pending, the Go counterpart of pm_wakeup_pending().
func (r *Registry) SystemWakeupPending() bool {
	return r.wakeupPending.Load()
}

// ClearSystemWakeupPending resets the system-wide wakeup flag, to be called
// by whatever drives the sleep cycle once it has dealt with (or aborted for)
// a pending wakeup.
func (r *Registry) ClearSystemWakeupPending() {
	r.wakeupPending.Store(false)
}

// NewDomain creates, configures and registers a new Domain, the Go
// counterpart of allocating a struct generic_pm_domain and calling
// pm_genpd_init on it.
func (r *Registry) NewDomain(name string, opts ...DomainOption) (*Domain, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[name]; exists {
		return nil, errExists("NewDomain")
	}
	d := &Domain{
		Name:     name,
		status:   StatusActive,
		queue:    r.queue,
		registry: r,
	}
	for _, opt := range opts {
		opt(d)
	}
	r.byName[name] = d
	return d, nil
}

// Domain looks a domain up by name.
func (r *Registry) Domain(name string) (*Domain, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.byName[name]
	return d, ok
}

// Domains returns a snapshot of every registered domain.
func (r *Registry) Domains() []*Domain {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Domain, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	return out
}

// Lookup resolves the domain a device is currently bound to.
func (r *Registry) Lookup(dev *Device) (*Domain, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[dev]
	if !ok {
		return nil, false
	}
	return b.domain, true
}

func (r *Registry) lookupBinding(dev *Device) (*DeviceBinding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.bindings[dev]
	return b, ok
}

// AddSubdomain links master/slave, the Go counterpart of
// pm_genpd_add_subdomain: rejects the trivial master==slave cycle and a
// duplicate link, then (master-locked-first, slave nested, matching the
// kernel's SINGLE_DEPTH_NESTING annotation) records the edge and bumps
// master's sd_count if slave is currently active.
func (r *Registry) AddSubdomain(master, slave *Domain) error {
	if master == nil || slave == nil {
		return errInvalidArgument("AddSubdomain")
	}
	if master == slave {
		return errInvalidArgument("AddSubdomain")
	}

	master.mu.Lock()
	defer master.mu.Unlock()
	slave.mu.Lock()
	defer slave.mu.Unlock()

	for _, l := range master.masterLinks {
		if l.Slave == slave {
			return errExists("AddSubdomain")
		}
	}

	if master.status == StatusPowerOff && slave.status == StatusActive {
		return errInvalidArgument("AddSubdomain")
	}

	link := &Link{Master: master, Slave: slave}
	master.masterLinks = append(master.masterLinks, link)
	slave.slaveLinks = append(slave.slaveLinks, link)

	if slave.status == StatusActive {
		sdCounterIncLocked(master)
	}
	return nil
}

// RemoveSubdomain undoes AddSubdomain, decrementing master's sd_count if
// slave was active, mirroring pm_genpd_remove_subdomain. Refuses with
// KindBusy if slave still has attached devices or subdomains of its own.
func (r *Registry) RemoveSubdomain(master, slave *Domain) error {
	if master == nil || slave == nil {
		return errInvalidArgument("RemoveSubdomain")
	}

	master.mu.Lock()
	defer master.mu.Unlock()
	slave.mu.Lock()
	defer slave.mu.Unlock()

	if slave.deviceCount > 0 || len(slave.masterLinks) > 0 {
		return errBusy("RemoveSubdomain")
	}

	idx := -1
	for i, l := range master.masterLinks {
		if l.Slave == slave {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errNoEntity("RemoveSubdomain")
	}
	master.masterLinks = append(master.masterLinks[:idx], master.masterLinks[idx+1:]...)

	for i, l := range slave.slaveLinks {
		if l.Master == master {
			slave.slaveLinks = append(slave.slaveLinks[:i], slave.slaveLinks[i+1:]...)
			break
		}
	}

	if slave.status == StatusActive {
		sdCounterDecLocked(master)
	}
	return nil
}

// AddDevice binds dev to d, the Go counterpart of
// genpd_alloc_dev_data+__pm_genpd_add_device: installs a DeviceBinding and,
// if d has an AttachDevice hook, invokes it. A persistent KindAgain from
// AttachDevice (e.g. a topology edit racing an in-flight system-sleep
// transition) is translated into KindDefer so driver-core-style probing can
// retry.
func (r *Registry) AddDevice(ctx context.Context, d *Domain, dev *Device, td TimingData) error {
	if d == nil || dev == nil {
		return errInvalidArgument("AddDevice")
	}

	d.mu.Lock()
	prepared := d.preparedCount > 0
	d.mu.Unlock()
	if prepared {
		return errAgain("AddDevice")
	}

	r.mu.Lock()
	if _, bound := r.bindings[dev]; bound {
		r.mu.Unlock()
		return errExists("AddDevice")
	}
	b := &DeviceBinding{Dev: dev, domain: d}
	b.td = td
	r.bindings[dev] = b
	r.mu.Unlock()

	attach := func() error {
		if d.devOps == nil {
			return nil
		}
		return d.devOps.AttachDevice(ctx, d, dev)
	}

	err := retryAgain(ctx, attach)
	if err != nil {
		r.mu.Lock()
		delete(r.bindings, dev)
		r.mu.Unlock()
		if Is(err, KindAgain) {
			return errDefer("AddDevice", err)
		}
		return err
	}

	d.mu.Lock()
	d.devList = append(d.devList, b)
	d.deviceCount++
	d.maxOffTimeChanged = true
	d.mu.Unlock()
	return nil
}

// RemoveDevice unbinds dev from its domain, invoking DetachDevice if
// present.
func (r *Registry) RemoveDevice(ctx context.Context, dev *Device) error {
	r.mu.Lock()
	b, ok := r.bindings[dev]
	if !ok {
		r.mu.Unlock()
		return errNoEntity("RemoveDevice")
	}
	d := b.domain
	d.mu.Lock()
	if d.preparedCount > 0 {
		d.mu.Unlock()
		r.mu.Unlock()
		return errAgain("RemoveDevice")
	}
	delete(r.bindings, dev)
	r.mu.Unlock()

	for i, cand := range d.devList {
		if cand == b {
			d.devList = append(d.devList[:i], d.devList[i+1:]...)
			break
		}
	}
	d.deviceCount--
	d.mu.Unlock()

	if d.devOps != nil {
		d.devOps.DetachDevice(ctx, d, dev)
	}
	return nil
}

// retryAgain retries fn with capped exponential backoff (1ms doubling to
// ~250ms) while it returns KindAgain, a capped exponential
// retry contract for topology edits racing an in-flight system-sleep
// transition. It is built on k8s.io/client-go/util/retry's OnError.
func retryAgain(ctx context.Context, fn func() error) error {
	backoff := wait.Backoff{
		Steps:    9,
		Duration: time.Millisecond,
		Factor:   2,
		Cap:      250 * time.Millisecond,
	}

	return retry.OnError(backoff, func(err error) bool {
		return Is(err, KindAgain)
	}, func() error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		return fn()
	})
}

// PoweroffUnused queues a deferred power-off for every registered domain,
// the Go counterpart of genpd_poweroff_unused's late_initcall sweep over
// gpd_list. Call it once, after the full domain topology is loaded.
func (r *Registry) PoweroffUnused(ignoreUnused bool) {
	if ignoreUnused {
		return
	}
	for _, d := range r.Domains() {
		r.queue.enqueue(d)
	}
}
