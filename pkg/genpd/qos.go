package genpd

// NotifyQoSChange simulates a PM-QoS constraint notification firing for
// dev: it marks dev's binding as having a changed constraint and walks up
// the ancestor chain (dev.Parent) doing the same, exactly as the kernel's
// genpd_dev_pm_qos_notifier walks up through dev->parent marking
// max_off_time_changed on every domain it crosses. The Registry is needed
// to resolve each ancestor's binding and owning domain.
func (r *Registry) NotifyQoSChange(dev *Device) {
	for cur := dev; cur != nil; cur = cur.Parent {
		r.mu.Lock()
		b, ok := r.bindings[cur]
		r.mu.Unlock()
		if !ok {
			if cur.IgnoreChildren {
				break
			}
			continue
		}
		b.setConstraintChanged(true)
		b.domain.mu.Lock()
		b.domain.maxOffTimeChanged = true
		b.domain.mu.Unlock()
		if cur.IgnoreChildren {
			break
		}
	}
}

// SetDeviceQoSFlags updates the QoS flags held by dev's current binding. A
// device with no binding yet has no flags to set.
func (r *Registry) SetDeviceQoSFlags(dev *Device, flags QoSFlag) error {
	r.mu.Lock()
	b, ok := r.bindings[dev]
	r.mu.Unlock()
	if !ok {
		return errNoEntity("SetDeviceQoSFlags")
	}
	b.setQoSFlags(flags)
	return nil
}
