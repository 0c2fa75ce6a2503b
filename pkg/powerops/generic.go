package powerops

import (
	"context"

	"github.com/barepower/genpd/pkg/genpd"
)

// SaveRestoreHook is one layer of the save/restore dispatch chain
// (type/class/bus/driver, in priority order) described in
// original_source/drivers/base/power/domain.c's
// pm_genpd_default_save_state/restore_state (lines ~1090-1150).
type SaveRestoreHook struct {
	Save    func(ctx context.Context, dev *genpd.Device) error
	Restore func(ctx context.Context, dev *genpd.Device) error
}

// GenericDeviceOps is a genpd.DeviceOps that a caller installs on a Domain
// with genpd.WithDeviceOps; nothing installs it automatically, and a Domain
// with no DeviceOps treats every device callback as a no-op. SaveState and
// RestoreState walk Type, Class, Bus, and Driver hooks in that order and
// call the first one present — exactly the kernel's dispatch priority —
// falling through to a no-op when none are registered. Start/Stop call
// whatever StartFunc/StopFunc are configured; a nil func is a no-op,
// mirroring GENPD_DEV_CALLBACK's null-pointer check.
type GenericDeviceOps struct {
	genpd.NopDeviceOps

	TypeHooks, ClassHooks, BusHooks, DriverHooks *SaveRestoreHook

	StartFunc        func(ctx context.Context, dev *genpd.Device) error
	StopFunc         func(ctx context.Context, dev *genpd.Device) error
	ActiveWakeupFunc func(dev *genpd.Device) bool
}

func (g *GenericDeviceOps) SaveState(ctx context.Context, dev *genpd.Device) error {
	for _, h := range []*SaveRestoreHook{g.TypeHooks, g.ClassHooks, g.BusHooks, g.DriverHooks} {
		if h != nil && h.Save != nil {
			return h.Save(ctx, dev)
		}
	}
	return nil
}

func (g *GenericDeviceOps) RestoreState(ctx context.Context, dev *genpd.Device) error {
	for _, h := range []*SaveRestoreHook{g.TypeHooks, g.ClassHooks, g.BusHooks, g.DriverHooks} {
		if h != nil && h.Restore != nil {
			return h.Restore(ctx, dev)
		}
	}
	return nil
}

func (g *GenericDeviceOps) Start(ctx context.Context, dev *genpd.Device) error {
	if g.StartFunc == nil {
		return nil
	}
	return g.StartFunc(ctx, dev)
}

func (g *GenericDeviceOps) Stop(ctx context.Context, dev *genpd.Device) error {
	if g.StopFunc == nil {
		return nil
	}
	return g.StopFunc(ctx, dev)
}

func (g *GenericDeviceOps) ActiveWakeup(dev *genpd.Device) bool {
	if g.ActiveWakeupFunc == nil {
		return false
	}
	return g.ActiveWakeupFunc(dev)
}
