package app

import (
	"github.com/easytty/easytty/internal/device"
	"github.com/easytty/easytty/internal/rules"
	"github.com/easytty/easytty/internal/system"
)

// DeviceScanner enumerates connected serial adapters. *device.Scanner
// is the production implementation.
type DeviceScanner interface {
	Scan() ([]device.Device, error)
	Lookup(devPath string) (device.Device, bool, error)
}

// App bundles the scanner, the rule store and the udev admin behind
// the operations the CLI modes and the interactive session share.
type App struct {
	Scanner DeviceScanner
	Store   *rules.Store
	Admin   *system.Admin
}

func New(scanner DeviceScanner, store *rules.Store, admin *system.Admin) *App {
	return &App{Scanner: scanner, Store: store, Admin: admin}
}

// CreateRule writes a rule pinning symlink to d, applying it through
// udev when apply is set.
func (a *App) CreateRule(d device.Device, symlink string, apply bool) error {
	if err := a.Store.Create(d, symlink); err != nil {
		return err
	}
	if apply {
		return a.Admin.Apply()
	}
	return nil
}

// DeleteRule removes the rule claiming name, resolved by symlink or
// display name, applying the change through udev when apply is set.
func (a *App) DeleteRule(name string, apply bool) error {
	if err := a.Store.DeleteNamed(name); err != nil {
		return err
	}
	if apply {
		return a.Admin.Apply()
	}
	return nil
}
