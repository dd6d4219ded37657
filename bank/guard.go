package bank

import "errors"

// ErrModulePaused is returned when a mutating operation hits a paused module.
var ErrModulePaused = errors.New("module paused")

const moduleName = "bank"

// PauseView exposes governance pause switches to the engine.
type PauseView interface {
	IsPaused(module string) bool
}

func guard(p PauseView, module string) error {
	if p == nil || module == "" {
		return nil
	}
	if p.IsPaused(module) {
		return ErrModulePaused
	}
	return nil
}
