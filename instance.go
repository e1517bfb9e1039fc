package twai

import "sync"

var (
	instanceMu sync.Mutex
	instance   *Controller
)

// Initialize creates the process-wide controller. Only the first successful
// call creates one; later calls return the existing controller and ignore
// their arguments.
func Initialize(drv Driver, cfg Config, opts ...Option) (*Controller, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	if instance != nil {
		return instance, nil
	}
	c, err := New(drv, cfg, opts...)
	if err != nil {
		return nil, err
	}
	instance = c
	return c, nil
}

// Instance returns the controller created by Initialize, or nil.
func Instance() *Controller {
	instanceMu.Lock()
	defer instanceMu.Unlock()
	return instance
}
