package core

import "sync/atomic"

// Reactor is the board's PowerController. A power fault drops the bus
// power driver and lights the red LED through the function table; the
// reset action is supplied by the target.
type Reactor struct {
	functions FunctionController
	reset     func()

	faults uint32 // atomic
	resets uint32 // atomic
}

// NewReactor creates a reactor that switches functions and calls reset
func NewReactor(functions FunctionController, reset func()) *Reactor {
	return &Reactor{functions: functions, reset: reset}
}

// PowerFault runs from the converter ISR
func (r *Reactor) PowerFault() {
	r.functions.DisableFunction(FunctionBusPower)
	r.functions.EnableFunction(FunctionLEDRed)
	atomic.AddUint32(&r.faults, 1)
}

// SystemReset hands over to the target's reset. On hardware it never returns.
func (r *Reactor) SystemReset() {
	atomic.AddUint32(&r.resets, 1)
	if r.reset != nil {
		r.reset()
	}
}

// Faults returns the number of power faults handled
func (r *Reactor) Faults() uint32 {
	return atomic.LoadUint32(&r.faults)
}

// Resets returns the number of reset requests
func (r *Reactor) Resets() uint32 {
	return atomic.LoadUint32(&r.resets)
}
