// Board functions switched by the ENABLE and DISABLE commands
package core

import "sync/atomic"

// FunctionID selects a board function (low nibble of ENABLE/DISABLE)
type FunctionID uint8

const (
	FunctionBusPower       FunctionID = 0 // PWR_DEN: bus power driver enable
	FunctionPowerIn        FunctionID = 1 // PWR_IN: feed the bus from the local supply
	FunctionLEDRed         FunctionID = 2
	FunctionLEDYellow      FunctionID = 3
	FunctionCANRxInterrupt FunctionID = 4 // CAN_RX_INT line to the CAN controller
	FunctionCANTxInterrupt FunctionID = 5 // CAN_TX_INT line to the CAN controller
	FunctionCANTermination FunctionID = 6
	FunctionSampler        FunctionID = 7 // restart the analog sampler

	FunctionCount = 16
)

// FunctionController is what the SPI slave calls for ENABLE and DISABLE.
type FunctionController interface {
	EnableFunction(id FunctionID)
	DisableFunction(id FunctionID)
}

// FunctionHandler drives one function. Called from the framing ISR.
type FunctionHandler func(on bool)

// FunctionTable maps function ids to handlers and tracks their state.
// Unregistered ids still toggle their state bit.
type FunctionTable struct {
	handlers [FunctionCount]FunctionHandler
	state    uint32 // atomic bitmap
}

// NewFunctionTable creates an empty table
func NewFunctionTable() *FunctionTable {
	return &FunctionTable{}
}

// Register installs the handler for id. Call before interrupts are enabled.
func (t *FunctionTable) Register(id FunctionID, handler FunctionHandler) {
	if id >= FunctionCount {
		return
	}
	t.handlers[id] = handler
}

// EnableFunction switches id on
func (t *FunctionTable) EnableFunction(id FunctionID) {
	t.set(id, true)
}

// DisableFunction switches id off
func (t *FunctionTable) DisableFunction(id FunctionID) {
	t.set(id, false)
}

func (t *FunctionTable) set(id FunctionID, on bool) {
	if id >= FunctionCount {
		return
	}
	mask := uint32(1) << id
	for {
		old := atomic.LoadUint32(&t.state)
		next := old &^ mask
		if on {
			next |= mask
		}
		if atomic.CompareAndSwapUint32(&t.state, old, next) {
			break
		}
	}
	if h := t.handlers[id]; h != nil {
		h(on)
	}
	if on {
		RecordEvent(EvtFunction, uint8(id), 1, 0)
	} else {
		RecordEvent(EvtFunction, uint8(id), 0, 0)
	}
}

// Enabled reports whether id is on
func (t *FunctionTable) Enabled(id FunctionID) bool {
	if id >= FunctionCount {
		return false
	}
	return atomic.LoadUint32(&t.state)&(1<<id) != 0
}

// State returns the function bitmap, bit n for function n
func (t *FunctionTable) State() uint16 {
	return uint16(atomic.LoadUint32(&t.state))
}
