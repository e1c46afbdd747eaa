package core

import "sync/atomic"

// StatusBits is the cross-interrupt status bitset.
// Byte lanes match the status bytes the host reads from the register file:
// byte 0 carries converter faults, byte 2 carries deferred transfer work.
type StatusBits uint32

const (
	// StatusConverterFault is set by the converter ISR on overrun; sampling is halted.
	StatusConverterFault StatusBits = 1 << 0
	// StatusPowerFault is set by the converter ISR when the watchdog trips
	// and cleared when the host restarts the sampler.
	StatusPowerFault StatusBits = 1 << 1

	// StatusSendPending is set on a granted SEND, cleared at transfer end.
	StatusSendPending StatusBits = 1 << 16
	// StatusRecvPending is set on a granted RECV, cleared at transfer end.
	StatusRecvPending StatusBits = 1 << 17
)

// StatusBytes is the number of status bytes exposed to the host
const StatusBytes = 4

// Status holds the status flags.
// Every producer sets and every consumer clears with a single
// compare-and-swap so a higher priority ISR can interleave safely.
type Status struct {
	bits uint32
}

// Set raises bits.
func (s *Status) Set(bits StatusBits) {
	for {
		old := atomic.LoadUint32(&s.bits)
		if atomic.CompareAndSwapUint32(&s.bits, old, old|uint32(bits)) {
			return
		}
	}
}

// Clear lowers bits.
func (s *Status) Clear(bits StatusBits) {
	for {
		old := atomic.LoadUint32(&s.bits)
		if atomic.CompareAndSwapUint32(&s.bits, old, old&^uint32(bits)) {
			return
		}
	}
}

// Has reports whether all bits are raised.
func (s *Status) Has(bits StatusBits) bool {
	return StatusBits(atomic.LoadUint32(&s.bits))&bits == bits
}

// Load returns the whole bitset.
func (s *Status) Load() StatusBits {
	return StatusBits(atomic.LoadUint32(&s.bits))
}

// Byte returns status byte i as seen by the host.
func (s *Status) Byte(i int) byte {
	if i < 0 || i >= StatusBytes {
		return 0
	}
	return byte(atomic.LoadUint32(&s.bits) >> (8 * uint(i)))
}
