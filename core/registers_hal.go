package core

import "pimaster/protocol"

// NoSlot is the queue negotiation sentinel for "no slot available".
const NoSlot = protocol.NoSlot

// RegisterFile is the byte-addressable store the host sees through the
// SPI slave, with the outbound (send) and inbound (recv) queues.
// Every method is called from interrupt context and must not block.
type RegisterFile interface {
	// Read returns the byte at addr. Unmapped addresses read as zero.
	Read(addr uint16) byte

	// Write stores v at addr. Writes to read-only or unmapped addresses are dropped.
	Write(addr uint16, v byte)

	// SendPrepare reserves the next outbound slot and returns its address,
	// or NoSlot when the queue is full. The slot is not queued until SendExecute.
	SendPrepare() uint16

	// SendExecute queues the slot handed out by the last SendPrepare.
	SendExecute()

	// RecvFront returns the address of the oldest inbound slot, or NoSlot when empty.
	RecvFront() uint16

	// RecvPopFront releases the slot returned by RecvFront.
	RecvPopFront()
}
