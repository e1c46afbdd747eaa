// Package registers is the board's register file: the memory map the host
// reads and writes over SPI, and the send/recv slot queues that connect it
// to the CAN side.
package registers

// Memory map
const (
	StatusBase = 0x0000 // status bytes, read only
	StatusSize = 4

	FunctionsBase = 0x0004 // function state bitmap, little endian, read only
	FunctionsSize = 2

	LevelsBase = 0x0010 // sample array, 6 x uint16 little endian, read only
	LevelsSize = 12

	SendBase = 0x0100 // outbound slots, written through SEND
	RecvBase = 0x0200 // inbound slots, read through RECV

	QueueSlots = 8
	SlotSize   = 16
	WindowSize = QueueSlots * SlotSize
)

// LevelAddress returns the address of sample slot i
func LevelAddress(i int) uint16 {
	return uint16(LevelsBase + 2*i)
}

func inRange(addr uint16, base, size int) bool {
	return int(addr) >= base && int(addr) < base+size
}
