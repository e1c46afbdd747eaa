package core

// SPISlaveDriver is the abstract SPI slave peripheral that the protocol
// engine drives. Platform-specific implementations own the shift register,
// the byte-clock interrupt and the chip-select line.
type SPISlaveDriver interface {
	// RecvByte returns the next byte clocked in by the master.
	// It spins while no byte is available and the device is selected;
	// ok is false only when chip-select was released before a byte arrived.
	RecvByte() (b byte, ok bool)

	// LoadByte places b in the outgoing shift position so the master
	// clocks it out during the next byte.
	LoadByte(b byte)

	// EnableByteIRQ arms the byte-clock interrupt.
	EnableByteIRQ()

	// DisableByteIRQ disarms the byte-clock interrupt.
	DisableByteIRQ()

	// Release re-arms the peripheral's "not selected" state after a transfer.
	Release()
}
