// Package sim runs the firmware core on the host: a simulated SPI slave
// peripheral and master, a free-running converter driven by the core
// timer, and a YAML scenario runner on top.
package sim

import "pimaster/core"

// IdleByte is what the slave shifts out after the peripheral is re-armed
const IdleByte = 0x00

// SlaveBus is the simulated SPI slave peripheral. The master side feeds
// a whole MOSI frame; the slave pulls bytes from it on demand, which
// models the framing handler spinning until the next byte is clocked.
type SlaveBus struct {
	mosi []byte
	miso []byte
	pos  int

	shift    byte
	selected bool
	byteIRQ  bool

	// stats
	Released  int
	Underruns int // bytes clocked while the byte interrupt was off
}

var _ core.SPISlaveDriver = (*SlaveBus)(nil)

// NewSlaveBus creates a deselected bus
func NewSlaveBus() *SlaveBus {
	return &SlaveBus{shift: IdleByte}
}

// RecvByte clocks the next MOSI byte, answering with the shift register.
// Returns false once the master has nothing more to clock while selected.
func (b *SlaveBus) RecvByte() (byte, bool) {
	if !b.selected || b.pos >= len(b.mosi) {
		return 0, false
	}
	b.miso = append(b.miso, b.shift)
	in := b.mosi[b.pos]
	b.pos++
	return in, true
}

func (b *SlaveBus) LoadByte(v byte) {
	b.shift = v
}

func (b *SlaveBus) EnableByteIRQ() {
	b.byteIRQ = true
}

func (b *SlaveBus) DisableByteIRQ() {
	b.byteIRQ = false
}

func (b *SlaveBus) Release() {
	b.Released++
	b.shift = IdleByte
}

// ByteIRQ reports whether the byte interrupt is armed
func (b *SlaveBus) ByteIRQ() bool {
	return b.byteIRQ
}

// Shift returns the byte the master would clock in next
func (b *SlaveBus) Shift() byte {
	return b.shift
}

// selectFrame asserts chip-select with a new MOSI frame
func (b *SlaveBus) selectFrame(mosi []byte) {
	b.mosi = mosi
	b.miso = make([]byte, 0, len(mosi))
	b.pos = 0
	b.selected = true
}

// pending reports whether MOSI bytes remain unclocked
func (b *SlaveBus) pending() bool {
	return b.selected && b.pos < len(b.mosi)
}

// drain clocks the rest of the frame with nobody servicing the peripheral
func (b *SlaveBus) drain() {
	for b.pending() {
		b.RecvByte()
		b.Underruns++
	}
}

// deselect releases chip-select and returns the MISO frame
func (b *SlaveBus) deselect() []byte {
	b.selected = false
	return b.miso
}
