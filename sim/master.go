package sim

import (
	"errors"
	"fmt"

	"tinygo.org/x/drivers"

	"pimaster/core"
	"pimaster/protocol"
	"pimaster/registers"
)

var (
	ErrLength       = errors.New("tx buffers differ in length")
	ErrNoHandshake  = errors.New("read handshake missing")
	ErrSlaveHalted  = errors.New("slave halted")
	ErrUnsupported  = errors.New("command not supported")
	ErrTransferSize = errors.New("transfer too long")
)

// MaxTransfer bounds a single framed transfer
const MaxTransfer = 4096

// Master is the host side of the SPI link. Each Tx is one chip-select
// framed transfer; the slave's interrupt handlers run synchronously.
type Master struct {
	bus   *SlaveBus
	slave *core.Slave
}

var _ drivers.SPI = (*Master)(nil)

// NewMaster connects a master to a slave engine on bus
func NewMaster(bus *SlaveBus, slave *core.Slave) *Master {
	return &Master{bus: bus, slave: slave}
}

// Tx runs one framed transfer. r receives the MISO bytes; either buffer
// may be nil as in machine.SPI.
func (m *Master) Tx(w, r []byte) error {
	n := len(w)
	switch {
	case w == nil:
		n = len(r)
		w = make([]byte, n)
	case r != nil && len(r) != len(w):
		return ErrLength
	}
	if n > MaxTransfer {
		return ErrTransferSize
	}

	m.bus.selectFrame(w)
	m.slave.HandleSelect(true)
	for m.bus.pending() && m.bus.ByteIRQ() {
		m.slave.HandleByte()
	}
	m.bus.drain()
	miso := m.bus.deselect()
	m.slave.HandleSelect(false)

	copy(r, miso)
	return nil
}

// Transfer clocks a single byte as its own framed transfer
func (m *Master) Transfer(b byte) (byte, error) {
	var r [1]byte
	err := m.Tx([]byte{b}, r[:])
	return r[0], err
}

// Exchange runs a framed transfer and returns the MISO bytes
func (m *Master) Exchange(w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	if err := m.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Client speaks the register protocol over any drivers.SPI
type Client struct {
	spi drivers.SPI
}

// NewClient wraps spi
func NewClient(spi drivers.SPI) *Client {
	return &Client{spi: spi}
}

func (c *Client) exchange(w []byte) ([]byte, error) {
	r := make([]byte, len(w))
	if err := c.spi.Tx(w, r); err != nil {
		return nil, err
	}
	return r, nil
}

// Read returns n register bytes starting at addr
func (c *Client) Read(addr uint16, n int) ([]byte, error) {
	r, err := c.exchange(protocol.ReadTransfer(addr, n))
	if err != nil {
		return nil, err
	}
	if r[1] != protocol.ReplyHandshake {
		return nil, fmt.Errorf("read %#04x: %w (got %#02x)", addr, ErrNoHandshake, r[1])
	}
	return r[2:], nil
}

// ReadUint16 reads a little endian register pair
func (c *Client) ReadUint16(addr uint16) (uint16, error) {
	b, err := c.Read(addr, 2)
	if err != nil {
		return 0, err
	}
	return uint16(b[0]) | uint16(b[1])<<8, nil
}

// Status reads the status bytes
func (c *Client) Status() (core.StatusBits, error) {
	b, err := c.Read(registers.StatusBase, registers.StatusSize)
	if err != nil {
		return 0, err
	}
	var bits core.StatusBits
	for i, v := range b {
		bits |= core.StatusBits(v) << (8 * uint(i))
	}
	return bits, nil
}

// Levels reads the whole sample array
func (c *Client) Levels() ([core.SampleSlots]uint16, error) {
	var out [core.SampleSlots]uint16
	b, err := c.Read(registers.LevelsBase, registers.LevelsSize)
	if err != nil {
		return out, err
	}
	for i := range out {
		out[i] = uint16(b[2*i]) | uint16(b[2*i+1])<<8
	}
	return out, nil
}

// Send queues payload as one outbound message and reports whether every
// byte was acknowledged. A full queue still acks; check Pending on the
// board side.
func (c *Client) Send(payload []byte) error {
	if len(payload) > registers.SlotSize {
		return fmt.Errorf("send %d bytes: %w", len(payload), ErrTransferSize)
	}
	r, err := c.exchange(protocol.SendTransfer(payload))
	if err != nil {
		return err
	}
	for i := 1; i < len(r); i++ {
		if r[i] != protocol.ReplyAck {
			return fmt.Errorf("send byte %d: %w", i, ErrUnsupported)
		}
	}
	return nil
}

// Recv reads n bytes from the inbound queue front and pops it
func (c *Client) Recv(n int) ([]byte, error) {
	r, err := c.exchange(protocol.RecvTransfer(n))
	if err != nil {
		return nil, err
	}
	return r[1:], nil
}

// Enable switches a board function on
func (c *Client) Enable(fn core.FunctionID) error {
	return c.ack(protocol.EnableTransfer(uint8(fn)))
}

// Disable switches a board function off
func (c *Client) Disable(fn core.FunctionID) error {
	return c.ack(protocol.DisableTransfer(uint8(fn)))
}

// Test runs the echo diagnostic and returns n echoed bytes
func (c *Client) Test(n int) ([]byte, error) {
	r, err := c.exchange(protocol.TestTransfer(n + 1))
	if err != nil {
		return nil, err
	}
	if r[1] != protocol.ReplyAck {
		return nil, ErrUnsupported
	}
	return r[2:], nil
}

// Reset asks the board to reset itself
func (c *Client) Reset() error {
	_, err := c.exchange(protocol.ResetTransfer())
	return err
}

// ack runs a single byte command followed by one dummy byte to collect the reply
func (c *Client) ack(cmd []byte) error {
	r, err := c.exchange(append(cmd, 0x00))
	if err != nil {
		return err
	}
	if r[1] != protocol.ReplyAck {
		return ErrUnsupported
	}
	return nil
}
