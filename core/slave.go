// SPI slave protocol engine
// The host drives the board as a memory-mapped peripheral: every
// chip-select framed transfer starts with a command byte and continues with
// auto-incrementing reads or writes against the register file.
package core

import "pimaster/protocol"

// EventKind identifies what woke the engine
type EventKind uint8

const (
	EventSelect   EventKind = iota // chip-select falling edge
	EventByte                      // a byte was clocked in
	EventDeselect                  // chip-select rising edge
)

// Event is one engine input
type Event struct {
	Kind EventKind
	In   byte // received byte for EventByte
}

// ByteIRQ is the requested change to the byte-clock interrupt
type ByteIRQ uint8

const (
	ByteIRQKeep ByteIRQ = iota
	ByteIRQEnable
	ByteIRQDisable
)

// Effects are the peripheral actions a transition asks for
type Effects struct {
	Load    bool // load Tx into the outgoing shift position
	Tx      byte
	ByteIRQ ByteIRQ
	Release bool // re-arm the "not selected" state
}

func load(b byte) Effects {
	return Effects{Load: true, Tx: b}
}

// Step computes the next transfer state for one event.
// It calls the board's collaborators but never touches the peripheral.
func Step(t Transfer, ev Event, b *Board) (Transfer, Effects) {
	if t.State == SlaveHalted {
		return t, Effects{ByteIRQ: ByteIRQDisable}
	}

	switch ev.Kind {
	case EventSelect:
		if t.State != SlaveIdle {
			// deselect was missed; the previous transfer still owes its commit
			t = Finalize(t, b)
		}
		RecordEvent(EvtSelect, 0, 0, 0)
		return Transfer{State: SlaveCommand}, Effects{}

	case EventDeselect:
		bytes := t.Bytes
		t = Finalize(t, b)
		RecordEvent(EvtDeselect, 0, bytes, 0)
		return t, Effects{ByteIRQ: ByteIRQDisable, Release: true}

	case EventByte:
		switch t.State {
		case SlaveCommand:
			t.Bytes++
			return command(t, ev.In, b)
		case SlaveAddress:
			t.Bytes++
			addr := protocol.JoinAddress(t.Page, ev.In)
			t.Cursor = validCursor(addr)
			t.State = SlaveStreaming
			fx := load(readCursor(&t.Cursor, b))
			fx.ByteIRQ = ByteIRQEnable
			return t, fx
		case SlaveStreaming:
			t.Bytes++
			return stream(t, ev.In, b)
		}
	}

	// byte while idle: nothing is framed, answer nothing
	return t, Effects{}
}

// command classifies the first byte of a transfer
func command(t Transfer, cmd byte, b *Board) (Transfer, Effects) {
	op, arg := protocol.Decode(cmd)
	t.Op = op
	t.State = SlaveStreaming
	RecordEvent(EvtCommand, cmd, uint32(op), 0)

	var fx Effects
	switch op {
	case protocol.OpRead:
		t.Page = arg
		t.State = SlaveAddress
		return t, load(protocol.ReplyHandshake)

	case protocol.OpSend:
		t.Send = negotiate(b.Registers.SendPrepare())
		if t.Send.Pending() {
			b.Status.Set(StatusSendPending)
			t.Cursor = validCursor(t.Send.Addr)
		} else {
			RecordEvent(EvtReject, cmd, 0, 0)
		}
		fx = load(protocol.ReplyAck)

	case protocol.OpEnable:
		b.Functions.EnableFunction(FunctionID(arg))
		fx = load(protocol.ReplyAck)

	case protocol.OpDisable:
		b.Functions.DisableFunction(FunctionID(arg))
		fx = load(protocol.ReplyAck)

	case protocol.OpRecv:
		t.Recv = negotiate(b.Registers.RecvFront())
		if t.Recv.Pending() {
			b.Status.Set(StatusRecvPending)
			t.Cursor = validCursor(t.Recv.Addr)
		} else {
			RecordEvent(EvtReject, cmd, 0, 0)
		}
		fx = load(readCursor(&t.Cursor, b))

	case protocol.OpReset:
		RecordEvent(EvtReset, cmd, 0, 0)
		b.Power.SystemReset()
		return Transfer{State: SlaveHalted, Op: op}, Effects{ByteIRQ: ByteIRQDisable}

	case protocol.OpTest:
		t.Cursor = validCursor(protocol.DiagnosticAddress)
		fx = load(protocol.ReplyAck)

	default:
		fx = load(protocol.ReplyUnsupported)
	}

	fx.ByteIRQ = ByteIRQEnable
	return t, fx
}

// stream services one clocked byte after the command
func stream(t Transfer, in byte, b *Board) (Transfer, Effects) {
	switch t.Op {
	case protocol.OpRead, protocol.OpRecv:
		return t, load(readCursor(&t.Cursor, b))
	case protocol.OpSend:
		if addr, ok := t.Cursor.advance(); ok {
			b.Registers.Write(addr, in)
		}
		return t, load(protocol.ReplyAck)
	case protocol.OpTest:
		addr, _ := t.Cursor.advance()
		return t, load(byte(addr))
	}
	return t, load(protocol.ReplyUnsupported)
}

func readCursor(c *Cursor, b *Board) byte {
	addr, ok := c.advance()
	if !ok {
		return 0
	}
	return b.Registers.Read(addr)
}

// Finalize commits the transfer's queue handoffs and returns it to Idle.
// Safe on transfers that never obtained a slot or never got past the
// command byte.
func Finalize(t Transfer, b *Board) Transfer {
	if t.State == SlaveHalted {
		return t
	}
	if t.Send.Pending() {
		b.Registers.SendExecute()
		b.Status.Clear(StatusSendPending)
		t.Send.State = TxnCommitted
		RecordEvent(EvtCommit, 0, uint32(t.Send.Addr), 0)
	}
	if t.Recv.Pending() {
		b.Registers.RecvPopFront()
		b.Status.Clear(StatusRecvPending)
		t.Recv.State = TxnCommitted
		RecordEvent(EvtPop, 0, uint32(t.Recv.Addr), 0)
	}
	t.State = SlaveIdle
	t.Cursor = Cursor{}
	return t
}

// Slave binds the engine to a peripheral. HandleSelect runs in the
// chip-select edge ISR and HandleByte in the byte-clock ISR; both are
// at lower priority than the converter.
type Slave struct {
	board *Board
	drv   SPISlaveDriver
	t     Transfer
}

// NewSlave creates an idle engine
func NewSlave(b *Board, drv SPISlaveDriver) *Slave {
	return &Slave{board: b, drv: drv}
}

// Transfer returns the current engine state
func (s *Slave) Transfer() Transfer {
	return s.t
}

// Halted reports whether a RESET was accepted
func (s *Slave) Halted() bool {
	return s.t.State == SlaveHalted
}

// HandleSelect is the chip-select edge handler. On assertion it waits for
// the command byte (and the READ address byte) before arming the byte
// clock; the wait ends early only when the master releases chip-select.
func (s *Slave) HandleSelect(selected bool) {
	if !selected {
		s.drv.DisableByteIRQ()
		s.Dispatch(Event{Kind: EventDeselect})
		return
	}

	s.Dispatch(Event{Kind: EventSelect})
	for s.t.State == SlaveCommand || s.t.State == SlaveAddress {
		in, ok := s.drv.RecvByte()
		if !ok {
			return
		}
		s.Dispatch(Event{Kind: EventByte, In: in})
	}
}

// HandleByte is the byte-clock handler
func (s *Slave) HandleByte() {
	in, ok := s.drv.RecvByte()
	if !ok {
		return
	}
	s.Dispatch(Event{Kind: EventByte, In: in})
}

// Dispatch runs one transition and applies its effects
func (s *Slave) Dispatch(ev Event) Effects {
	next, fx := Step(s.t, ev, s.board)
	s.t = next
	if fx.Load {
		s.drv.LoadByte(fx.Tx)
	}
	switch fx.ByteIRQ {
	case ByteIRQEnable:
		s.drv.EnableByteIRQ()
	case ByteIRQDisable:
		s.drv.DisableByteIRQ()
	}
	if fx.Release {
		s.drv.Release()
	}
	return fx
}
