package core

import "pimaster/protocol"

// TxnState is the two-phase queue handoff state of one transfer
type TxnState uint8

const (
	TxnNone      TxnState = iota // no negotiation in this transfer
	TxnPrepared                  // slot granted, queue not advanced yet
	TxnCommitted                 // execute/pop issued at transfer end
	TxnRejected                  // register file had no slot
)

func (s TxnState) String() string {
	switch s {
	case TxnNone:
		return "none"
	case TxnPrepared:
		return "prepared"
	case TxnCommitted:
		return "committed"
	case TxnRejected:
		return "rejected"
	}
	return "unknown"
}

// QueueTxn tracks a queue slot across one transfer.
// A slot only becomes durable once Finalize commits it: the queued bytes
// arrive one per clocked byte, so the queue must not advance mid-transfer.
type QueueTxn struct {
	State TxnState
	Addr  uint16
}

// negotiate turns a prepare/front result into a transaction
func negotiate(addr uint16) QueueTxn {
	if addr == NoSlot {
		return QueueTxn{State: TxnRejected, Addr: NoSlot}
	}
	return QueueTxn{State: TxnPrepared, Addr: addr}
}

// Pending reports whether the transaction still needs its commit
func (q QueueTxn) Pending() bool {
	return q.State == TxnPrepared
}

// Cursor is the per-transfer register address.
// An invalid cursor never reaches the register file and never advances.
type Cursor struct {
	Addr  uint16
	Valid bool
}

func validCursor(addr uint16) Cursor {
	return Cursor{Addr: addr, Valid: true}
}

// advance returns the current address and moves to the next one
func (c *Cursor) advance() (uint16, bool) {
	addr := c.Addr
	if c.Valid {
		c.Addr++
	}
	return addr, c.Valid
}

// SlaveState is the protocol engine state
type SlaveState uint8

const (
	SlaveIdle      SlaveState = iota // deselected
	SlaveCommand                     // selected, command byte not classified yet
	SlaveAddress                     // READ: waiting for the address low byte
	SlaveStreaming                   // servicing clocked bytes for Op
	SlaveHalted                      // reset requested; terminal
)

func (s SlaveState) String() string {
	switch s {
	case SlaveIdle:
		return "idle"
	case SlaveCommand:
		return "command"
	case SlaveAddress:
		return "address"
	case SlaveStreaming:
		return "streaming"
	case SlaveHalted:
		return "halted"
	}
	return "unknown"
}

// Transfer is the complete engine state for one chip-select framed transfer.
// It is a value: transitions return a new Transfer.
type Transfer struct {
	State  SlaveState
	Op     protocol.Opcode
	Page   uint8 // READ address page until the low byte arrives
	Cursor Cursor
	Send   QueueTxn
	Recv   QueueTxn
	Bytes  uint32 // bytes clocked in this transfer, command included
}
