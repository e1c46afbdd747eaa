// SPI slave wire protocol
// Command byte layout, reply bytes and address packing shared by the
// firmware engine and host-side tooling.
package protocol

// Command byte patterns
const (
	CmdReadFlag = 0x80 // 1AAAAAAA: read, low 7 bits are the address page
	CmdSend     = 0x00 // 0000xxxx
	CmdEnable   = 0x10 // 0001ffff
	CmdDisable  = 0x20 // 0010ffff
	CmdRecv     = 0x30 // 0011xxxx
	CmdReset    = 0x40 // 0100xxxx, reset only when xxxx == ResetMagic

	ResetMagic = 0x0F
)

// Reply bytes placed in the outgoing shift position
const (
	ReplyHandshake   = 0xAA // READ: first reply, address not yet known
	ReplyAck         = 0x01 // SEND/ENABLE/DISABLE/TEST acknowledgment
	ReplyUnsupported = 0x00 // unknown command or op without a stream
)

// Address space
const (
	AddressBits = 15
	AddressMask = 1<<AddressBits - 1
	PageMask    = 0x7F

	// NoSlot is returned by queue negotiation when no slot is available.
	NoSlot = 0xFFFF

	// DiagnosticAddress seeds the TEST echo sequence.
	DiagnosticAddress = 0x0001
)

// Opcode is a decoded command byte
type Opcode uint8

const (
	OpUnsupported Opcode = iota
	OpRead
	OpSend
	OpEnable
	OpDisable
	OpRecv
	OpReset
	OpTest
)

var opcodeNames = [...]string{
	OpUnsupported: "UNSUPPORTED",
	OpRead:        "READ",
	OpSend:        "SEND",
	OpEnable:      "ENABLE",
	OpDisable:     "DISABLE",
	OpRecv:        "RECV",
	OpReset:       "RESET",
	OpTest:        "TEST",
}

func (o Opcode) String() string {
	if int(o) < len(opcodeNames) {
		return opcodeNames[o]
	}
	return "UNKNOWN"
}

// ParseOpcode maps a name printed by Opcode.String back to the opcode.
func ParseOpcode(name string) (Opcode, bool) {
	for i, n := range opcodeNames {
		if n == name {
			return Opcode(i), true
		}
	}
	return OpUnsupported, false
}

// Decode classifies a command byte.
// The argument is the address page for READ and the low nibble otherwise.
// A RESET byte whose low nibble is not ResetMagic decodes as TEST.
func Decode(cmd byte) (Opcode, uint8) {
	if cmd&CmdReadFlag != 0 {
		return OpRead, cmd & PageMask
	}

	arg := cmd & 0x0F
	switch cmd & 0xF0 {
	case CmdSend:
		return OpSend, arg
	case CmdEnable:
		return OpEnable, arg
	case CmdDisable:
		return OpDisable, arg
	case CmdRecv:
		return OpRecv, arg
	case CmdReset:
		if arg == ResetMagic {
			return OpReset, arg
		}
		return OpTest, arg
	default:
		return OpUnsupported, arg
	}
}

// JoinAddress combines a READ page and low address byte.
func JoinAddress(page, low uint8) uint16 {
	return uint16(page&PageMask)<<8 | uint16(low)
}

// SplitAddress returns the READ command byte and low byte for addr.
func SplitAddress(addr uint16) (cmd, low byte) {
	return CmdReadFlag | byte(addr>>8)&PageMask, byte(addr)
}
