package protocol

// Transfer builders used by host tooling and tests.
// Each returns the full chip-select framed MOSI sequence; the slave's
// reply to byte i arrives while byte i+1 is clocked.

// ReadTransfer reads n bytes starting at addr.
// Replies: [stale, ReplyHandshake, data...]
func ReadTransfer(addr uint16, n int) []byte {
	cmd, low := SplitAddress(addr)
	out := make([]byte, 2+n)
	out[0] = cmd
	out[1] = low
	return out
}

// SendTransfer writes payload into a freshly prepared outbound slot.
func SendTransfer(payload []byte) []byte {
	out := make([]byte, 1+len(payload))
	out[0] = CmdSend
	copy(out[1:], payload)
	return out
}

// RecvTransfer reads n bytes from the inbound queue front.
// Replies: [stale, data...]
func RecvTransfer(n int) []byte {
	out := make([]byte, 1+n)
	out[0] = CmdRecv
	return out
}

// EnableTransfer switches function fn on.
func EnableTransfer(fn uint8) []byte {
	return []byte{CmdEnable | fn&0x0F}
}

// DisableTransfer switches function fn off.
func DisableTransfer(fn uint8) []byte {
	return []byte{CmdDisable | fn&0x0F}
}

// TestTransfer clocks n echo bytes after the command.
// Replies: [stale, ReplyAck, DiagnosticAddress, DiagnosticAddress+1, ...]
func TestTransfer(n int) []byte {
	out := make([]byte, 1+n)
	out[0] = CmdReset
	return out
}

// ResetTransfer asks the slave to reset itself.
func ResetTransfer() []byte {
	return []byte{CmdReset | ResetMagic}
}
