package core

import (
	"bytes"
	"testing"

	"pimaster/protocol"
)

func TestReadSequence(t *testing.T) {
	tb := newTestBench()
	tb.regs.mem[0x0023] = 0x5A
	tb.regs.mem[0x0024] = 0xC3

	miso := tb.transfer(0x80, 0x23, 0x00, 0x00)

	// reply to byte i is clocked out while byte i is clocked in
	want := []byte{0x00, protocol.ReplyHandshake, 0x5A, 0xC3}
	if !bytes.Equal(miso, want) {
		t.Errorf("READ 0x0023 replies: got % x, want % x", miso, want)
	}
	if tb.slave.Transfer().State != SlaveIdle {
		t.Errorf("Expected idle after deselect, got %s", tb.slave.Transfer().State)
	}
	if tb.bus.released != 1 {
		t.Errorf("Expected one release, got %d", tb.bus.released)
	}
}

func TestReadPageAddress(t *testing.T) {
	tb := newTestBench()
	for i := 0; i < 4; i++ {
		tb.regs.mem[0x1234+i] = byte(0x10 + i)
	}

	cmd, low := protocol.SplitAddress(0x1234)
	if cmd != 0x92 || low != 0x34 {
		t.Fatalf("SplitAddress(0x1234) = %#x %#x", cmd, low)
	}

	miso := tb.transfer(cmd, low, 0, 0, 0, 0)
	want := []byte{0x00, 0xAA, 0x10, 0x11, 0x12, 0x13}
	if !bytes.Equal(miso, want) {
		t.Errorf("got % x, want % x", miso, want)
	}
}

func TestReadCommandOnly(t *testing.T) {
	tb := newTestBench()

	// master gives up after the command byte
	miso := tb.transfer(0x80)
	if len(miso) != 1 {
		t.Fatalf("Expected one clocked byte, got %d", len(miso))
	}
	if tb.regs.reads != 0 {
		t.Errorf("Expected no register reads, got %d", tb.regs.reads)
	}
	if tb.slave.Transfer().State != SlaveIdle {
		t.Errorf("Expected idle, got %s", tb.slave.Transfer().State)
	}
}

func TestSendCommitsOnceAtEnd(t *testing.T) {
	tb := newTestBench()

	tb.begin([]byte{protocol.CmdSend, 0x11, 0x22, 0x33})
	if tb.regs.executes != 0 {
		t.Fatalf("send_execute called before transfer end")
	}
	if !tb.board.Status.Has(StatusSendPending) {
		t.Errorf("Expected send pending during transfer")
	}
	tb.end()

	if tb.regs.executes != 1 {
		t.Errorf("Expected exactly one send_execute, got %d", tb.regs.executes)
	}
	if tb.board.Status.Has(StatusSendPending) {
		t.Errorf("Expected send pending cleared")
	}
	got := tb.regs.mem[0x0100:0x0103]
	if !bytes.Equal(got, []byte{0x11, 0x22, 0x33}) {
		t.Errorf("slot contents: got % x", got)
	}
	want := []byte{0x00, 0x01, 0x01, 0x01}
	if !bytes.Equal(tb.bus.miso, want) {
		t.Errorf("SEND replies: got % x, want % x", tb.bus.miso, want)
	}
	if tb.slave.Transfer().Send.State != TxnCommitted {
		t.Errorf("Expected committed txn, got %s", tb.slave.Transfer().Send.State)
	}
}

func TestSendRefused(t *testing.T) {
	tb := newTestBench()
	tb.regs.sendSlot = NoSlot

	miso := tb.transfer(protocol.CmdSend, 0x11, 0x22, 0x33, 0x44)

	if tb.regs.writes != 0 {
		t.Errorf("Refused SEND wrote %d bytes", tb.regs.writes)
	}
	if tb.regs.executes != 0 {
		t.Errorf("Refused SEND executed %d times", tb.regs.executes)
	}
	if tb.board.Status.Load() != 0 {
		t.Errorf("Refused SEND changed status: %#x", tb.board.Status.Load())
	}
	want := []byte{0x00, 0x01, 0x01, 0x01, 0x01}
	if !bytes.Equal(miso, want) {
		t.Errorf("got % x, want % x", miso, want)
	}
	if tb.slave.Transfer().Send.State != TxnRejected {
		t.Errorf("Expected rejected txn, got %s", tb.slave.Transfer().Send.State)
	}
}

func TestInvalidCursorNeverWraps(t *testing.T) {
	tb := newTestBench()
	tb.regs.sendSlot = NoSlot

	// far more bytes than the address space below NoSlot could absorb
	mosi := make([]byte, 1+300)
	mosi[0] = protocol.CmdSend
	for i := 1; i < len(mosi); i++ {
		mosi[i] = 0xEE
	}
	tb.transfer(mosi...)

	for addr, v := range tb.regs.mem {
		if v != 0 {
			t.Fatalf("memory at %#04x changed to %#x", addr, v)
		}
	}
}

func TestAbortedSendStillCommits(t *testing.T) {
	tb := newTestBench()

	// chip-select drops after the first data byte
	tb.transfer(protocol.CmdSend, 0x42)
	if tb.regs.executes != 1 {
		t.Errorf("Expected one commit, got %d", tb.regs.executes)
	}

	// chip-select drops before the command byte finishes
	tb.transfer()
	if tb.regs.executes != 1 {
		t.Errorf("Empty transfer committed: %d", tb.regs.executes)
	}
	if tb.regs.prepares != 1 {
		t.Errorf("Empty transfer prepared: %d", tb.regs.prepares)
	}
}

func TestMissedDeselectCommits(t *testing.T) {
	tb := newTestBench()

	tb.begin([]byte{protocol.CmdSend, 0x01})
	// next select without the rising edge in between
	tb.begin([]byte{0x80, 0x00})
	if tb.regs.executes != 1 {
		t.Errorf("Expected commit on reselect, got %d", tb.regs.executes)
	}
	tb.end()
	if tb.regs.executes != 1 {
		t.Errorf("Expected a single commit, got %d", tb.regs.executes)
	}
}

func TestRecv(t *testing.T) {
	tb := newTestBench()
	copy(tb.regs.mem[0x0200:], []byte{0xDE, 0xAD, 0xBE, 0xEF})

	tb.begin(protocol.RecvTransfer(4))
	if !tb.board.Status.Has(StatusRecvPending) {
		t.Errorf("Expected recv pending during transfer")
	}
	if tb.regs.pops != 0 {
		t.Fatalf("recv_pop_front called before transfer end")
	}
	tb.end()

	want := []byte{0x00, 0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal(tb.bus.miso, want) {
		t.Errorf("RECV replies: got % x, want % x", tb.bus.miso, want)
	}
	if tb.regs.pops != 1 {
		t.Errorf("Expected one pop, got %d", tb.regs.pops)
	}
	if tb.board.Status.Has(StatusRecvPending) {
		t.Errorf("Expected recv pending cleared")
	}
}

func TestRecvRefused(t *testing.T) {
	tb := newTestBench()
	tb.regs.recvSlot = NoSlot
	copy(tb.regs.mem[0x0200:], []byte{0xDE, 0xAD})

	miso := tb.transfer(protocol.RecvTransfer(2)...)
	want := []byte{0x00, 0x00, 0x00}
	if !bytes.Equal(miso, want) {
		t.Errorf("got % x, want % x", miso, want)
	}
	if tb.regs.pops != 0 || tb.regs.reads != 0 {
		t.Errorf("Refused RECV touched the register file: pops=%d reads=%d", tb.regs.pops, tb.regs.reads)
	}
	if tb.board.Status.Load() != 0 {
		t.Errorf("Refused RECV changed status: %#x", tb.board.Status.Load())
	}
}

func TestEnableDisableIdempotent(t *testing.T) {
	tb := newTestBench()
	var calls []bool
	tb.funcs.Register(FunctionLEDRed, func(on bool) { calls = append(calls, on) })

	for i := 0; i < 2; i++ {
		miso := tb.transfer(protocol.EnableTransfer(uint8(FunctionLEDRed))[0], 0x00)
		if !bytes.Equal(miso, []byte{0x00, 0x01}) {
			t.Errorf("ENABLE replies: % x", miso)
		}
		if !tb.funcs.Enabled(FunctionLEDRed) {
			t.Errorf("Expected function enabled after ENABLE #%d", i+1)
		}
		if tb.funcs.State() != 1<<FunctionLEDRed {
			t.Errorf("Unexpected function state %#x", tb.funcs.State())
		}
	}

	for i := 0; i < 2; i++ {
		tb.transfer(protocol.DisableTransfer(uint8(FunctionLEDRed))...)
		if tb.funcs.Enabled(FunctionLEDRed) {
			t.Errorf("Expected function disabled after DISABLE #%d", i+1)
		}
	}

	t.Logf("handler calls: %v", calls)
	if len(calls) != 4 {
		t.Errorf("Expected 4 handler calls, got %d", len(calls))
	}

	// the sampler function restarts on every ENABLE and stops once
	conv := &mockConverter{log: &tb.log}
	s := NewSampler(tb.board, conv, DefaultSamplerConfig())
	tb.funcs.Register(FunctionSampler, s.Switch)
	for i := 0; i < 2; i++ {
		miso := tb.transfer(protocol.EnableTransfer(uint8(FunctionSampler))[0], 0x00)
		if !bytes.Equal(miso, []byte{0x00, 0x01}) {
			t.Errorf("ENABLE sampler replies: % x", miso)
		}
		if s.State() != SamplerRunning || !tb.funcs.Enabled(FunctionSampler) {
			t.Errorf("Expected sampler running after ENABLE #%d, got %s", i+1, s.State())
		}
	}
	if conv.starts != 2 || conv.stops != 1 {
		t.Errorf("Expected 2 starts and 1 stop, got %d and %d", conv.starts, conv.stops)
	}
	for i := 0; i < 2; i++ {
		tb.transfer(protocol.DisableTransfer(uint8(FunctionSampler))...)
		if s.State() != SamplerStopped {
			t.Errorf("Expected sampler stopped after DISABLE #%d, got %s", i+1, s.State())
		}
	}
	if conv.stops != 2 {
		t.Errorf("Expected one stop per running sampler, got %d", conv.stops)
	}
}

func TestTestEcho(t *testing.T) {
	tb := newTestBench()

	miso := tb.transfer(protocol.TestTransfer(4)...)
	want := []byte{0x00, 0x01, 0x01, 0x02, 0x03}
	if !bytes.Equal(miso, want) {
		t.Errorf("TEST replies: got % x, want % x", miso, want)
	}

	// any 0x4x except 0x4F is TEST
	miso = tb.transfer(0x43, 0, 0)
	if !bytes.Equal(miso, []byte{0x00, 0x01, 0x01}) {
		t.Errorf("0x43 replies: % x", miso)
	}
	if tb.power.resets != 0 {
		t.Errorf("TEST reset the board")
	}
}

func TestResetIsTerminal(t *testing.T) {
	tb := newTestBench()
	tb.regs.mem[0x0010] = 0x77

	tb.transfer(protocol.ResetTransfer()...)
	if tb.power.resets != 1 {
		t.Fatalf("Expected one system_reset, got %d", tb.power.resets)
	}
	if !tb.slave.Halted() {
		t.Fatalf("Expected halted engine")
	}

	reads := tb.regs.reads
	miso := tb.transfer(0x80, 0x10, 0x00)
	if tb.regs.reads != reads || tb.power.resets != 1 {
		t.Errorf("Halted engine serviced a transfer")
	}
	if miso[2] == 0x77 {
		t.Errorf("Halted engine answered a READ")
	}
}

func TestUnsupported(t *testing.T) {
	tb := newTestBench()

	for _, cmd := range []byte{0x50, 0x6A, 0x7F} {
		miso := tb.transfer(cmd, 0xFF, 0xFF)
		if !bytes.Equal(miso, []byte{0x00, 0x00, 0x00}) {
			t.Errorf("cmd %#x replies: % x", cmd, miso)
		}
	}
	if tb.regs.reads != 0 || tb.regs.writes != 0 || tb.regs.prepares != 0 || tb.regs.fronts != 0 {
		t.Errorf("Unsupported commands touched the register file")
	}
}

func TestStepPure(t *testing.T) {
	tb := newTestBench()
	tb.regs.mem[0x0105] = 0x99

	tr, fx := Step(Transfer{}, Event{Kind: EventSelect}, tb.board)
	if tr.State != SlaveCommand || fx.Load {
		t.Fatalf("select: %+v %+v", tr, fx)
	}
	tr, fx = Step(tr, Event{Kind: EventByte, In: 0x81}, tb.board)
	if tr.State != SlaveAddress || fx.Tx != 0xAA || fx.ByteIRQ != ByteIRQKeep {
		t.Fatalf("command: %+v %+v", tr, fx)
	}
	tr, fx = Step(tr, Event{Kind: EventByte, In: 0x05}, tb.board)
	if tr.State != SlaveStreaming || fx.Tx != 0x99 || fx.ByteIRQ != ByteIRQEnable {
		t.Fatalf("address: %+v %+v", tr, fx)
	}
	if tr.Cursor != (Cursor{Addr: 0x0106, Valid: true}) {
		t.Errorf("cursor after address byte: %+v", tr.Cursor)
	}
	tr, fx = Step(tr, Event{Kind: EventDeselect}, tb.board)
	if tr.State != SlaveIdle || !fx.Release || fx.ByteIRQ != ByteIRQDisable {
		t.Errorf("deselect: %+v %+v", tr, fx)
	}
}

func TestFinalizeNeverValid(t *testing.T) {
	tb := newTestBench()

	tr := Finalize(Transfer{State: SlaveCommand}, tb.board)
	if tr.State != SlaveIdle {
		t.Errorf("Expected idle, got %s", tr.State)
	}
	tr = Finalize(Transfer{State: SlaveStreaming, Send: QueueTxn{State: TxnRejected, Addr: NoSlot}}, tb.board)
	if tb.regs.executes != 0 || tb.regs.pops != 0 {
		t.Errorf("Finalize committed a rejected txn")
	}
	if tr.Send.State != TxnRejected {
		t.Errorf("Expected rejected to stay rejected, got %s", tr.Send.State)
	}
}

func TestEventRingRecordsTransfer(t *testing.T) {
	ClearEventRing()
	tb := newTestBench()
	tb.transfer(protocol.CmdSend, 0x01)

	var names []string
	for _, evt := range Events() {
		names = append(names, EventName(evt.Type))
	}
	t.Logf("events: %v", names)

	want := []string{"SELECT", "COMMAND", "COMMIT", "DESELECT"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("event %d: got %s, want %s", i, names[i], want[i])
		}
	}
}
