package core

// Test doubles shared by the core tests

// callLog records collaborator calls in order
type callLog []string

func (l *callLog) add(s string) {
	*l = append(*l, s)
}

// mockRegisters is a flat register file with one send and one recv slot
type mockRegisters struct {
	mem [0x8000]byte

	sendSlot uint16 // NoSlot to refuse
	recvSlot uint16 // NoSlot to refuse

	reads, writes      int
	prepares, executes int
	fronts, pops       int
	log                *callLog
}

func newMockRegisters(log *callLog) *mockRegisters {
	return &mockRegisters{sendSlot: 0x0100, recvSlot: 0x0200, log: log}
}

func (m *mockRegisters) Read(addr uint16) byte {
	m.reads++
	if int(addr) >= len(m.mem) {
		return 0
	}
	return m.mem[addr]
}

func (m *mockRegisters) Write(addr uint16, v byte) {
	m.writes++
	if int(addr) < len(m.mem) {
		m.mem[addr] = v
	}
}

func (m *mockRegisters) SendPrepare() uint16 {
	m.prepares++
	m.log.add("send_prepare")
	return m.sendSlot
}

func (m *mockRegisters) SendExecute() {
	m.executes++
	m.log.add("send_execute")
}

func (m *mockRegisters) RecvFront() uint16 {
	m.fronts++
	m.log.add("recv_front")
	return m.recvSlot
}

func (m *mockRegisters) RecvPopFront() {
	m.pops++
	m.log.add("recv_pop_front")
}

// mockPower counts reactor and reset calls
type mockPower struct {
	faults, resets int
	onFault        func()
	log            *callLog
}

func (p *mockPower) PowerFault() {
	p.faults++
	p.log.add("power_fault")
	if p.onFault != nil {
		p.onFault()
	}
}

func (p *mockPower) SystemReset() {
	p.resets++
	p.log.add("system_reset")
}

// mockBus is a SPI slave peripheral whose master clocks the next MOSI
// byte whenever the engine asks for one. The reply to each byte is
// whatever was in the shift position when it was clocked.
type mockBus struct {
	mosi  []byte
	miso  []byte
	pos   int
	shift byte

	irq      bool
	released int
}

func (m *mockBus) RecvByte() (byte, bool) {
	if m.pos >= len(m.mosi) {
		return 0, false
	}
	m.miso = append(m.miso, m.shift)
	b := m.mosi[m.pos]
	m.pos++
	return b, true
}

func (m *mockBus) LoadByte(b byte) { m.shift = b }
func (m *mockBus) EnableByteIRQ() { m.irq = true }
func (m *mockBus) DisableByteIRQ() { m.irq = false }
func (m *mockBus) Release() {
	m.released++
	m.shift = 0
}

// pending reports whether the master still has bytes to clock
func (m *mockBus) pending() bool {
	return m.pos < len(m.mosi)
}

// drain clocks the remaining bytes without waking the engine
func (m *mockBus) drain() {
	for m.pending() {
		m.RecvByte()
	}
}

type testBench struct {
	log   callLog
	regs  *mockRegisters
	power *mockPower
	funcs *FunctionTable
	board *Board
	bus   *mockBus
	slave *Slave
}

func newTestBench() *testBench {
	tb := &testBench{}
	tb.regs = newMockRegisters(&tb.log)
	tb.power = &mockPower{log: &tb.log}
	tb.funcs = NewFunctionTable()
	tb.board = &Board{
		Registers: tb.regs,
		Functions: tb.funcs,
		Power:     tb.power,
		Status:    &Status{},
		Samples:   &Samples{},
	}
	tb.bus = &mockBus{}
	tb.slave = NewSlave(tb.board, tb.bus)
	return tb
}

// begin asserts chip-select and clocks mosi until the byte interrupt
// would stop firing. The transfer stays selected.
func (tb *testBench) begin(mosi []byte) {
	tb.bus.mosi = mosi
	tb.bus.miso = nil
	tb.bus.pos = 0
	tb.slave.HandleSelect(true)
	for tb.bus.pending() && tb.bus.irq {
		tb.slave.HandleByte()
	}
	tb.bus.drain()
}

// end releases chip-select
func (tb *testBench) end() {
	tb.slave.HandleSelect(false)
}

// transfer runs one full chip-select framed transfer and returns MISO
func (tb *testBench) transfer(mosi ...byte) []byte {
	tb.begin(mosi)
	tb.end()
	return tb.bus.miso
}
