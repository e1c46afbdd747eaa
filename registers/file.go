package registers

import "pimaster/core"

// File is the reference register file. It mirrors board state (status,
// functions, samples) into the memory map and owns the two slot queues.
type File struct {
	status    *core.Status
	samples   *core.Samples
	functions *core.FunctionTable

	send *Queue // SPI produces, CAN consumes
	recv *Queue // CAN produces, SPI consumes
}

var _ core.RegisterFile = (*File)(nil)

// New creates a register file over the board's shared state
func New(status *core.Status, samples *core.Samples, functions *core.FunctionTable) *File {
	return &File{
		status:    status,
		samples:   samples,
		functions: functions,
		send:      NewQueue(SendBase),
		recv:      NewQueue(RecvBase),
	}
}

// Read returns the byte at addr; unmapped addresses read as zero
func (f *File) Read(addr uint16) byte {
	switch {
	case inRange(addr, StatusBase, StatusSize):
		return f.status.Byte(int(addr - StatusBase))
	case inRange(addr, FunctionsBase, FunctionsSize):
		return byte(f.functions.State() >> (8 * (addr - FunctionsBase)))
	case inRange(addr, LevelsBase, LevelsSize):
		return f.samples.Byte(int(addr - LevelsBase))
	case inRange(addr, SendBase, WindowSize):
		return f.send.read(addr)
	case inRange(addr, RecvBase, WindowSize):
		return f.recv.read(addr)
	}
	return 0
}

// Write stores v at addr. Only the prepared send slot is writable; the
// levels page, threshold included, is board state the host only reads.
func (f *File) Write(addr uint16, v byte) {
	if inRange(addr, SendBase, WindowSize) {
		f.send.write(addr, v)
	}
}

func (f *File) SendPrepare() uint16 {
	return f.send.Prepare()
}

func (f *File) SendExecute() {
	f.send.Commit()
}

func (f *File) RecvFront() uint16 {
	return f.recv.Front()
}

func (f *File) RecvPopFront() {
	f.recv.Pop()
}

// Outbound takes the oldest message the host queued with SEND
func (f *File) Outbound() ([SlotSize]byte, error) {
	return f.send.Take()
}

// Deliver queues a message for the host to collect with RECV
func (f *File) Deliver(msg []byte) error {
	return f.recv.Push(msg)
}

// Pending returns the number of queued outbound and inbound messages
func (f *File) Pending() (send, recv int) {
	return f.send.Len(), f.recv.Len()
}
