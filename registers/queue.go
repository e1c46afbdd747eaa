package registers

import (
	"errors"
	"sync/atomic"

	"pimaster/core"
)

var (
	ErrQueueFull  = errors.New("queue full")
	ErrQueueEmpty = errors.New("queue empty")
)

// Queue is a ring of fixed size slots mapped at base.
// The SPI side and the CAN side each own one end: a producer fills the
// slot returned by Prepare and publishes it with Commit, the consumer
// reads the slot returned by Front and releases it with Pop.
type Queue struct {
	base  uint16
	slots [QueueSlots][SlotSize]byte

	head  uint32 // next slot to consume
	tail  uint32 // next slot to produce
	count uint32 // atomic, published slots

	prepared int32 // slot handed out by Prepare, -1 when none
}

// NewQueue creates an empty queue mapped at base
func NewQueue(base uint16) *Queue {
	return &Queue{base: base, prepared: -1}
}

// Len returns the number of published slots
func (q *Queue) Len() int {
	return int(atomic.LoadUint32(&q.count))
}

// Prepare reserves the tail slot and returns its address, or NoSlot when
// every slot is published. The slot is cleared.
func (q *Queue) Prepare() uint16 {
	if atomic.LoadUint32(&q.count) >= QueueSlots {
		q.prepared = -1
		return core.NoSlot
	}
	idx := q.tail % QueueSlots
	q.slots[idx] = [SlotSize]byte{}
	q.prepared = int32(idx)
	return q.slotAddress(idx)
}

// Commit publishes the slot handed out by the last Prepare
func (q *Queue) Commit() {
	if q.prepared < 0 {
		return
	}
	q.prepared = -1
	q.tail++
	atomic.AddUint32(&q.count, 1)
}

// Front returns the address of the oldest published slot, or NoSlot
func (q *Queue) Front() uint16 {
	if atomic.LoadUint32(&q.count) == 0 {
		return core.NoSlot
	}
	return q.slotAddress(q.head % QueueSlots)
}

// Pop releases the oldest published slot
func (q *Queue) Pop() {
	if atomic.LoadUint32(&q.count) == 0 {
		return
	}
	q.head++
	atomic.AddUint32(&q.count, ^uint32(0))
}

// Push publishes data as a new slot in one step
func (q *Queue) Push(data []byte) error {
	addr := q.Prepare()
	if addr == core.NoSlot {
		return ErrQueueFull
	}
	copy(q.slots[q.prepared][:], data)
	q.Commit()
	return nil
}

// Take copies out the oldest published slot and releases it
func (q *Queue) Take() ([SlotSize]byte, error) {
	if atomic.LoadUint32(&q.count) == 0 {
		return [SlotSize]byte{}, ErrQueueEmpty
	}
	slot := q.slots[q.head%QueueSlots]
	q.Pop()
	return slot, nil
}

func (q *Queue) slotAddress(idx uint32) uint16 {
	return q.base + uint16(idx*SlotSize)
}

// locate maps addr to slot index and offset
func (q *Queue) locate(addr uint16) (int, int, bool) {
	if !inRange(addr, int(q.base), WindowSize) {
		return 0, 0, false
	}
	off := int(addr - q.base)
	return off / SlotSize, off % SlotSize, true
}

func (q *Queue) read(addr uint16) byte {
	idx, off, ok := q.locate(addr)
	if !ok {
		return 0
	}
	return q.slots[idx][off]
}

// write stores v only inside the prepared slot
func (q *Queue) write(addr uint16, v byte) {
	idx, off, ok := q.locate(addr)
	if !ok || int32(idx) != q.prepared {
		return
	}
	q.slots[idx][off] = v
}
