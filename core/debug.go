package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// RingEvent captures an interrupt-path event for post-mortem analysis
type RingEvent struct {
	Type   uint8  // Event type code
	Arg    uint8  // Command byte, function id, ...
	Clock  uint32 // System clock at event
	Value1 uint32 // Context-dependent value
	Value2 uint32 // Context-dependent value
}

// Event type codes
const (
	EvtSelect   = 1  // chip-select asserted
	EvtCommand  = 2  // command byte classified; arg=command, v1=opcode
	EvtCommit   = 3  // send slot executed; v1=slot address
	EvtPop      = 4  // recv slot popped; v1=slot address
	EvtDeselect = 5  // chip-select released; v1=bytes clocked
	EvtReject   = 6  // queue had no slot; arg=command
	EvtWatchdog = 7  // sense channel over threshold; v1=snapshot
	EvtOverrun  = 8  // converter overrun, sampler halted
	EvtReset    = 9  // system reset requested
	EvtFunction = 10 // function switched; arg=id, v1=on
	EvtSampler  = 11 // sampler (re)started; arg=state, v1=threshold, v2=1 on failure
)

// EventName returns the dump name of an event type
func EventName(t uint8) string {
	switch t {
	case EvtSelect:
		return "SELECT"
	case EvtCommand:
		return "COMMAND"
	case EvtCommit:
		return "COMMIT"
	case EvtPop:
		return "POP"
	case EvtDeselect:
		return "DESELECT"
	case EvtReject:
		return "REJECT"
	case EvtWatchdog:
		return "WATCHDOG!"
	case EvtOverrun:
		return "OVERRUN!"
	case EvtReset:
		return "RESET"
	case EvtFunction:
		return "FUNCTION"
	case EvtSampler:
		return "SAMPLER"
	}
	return "UNKNOWN"
}

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring; head is claimed atomically so nested ISRs never share a slot
	eventRing     [EventRingSize]RingEvent
	eventRingHead uint32
	eventsEnabled bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// SetEventsEnabled turns event capture on or off
func SetEventsEnabled(enabled bool) {
	eventsEnabled = enabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for async output (non-blocking)
// Returns immediately even if channel is full (drops message)
func DebugAsync(msg string) {
	if debugChan != nil {
		select {
		case debugChan <- msg:
		default:
		}
	}
}

// RecordEvent captures an event in the ring buffer.
// Non-blocking and safe from any interrupt priority.
func RecordEvent(eventType, arg uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	idx := (atomic.AddUint32(&eventRingHead, 1) - 1) % EventRingSize
	eventRing[idx] = RingEvent{
		Type:   eventType,
		Arg:    arg,
		Clock:  GetTime(),
		Value1: value1,
		Value2: value2,
	}
}

// Events returns the captured events, oldest first
func Events() []RingEvent {
	head := atomic.LoadUint32(&eventRingHead)
	out := make([]RingEvent, 0, EventRingSize)
	for i := uint32(0); i < EventRingSize; i++ {
		evt := eventRing[(head+i)%EventRingSize]
		if evt.Type == 0 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

// FormatEvent renders one dump line
func FormatEvent(evt RingEvent) string {
	return "[EVENT] " + EventName(evt.Type) +
		" arg=" + hex8(evt.Arg) +
		" clock=" + utoa(evt.Clock) +
		" v1=" + utoa(evt.Value1) +
		" v2=" + utoa(evt.Value2)
}

// DumpEventRing outputs the event ring (call on fault or on request)
// Must not be called from interrupt context
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln(FormatEvent(evt))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		eventRing[i] = RingEvent{}
	}
	atomic.StoreUint32(&eventRingHead, 0)
}
