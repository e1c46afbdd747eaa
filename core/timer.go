package core

import "sync/atomic"

// Timer frequency of the system tick counter
const (
	TimerFreq = 1000000 // 1MHz, the RP2040 timer rate
)

var (
	systemTicks uint32 // atomic; written by the tick source
	bootTime    uint32 // Time at boot for uptime calculation
)

func getSystemTicks() uint32 {
	return atomic.LoadUint32(&systemTicks)
}

func setSystemTicks(ticks uint32) {
	atomic.StoreUint32(&systemTicks, ticks)
}

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// Advance moves the system time forward and runs due timers.
// Used by the simulator in place of a hardware tick source.
func Advance(ticks uint32) {
	SetTime(GetTime() + ticks)
	ProcessTimers()
}

// GetUptime returns ticks since TimerInit
func GetUptime() uint32 {
	return GetTime() - bootTime
}

// TimerFromUS converts microseconds to timer ticks
func TimerFromUS(us uint32) uint32 {
	return uint32(uint64(us) * TimerFreq / 1000000)
}

// TimerToUS converts timer ticks to microseconds
func TimerToUS(ticks uint32) uint32 {
	return uint32(uint64(ticks) * 1000000 / TimerFreq)
}

// TimerFromHz returns the tick period of a rate
func TimerFromHz(hz uint32) uint32 {
	if hz == 0 {
		return 0
	}
	return TimerFreq / hz
}

// TimerInit initializes the system timer
func TimerInit() {
	bootTime = GetTime()
}

// ProcessTimers processes scheduled timers
func ProcessTimers() {
	currentTime = GetTime()
	TimerDispatch()
}
