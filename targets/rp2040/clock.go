//go:build rp2040

package main

import (
	"device/rp"

	"pimaster/core"
)

// The RP2040 timer counts microseconds in 64 bits. Core time is its low
// word, which wraps about every 71 minutes; the scheduler compares wrap-safe.

// InitClock publishes the hardware time before the scheduler starts
func InitClock() {
	syncClock()
	core.TimerInit()
}

// syncClock copies the timer's low word into core time.
// Called from the main loop before ProcessTimers.
func syncClock() {
	core.SetTime(rp.TIMER.TIMERAWL.Get())
}

// uptimeUS returns the full 64-bit counter. The high word is read on
// both sides of the low word so a carry between the reads is caught.
func uptimeUS() uint64 {
	for {
		hi := rp.TIMER.TIMERAWH.Get()
		lo := rp.TIMER.TIMERAWL.Get()
		if rp.TIMER.TIMERAWH.Get() == hi {
			return uint64(hi)<<32 | uint64(lo)
		}
	}
}

// uptimeMS is uptimeUS in milliseconds for log lines
func uptimeMS() uint32 {
	return uint32(uptimeUS() / 1000)
}
