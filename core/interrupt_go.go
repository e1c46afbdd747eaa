//go:build !tinygo

package core

// State is a placeholder for interrupt state on the host
type State uintptr

// disableInterrupts is a no-op on the host; handlers run on the caller's goroutine
func disableInterrupts() State {
	return 0
}

func restoreInterrupts(state State) {}
