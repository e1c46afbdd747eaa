//go:build rp2040 || rp2350

package pio

import (
	"errors"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"
)

var (
	ErrNoStateMachine = errors.New("no free PIO state machine")
	ErrInvalidPins    = errors.New("SCK must be the pin after MOSI")
)

const stateMachinesPerBlock = 4

// claimStateMachine claims the first free state machine, PIO0 first.
// The claim lives in the PIO block, so other users of the library see it.
func claimStateMachine() (block, index uint8, sm rp2pio.StateMachine, err error) {
	for i, hw := range []*rp2pio.PIO{rp2pio.PIO0, rp2pio.PIO1} {
		for n := uint8(0); n < stateMachinesPerBlock; n++ {
			sm = hw.StateMachine(n)
			if sm.TryClaim() {
				return uint8(i), n, sm, nil
			}
		}
	}
	return 0, 0, sm, ErrNoStateMachine
}
