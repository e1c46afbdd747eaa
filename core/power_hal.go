package core

// PowerController performs the board's protective and reset actions.
// Target code provides the implementation; core only triggers it.
type PowerController interface {
	// PowerFault takes the protective action for an over-current or
	// over-voltage condition (e.g. drop the bus power enable line).
	// Called from the converter ISR at the highest priority: must not block.
	PowerFault()

	// SystemReset resets the processor. On hardware it never returns.
	SystemReset()
}
