package core

// ConverterEvents is the set of pending converter interrupt causes
type ConverterEvents uint8

const (
	ConverterWatchdog ConverterEvents = 1 << iota // sense channel crossed the threshold
	ConverterOverrun                              // a conversion was lost before transfer
)

// ConverterConfig is the high-level config the sampler hands to the hardware.
type ConverterConfig struct {
	// TickHz is the conversion sequence trigger rate.
	TickHz uint32

	// Threshold is the upper bound for the watchdog channel (raw counts).
	Threshold uint16

	// Samples is the circular transfer destination, one slot per channel
	// in sequence order. The driver writes it from DMA or ISR context.
	Samples []uint16
}

// ConverterDriver is the abstract analog converter that the sampler uses.
// It owns the trigger timer, the channel sequence, the bulk transfer
// and the hardware watchdog on the sense channel.
type ConverterDriver interface {
	// Start configures and starts free-running conversion.
	Start(cfg ConverterConfig) error

	// Stop halts triggering and the bulk transfer.
	Stop()

	// Pending returns the interrupt causes that are currently flagged.
	Pending() ConverterEvents

	// Clear acknowledges the given causes.
	Clear(ev ConverterEvents)
}

// Global singleton used by target code that has a single converter.
var converterDriver ConverterDriver

// SetConverterDriver is called by target-specific code to register its driver.
func SetConverterDriver(d ConverterDriver) {
	converterDriver = d
}

// MustConverter returns the configured driver or panics if missing.
func MustConverter() ConverterDriver {
	if converterDriver == nil {
		panic("converter driver not configured")
	}
	return converterDriver
}
