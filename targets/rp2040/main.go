//go:build rp2040

package main

import (
	"device/arm"
	"device/rp"
	"machine"
	"runtime/interrupt"
	"time"

	"pimaster/core"
	"pimaster/registers"
	"pimaster/targets/pio"
)

// NVIC priorities, lower is more urgent. The converter interrupt must be
// able to preempt a chip select handler that is waiting for a byte.
const (
	priorityConverter = 0x00
	prioritySelect    = 0x40
	priorityByte      = 0x80
)

var (
	// Interrupt handlers reach these through package scope
	slave     *core.Slave
	converter *RPConverter

	// Debug counters
	bootErrors uint32
)

func main() {
	// CRITICAL: Disable watchdog on boot to clear any previous state
	// This prevents issues with watchdog persisting across resets
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitDebugUART()
	InitClock()

	status := &core.Status{}
	samples := &core.Samples{}
	functions := core.NewFunctionTable()
	registerFunctionPins(functions)

	board := &core.Board{
		Registers: registers.New(status, samples, functions),
		Functions: functions,
		Power:     core.NewReactor(functions, watchdogReset),
		Status:    status,
		Samples:   samples,
	}
	if err := board.Validate(); err != nil {
		fatal("board: " + err.Error())
	}
	reactor := board.Power.(*core.Reactor)

	// SPI slave on a PIO state machine
	shifter, err := pio.NewSPISlave()
	if err != nil {
		fatal("pio: " + err.Error())
	}
	if err := shifter.Configure(slavePins); err != nil {
		fatal("pio: " + err.Error())
	}
	slave = core.NewSlave(board, shifter)

	byteIRQ := interrupt.New(rp.IRQ_PIO0_IRQ_0, func(interrupt.Interrupt) {
		slave.HandleByte()
	})
	if shifter.PIONum() == 1 {
		byteIRQ = interrupt.New(rp.IRQ_PIO1_IRQ_0, func(interrupt.Interrupt) {
			slave.HandleByte()
		})
	}
	byteIRQ.SetPriority(priorityByte)
	byteIRQ.Enable()

	slavePins.CS.SetInterrupt(machine.PinFalling|machine.PinRising, func(machine.Pin) {
		slave.HandleSelect(shifter.Selected())
	})
	arm.SetPriority(rp.IRQ_IO_IRQ_BANK0, prioritySelect)

	// Sampler on ADC + DMA
	converter = NewRPConverter()
	core.SetConverterDriver(converter)
	cfg := core.DefaultSamplerConfig()
	cfg.VrefCal = core.ConverterFullScale
	cfg.CalMicrovolts = referenceMicrovolts
	sampler := core.NewSampler(board, core.MustConverter(), cfg)
	converter.IRQ = sampler.HandleIRQ
	functions.Register(core.FunctionSampler, sampler.Switch)

	dmaIRQ := interrupt.New(rp.IRQ_DMA_IRQ_0, func(interrupt.Interrupt) {
		converter.handleDMA()
	})
	dmaIRQ.SetPriority(priorityConverter)
	dmaIRQ.Enable()

	// Bus power comes up with the sampler watching it
	functions.EnableFunction(core.FunctionBusPower)
	functions.EnableFunction(core.FunctionSampler)
	if sampler.State() != core.SamplerRunning {
		core.DebugPrintln("[ADC] sampler failed to start")
		bootErrors++
	}

	telemetry := core.NewTelemetry(sampler, status, telemetryPeriodUS)
	telemetry.Start()

	core.DebugPrintln("[BOOT] ready in " + utoa(uptimeMS()) + "ms, pio" + utoa(uint32(shifter.PIONum())) +
		", threshold=" + utoa(uint32(samples.Threshold())) + " errors=" + utoa(bootErrors))

	faults := reactor.Faults()
	samplerState := sampler.State()
	for {
		syncClock()
		core.ProcessTimers()

		// post-mortem output runs here, never in the interrupt
		if n := reactor.Faults(); n != faults {
			faults = n
			core.DebugPrintln("[POWER] fault #" + utoa(n) + " at " + utoa(uptimeMS()) + "ms, bus power dropped")
			core.DumpEventRing()
		}
		if st := sampler.State(); st != samplerState {
			samplerState = st
			core.DebugPrintln("[ADC] sampler " + st.String() + ", threshold=" + utoa(uint32(samples.Threshold())))
		}

		time.Sleep(100 * time.Microsecond)
	}
}

// watchdogReset resets the chip through the watchdog; used for the RESET
// command. It never returns.
func watchdogReset() {
	machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 1})
	machine.Watchdog.Start()
	for {
	}
}

// fatal reports a setup failure and parks the core
func fatal(msg string) {
	core.DebugPrintln("[FATAL] " + msg)
	for {
		time.Sleep(time.Second)
	}
}

// utoa converts uint32 to string without importing strconv (for embedded)
func utoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	pos := len(buf)
	for v > 0 {
		pos--
		buf[pos] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[pos:])
}
