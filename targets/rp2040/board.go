//go:build rp2040

package main

import (
	"machine"

	"pimaster/core"
	"pimaster/targets/pio"
)

// Pin map of the bridge board
var (
	slavePins = pio.SlaveConfig{
		MOSI: machine.GPIO16,
		SCK:  machine.GPIO17, // must follow MOSI
		MISO: machine.GPIO19,
		CS:   machine.GPIO18,
	}

	debugTX = machine.GPIO0
	debugRX = machine.GPIO1

	// function id -> output pin; true means active low
	functionPins = map[core.FunctionID]functionPin{
		core.FunctionBusPower:       {pin: machine.GPIO2},
		core.FunctionPowerIn:        {pin: machine.GPIO3},
		core.FunctionLEDRed:         {pin: machine.GPIO4},
		core.FunctionLEDYellow:      {pin: machine.GPIO5},
		core.FunctionCANRxInterrupt: {pin: machine.GPIO6, activeLow: true},
		core.FunctionCANTxInterrupt: {pin: machine.GPIO7, activeLow: true},
		core.FunctionCANTermination: {pin: machine.GPIO8},
	}
)

// Converter calibration. AIN2 carries an external 2.048V reference, so a
// full scale reading of it corresponds to the reference voltage.
const (
	referenceMicrovolts = 2048000
	telemetryPeriodUS   = 1000000
)

type functionPin struct {
	pin       machine.Pin
	activeLow bool
}

// registerFunctionPins drives every mapped function from the table.
// All outputs start inactive.
func registerFunctionPins(table *core.FunctionTable) {
	for id, fp := range functionPins {
		fp := fp
		fp.pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
		fp.pin.Set(fp.activeLow)
		table.Register(id, func(on bool) {
			fp.pin.Set(on != fp.activeLow)
		})
	}
}
