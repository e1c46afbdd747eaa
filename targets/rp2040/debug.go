//go:build rp2040

package main

import (
	"machine"

	"tinygo.org/x/drivers"

	"pimaster/core"
)

const debugBaud = 115200

var debugUART drivers.UART

// InitDebugUART initializes UART0 on GPIO0 (TX) and GPIO1 (RX) and routes
// the core debug output to it
func InitDebugUART() {
	uart := machine.UART0
	err := uart.Configure(machine.UARTConfig{
		BaudRate: debugBaud,
		TX:       debugTX,
		RX:       debugRX,
	})
	if err != nil {
		return
	}
	debugUART = uart

	core.SetDebugWriter(debugWrite)
	core.SetDebugEnabled(true)
	core.InitAsyncDebug()

	core.DebugPrintln("=== pimaster bridge ===")
}

func debugWrite(s string) {
	if debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}
