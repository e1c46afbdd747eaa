package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"

	"pimaster/host/console"
	"pimaster/host/mcu"
	"pimaster/host/serial"
)

var (
	device  = flag.String("device", "/dev/ttyUSB0", "Debug UART device path")
	baud    = flag.Int("baud", serial.DebugBaud, "Debug UART baud rate")
	events  = flag.Bool("events", true, "Print event ring records")
	telem   = flag.Bool("telemetry", true, "Print telemetry records")
	rawText = flag.Bool("text", true, "Print free-form debug lines")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	m := mcu.NewMCU()
	if err := m.ConnectWithConfig(serial.Config{Device: *device, Baud: *baud}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		glog.Info("interrupted")
		m.Close()
	}()

	err := m.Follow(printRecord)
	glog.Infof("lines=%d events=%d telemetry=%d malformed=%d",
		m.Lines, m.Events, m.Telemetry, m.Malformed)
	if err != nil && m.IsConnected() {
		glog.Errorf("read: %v", err)
		os.Exit(1)
	}
}

func printRecord(rec console.Record) error {
	switch rec.Kind {
	case console.KindEvent:
		if *events {
			e := rec.Event
			fmt.Printf("%10d  %-9s arg=0x%02x v1=%d v2=%d\n", e.Clock, e.Name, e.Arg, e.Value1, e.Value2)
		}
	case console.KindTelemetry:
		if *telem {
			printTelemetry(rec.Telemetry)
		}
	case console.KindDumpStart:
		if *events {
			fmt.Println("---- event ring ----")
		}
	case console.KindDumpEnd:
		if *events {
			fmt.Println("--------------------")
		}
	default:
		if *rawText {
			fmt.Println(rec.Raw)
		}
	}
	return nil
}

func printTelemetry(t *console.Telemetry) {
	if t.Error != "" {
		fmt.Printf("levels: error %s status=0x%08x faults=%d sampler=%s\n", t.Error, t.Status, t.Faults, t.Sampler)
		return
	}
	fmt.Printf("levels: bus=%.3fV sense=%.3fV supply=%.3fV status=0x%08x faults=%d sampler=%s\n",
		volts(t.Bus), volts(t.Sense), volts(t.Supply), t.Status, t.Faults, t.Sampler)
}

func volts(uv uint32) float64 {
	return float64(uv) / 1e6
}
