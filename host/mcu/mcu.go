package mcu

import (
	"errors"
	"fmt"
	"io"

	"github.com/golang/glog"

	"pimaster/host/console"
	"pimaster/host/serial"
)

// MCU is a connection to the bridge firmware's debug UART
type MCU struct {
	port   serial.Port
	reader *console.Reader

	// Connection state
	connected bool

	// Counters since connect
	Lines     int
	Events    int
	Telemetry int
	Malformed int

	last *console.Telemetry
}

// ErrNotConnected is returned by reads before Connect
var ErrNotConnected = errors.New("not connected to MCU")

// NewMCU creates a new MCU instance (not yet connected)
func NewMCU() *MCU {
	return &MCU{}
}

// Connect connects to an MCU via serial port
func (m *MCU) Connect(device string) error {
	return m.ConnectWithConfig(serial.Config{Device: device})
}

// ConnectWithConfig connects to an MCU with a custom serial config
func (m *MCU) ConnectWithConfig(cfg serial.Config) error {
	port, err := serial.Open(cfg)
	if err != nil {
		return fmt.Errorf("failed to open serial port: %w", err)
	}
	// drop whatever the firmware printed before we attached
	if err := port.Flush(); err != nil {
		glog.Warningf("flush %s: %v", cfg.Device, err)
	}
	m.Attach(port)
	glog.Infof("connected to %s at %d baud", cfg.Device, cfg.Rate())
	return nil
}

// Attach uses an already open port
func (m *MCU) Attach(port serial.Port) {
	m.port = port
	m.reader = console.NewReader(port)
	m.connected = true
	m.Lines, m.Events, m.Telemetry, m.Malformed = 0, 0, 0, 0
	m.last = nil
}

// Close closes the connection to the MCU
func (m *MCU) Close() error {
	if m.port != nil {
		if err := m.port.Close(); err != nil {
			return err
		}
	}
	m.connected = false
	return nil
}

// IsConnected returns true if connected to MCU
func (m *MCU) IsConnected() bool {
	return m.connected
}

// LastTelemetry returns the most recent level report, nil before the first
func (m *MCU) LastTelemetry() *console.Telemetry {
	return m.last
}

// Next returns the next decoded record. Malformed lines are counted,
// logged and returned as text.
func (m *MCU) Next() (console.Record, error) {
	if !m.connected {
		return console.Record{}, ErrNotConnected
	}
	rec, err := m.reader.Next()
	if err != nil && !errors.Is(err, console.ErrMalformed) {
		return rec, err
	}
	m.Lines++
	if err != nil {
		m.Malformed++
		glog.V(2).Infof("%v", err)
	}
	switch rec.Kind {
	case console.KindEvent:
		m.Events++
	case console.KindTelemetry:
		m.Telemetry++
		m.last = rec.Telemetry
	}
	return rec, nil
}

// Follow hands every record to fn until the stream ends or fn fails.
// A closed stream is not an error.
func (m *MCU) Follow(fn func(console.Record) error) error {
	for {
		rec, err := m.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
