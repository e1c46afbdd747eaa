// Package serial opens the bridge's debug UART on the host
package serial

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

// DebugBaud is the firmware's debug UART rate
const DebugBaud = 115200

var ErrNoDevice = errors.New("serial: no device given")

// Port is the host end of the debug UART
type Port interface {
	io.ReadWriteCloser

	// Flush discards input received but not read yet
	Flush() error
}

// Config selects the device. Zero fields take the debug UART defaults.
type Config struct {
	Device      string
	Baud        int
	ReadTimeout time.Duration // 0 blocks
}

// Rate returns the baud rate Open will use
func (c Config) Rate() int {
	if c.Baud == 0 {
		return DebugBaud
	}
	return c.Baud
}

// tarmPort gets Read, Write, Close and Flush from the tarm port
type tarmPort struct {
	*serial.Port
}

// Open opens cfg.Device with 8N1 framing
func Open(cfg Config) (Port, error) {
	if cfg.Device == "" {
		return nil, ErrNoDevice
	}
	p, err := serial.OpenPort(&serial.Config{
		Name:        cfg.Device,
		Baud:        cfg.Rate(),
		ReadTimeout: cfg.ReadTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.Device, err)
	}
	return tarmPort{p}, nil
}
