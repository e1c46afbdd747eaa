//go:build rp2040 || rp2350

package pio

// PIO SPI slave shifter using tinygo-org/pio
// Mode 0, MSB first, one byte per FIFO word in each direction.

import (
	"device/rp"
	"machine"
	"runtime/volatile"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"pimaster/core"
)

// PIO program for the slave shifter. Pin layout:
//
//	in base     MOSI
//	in base+1   SCK
//	out base    MISO
//
// Program flow:
//  1. Pull the next reply byte; with the TX FIFO empty PULL NOBLOCK copies
//     X (the idle byte) instead
//  2. For 8 bits: drive MISO, wait for SCK high, sample MOSI, wait for SCK low
//  3. Autopush delivers the received byte to the RX FIFO
//
// buildSlaveProgram creates the slave PIO program using AssemblerV0
func buildSlaveProgram() []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, false).Encode(),      // 0: pull noblock
		asm.Set(rp2pio.SetDestY, 7).Encode(), // 1: set y, 7
		// bit_loop:
		asm.Out(rp2pio.OutDestPins, 1).Encode(),  // 2: out pins, 1 (MISO)
		asm.WaitPin(true, 1).Encode(),            // 3: wait 1 pin 1 (SCK rising)
		asm.In(rp2pio.InSrcPins, 1).Encode(),     // 4: in pins, 1 (MOSI)
		asm.WaitPin(false, 1).Encode(),           // 5: wait 0 pin 1 (SCK falling)
		asm.Jmp(2, rp2pio.JmpYNZeroDec).Encode(), // 6: jmp y--, bit_loop
		// .wrap
	}
}

const slavePIOOrigin = -1 // relocatable: jumps are patched by AddProgram

// SlaveConfig is the pin assignment of the slave link. SCK must be MOSI+1.
type SlaveConfig struct {
	MOSI machine.Pin
	SCK  machine.Pin
	MISO machine.Pin
	CS   machine.Pin
}

// SPISlave implements core.SPISlaveDriver on a PIO state machine.
// Chip select is watched by the target through a GPIO interrupt; the
// shifter itself only sees SCK.
type SPISlave struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	asm    rp2pio.AssemblerV0
	cfg    SlaveConfig
	offset uint8
	pioNum uint8
	smNum  uint8
}

var _ core.SPISlaveDriver = (*SPISlave)(nil)

// NewSPISlave claims a free state machine
func NewSPISlave() (*SPISlave, error) {
	block, index, sm, err := claimStateMachine()
	if err != nil {
		return nil, err
	}
	pioHW := rp2pio.PIO0
	if block == 1 {
		pioHW = rp2pio.PIO1
	}
	return &SPISlave{
		pio:    pioHW,
		sm:     sm,
		pioNum: block,
		smNum:  index,
	}, nil
}

// Configure loads the program and starts the shifter. On error the state
// machine is handed back.
func (s *SPISlave) Configure(cfg SlaveConfig) error {
	if cfg.SCK != cfg.MOSI+1 {
		s.sm.Unclaim()
		return ErrInvalidPins
	}
	s.cfg = cfg

	program := buildSlaveProgram()
	offset, err := s.pio.AddProgram(program, slavePIOOrigin)
	if err != nil {
		s.sm.Unclaim()
		return err
	}
	s.offset = offset

	cfg.MOSI.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	cfg.SCK.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	cfg.MISO.Configure(machine.PinConfig{Mode: s.pio.PinMode()})
	cfg.CS.Configure(machine.PinConfig{Mode: machine.PinInputPullup})

	smCfg := rp2pio.DefaultStateMachineConfig()
	smCfg.SetInPins(cfg.MOSI)
	smCfg.SetOutPins(cfg.MISO, 1)

	// MSB first both ways; autopush every byte, explicit pull
	smCfg.SetInShift(false, true, 8)
	smCfg.SetOutShift(false, false, 8)
	smCfg.SetWrap(offset+uint8(len(program))-1, offset)

	// Full system clock so SCK edges are sampled promptly
	smCfg.SetClkDivIntFrac(1, 0)

	s.sm.Init(offset, smCfg)
	s.sm.SetPindirsConsecutive(cfg.MOSI, 2, false)
	s.sm.SetPindirsConsecutive(cfg.MISO, 1, true)
	s.Release()
	return nil
}

// Selected reports whether the master holds chip select low
func (s *SPISlave) Selected() bool {
	return !s.cfg.CS.Get()
}

// PIONum returns the PIO block the shifter runs on
func (s *SPISlave) PIONum() uint8 {
	return s.pioNum
}

// RecvByte waits for the next received byte. It gives up only when chip
// select is released.
func (s *SPISlave) RecvByte() (byte, bool) {
	for s.sm.IsRxFIFOEmpty() {
		if !s.Selected() {
			return 0, false
		}
	}
	return byte(s.sm.RxGet()), true
}

// LoadByte queues the byte shifted out during the next transfer
func (s *SPISlave) LoadByte(b byte) {
	if !s.sm.IsTxFIFOFull() {
		s.sm.TxPut(uint32(b) << 24)
	}
}

func (s *SPISlave) inte() *volatile.Register32 {
	if s.pioNum == 0 {
		return &rp.PIO0.IRQ0_INTE
	}
	return &rp.PIO1.IRQ0_INTE
}

// EnableByteIRQ raises PIOx_IRQ_0 while the RX FIFO is not empty
func (s *SPISlave) EnableByteIRQ() {
	s.inte().SetBits(1 << s.smNum)
}

// DisableByteIRQ masks the RX FIFO interrupt
func (s *SPISlave) DisableByteIRQ() {
	s.inte().ClearBits(1 << s.smNum)
}

// Release drops any partial byte and queued data and parks MISO at the
// idle byte until the next select.
func (s *SPISlave) Release() {
	s.sm.SetEnabled(false)
	s.sm.ClearFIFOs()
	s.sm.Restart()
	s.sm.Exec(s.asm.Set(rp2pio.SetDestX, 0).Encode())
	s.sm.Exec(s.asm.Jmp(s.offset, rp2pio.JmpAlways).Encode())
	s.sm.SetPinsConsecutive(s.cfg.MISO, 1, false)
	s.sm.SetEnabled(true)
}
