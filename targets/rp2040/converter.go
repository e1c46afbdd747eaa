//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"machine"
	"runtime/volatile"
	"sync/atomic"
	"unsafe"

	"pimaster/core"
)

// ADC clock is fixed at 48MHz; one conversion takes 96 cycles
const (
	adcClockHz      = 48000000
	adcMinDivider   = 96
	dreqADC         = 36
	dreqPermanent   = 0x3f
	converterDMACh  = 0                          // ADC FIFO -> channel view
	reloadDMACh     = 1                          // rewinds channel 0 after every sequence
	converterRRMask = 1<<core.SampleChannels - 1 // AIN0..AIN2 round robin
)

var (
	ErrConverterRunning = errors.New("converter already running")
	ErrBadSampleView    = errors.New("sample view must cover every channel")
	ErrBadTickRate      = errors.New("tick rate out of range")
)

// RPConverter implements core.ConverterDriver with the RP2040 ADC in
// free-running round robin mode and a DMA channel moving each sequence
// into the sample array. A second channel chained behind it writes the
// view's address back into the first channel's write-address trigger
// alias, so the capture recurs without the CPU. The chip has no analog
// watchdog, so the DMA completion interrupt compares the sense channel
// against the threshold.
type RPConverter struct {
	samples   []uint16
	rewind    uint32 // address of samples[0], read by the reload channel
	threshold uint16
	pending   uint32 // atomic core.ConverterEvents
	running   bool

	// IRQ runs after pending events were raised
	IRQ func()
}

var _ core.ConverterDriver = (*RPConverter)(nil)

// NewRPConverter configures the analog pins; conversion starts with Start
func NewRPConverter() *RPConverter {
	machine.InitADC()
	for _, pin := range []machine.Pin{machine.ADC0, machine.ADC1, machine.ADC2} {
		adc := machine.ADC{Pin: pin}
		adc.Configure(machine.ADCConfig{})
	}
	return &RPConverter{}
}

func captureCtrl() uint32 {
	return rp.DMA_CH0_CTRL_TRIG_EN |
		1<<rp.DMA_CH0_CTRL_TRIG_DATA_SIZE_Pos | // halfword
		rp.DMA_CH0_CTRL_TRIG_INCR_WRITE |
		dreqADC<<rp.DMA_CH0_CTRL_TRIG_TREQ_SEL_Pos |
		reloadDMACh<<rp.DMA_CH0_CTRL_TRIG_CHAIN_TO_Pos
}

func reloadCtrl() uint32 {
	return rp.DMA_CH1_CTRL_TRIG_EN |
		2<<rp.DMA_CH1_CTRL_TRIG_DATA_SIZE_Pos | // word
		dreqPermanent<<rp.DMA_CH1_CTRL_TRIG_TREQ_SEL_Pos |
		reloadDMACh<<rp.DMA_CH1_CTRL_TRIG_CHAIN_TO_Pos | // chain to self: none
		rp.DMA_CH1_CTRL_TRIG_IRQ_QUIET
}

// Start begins sampling at cfg.TickHz sequences per second
func (c *RPConverter) Start(cfg core.ConverterConfig) error {
	if c.running {
		return ErrConverterRunning
	}
	if len(cfg.Samples) < core.SampleChannels {
		return ErrBadSampleView
	}
	rate := cfg.TickHz * core.SampleChannels
	if rate == 0 || adcClockHz/rate < adcMinDivider {
		return ErrBadTickRate
	}

	c.samples = cfg.Samples
	c.threshold = cfg.Threshold
	atomic.StoreUint32(&c.pending, 0)

	// stop, then drain anything left from a previous run
	rp.ADC.CS.ClearBits(rp.ADC_CS_START_MANY)
	for rp.ADC.FCS.Get()>>rp.ADC_FCS_LEVEL_Pos&0xf != 0 {
		rp.ADC.FIFO.Get()
	}
	rp.ADC.FCS.Set(rp.ADC_FCS_EN | rp.ADC_FCS_DREQ_EN |
		1<<rp.ADC_FCS_THRESH_Pos |
		rp.ADC_FCS_OVER | rp.ADC_FCS_UNDER) // write one to clear
	rp.ADC.DIV.Set((adcClockHz/rate - 1) << rp.ADC_DIV_INT_Pos)

	c.arm()
	rp.DMA.INTE0.SetBits(1 << converterDMACh)

	rp.ADC.CS.Set(rp.ADC_CS_EN | rp.ADC_CS_START_MANY |
		converterRRMask<<rp.ADC_CS_RROBIN_Pos)
	c.running = true
	return nil
}

// arm sets up the reload channel without triggering it, then starts the
// capture channel at the start of the channel view
func (c *RPConverter) arm() {
	c.rewind = uint32(uintptr(unsafe.Pointer(&c.samples[0])))

	rp.DMA.CH1_READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&c.rewind))))
	rp.DMA.CH1_WRITE_ADDR.Set(uint32(uintptr(unsafe.Pointer(&rp.DMA.CH0_AL2_WRITE_ADDR_TRIG))))
	rp.DMA.CH1_TRANS_COUNT.Set(1)
	rp.DMA.CH1_AL1_CTRL.Set(reloadCtrl())

	// TRANS_COUNT is the reload value copied in on every trigger
	rp.DMA.CH0_READ_ADDR.Set(uint32(uintptr(unsafe.Pointer(&rp.ADC.FIFO))))
	rp.DMA.CH0_WRITE_ADDR.Set(c.rewind)
	rp.DMA.CH0_TRANS_COUNT.Set(core.SampleChannels)
	rp.DMA.CH0_CTRL_TRIG.Set(captureCtrl())
}

// Stop halts conversions and the transfer
func (c *RPConverter) Stop() {
	rp.ADC.CS.ClearBits(rp.ADC_CS_START_MANY)
	rp.DMA.INTE0.ClearBits(1 << converterDMACh)

	// break the chain first or the reload channel restarts the capture
	rp.DMA.CH1_AL1_CTRL.ClearBits(rp.DMA_CH1_CTRL_TRIG_EN)
	const both = 1<<converterDMACh | 1<<reloadDMACh
	rp.DMA.CHAN_ABORT.Set(both)
	for rp.DMA.CHAN_ABORT.Get()&both != 0 {
	}
	c.running = false
}

// Pending returns raised events not yet cleared
func (c *RPConverter) Pending() core.ConverterEvents {
	return core.ConverterEvents(atomic.LoadUint32(&c.pending))
}

// Clear acknowledges ev
func (c *RPConverter) Clear(ev core.ConverterEvents) {
	for {
		old := atomic.LoadUint32(&c.pending)
		if atomic.CompareAndSwapUint32(&c.pending, old, old&^uint32(ev)) {
			return
		}
	}
}

func (c *RPConverter) raise(ev core.ConverterEvents) {
	for {
		old := atomic.LoadUint32(&c.pending)
		if atomic.CompareAndSwapUint32(&c.pending, old, old|uint32(ev)) {
			return
		}
	}
}

// handleDMA runs on DMA_IRQ_0 after every completed sequence. The next
// sequence is already being captured when it runs.
func (c *RPConverter) handleDMA() {
	rp.DMA.INTS0.Set(1 << converterDMACh)
	if !c.running {
		return
	}

	// a full FIFO means the sequence lost a conversion and the channel
	// order in memory can no longer be trusted
	if rp.ADC.FCS.HasBits(rp.ADC_FCS_OVER) {
		c.raise(core.ConverterOverrun)
	} else if volatile.LoadUint16(&c.samples[core.SlotSense]) > c.threshold {
		c.raise(core.ConverterWatchdog)
	}
	if c.IRQ != nil && c.Pending() != 0 {
		c.IRQ()
	}
}
