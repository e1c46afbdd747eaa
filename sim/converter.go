package sim

import (
	"errors"

	"pimaster/core"
)

var (
	ErrConverterRunning = errors.New("converter already running")
	ErrBadSampleView    = errors.New("sample view must hold one slot per channel")
	ErrBadTick          = errors.New("tick rate out of range")
)

// Converter is a simulated three channel converter. Each tick of the core
// timer converts the channel sequence, writes it circularly into the
// sample view and compares the sense channel against the threshold.
type Converter struct {
	inputs [core.SampleChannels]uint16

	dst       []uint16
	next      int // circular transfer position
	threshold uint16
	period    uint32
	running   bool
	timer     core.Timer

	pending     core.ConverterEvents
	overrunNext bool

	// IRQ is the converter interrupt line
	IRQ func()

	Sequences uint32 // completed conversion sequences
}

var _ core.ConverterDriver = (*Converter)(nil)

// NewConverter creates a stopped converter
func NewConverter() *Converter {
	c := &Converter{}
	c.timer.Handler = c.tick
	return c
}

// SetInput sets the raw value a channel converts to
func (c *Converter) SetInput(ch int, raw uint16) {
	if ch < 0 || ch >= core.SampleChannels {
		return
	}
	if raw > core.ConverterFullScale {
		raw = core.ConverterFullScale
	}
	c.inputs[ch] = raw
}

// Input returns the raw value of channel ch
func (c *Converter) Input(ch int) uint16 {
	if ch < 0 || ch >= core.SampleChannels {
		return 0
	}
	return c.inputs[ch]
}

// InjectOverrun makes the next sequence lose a conversion
func (c *Converter) InjectOverrun() {
	c.overrunNext = true
}

// Running reports whether the trigger timer is active
func (c *Converter) Running() bool {
	return c.running
}

// Threshold returns the active watchdog limit
func (c *Converter) Threshold() uint16 {
	return c.threshold
}

// Period returns the trigger period in timer ticks
func (c *Converter) Period() uint32 {
	return c.period
}

func (c *Converter) Start(cfg core.ConverterConfig) error {
	if c.running {
		return ErrConverterRunning
	}
	if len(cfg.Samples) != core.SampleChannels {
		return ErrBadSampleView
	}
	period := core.TimerFromHz(cfg.TickHz)
	if period == 0 {
		return ErrBadTick
	}
	c.dst = cfg.Samples
	c.next = 0
	c.threshold = cfg.Threshold
	c.period = period
	c.running = true
	c.timer.WakeTime = core.GetTime() + period
	core.ScheduleTimer(&c.timer)
	return nil
}

func (c *Converter) Stop() {
	c.running = false
	core.CancelTimer(&c.timer)
}

func (c *Converter) Pending() core.ConverterEvents {
	return c.pending
}

func (c *Converter) Clear(ev core.ConverterEvents) {
	c.pending &^= ev
}

// tick converts one sequence
func (c *Converter) tick(t *core.Timer) uint8 {
	if !c.running {
		return core.SF_DONE
	}

	for ch := 0; ch < core.SampleChannels; ch++ {
		if c.overrunNext && ch == core.SampleChannels-1 {
			// result lost before the transfer picked it up
			c.overrunNext = false
			c.pending |= core.ConverterOverrun
			break
		}
		v := c.inputs[ch]
		c.dst[c.next] = v
		c.next = (c.next + 1) % len(c.dst)
		if ch == core.SlotSense && v > c.threshold {
			c.pending |= core.ConverterWatchdog
		}
	}
	c.Sequences++

	if c.pending != 0 && c.IRQ != nil {
		c.IRQ()
	}
	if !c.running {
		return core.SF_DONE
	}
	t.WakeTime += c.period
	return core.SF_RESCHEDULE
}
