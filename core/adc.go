// Analog sampler and fault reactor glue
// Free-running three channel conversion with a hardware watchdog on the
// current sense channel
package core

import (
	"errors"

	"tinygo.org/x/drivers"
)

// Sample slots. The first SampleChannels slots are written by the
// converter's bulk transfer in sequence order.
const (
	SlotBus       = 0 // VIN/11
	SlotSense     = 1 // current sense, watchdog channel
	SlotReference = 2 // internal reference (VREFINT)
	SlotReserved  = 3
	SlotThreshold = 4 // watchdog high limit, applied at sampler start
	SlotSnapshot  = 5 // sense value captured at the last fault

	SampleChannels = 3
	SampleSlots    = 6
)

// Sampler defaults
const (
	DefaultTickHz            = 1000
	DefaultWatchdogThreshold = 0x0C00
	DefaultBusDivider        = 11
	DefaultSupplyMicrovolts  = 3300000
	ConverterFullScale       = 4095 // 12-bit result
)

var (
	ErrSamplerRunning = errors.New("sampler already running")
	ErrSamplerHalted  = errors.New("sampler halted")
	ErrNoReference    = errors.New("no reference sample")
	ErrNoConverter    = errors.New("no converter driver")
)

// Samples is the sample array. It owns the sample memory; the converter
// only ever gets the channel view.
type Samples struct {
	slots [SampleSlots]uint16
}

// Channels returns the view the converter's bulk transfer writes into.
// Its capacity ends at the last channel slot.
func (s *Samples) Channels() []uint16 {
	return s.slots[:SampleChannels:SampleChannels]
}

// Load returns slot i, 0 when out of range
func (s *Samples) Load(i int) uint16 {
	if i < 0 || i >= SampleSlots {
		return 0
	}
	return s.slots[i]
}

// Store writes slot i
func (s *Samples) Store(i int, v uint16) {
	if i < 0 || i >= SampleSlots {
		return
	}
	s.slots[i] = v
}

// Byte returns byte n of the little endian slot image
func (s *Samples) Byte(n int) byte {
	v := s.Load(n / 2)
	if n%2 == 1 {
		return byte(v >> 8)
	}
	return byte(v)
}

// Threshold returns the watchdog limit, the default when the slot is unset
func (s *Samples) Threshold() uint16 {
	if v := s.Load(SlotThreshold); v != 0 {
		return v
	}
	return DefaultWatchdogThreshold
}

// SamplerState is the sampler lifecycle state
type SamplerState uint8

const (
	SamplerStopped SamplerState = iota
	SamplerRunning
	SamplerHalted // converter overrun; terminal until restarted
)

func (s SamplerState) String() string {
	switch s {
	case SamplerStopped:
		return "stopped"
	case SamplerRunning:
		return "running"
	case SamplerHalted:
		return "halted"
	}
	return "unknown"
}

// SamplerConfig holds the board's analog constants
type SamplerConfig struct {
	TickHz uint32

	// VrefCal is the factory VREFINT reading taken at CalMicrovolts.
	// Zero means no calibration: SupplyMicrovolts is used as VDDA.
	VrefCal          uint16
	CalMicrovolts    uint32
	SupplyMicrovolts uint32

	// BusDivider is the resistor divider ratio on the bus voltage input.
	BusDivider uint32
}

// DefaultSamplerConfig returns the board defaults
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		TickHz:           DefaultTickHz,
		CalMicrovolts:    3000000,
		SupplyMicrovolts: DefaultSupplyMicrovolts,
		BusDivider:       DefaultBusDivider,
	}
}

// Sampler runs the converter and reacts to its interrupts.
// It also implements drivers.Sensor over the latest samples.
type Sampler struct {
	board *Board
	drv   ConverterDriver
	cfg   SamplerConfig
	state SamplerState

	faults uint32 // watchdog breaches seen

	// Results of the last Update, microvolts
	supply uint32
	bus    uint32
	sense  uint32
}

var _ drivers.Sensor = (*Sampler)(nil)

// NewSampler binds a converter to the board's sample array
func NewSampler(b *Board, drv ConverterDriver, cfg SamplerConfig) *Sampler {
	if cfg.TickHz == 0 {
		cfg.TickHz = DefaultTickHz
	}
	if cfg.BusDivider == 0 {
		cfg.BusDivider = DefaultBusDivider
	}
	if cfg.SupplyMicrovolts == 0 {
		cfg.SupplyMicrovolts = DefaultSupplyMicrovolts
	}
	return &Sampler{board: b, drv: drv, cfg: cfg}
}

// State returns the lifecycle state
func (s *Sampler) State() SamplerState {
	return s.state
}

// Faults returns the number of watchdog breaches handled
func (s *Sampler) Faults() uint32 {
	return s.faults
}

// Start starts free-running conversion with the threshold from slot 4
func (s *Sampler) Start() error {
	if s.drv == nil {
		return ErrNoConverter
	}
	if s.state == SamplerRunning {
		return ErrSamplerRunning
	}
	if s.state == SamplerHalted {
		return ErrSamplerHalted
	}
	return s.start()
}

func (s *Sampler) start() error {
	threshold := s.board.Samples.Threshold()
	s.board.Samples.Store(SlotThreshold, threshold)
	err := s.drv.Start(ConverterConfig{
		TickHz:    s.cfg.TickHz,
		Threshold: threshold,
		Samples:   s.board.Samples.Channels(),
	})
	if err != nil {
		return err
	}
	s.state = SamplerRunning
	RecordEvent(EvtSampler, uint8(SamplerRunning), uint32(threshold), 0)
	return nil
}

// Restart stops the converter, clears both converter fault flags and starts
// again. It reapplies the threshold from slot 4 and is the only way out of
// Halted. The host reaches it with ENABLE(FunctionSampler), so it runs in
// the chip-select ISR and must not block or allocate.
func (s *Sampler) Restart() error {
	if s.drv == nil {
		return ErrNoConverter
	}
	if s.state == SamplerRunning {
		s.drv.Stop()
	}
	s.drv.Clear(ConverterWatchdog | ConverterOverrun)
	s.board.Status.Clear(StatusConverterFault | StatusPowerFault)
	s.state = SamplerStopped
	return s.start()
}

// Stop halts conversion without flagging a fault
func (s *Sampler) Stop() {
	if s.drv != nil && s.state == SamplerRunning {
		s.drv.Stop()
	}
	s.state = SamplerStopped
}

// Switch is the FunctionSampler handler: on restarts, off stops
func (s *Sampler) Switch(on bool) {
	if !on {
		s.Stop()
		return
	}
	if err := s.Restart(); err != nil {
		RecordEvent(EvtSampler, uint8(s.state), 0, 1)
	}
}

// HandleIRQ services the converter interrupt. Runs at the highest priority.
func (s *Sampler) HandleIRQ() {
	pending := s.drv.Pending()

	if pending&ConverterWatchdog != 0 {
		s.board.Power.PowerFault()
		sense := s.board.Samples.Load(SlotSense)
		s.board.Samples.Store(SlotSnapshot, sense)
		s.board.Status.Set(StatusPowerFault)
		s.drv.Clear(ConverterWatchdog)
		s.faults++
		RecordEvent(EvtWatchdog, 0, uint32(sense), s.faults)
	}

	if pending&ConverterOverrun != 0 {
		s.drv.Clear(ConverterOverrun)
		s.drv.Stop()
		s.board.Status.Set(StatusConverterFault)
		s.state = SamplerHalted
		RecordEvent(EvtOverrun, 0, 0, 0)
	}
}

// Update converts the latest raw samples. Only drivers.Voltage is measured.
func (s *Sampler) Update(which drivers.Measurement) error {
	if which&drivers.Voltage == 0 {
		return nil
	}
	supply := s.cfg.SupplyMicrovolts
	if s.cfg.VrefCal != 0 {
		ref := s.board.Samples.Load(SlotReference)
		if ref == 0 {
			return ErrNoReference
		}
		supply = uint32(uint64(s.cfg.CalMicrovolts) * uint64(s.cfg.VrefCal) / uint64(ref))
	}
	s.supply = supply
	s.sense = s.toMicrovolts(s.board.Samples.Load(SlotSense))
	s.bus = s.toMicrovolts(s.board.Samples.Load(SlotBus)) * s.cfg.BusDivider
	return nil
}

func (s *Sampler) toMicrovolts(raw uint16) uint32 {
	return uint32(uint64(raw) * uint64(s.supply) / ConverterFullScale)
}

// Supply returns the analog supply from the last Update, in microvolts
func (s *Sampler) Supply() uint32 {
	return s.supply
}

// BusVoltage returns the bus voltage from the last Update, in microvolts
func (s *Sampler) BusVoltage() uint32 {
	return s.bus
}

// SenseVoltage returns the current sense voltage from the last Update, in microvolts
func (s *Sampler) SenseVoltage() uint32 {
	return s.sense
}
