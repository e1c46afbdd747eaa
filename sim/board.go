package sim

import (
	"fmt"

	"pimaster/core"
	"pimaster/registers"
)

// BoardConfig is the simulated board setup
type BoardConfig struct {
	TickHz           uint32 `yaml:"tick_hz"`
	Threshold        uint16 `yaml:"threshold"`
	VrefCal          uint16 `yaml:"vref_cal"`
	SupplyMicrovolts uint32 `yaml:"supply_uv"`
	Autostart        *bool  `yaml:"autostart"`
}

// Board is a whole firmware instance on the host: the core engine and
// sampler wired to simulated peripherals and the reference register file.
type Board struct {
	Status    *core.Status
	Samples   *core.Samples
	Functions *core.FunctionTable
	Registers *registers.File
	Reactor   *core.Reactor
	Core      *core.Board

	Bus       *SlaveBus
	Slave     *core.Slave
	Master    *Master
	Client    *Client
	Converter *Converter
	Sampler   *core.Sampler

	resets int
}

// NewBoard builds and validates a board. The core timer is reset, so only
// one simulated board runs at a time.
func NewBoard(cfg BoardConfig) (*Board, error) {
	core.ResetTimers()

	b := &Board{
		Status:    &core.Status{},
		Samples:   &core.Samples{},
		Functions: core.NewFunctionTable(),
	}
	b.Registers = registers.New(b.Status, b.Samples, b.Functions)
	b.Reactor = core.NewReactor(b.Functions, func() { b.resets++ })
	b.Core = &core.Board{
		Registers: b.Registers,
		Functions: b.Functions,
		Power:     b.Reactor,
		Status:    b.Status,
		Samples:   b.Samples,
	}
	if err := b.Core.Validate(); err != nil {
		return nil, err
	}

	b.Bus = NewSlaveBus()
	b.Slave = core.NewSlave(b.Core, b.Bus)
	b.Master = NewMaster(b.Bus, b.Slave)
	b.Client = NewClient(b.Master)

	scfg := core.DefaultSamplerConfig()
	if cfg.TickHz != 0 {
		scfg.TickHz = cfg.TickHz
	}
	if cfg.SupplyMicrovolts != 0 {
		scfg.SupplyMicrovolts = cfg.SupplyMicrovolts
	}
	scfg.VrefCal = cfg.VrefCal
	b.Converter = NewConverter()
	b.Sampler = core.NewSampler(b.Core, b.Converter, scfg)
	b.Converter.IRQ = b.Sampler.HandleIRQ
	b.Functions.Register(core.FunctionSampler, b.Sampler.Switch)

	if cfg.Threshold != 0 {
		b.Samples.Store(core.SlotThreshold, cfg.Threshold)
	}
	b.Functions.EnableFunction(core.FunctionBusPower)

	if cfg.Autostart == nil || *cfg.Autostart {
		// same path as the host's ENABLE so the function bit follows
		b.Functions.EnableFunction(core.FunctionSampler)
		if b.Sampler.State() != core.SamplerRunning {
			return nil, fmt.Errorf("start sampler: %s", b.Sampler.State())
		}
	}
	return b, nil
}

// Resets returns how many times the firmware asked for a system reset
func (b *Board) Resets() int {
	return b.resets
}

// Run advances simulated time by us microseconds, one timer tick at a time
// so every converter sequence is seen.
func (b *Board) Run(us uint32) {
	ticks := core.TimerFromUS(us)
	step := b.Converter.Period()
	if step == 0 {
		step = ticks
	}
	for ticks > 0 {
		d := step
		if d > ticks {
			d = ticks
		}
		core.Advance(d)
		ticks -= d
	}
}

// Transfer runs one framed transfer on the SPI link
func (b *Board) Transfer(mosi []byte) ([]byte, error) {
	if b.Slave.Halted() {
		return nil, ErrSlaveHalted
	}
	return b.Master.Exchange(mosi)
}
