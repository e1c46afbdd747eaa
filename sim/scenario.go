package sim

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"pimaster/core"
	"pimaster/registers"
)

// Scenario is a scripted session against a simulated board
type Scenario struct {
	Board    BoardConfig    `yaml:"board"`
	Inputs   map[string]int `yaml:"inputs"`   // channel name -> raw counts
	Messages [][]int        `yaml:"messages"` // delivered to the recv queue up front
	Steps    []Step         `yaml:"steps"`
}

// Step is one scenario action with optional checks.
// Exactly one of Transfer, RunUS, Input, Deliver, Overrun is set.
type Step struct {
	Name string `yaml:"name"`

	// actions
	Transfer []int      `yaml:"transfer"`
	RunUS    uint32     `yaml:"run_us"`
	Input    *InputStep `yaml:"input"`
	Deliver  []int      `yaml:"deliver"`
	Overrun  bool       `yaml:"overrun"`

	// checks
	Expect         []*int  `yaml:"expect"` // MISO; null means don't care
	ExpectStatus   *uint32 `yaml:"expect_status"`
	ExpectOutbound []int   `yaml:"expect_outbound"`
	ExpectFaults   *uint32 `yaml:"expect_faults"`
}

// InputStep changes one analog input
type InputStep struct {
	Channel string `yaml:"channel"`
	Raw     int    `yaml:"raw"`
}

var channelNames = map[string]int{
	"bus":       core.SlotBus,
	"sense":     core.SlotSense,
	"reference": core.SlotReference,
}

// ChannelSlot maps an input name to its sample slot
func ChannelSlot(name string) (int, bool) {
	slot, ok := channelNames[name]
	return slot, ok
}

var ErrScenario = errors.New("invalid scenario")

// LoadScenario reads and validates a YAML scenario file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates a YAML scenario
func ParseScenario(data []byte) (*Scenario, error) {
	var sc Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("decode scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks the scenario without running it
func (sc *Scenario) Validate() error {
	for name, raw := range sc.Inputs {
		if _, ok := channelNames[name]; !ok {
			return fmt.Errorf("%w: unknown input channel %q", ErrScenario, name)
		}
		if raw < 0 || raw > core.ConverterFullScale {
			return fmt.Errorf("%w: input %q out of range: %d", ErrScenario, name, raw)
		}
	}
	for i, msg := range sc.Messages {
		if err := checkBytes(msg); err != nil {
			return fmt.Errorf("%w: message %d: %v", ErrScenario, i, err)
		}
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrScenario)
	}
	for i := range sc.Steps {
		if err := sc.Steps[i].validate(); err != nil {
			return fmt.Errorf("%w: step %d (%s): %v", ErrScenario, i, sc.Steps[i].Name, err)
		}
	}
	return nil
}

func (st *Step) validate() error {
	actions := 0
	if st.Transfer != nil {
		actions++
	}
	if st.RunUS != 0 {
		actions++
	}
	if st.Input != nil {
		actions++
	}
	if st.Deliver != nil {
		actions++
	}
	if st.Overrun {
		actions++
	}
	if actions > 1 {
		return errors.New("more than one action")
	}

	if err := checkBytes(st.Transfer); err != nil {
		return err
	}
	if err := checkBytes(st.Deliver); err != nil {
		return err
	}
	if err := checkBytes(st.ExpectOutbound); err != nil {
		return err
	}
	if len(st.ExpectOutbound) > registers.SlotSize {
		return fmt.Errorf("expect_outbound longer than a slot: %d", len(st.ExpectOutbound))
	}
	if st.Expect != nil {
		if st.Transfer == nil {
			return errors.New("expect without transfer")
		}
		if len(st.Expect) != len(st.Transfer) {
			return fmt.Errorf("expect has %d bytes, transfer has %d", len(st.Expect), len(st.Transfer))
		}
		for _, v := range st.Expect {
			if v != nil && (*v < 0 || *v > 0xFF) {
				return fmt.Errorf("expect byte out of range: %d", *v)
			}
		}
	}
	if st.Input != nil {
		if _, ok := channelNames[st.Input.Channel]; !ok {
			return fmt.Errorf("unknown input channel %q", st.Input.Channel)
		}
		if st.Input.Raw < 0 || st.Input.Raw > core.ConverterFullScale {
			return fmt.Errorf("input out of range: %d", st.Input.Raw)
		}
	}
	return nil
}

func checkBytes(v []int) error {
	for _, b := range v {
		if b < 0 || b > 0xFF {
			return fmt.Errorf("byte out of range: %d", b)
		}
	}
	return nil
}

func toBytes(v []int) []byte {
	out := make([]byte, len(v))
	for i, b := range v {
		out[i] = byte(b)
	}
	return out
}

// StepResult is the outcome of one step
type StepResult struct {
	Name     string
	MISO     []byte
	Failures []string
}

// Passed reports whether every check held
func (r StepResult) Passed() bool {
	return len(r.Failures) == 0
}

// Report is the outcome of a scenario run
type Report struct {
	Steps []StepResult
	Board *Board
}

// Passed reports whether every step passed
func (r *Report) Passed() bool {
	for _, s := range r.Steps {
		if !s.Passed() {
			return false
		}
	}
	return true
}

// Run builds a board and executes the scenario. Check failures are
// collected in the report; the error is for setup problems only.
func (sc *Scenario) Run() (*Report, error) {
	b, err := NewBoard(sc.Board)
	if err != nil {
		return nil, err
	}
	for name, raw := range sc.Inputs {
		b.Converter.SetInput(channelNames[name], uint16(raw))
	}
	for i, msg := range sc.Messages {
		if err := b.Registers.Deliver(toBytes(msg)); err != nil {
			return nil, fmt.Errorf("message %d: %w", i, err)
		}
	}

	rep := &Report{Board: b}
	for i := range sc.Steps {
		rep.Steps = append(rep.Steps, sc.Steps[i].run(b))
	}
	return rep, nil
}

func (st *Step) run(b *Board) StepResult {
	res := StepResult{Name: st.Name}
	fail := func(format string, args ...interface{}) {
		res.Failures = append(res.Failures, fmt.Sprintf(format, args...))
	}

	switch {
	case st.Transfer != nil:
		miso, err := b.Transfer(toBytes(st.Transfer))
		if err != nil {
			fail("transfer: %v", err)
			break
		}
		res.MISO = miso
		for i, want := range st.Expect {
			if want != nil && miso[i] != byte(*want) {
				fail("miso[%d] = %#02x, want %#02x", i, miso[i], *want)
			}
		}
	case st.RunUS != 0:
		b.Run(st.RunUS)
	case st.Input != nil:
		b.Converter.SetInput(channelNames[st.Input.Channel], uint16(st.Input.Raw))
	case st.Deliver != nil:
		if err := b.Registers.Deliver(toBytes(st.Deliver)); err != nil {
			fail("deliver: %v", err)
		}
	case st.Overrun:
		b.Converter.InjectOverrun()
	}

	if st.ExpectStatus != nil {
		if got := uint32(b.Status.Load()); got != *st.ExpectStatus {
			fail("status = %#08x, want %#08x", got, *st.ExpectStatus)
		}
	}
	if st.ExpectFaults != nil {
		if got := b.Reactor.Faults(); got != *st.ExpectFaults {
			fail("power faults = %d, want %d", got, *st.ExpectFaults)
		}
	}
	if st.ExpectOutbound != nil {
		msg, err := b.Registers.Outbound()
		if err != nil {
			fail("outbound: %v", err)
		} else if want := toBytes(st.ExpectOutbound); !bytes.Equal(msg[:len(want)], want) {
			fail("outbound = % x, want % x", msg[:len(want)], want)
		}
	}
	return res
}
