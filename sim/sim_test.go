package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"pimaster/core"
	"pimaster/protocol"
	"pimaster/registers"
)

func newTestBoard(t *testing.T) *Board {
	t.Helper()
	b, err := NewBoard(BoardConfig{})
	require.NoError(t, err)
	t.Cleanup(core.ResetTimers)
	return b
}

func TestReadScenario(t *testing.T) {
	b := newTestBoard(t)
	b.Samples.Store(core.SlotThreshold, 0x2301)

	// 0x0018 is the threshold slot
	miso, err := b.Transfer([]byte{0x80, 0x18, 0x00, 0x00})
	require.NoError(t, err)
	require.Equal(t, []byte{0xAA, 0x01, 0x23}, miso[1:])
}

func TestMasterBuffers(t *testing.T) {
	b := newTestBoard(t)

	require.ErrorIs(t, b.Master.Tx([]byte{1, 2}, make([]byte, 3)), ErrLength)
	require.ErrorIs(t, b.Master.Tx(make([]byte, MaxTransfer+1), nil), ErrTransferSize)

	// write only and read only transfers
	require.NoError(t, b.Master.Tx(protocol.EnableTransfer(uint8(core.FunctionLEDYellow)), nil))
	require.True(t, b.Functions.Enabled(core.FunctionLEDYellow))

	r := make([]byte, 3)
	require.NoError(t, b.Master.Tx(nil, r))
	require.Equal(t, []byte{0, 1, 1}, r, "0x00 is SEND: ack per byte")

	// single byte transfers answer with the idle byte
	v, err := b.Master.Transfer(0x40)
	require.NoError(t, err)
	require.Equal(t, byte(IdleByte), v)
}

func TestClientRoundTrip(t *testing.T) {
	b := newTestBoard(t)
	c := b.Client

	require.NoError(t, c.Send([]byte("hello")))
	msg, err := b.Registers.Outbound()
	require.NoError(t, err)
	require.Equal(t, "hello", string(msg[:5]))

	require.NoError(t, b.Registers.Deliver([]byte{9, 8, 7}))
	got, err := c.Recv(3)
	require.NoError(t, err)
	require.Equal(t, []byte{9, 8, 7}, got)

	// queue drained: refused RECV reads zeros
	got, err = c.Recv(2)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0}, got)

	echo, err := c.Test(4)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 2, 3, 4}, echo)

	require.NoError(t, c.Enable(core.FunctionCANTermination))
	fn, err := c.ReadUint16(registers.FunctionsBase)
	require.NoError(t, err)
	require.NotZero(t, fn&(1<<core.FunctionCANTermination))
	require.NoError(t, c.Disable(core.FunctionCANTermination))
	fn, err = c.ReadUint16(registers.FunctionsBase)
	require.NoError(t, err)
	require.Zero(t, fn&(1<<core.FunctionCANTermination))
}

func TestSendQueueFullStillAcks(t *testing.T) {
	b := newTestBoard(t)
	for i := 0; i < registers.QueueSlots; i++ {
		require.NoError(t, b.Client.Send([]byte{byte(i)}))
	}
	require.NoError(t, b.Client.Send([]byte{0xFF}))

	send, _ := b.Registers.Pending()
	require.Equal(t, registers.QueueSlots, send)
	for i := 0; i < registers.QueueSlots; i++ {
		msg, err := b.Registers.Outbound()
		require.NoError(t, err)
		require.Equal(t, byte(i), msg[0])
	}
}

func TestConverterFillsSamples(t *testing.T) {
	b := newTestBoard(t)
	b.Converter.SetInput(core.SlotBus, 1234)
	b.Converter.SetInput(core.SlotSense, 100)
	b.Converter.SetInput(core.SlotReference, 1500)
	b.Converter.SetInput(core.SlotSense+10, 1) // ignored

	b.Run(5000)
	require.Equal(t, uint32(5), b.Converter.Sequences)

	levels, err := b.Client.Levels()
	require.NoError(t, err)
	require.Equal(t, uint16(1234), levels[core.SlotBus])
	require.Equal(t, uint16(100), levels[core.SlotSense])
	require.Equal(t, uint16(1500), levels[core.SlotReference])
	require.Equal(t, uint16(core.DefaultWatchdogThreshold), levels[core.SlotThreshold])
	require.Zero(t, levels[core.SlotSnapshot])
}

func TestWatchdogTrip(t *testing.T) {
	b := newTestBoard(t)
	require.True(t, b.Functions.Enabled(core.FunctionBusPower))

	b.Converter.SetInput(core.SlotSense, core.DefaultWatchdogThreshold+1)
	b.Run(1000)

	require.Equal(t, uint32(1), b.Reactor.Faults())
	require.False(t, b.Functions.Enabled(core.FunctionBusPower))
	require.True(t, b.Functions.Enabled(core.FunctionLEDRed))

	status, err := b.Client.Status()
	require.NoError(t, err)
	require.Equal(t, core.StatusPowerFault, status)

	snap, err := b.Client.ReadUint16(registers.LevelAddress(core.SlotSnapshot))
	require.NoError(t, err)
	require.Equal(t, uint16(core.DefaultWatchdogThreshold+1), snap)

	// still sampling; equal to the limit is not a breach
	require.Equal(t, core.SamplerRunning, b.Sampler.State())
	b.Converter.SetInput(core.SlotSense, core.DefaultWatchdogThreshold)
	b.Run(2000)
	require.Equal(t, uint32(1), b.Reactor.Faults())
}

func TestPowerFaultRearms(t *testing.T) {
	b := newTestBoard(t)

	b.Converter.SetInput(core.SlotSense, core.DefaultWatchdogThreshold+1)
	b.Run(1000)
	status, err := b.Client.Status()
	require.NoError(t, err)
	require.Equal(t, core.StatusPowerFault, status)

	// levels back to normal, host restarts the sampler
	b.Converter.SetInput(core.SlotSense, 0x0100)
	require.NoError(t, b.Client.Enable(core.FunctionSampler))
	b.Run(5000)
	status, err = b.Client.Status()
	require.NoError(t, err)
	require.Zero(t, status)

	// the next breach is reported again
	b.Converter.SetInput(core.SlotSense, core.DefaultWatchdogThreshold+2)
	b.Run(1000)
	status, err = b.Client.Status()
	require.NoError(t, err)
	require.Equal(t, core.StatusPowerFault, status)
	require.Equal(t, uint32(2), b.Reactor.Faults())
}

func TestRecvRefusedThenGranted(t *testing.T) {
	b := newTestBoard(t)

	got, err := b.Client.Recv(3)
	require.NoError(t, err)
	require.Equal(t, []byte{0, 0, 0}, got)
	require.Equal(t, core.TxnRejected, b.Slave.Transfer().Recv.State)
	require.False(t, b.Status.Has(core.StatusRecvPending))

	require.NoError(t, b.Registers.Deliver([]byte{0x11, 0x22, 0x33}))
	_, recv := b.Registers.Pending()
	require.Equal(t, 1, recv)

	got, err = b.Client.Recv(3)
	require.NoError(t, err)
	require.Equal(t, []byte{0x11, 0x22, 0x33}, got)
	require.Equal(t, core.TxnCommitted, b.Slave.Transfer().Recv.State)
	_, recv = b.Registers.Pending()
	require.Zero(t, recv)
	require.False(t, b.Status.Has(core.StatusRecvPending))
}

func TestThresholdIsBoardConfig(t *testing.T) {
	b, err := NewBoard(BoardConfig{Threshold: 0x0800})
	require.NoError(t, err)
	t.Cleanup(core.ResetTimers)
	require.Equal(t, uint16(0x0800), b.Converter.Threshold())

	// a long SEND never walks out of the send window into the levels page
	payload := make([]byte, 300)
	for i := range payload {
		payload[i] = 0xFF
	}
	_, err = b.Transfer(append([]byte{0x00}, payload...))
	require.NoError(t, err)
	require.NoError(t, b.Client.Enable(core.FunctionSampler))

	th, err := b.Client.ReadUint16(registers.LevelAddress(core.SlotThreshold))
	require.NoError(t, err)
	require.Equal(t, uint16(0x0800), th)
	require.Equal(t, uint16(0x0800), b.Converter.Threshold())
}

func TestOverrunAndRecovery(t *testing.T) {
	b := newTestBoard(t)

	b.Converter.InjectOverrun()
	b.Run(1000)
	require.Equal(t, core.SamplerHalted, b.Sampler.State())
	require.False(t, b.Converter.Running())
	require.True(t, b.Status.Has(core.StatusConverterFault))

	sequences := b.Converter.Sequences
	b.Run(5000)
	require.Equal(t, sequences, b.Converter.Sequences, "halted converter must not tick")

	// board configuration moves the threshold, the host restarts via ENABLE
	b.Samples.Store(core.SlotThreshold, 0x0400)
	require.NoError(t, b.Client.Enable(core.FunctionSampler))
	require.Equal(t, core.SamplerRunning, b.Sampler.State())
	require.Equal(t, uint16(0x0400), b.Converter.Threshold())
	require.False(t, b.Status.Has(core.StatusConverterFault))

	b.Run(2000)
	require.Equal(t, sequences+2, b.Converter.Sequences)
}

func TestResetHaltsBoard(t *testing.T) {
	b := newTestBoard(t)

	require.NoError(t, b.Client.Reset())
	require.Equal(t, 1, b.Resets())
	require.True(t, b.Slave.Halted())

	_, err := b.Transfer([]byte{0x80, 0x00, 0x00})
	require.ErrorIs(t, err, ErrSlaveHalted)
}

func TestScenarioFile(t *testing.T) {
	sc, err := LoadScenario("testdata/session.yaml")
	require.NoError(t, err)

	rep, err := sc.Run()
	require.NoError(t, err)
	t.Cleanup(core.ResetTimers)

	for _, step := range rep.Steps {
		require.Empty(t, step.Failures, "step %q: miso % x", step.Name, step.MISO)
	}
	require.True(t, rep.Passed())
}

func TestScenarioValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no steps", "board: {}\n"},
		{"unknown channel", "inputs: {vdd: 1}\nsteps: [{run_us: 1}]\n"},
		{"input range", "inputs: {sense: 5000}\nsteps: [{run_us: 1}]\n"},
		{"two actions", "steps: [{run_us: 1, overrun: true}]\n"},
		{"expect length", "steps: [{transfer: [0x80, 0], expect: [~]}]\n"},
		{"expect alone", "steps: [{expect: [1]}]\n"},
		{"byte range", "steps: [{transfer: [256]}]\n"},
		{"unknown field", "steps: [{bogus: 1}]\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestScenarioReportsMismatch(t *testing.T) {
	sc, err := ParseScenario([]byte(`
steps:
  - name: wrong handshake
    transfer: [0x80, 0x00, 0x00]
    expect: [~, 0x55, ~]
`))
	require.NoError(t, err)

	rep, err := sc.Run()
	require.NoError(t, err)
	t.Cleanup(core.ResetTimers)

	require.False(t, rep.Passed())
	require.Len(t, rep.Steps[0].Failures, 1)
}
