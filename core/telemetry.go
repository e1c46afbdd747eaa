package core

import "tinygo.org/x/drivers"

// Telemetry periodically reports converted levels on the debug output.
// It runs from ProcessTimers, never from an interrupt.
type Telemetry struct {
	sampler *Sampler
	status  *Status
	timer   Timer
	period  uint32

	Reports uint32
}

// NewTelemetry creates a reporter firing every periodUS microseconds
func NewTelemetry(s *Sampler, status *Status, periodUS uint32) *Telemetry {
	t := &Telemetry{sampler: s, status: status, period: TimerFromUS(periodUS)}
	t.timer.Handler = t.fire
	return t
}

// Start schedules the first report
func (t *Telemetry) Start() {
	t.timer.WakeTime = GetTime() + t.period
	ScheduleTimer(&t.timer)
}

// Stop cancels pending reports
func (t *Telemetry) Stop() {
	CancelTimer(&t.timer)
}

func (t *Telemetry) fire(tm *Timer) uint8 {
	DebugAsync(t.Report())
	t.Reports++
	tm.WakeTime += t.period
	return SF_RESCHEDULE
}

// Report converts the latest samples and renders one telemetry line
func (t *Telemetry) Report() string {
	status := "status=" + hex16(uint16(t.status.Load()>>16)) + hex16(uint16(t.status.Load())) +
		" faults=" + utoa(t.sampler.Faults()) +
		" sampler=" + t.sampler.State().String()
	if err := t.sampler.Update(drivers.Voltage); err != nil {
		return "[TELEM] error=" + err.Error() + " " + status
	}
	return "[TELEM] bus=" + utoa(t.sampler.BusVoltage()) +
		" sense=" + utoa(t.sampler.SenseVoltage()) +
		" supply=" + utoa(t.sampler.Supply()) +
		" " + status
}
