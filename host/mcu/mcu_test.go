package mcu

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"pimaster/host/console"
)

// bufferPort is a read-only serial.Port over a fixed stream
type bufferPort struct {
	*strings.Reader
	closed bool
}

func (p *bufferPort) Write(b []byte) (int, error) { return len(b), nil }
func (p *bufferPort) Flush() error                { return nil }

func (p *bufferPort) Close() error {
	p.closed = true
	return nil
}

func TestFollow(t *testing.T) {
	port := &bufferPort{Reader: strings.NewReader(strings.Join([]string{
		"[ADC] sampler running",
		"[EVENT] SELECT arg=00 clock=1 v1=0 v2=0",
		"[EVENT] WATCHDOG! arg=00 clock=2 v1=3328 v2=1",
		"[EVENT] COMMIT arg=zz clock=3 v1=0 v2=0",
		"[TELEM] bus=36300000 sense=0 supply=3300000 status=00000002 faults=1 sampler=running",
	}, "\n"))}

	m := NewMCU()
	_, err := m.Next()
	require.ErrorIs(t, err, ErrNotConnected)

	m.Attach(port)
	var names []string
	require.NoError(t, m.Follow(func(rec console.Record) error {
		if rec.Event != nil {
			names = append(names, rec.Event.Name)
		}
		return nil
	}))

	require.Equal(t, []string{"SELECT", "WATCHDOG"}, names)
	require.Equal(t, 5, m.Lines)
	require.Equal(t, 2, m.Events)
	require.Equal(t, 1, m.Telemetry)
	require.Equal(t, 1, m.Malformed)
	require.NotNil(t, m.LastTelemetry())
	require.Equal(t, uint32(1), m.LastTelemetry().Faults)

	require.NoError(t, m.Close())
	require.True(t, port.closed)
	require.False(t, m.IsConnected())
}

func TestFollowStops(t *testing.T) {
	port := &bufferPort{Reader: strings.NewReader("a\nb\nc\n")}
	m := NewMCU()
	m.Attach(port)

	stop := errors.New("stop")
	n := 0
	err := m.Follow(func(console.Record) error {
		n++
		if n == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	require.Equal(t, 2, n)
}
