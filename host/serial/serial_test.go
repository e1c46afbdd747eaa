package serial

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigRate(t *testing.T) {
	require.Equal(t, DebugBaud, Config{Device: "/dev/ttyACM0"}.Rate())
	require.Equal(t, 9600, Config{Baud: 9600}.Rate())
}

func TestOpenWithoutDevice(t *testing.T) {
	_, err := Open(Config{})
	require.ErrorIs(t, err, ErrNoDevice)
}
