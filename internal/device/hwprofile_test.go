package device

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeProfile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadHardwareProfile(t *testing.T) {
	path := writeProfile(t, `
board: raspberry-pi-zero-2w
driver: gpio
pins:
  digital: [5, 6, 12, 13]
  one_wire: [4]
`)
	p, err := LoadHardwareProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "raspberry-pi-zero-2w", p.Board)
	assert.Equal(t, DriverGPIO, p.Driver)
	assert.True(t, p.AllowsDigital(12))
	assert.False(t, p.AllowsDigital(7))
	assert.True(t, p.AllowsOneWire(4))
	// keine analog Liste, alles erlaubt
	assert.True(t, p.AllowsAnalog(99))
}

func TestLoadHardwareProfileDefaultsToGPIO(t *testing.T) {
	path := writeProfile(t, "board: bench\n")
	p, err := LoadHardwareProfile(path)
	require.NoError(t, err)
	assert.Equal(t, DriverGPIO, p.Driver)
}

func TestLoadHardwareProfileRejectsUnknownDriver(t *testing.T) {
	path := writeProfile(t, "driver: simavr\n")
	_, err := LoadHardwareProfile(path)
	assert.ErrorContains(t, err, "unknown driver")
}

func TestLoadHardwareProfileMissingFile(t *testing.T) {
	_, err := LoadHardwareProfile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
