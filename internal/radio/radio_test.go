package radio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bigbag/k5link/internal/engine"
	"github.com/bigbag/k5link/internal/protocol"
)

// Compile-time checks that the emulated radio fits the engine.
var (
	_ engine.EEPROM    = (*Memory)(nil)
	_ engine.Telemetry = (*Device)(nil)
	_ engine.Power     = (*Device)(nil)
	_ engine.System    = (*Device)(nil)
	_ engine.Radio     = (*Device)(nil)
	_ engine.Session   = (*Device)(nil)
)

func TestMemory_Erased(t *testing.T) {
	m := NewMemory()
	buf := make([]byte, 16)
	require.NoError(t, m.Read(0, buf))
	for _, b := range buf {
		assert.Equal(t, byte(0xFF), b)
	}
	assert.False(t, m.Dirty())
}

func TestMemory_ReadWrite(t *testing.T) {
	m := NewMemory()
	chunk := [8]byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, m.Write8(0x0F40, &chunk))
	assert.True(t, m.Dirty())

	buf := make([]byte, 10)
	require.NoError(t, m.Read(0x0F3F, buf))
	assert.Equal(t, []byte{0xFF, 1, 2, 3, 4, 5, 6, 7, 8, 0xFF}, buf)
}

func TestMemory_Bounds(t *testing.T) {
	m := NewMemory()
	chunk := [8]byte{}

	assert.True(t, errors.Is(m.Write8(protocol.EEPROMSize-4, &chunk), ErrOutOfRange))
	assert.True(t, errors.Is(m.Read(protocol.EEPROMSize-4, make([]byte, 8)), ErrOutOfRange))
	assert.NoError(t, m.Read(protocol.EEPROMSize-8, make([]byte, 8)))
	assert.NoError(t, m.Write8(protocol.EEPROMSize-8, &chunk))
}

func TestMemory_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "eeprom.bin")

	m := NewMemory()
	chunk := [8]byte{0xDE, 0xAD, 0xBE, 0xEF}
	require.NoError(t, m.Write8(0x0100, &chunk))
	require.NoError(t, m.Save(path))
	assert.False(t, m.Dirty())

	loaded := NewMemory()
	require.NoError(t, loaded.Load(path))
	assert.Equal(t, m.Bytes(), loaded.Bytes())
}

func TestMemory_LoadWrongSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "short.bin")
	require.NoError(t, os.WriteFile(path, make([]byte, 100), 0o644))

	assert.Error(t, NewMemory().Load(path))
	assert.Error(t, NewMemory().Load(filepath.Join(t.TempDir(), "missing.bin")))
}

func TestDevice_Session(t *testing.T) {
	d := NewDevice()
	assert.False(t, d.InSession())
	assert.False(t, d.Tick())

	d.Arm()
	assert.True(t, d.InSession())
	for i := 0; i < SessionTicks-1; i++ {
		assert.False(t, d.Tick())
	}
	assert.True(t, d.Tick())
	assert.False(t, d.InSession())
}

func TestDevice_ArmExtends(t *testing.T) {
	d := NewDevice()
	d.Arm()
	for i := 0; i < 10; i++ {
		d.Tick()
	}
	d.Arm()
	for i := 0; i < SessionTicks-1; i++ {
		assert.False(t, d.Tick())
	}
	assert.True(t, d.Tick())
}

func TestDevice_Reset(t *testing.T) {
	called := 0
	d := NewDevice(WithResetHandler(func() { called++ }))
	d.Arm()
	d.Reset()

	assert.Equal(t, 1, called)
	assert.Equal(t, 1, d.Resets())
	assert.False(t, d.InSession())
}

func TestDevice_Flags(t *testing.T) {
	d := NewDevice(WithPasswordLocked(true), WithKilled(true))
	assert.True(t, d.PasswordLocked())
	assert.True(t, d.Killed())

	d.ClearKilled()
	assert.False(t, d.Killed())
}

func TestDevice_ResetConfiguration(t *testing.T) {
	d := NewDevice(WithSettings(Settings{
		DualWatch:        true,
		CrossBand:        true,
		RXVFO:            1,
		DTMFDecoding:     true,
		FrequencyReverse: true,
		PTTIDMode:        2,
	}))
	d.ResetConfiguration()
	assert.Equal(t, Settings{}, d.Settings())
}

func TestDevice_Telemetry(t *testing.T) {
	d := NewDevice()
	d.SetSignal(0x1FF, 0x40, 3)
	d.SetBattery(1980, 120)

	assert.Equal(t, uint16(0x1FF), d.RSSI())
	assert.Equal(t, uint8(0x40), d.Noise())
	assert.Equal(t, uint8(3), d.Glitch())
	v, c := d.Battery()
	assert.Equal(t, uint16(1980), v)
	assert.Equal(t, uint16(120), c)
}
