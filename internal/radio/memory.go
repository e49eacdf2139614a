// Package radio emulates the hardware the protocol engine talks to: the
// configuration EEPROM and the radio's runtime state.
package radio

import (
	"errors"
	"fmt"
	"os"

	"github.com/bigbag/k5link/internal/protocol"
)

// ErrOutOfRange is returned for accesses past the end of the EEPROM.
var ErrOutOfRange = errors.New("eeprom: address out of range")

// Memory is an EEPROM image held in RAM. Erased bytes read as 0xFF.
type Memory struct {
	data  [protocol.EEPROMSize]byte
	dirty bool
}

// NewMemory returns an erased EEPROM.
func NewMemory() *Memory {
	m := &Memory{}
	for i := range m.data {
		m.data[i] = 0xFF
	}
	return m
}

// Read copies len(buf) bytes starting at addr.
func (m *Memory) Read(addr uint16, buf []byte) error {
	if int(addr)+len(buf) > len(m.data) {
		return fmt.Errorf("read %d bytes at 0x%04X: %w", len(buf), addr, ErrOutOfRange)
	}
	copy(buf, m.data[addr:])
	return nil
}

// Write8 stores one 8-byte chunk at addr.
func (m *Memory) Write8(addr uint16, data *[8]byte) error {
	if int(addr)+len(data) > len(m.data) {
		return fmt.Errorf("write at 0x%04X: %w", addr, ErrOutOfRange)
	}
	copy(m.data[addr:], data[:])
	m.dirty = true
	return nil
}

// Bytes returns a copy of the whole image.
func (m *Memory) Bytes() []byte {
	out := make([]byte, len(m.data))
	copy(out, m.data[:])
	return out
}

// SetBytes replaces the image. b must be exactly the EEPROM size.
func (m *Memory) SetBytes(b []byte) error {
	if len(b) != len(m.data) {
		return fmt.Errorf("eeprom image is %d bytes, want %d", len(b), len(m.data))
	}
	copy(m.data[:], b)
	m.dirty = false
	return nil
}

// Dirty reports whether the image changed since it was last loaded or saved.
func (m *Memory) Dirty() bool {
	return m.dirty
}

// Load reads an image from a file.
func (m *Memory) Load(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read eeprom image: %w", err)
	}
	return m.SetBytes(b)
}

// Save writes the image to a file.
func (m *Memory) Save(path string) error {
	if err := os.WriteFile(path, m.data[:], 0o644); err != nil {
		return fmt.Errorf("failed to write eeprom image: %w", err)
	}
	m.dirty = false
	return nil
}
