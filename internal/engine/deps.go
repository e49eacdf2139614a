package engine

import "github.com/bigbag/k5link/internal/auth"

// Transport sends one complete reply frame to the host.
type Transport interface {
	Send(p []byte) error
}

// EEPROM is the radio's configuration memory.
type EEPROM interface {
	Read(addr uint16, buf []byte) error
	Write8(addr uint16, data *[8]byte) error
}

// Telemetry exposes the receiver's signal registers.
type Telemetry interface {
	RSSI() uint16
	Noise() uint8
	Glitch() uint8
}

// Power reports the battery reading.
type Power interface {
	Battery() (voltage, current uint16)
}

// System resets the device.
type System interface {
	Reset()
}

// Radio holds the radio-wide flags and settings the engine touches.
type Radio interface {
	PasswordLocked() bool
	ClearKilled()
	ResetConfiguration()
}

// Session keeps the configuration session alive.
type Session interface {
	Arm()
}

// Deps are the collaborators an Engine drives. All are required.
type Deps struct {
	Transport Transport
	EEPROM    EEPROM
	Cipher    auth.BlockCipher
	Telemetry Telemetry
	Power     Power
	System    System
	Radio     Radio
	Session   Session
}

func (d Deps) validate() error {
	missing := ""
	switch {
	case d.Transport == nil:
		missing = "Transport"
	case d.EEPROM == nil:
		missing = "EEPROM"
	case d.Cipher == nil:
		missing = "Cipher"
	case d.Telemetry == nil:
		missing = "Telemetry"
	case d.Power == nil:
		missing = "Power"
	case d.System == nil:
		missing = "System"
	case d.Radio == nil:
		missing = "Radio"
	case d.Session == nil:
		missing = "Session"
	}
	if missing != "" {
		return &MissingDependencyError{Name: missing}
	}
	return nil
}
