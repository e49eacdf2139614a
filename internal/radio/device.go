package radio

// SessionTicks is how many timer ticks a configuration session lasts after
// the last command that re-armed it.
const SessionTicks = 12

// Settings are runtime options that a reconfigure command resets.
type Settings struct {
	DualWatch         bool
	CrossBand         bool
	RXVFO             uint8
	DTMFSideTone      bool
	FrequencyReverse  bool
	TXOffsetDirection uint8
	PTTIDMode         uint8
	DTMFDecoding      bool
}

// Device is the emulated radio state behind the engine's telemetry, power,
// system, radio and session collaborators.
type Device struct {
	rssi   uint16
	noise  uint8
	glitch uint8

	voltage uint16
	current uint16

	passwordLocked bool
	killed         bool
	settings       Settings

	session int
	resets  int
	onReset func()
}

// DeviceOption configures a Device.
type DeviceOption func(*Device)

// WithPasswordLocked sets the power-on password lock.
func WithPasswordLocked(locked bool) DeviceOption {
	return func(d *Device) {
		d.passwordLocked = locked
	}
}

// WithKilled marks the radio as remotely disabled.
func WithKilled(killed bool) DeviceOption {
	return func(d *Device) {
		d.killed = killed
	}
}

// WithSettings sets the initial runtime settings.
func WithSettings(s Settings) DeviceOption {
	return func(d *Device) {
		d.settings = s
	}
}

// WithResetHandler is called whenever the radio is told to reboot.
func WithResetHandler(fn func()) DeviceOption {
	return func(d *Device) {
		d.onReset = fn
	}
}

// NewDevice returns a radio with a quiet receiver and a full battery.
func NewDevice(opts ...DeviceOption) *Device {
	d := &Device{
		rssi:    0x0050,
		noise:   0x10,
		voltage: 2150,
		current: 0,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SetSignal sets the receiver registers.
func (d *Device) SetSignal(rssi uint16, noise, glitch uint8) {
	d.rssi, d.noise, d.glitch = rssi, noise, glitch
}

// SetBattery sets the battery reading. Voltage is in 10 mV units.
func (d *Device) SetBattery(voltage, current uint16) {
	d.voltage, d.current = voltage, current
}

func (d *Device) RSSI() uint16 { return d.rssi }
func (d *Device) Noise() uint8 { return d.noise }
func (d *Device) Glitch() uint8 { return d.glitch }

// Battery returns the voltage and charge current.
func (d *Device) Battery() (voltage, current uint16) {
	return d.voltage, d.current
}

// PasswordLocked reports whether the power-on password lock is active.
func (d *Device) PasswordLocked() bool { return d.passwordLocked }

// Killed reports whether the radio is remotely disabled.
func (d *Device) Killed() bool { return d.killed }

// ClearKilled re-enables a remotely disabled radio.
func (d *Device) ClearKilled() { d.killed = false }

// Settings returns the current runtime settings.
func (d *Device) Settings() Settings { return d.settings }

// ResetConfiguration returns the runtime settings to their defaults.
func (d *Device) ResetConfiguration() { d.settings = Settings{} }

// Arm starts or extends the configuration session.
func (d *Device) Arm() { d.session = SessionTicks }

// Tick counts the session down by one. It returns true on the tick that
// ends the session.
func (d *Device) Tick() bool {
	if d.session == 0 {
		return false
	}
	d.session--
	return d.session == 0
}

// InSession reports whether a configuration session is active.
func (d *Device) InSession() bool { return d.session > 0 }

// Reset reboots the radio.
func (d *Device) Reset() {
	d.resets++
	d.session = 0
	if d.onReset != nil {
		d.onReset()
	}
}

// Resets returns how many times the radio was rebooted.
func (d *Device) Resets() int { return d.resets }
