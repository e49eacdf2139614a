package engine

// Status classifies the outcome of one Poll.
type Status int

const (
	// Idle means no bytes were pending.
	Idle Status = iota
	// Incomplete means a frame has started but not fully arrived.
	Incomplete
	// FramingError means pending bytes were dropped by the scanner.
	FramingError
	// IntegrityError means a frame failed its CRC.
	IntegrityError
	// Malformed means a frame was too short for its command.
	Malformed
	// StaleSession means a read or write carried an old session timestamp.
	StaleSession
	// RangeError means a read or write offset was outside the EEPROM.
	RangeError
	// Unhandled means the command id is not known.
	Unhandled
	// Handled means the command ran.
	Handled
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Incomplete:
		return "incomplete"
	case FramingError:
		return "framing error"
	case IntegrityError:
		return "integrity error"
	case Malformed:
		return "malformed"
	case StaleSession:
		return "stale session"
	case RangeError:
		return "range error"
	case Unhandled:
		return "unhandled"
	case Handled:
		return "handled"
	default:
		return "unknown"
	}
}

// Result reports what a Poll did.
type Result struct {
	Status  Status
	Command uint16 // command id, zero when no frame passed the CRC
	Replied bool
	Err     error // collaborator failure, if any
}

// Consumed reports whether the poll removed bytes from the receive buffer.
func (r Result) Consumed() bool {
	return r.Status != Idle && r.Status != Incomplete
}
