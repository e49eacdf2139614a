package host

import "errors"

var (
	// ErrTimeout means the radio sent no usable reply in time. The radio
	// drops bad commands without answering, so this is also how rejected
	// commands surface.
	ErrTimeout = errors.New("timeout waiting for reply")
	// ErrNoSession means Hello has not been called yet.
	ErrNoSession = errors.New("no session: call Hello first")
	// ErrUnaligned means restore data is not a whole number of write chunks.
	ErrUnaligned = errors.New("data length is not a multiple of 8")
	// ErrOffsetMismatch means a reply answered a different offset.
	ErrOffsetMismatch = errors.New("reply offset does not match request")
)

// LockedError reports that the radio refused to unlock.
type LockedError struct {
	HasCustomKey bool
}

func (e *LockedError) Error() string {
	if e.HasCustomKey {
		return "radio is locked (custom key set)"
	}
	return "radio is locked"
}
