package ring

import "github.com/bigbag/k5link/internal/protocol"

// Status is the outcome of one scan.
type Status int

const (
	// StatusIdle means no bytes are pending, or the pending bytes held no start marker.
	StatusIdle Status = iota
	// StatusIncomplete means a frame has started but not all of it has arrived.
	StatusIncomplete
	// StatusOversize means the declared size cannot fit the buffer; pending bytes were dropped.
	StatusOversize
	// StatusBadFooter means the end markers were wrong; pending bytes were dropped.
	StatusBadFooter
	// StatusOverrun means the producer lapped the reader; pending bytes were dropped.
	StatusOverrun
	// StatusFrame means a frame was copied into the frame store.
	StatusFrame
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusIncomplete:
		return "incomplete"
	case StatusOversize:
		return "oversize"
	case StatusBadFooter:
		return "bad footer"
	case StatusOverrun:
		return "overrun"
	case StatusFrame:
		return "frame"
	default:
		return "unknown"
	}
}

// Scanner extracts frames from a Buffer. It owns the read cursor and the
// frame store the extracted bytes are copied into.
type Scanner struct {
	rx    *Buffer
	read  uint64
	store []byte
}

// NewScanner creates a scanner reading rx from its current write cursor.
func NewScanner(rx *Buffer) *Scanner {
	return &Scanner{
		rx:    rx,
		read:  rx.Written(),
		store: make([]byte, rx.Cap()),
	}
}

// Cursor returns the read cursor.
func (s *Scanner) Cursor() uint64 {
	return s.read
}

// Pending returns the number of unconsumed bytes.
func (s *Scanner) Pending() int {
	return int(s.rx.Written() - s.read)
}

// Next looks for one complete frame between the read cursor and the write
// cursor. On StatusFrame it returns the payload and trailing CRC (size+2
// bytes, still obfuscated) in the frame store; the slice is only valid until
// the next call.
func (s *Scanner) Next() ([]byte, Status) {
	rx := s.rx
	w := rx.Written()
	if w-s.read > uint64(rx.Cap()) {
		s.advance(w)
		return nil, StatusOverrun
	}

	var available int
	for {
		if s.read == w {
			return nil, StatusIdle
		}
		start := s.read
		for start != w && rx.At(start) != protocol.StartMarker {
			start++
		}
		s.advance(start)
		if start == w {
			return nil, StatusIdle
		}
		available = int(w - start)
		if available < protocol.FrameOverhead {
			return nil, StatusIncomplete
		}
		if rx.At(start+1) == protocol.StartMarker2 {
			break
		}
		s.advance(start + 1)
	}

	size := int(rx.At(s.read+2)) | int(rx.At(s.read+3))<<8
	if size+protocol.FrameOverhead > rx.Cap() {
		s.advance(w)
		return nil, StatusOversize
	}
	if available < size+protocol.FrameOverhead {
		return nil, StatusIncomplete
	}

	payload := s.read + protocol.HeaderSize
	tail := payload + uint64(size+protocol.CRCSize)
	if rx.At(tail) != protocol.EndMarker || rx.At(tail+1) != protocol.EndMarker2 {
		s.advance(w)
		return nil, StatusBadFooter
	}

	frame := s.store[:size+protocol.CRCSize]
	rx.CopyOut(frame, payload)
	s.advance(tail + 2)
	return frame, StatusFrame
}

// Reset drops everything pending and moves the cursor to the write cursor.
func (s *Scanner) Reset() {
	s.advance(s.rx.Written())
}

// advance zero-fills the consumed bytes so stale markers are never seen
// again, then moves the cursor.
func (s *Scanner) advance(to uint64) {
	s.rx.Zero(s.read, to)
	s.read = to
}
