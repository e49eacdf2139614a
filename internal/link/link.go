// Package link implements the host side of the radio's serial framing.
package link

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bigbag/k5link/internal/protocol"
)

// MaxReplyPayload bounds the payload of a reply frame the host will wait for.
const MaxReplyPayload = 0x100

var (
	// ErrShortFrame is returned when a frame is shorter than its framing or
	// than the size field claims.
	ErrShortFrame = errors.New("frame too short")
	// ErrBadMarker is returned when the start or end marker is wrong.
	ErrBadMarker = errors.New("bad frame marker")
	// ErrBadPad is returned when the two bytes after a reply payload are not FF FF.
	ErrBadPad = errors.New("bad reply pad")
)

var startMarkers = []byte{protocol.StartMarker, protocol.StartMarker2}

// Encode wraps a command payload in inbound framing.
// Payload and CRC are obfuscated when encrypted is set.
func Encode(payload []byte, encrypted bool) []byte {
	size := len(payload)
	frame := make([]byte, 0, size+protocol.FrameOverhead)
	frame = append(frame, protocol.StartMarker, protocol.StartMarker2)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(size))
	frame = append(frame, payload...)
	frame = binary.LittleEndian.AppendUint16(frame, protocol.CRC16(payload))

	if encrypted {
		protocol.Obfuscate(frame[protocol.HeaderSize:])
	}

	return append(frame, protocol.EndMarker, protocol.EndMarker2)
}

// EncodeReply wraps a reply payload the way the radio does: no CRC, a two
// byte pad in its place.
func EncodeReply(payload []byte, encrypted bool) []byte {
	size := len(payload)
	frame := make([]byte, 0, size+protocol.FrameOverhead)
	frame = binary.LittleEndian.AppendUint16(frame, protocol.ReplyMagic)
	frame = binary.LittleEndian.AppendUint16(frame, uint16(size))
	frame = append(frame, payload...)
	if encrypted {
		protocol.Obfuscate(frame[protocol.HeaderSize:])
	}
	pad := protocol.FooterPad(size, encrypted)
	frame = append(frame, pad[0], pad[1])
	return binary.LittleEndian.AppendUint16(frame, protocol.FooterMagic)
}

// ReadFrame finds the next complete reply frame in a byte stream.
// Returns the frame (including markers) and the bytes after it. Bytes
// ahead of the frame are discarded. If no frame is complete yet, frame is
// nil and remaining holds whatever may still start one.
func ReadFrame(data []byte) (frame []byte, remaining []byte) {
	for {
		start := bytes.Index(data, startMarkers)
		if start == -1 {
			if n := len(data); n > 0 && data[n-1] == protocol.StartMarker {
				return nil, data[n-1:]
			}
			return nil, nil
		}
		data = data[start:]

		if len(data) < protocol.HeaderSize {
			return nil, data
		}

		size := int(binary.LittleEndian.Uint16(data[2:4]))
		if size > MaxReplyPayload {
			data = data[1:]
			continue
		}

		total := size + protocol.FrameOverhead
		if len(data) < total {
			return nil, data
		}

		if data[total-2] != protocol.EndMarker || data[total-1] != protocol.EndMarker2 {
			data = data[1:]
			continue
		}

		return data[:total], data[total:]
	}
}

// Decode extracts the payload of a reply frame, undoing obfuscation when
// encrypted is set. The pad bytes must decode to 0xFF 0xFF, which also
// catches a host and radio that disagree on the mode.
func Decode(frame []byte, encrypted bool) ([]byte, error) {
	if len(frame) < protocol.FrameOverhead {
		return nil, ErrShortFrame
	}
	if frame[0] != protocol.StartMarker || frame[1] != protocol.StartMarker2 {
		return nil, ErrBadMarker
	}

	size := int(binary.LittleEndian.Uint16(frame[2:4]))
	if len(frame) != size+protocol.FrameOverhead {
		return nil, fmt.Errorf("frame length %d does not match size %d: %w", len(frame), size, ErrShortFrame)
	}
	if frame[len(frame)-2] != protocol.EndMarker || frame[len(frame)-1] != protocol.EndMarker2 {
		return nil, ErrBadMarker
	}

	body := make([]byte, size+2)
	copy(body, frame[protocol.HeaderSize:])
	if encrypted {
		protocol.Obfuscate(body)
	}
	if body[size] != 0xFF || body[size+1] != 0xFF {
		return nil, ErrBadPad
	}

	return body[:size], nil
}
