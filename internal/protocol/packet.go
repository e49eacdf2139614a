package protocol

import (
	"encoding/binary"
	"fmt"
)

// Header is the command header at the start of every payload.
type Header struct {
	ID  uint16
	Len uint16 // bytes following the header
}

// DecodeHeader reads the command header from a deobfuscated payload.
func DecodeHeader(p []byte) (Header, error) {
	if len(p) < CommandHeaderSize {
		return Header{}, fmt.Errorf("header: %w: %d bytes", ErrShortPayload, len(p))
	}
	return Header{
		ID:  binary.LittleEndian.Uint16(p[0:2]),
		Len: binary.LittleEndian.Uint16(p[2:4]),
	}, nil
}

// Put writes the header into dst[0:4].
func (h Header) Put(dst []byte) {
	binary.LittleEndian.PutUint16(dst[0:2], h.ID)
	binary.LittleEndian.PutUint16(dst[2:4], h.Len)
}

func newPayload(id uint16, bodyLen int) []byte {
	p := make([]byte, CommandHeaderSize+bodyLen)
	Header{ID: id, Len: uint16(bodyLen)}.Put(p)
	return p
}

func body(p []byte, need int) ([]byte, error) {
	if len(p) < CommandHeaderSize+need {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrShortPayload, len(p), CommandHeaderSize+need)
	}
	return p[CommandHeaderSize:], nil
}

// EncodeCommand builds the payload of a command that carries no arguments.
func EncodeCommand(id uint16) []byte {
	return newPayload(id, 0)
}

// SessionRequest is the body shared by the version and reconfigure commands.
type SessionRequest struct {
	Timestamp uint32
}

// Encode builds the payload for the given command id.
func (r SessionRequest) Encode(id uint16) []byte {
	p := newPayload(id, 4)
	binary.LittleEndian.PutUint32(p[4:8], r.Timestamp)
	return p
}

// DecodeSessionRequest parses a version or reconfigure payload.
func DecodeSessionRequest(p []byte) (SessionRequest, error) {
	b, err := body(p, 4)
	if err != nil {
		return SessionRequest{}, err
	}
	return SessionRequest{Timestamp: binary.LittleEndian.Uint32(b[0:4])}, nil
}

// ReadRequest asks for Size bytes of EEPROM at Offset.
type ReadRequest struct {
	Offset    uint16
	Size      uint8
	Timestamp uint32
}

// Encode builds the eeprom-read payload.
func (r ReadRequest) Encode() []byte {
	p := newPayload(CmdReadEEPROM, 8)
	binary.LittleEndian.PutUint16(p[4:6], r.Offset)
	p[6] = r.Size
	binary.LittleEndian.PutUint32(p[8:12], r.Timestamp)
	return p
}

// DecodeReadRequest parses an eeprom-read payload.
func DecodeReadRequest(p []byte) (ReadRequest, error) {
	b, err := body(p, 8)
	if err != nil {
		return ReadRequest{}, err
	}
	return ReadRequest{
		Offset:    binary.LittleEndian.Uint16(b[0:2]),
		Size:      b[2],
		Timestamp: binary.LittleEndian.Uint32(b[4:8]),
	}, nil
}

// WriteRequest stores Data at Offset. Size on the wire is len(Data).
type WriteRequest struct {
	Offset        uint16
	AllowPassword bool
	Timestamp     uint32
	Data          []byte
}

// Encode builds the eeprom-write payload. Data beyond 255 bytes is truncated.
func (r WriteRequest) Encode() []byte {
	data := r.Data
	if len(data) > 0xFF {
		data = data[:0xFF]
	}
	p := newPayload(CmdWriteEEPROM, 8+len(data))
	binary.LittleEndian.PutUint16(p[4:6], r.Offset)
	p[6] = byte(len(data))
	if r.AllowPassword {
		p[7] = 1
	}
	binary.LittleEndian.PutUint32(p[8:12], r.Timestamp)
	copy(p[12:], data)
	return p
}

// DecodeWriteRequest parses an eeprom-write payload. Data aliases p and is
// limited to the bytes actually present.
func DecodeWriteRequest(p []byte) (WriteRequest, error) {
	b, err := body(p, 8)
	if err != nil {
		return WriteRequest{}, err
	}
	size := int(b[2])
	data := b[8:]
	if size < len(data) {
		data = data[:size]
	}
	return WriteRequest{
		Offset:        binary.LittleEndian.Uint16(b[0:2]),
		AllowPassword: b[3] != 0,
		Timestamp:     binary.LittleEndian.Uint32(b[4:8]),
		Data:          data,
	}, nil
}

// UnlockRequest carries the host's answer to the challenge.
type UnlockRequest struct {
	Response [4]uint32
}

// Encode builds the challenge-response payload.
func (r UnlockRequest) Encode() []byte {
	p := newPayload(CmdUnlock, 16)
	putWords(p[4:20], r.Response)
	return p
}

// DecodeUnlockRequest parses a challenge-response payload.
func DecodeUnlockRequest(p []byte) (UnlockRequest, error) {
	b, err := body(p, 16)
	if err != nil {
		return UnlockRequest{}, err
	}
	return UnlockRequest{Response: words(b[0:16])}, nil
}

// VersionReply answers the version and reconfigure commands.
type VersionReply struct {
	Version        string
	HasCustomKey   bool
	PasswordLocked bool
	Challenge      [4]uint32
}

const versionBodyLen = VersionFieldLen + 4 + 16

// Put writes the reply payload into dst and returns its length.
func (r *VersionReply) Put(dst []byte) (int, error) {
	n := CommandHeaderSize + versionBodyLen
	if len(dst) < n {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyVersion, Len: versionBodyLen}.Put(dst)
	b := dst[CommandHeaderSize:n]
	clear(b)
	copy(b[:VersionFieldLen], r.Version)
	b[16] = boolByte(r.HasCustomKey)
	b[17] = boolByte(r.PasswordLocked)
	putWords(b[20:36], r.Challenge)
	return n, nil
}

// DecodeVersionReply parses a version reply payload.
func DecodeVersionReply(p []byte) (*VersionReply, error) {
	b, err := replyBody(p, ReplyVersion, versionBodyLen)
	if err != nil {
		return nil, err
	}
	version := b[:VersionFieldLen]
	for i, c := range version {
		if c == 0 {
			version = version[:i]
			break
		}
	}
	return &VersionReply{
		Version:        string(version),
		HasCustomKey:   b[16] != 0,
		PasswordLocked: b[17] != 0,
		Challenge:      words(b[20:36]),
	}, nil
}

// ReadReply returns EEPROM contents.
type ReadReply struct {
	Offset uint16
	Data   []byte
}

// Put writes the reply payload into dst and returns its length.
func (r *ReadReply) Put(dst []byte) (int, error) {
	n := CommandHeaderSize + 4 + len(r.Data)
	if len(dst) < n || len(r.Data) > 0xFF {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyReadEEPROM, Len: uint16(4 + len(r.Data))}.Put(dst)
	binary.LittleEndian.PutUint16(dst[4:6], r.Offset)
	dst[6] = byte(len(r.Data))
	dst[7] = 0
	copy(dst[8:n], r.Data)
	return n, nil
}

// DecodeReadReply parses an eeprom-read reply payload.
func DecodeReadReply(p []byte) (*ReadReply, error) {
	b, err := replyBody(p, ReplyReadEEPROM, 4)
	if err != nil {
		return nil, err
	}
	size := int(b[2])
	if len(b) < 4+size {
		return nil, fmt.Errorf("eeprom data: %w: have %d, need %d", ErrShortPayload, len(b)-4, size)
	}
	data := make([]byte, size)
	copy(data, b[4:4+size])
	return &ReadReply{
		Offset: binary.LittleEndian.Uint16(b[0:2]),
		Data:   data,
	}, nil
}

// WriteReply acknowledges an eeprom-write.
type WriteReply struct {
	Offset uint16
}

// Put writes the reply payload into dst and returns its length.
func (r *WriteReply) Put(dst []byte) (int, error) {
	if len(dst) < 6 {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyWriteEEPROM, Len: 2}.Put(dst)
	binary.LittleEndian.PutUint16(dst[4:6], r.Offset)
	return 6, nil
}

// DecodeWriteReply parses an eeprom-write reply payload.
func DecodeWriteReply(p []byte) (*WriteReply, error) {
	b, err := replyBody(p, ReplyWriteEEPROM, 2)
	if err != nil {
		return nil, err
	}
	return &WriteReply{Offset: binary.LittleEndian.Uint16(b[0:2])}, nil
}

// RFReply carries raw receiver register samples.
type RFReply struct {
	RSSI   uint16
	Noise  uint8
	Glitch uint8
}

// Put writes the reply payload into dst and returns its length.
func (r *RFReply) Put(dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyReadRF, Len: 4}.Put(dst)
	binary.LittleEndian.PutUint16(dst[4:6], r.RSSI)
	dst[6] = r.Noise
	dst[7] = r.Glitch
	return 8, nil
}

// DecodeRFReply parses an rf-telemetry reply payload.
func DecodeRFReply(p []byte) (*RFReply, error) {
	b, err := replyBody(p, ReplyReadRF, 4)
	if err != nil {
		return nil, err
	}
	return &RFReply{
		RSSI:   binary.LittleEndian.Uint16(b[0:2]),
		Noise:  b[2],
		Glitch: b[3],
	}, nil
}

// BatteryReply carries raw battery ADC readings.
type BatteryReply struct {
	Voltage uint16
	Current uint16
}

// Put writes the reply payload into dst and returns its length.
func (r *BatteryReply) Put(dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyReadBattery, Len: 4}.Put(dst)
	binary.LittleEndian.PutUint16(dst[4:6], r.Voltage)
	binary.LittleEndian.PutUint16(dst[6:8], r.Current)
	return 8, nil
}

// DecodeBatteryReply parses a battery-telemetry reply payload.
func DecodeBatteryReply(p []byte) (*BatteryReply, error) {
	b, err := replyBody(p, ReplyReadBattery, 4)
	if err != nil {
		return nil, err
	}
	return &BatteryReply{
		Voltage: binary.LittleEndian.Uint16(b[0:2]),
		Current: binary.LittleEndian.Uint16(b[2:4]),
	}, nil
}

// UnlockReply reports the lock state after a challenge-response.
type UnlockReply struct {
	Locked bool
}

// Put writes the reply payload into dst and returns its length.
func (r *UnlockReply) Put(dst []byte) (int, error) {
	if len(dst) < 8 {
		return 0, ErrBufferTooSmall
	}
	Header{ID: ReplyUnlock, Len: 4}.Put(dst)
	dst[4] = boolByte(r.Locked)
	dst[5], dst[6], dst[7] = 0, 0, 0
	return 8, nil
}

// DecodeUnlockReply parses a challenge-response reply payload.
func DecodeUnlockReply(p []byte) (*UnlockReply, error) {
	b, err := replyBody(p, ReplyUnlock, 4)
	if err != nil {
		return nil, err
	}
	return &UnlockReply{Locked: b[0] != 0}, nil
}

func replyBody(p []byte, id uint16, need int) ([]byte, error) {
	h, err := DecodeHeader(p)
	if err != nil {
		return nil, err
	}
	if h.ID != id {
		return nil, &ReplyIDError{Expected: id, Actual: h.ID}
	}
	return body(p, need)
}

func words(b []byte) [4]uint32 {
	var w [4]uint32
	for i := range w {
		w[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return w
}

func putWords(dst []byte, w [4]uint32) {
	for i, v := range w {
		binary.LittleEndian.PutUint32(dst[i*4:], v)
	}
}

// WordsToBytes serializes four words little-endian.
func WordsToBytes(w [4]uint32) [16]byte {
	var b [16]byte
	putWords(b[:], w)
	return b
}

// BytesToWords parses 16 bytes as four little-endian words.
func BytesToWords(b [16]byte) [4]uint32 {
	return words(b[:])
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
