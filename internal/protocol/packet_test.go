package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestDecodeHeader_Valid(t *testing.T) {
	p := []byte{0x14, 0x05, 0x04, 0x00, 0xAA}
	h, err := DecodeHeader(p)
	if err != nil {
		t.Fatalf("DecodeHeader() error = %v", err)
	}
	if h.ID != CmdVersion {
		t.Errorf("DecodeHeader ID = 0x%04X, want 0x%04X", h.ID, CmdVersion)
	}
	if h.Len != 4 {
		t.Errorf("DecodeHeader Len = %d, want 4", h.Len)
	}
}

func TestDecodeHeader_TooShort(t *testing.T) {
	_, err := DecodeHeader([]byte{0x14, 0x05, 0x04})
	if !errors.Is(err, ErrShortPayload) {
		t.Errorf("DecodeHeader() error = %v, want ErrShortPayload", err)
	}
}

func TestEncodeCommand_Format(t *testing.T) {
	p := EncodeCommand(CmdReadRF)
	expected := []byte{0x27, 0x05, 0x00, 0x00}
	if !bytes.Equal(p, expected) {
		t.Errorf("EncodeCommand() = %X, want %X", p, expected)
	}
}

func TestSessionRequest_Encode(t *testing.T) {
	p := SessionRequest{Timestamp: 0x11223344}.Encode(CmdVersion)
	expected := []byte{0x14, 0x05, 0x04, 0x00, 0x44, 0x33, 0x22, 0x11}
	if !bytes.Equal(p, expected) {
		t.Errorf("Encode() = %X, want %X", p, expected)
	}

	decoded, err := DecodeSessionRequest(p)
	if err != nil {
		t.Fatalf("DecodeSessionRequest() error = %v", err)
	}
	if decoded.Timestamp != 0x11223344 {
		t.Errorf("Timestamp = 0x%X, want 0x11223344", decoded.Timestamp)
	}
}

func TestReadRequest_Layout(t *testing.T) {
	p := ReadRequest{Offset: 0x1FFC, Size: 128, Timestamp: 7}.Encode()
	if len(p) != 12 {
		t.Fatalf("Encode() length = %d, want 12", len(p))
	}
	if binary.LittleEndian.Uint16(p[4:6]) != 0x1FFC {
		t.Errorf("offset = 0x%X, want 0x1FFC", binary.LittleEndian.Uint16(p[4:6]))
	}
	if p[6] != 128 {
		t.Errorf("size = %d, want 128", p[6])
	}
	if binary.LittleEndian.Uint32(p[8:12]) != 7 {
		t.Errorf("timestamp = %d, want 7", binary.LittleEndian.Uint32(p[8:12]))
	}

	decoded, err := DecodeReadRequest(p)
	if err != nil {
		t.Fatalf("DecodeReadRequest() error = %v", err)
	}
	if decoded.Offset != 0x1FFC || decoded.Size != 128 || decoded.Timestamp != 7 {
		t.Errorf("DecodeReadRequest() = %+v", decoded)
	}
}

func TestDecodeWriteRequest_TruncatedData(t *testing.T) {
	p := WriteRequest{Offset: 0x10, Data: make([]byte, 16)}.Encode()
	// Drop the last 4 data bytes; the declared size still says 16.
	p = p[:len(p)-4]

	decoded, err := DecodeWriteRequest(p)
	if err != nil {
		t.Fatalf("DecodeWriteRequest() error = %v", err)
	}
	if len(decoded.Data) != 12 {
		t.Errorf("Data length = %d, want 12", len(decoded.Data))
	}
}

func TestWriteRequest_AllowPassword(t *testing.T) {
	p := WriteRequest{Offset: PasswordStart, AllowPassword: true, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}}.Encode()
	if p[7] != 1 {
		t.Errorf("allow-password byte = %d, want 1", p[7])
	}
	decoded, err := DecodeWriteRequest(p)
	if err != nil {
		t.Fatalf("DecodeWriteRequest() error = %v", err)
	}
	if !decoded.AllowPassword {
		t.Error("AllowPassword = false, want true")
	}
	if !bytes.Equal(decoded.Data, []byte{1, 2, 3, 4, 5, 6, 7, 8}) {
		t.Errorf("Data = %v", decoded.Data)
	}
}

func TestUnlockRequest_WordOrder(t *testing.T) {
	p := UnlockRequest{Response: [4]uint32{0x04030201, 0, 0, 0x0D0C0B0A}}.Encode()
	if !bytes.Equal(p[4:8], []byte{0x01, 0x02, 0x03, 0x04}) {
		t.Errorf("first word bytes = %X", p[4:8])
	}
	if !bytes.Equal(p[16:20], []byte{0x0A, 0x0B, 0x0C, 0x0D}) {
		t.Errorf("last word bytes = %X", p[16:20])
	}
}

func TestVersionReply_PutAndDecode(t *testing.T) {
	reply := &VersionReply{
		Version:        "K5LINK 1.0.0",
		HasCustomKey:   true,
		PasswordLocked: false,
		Challenge:      [4]uint32{1, 2, 3, 4},
	}

	buf := make([]byte, 64)
	n, err := reply.Put(buf)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n != 40 {
		t.Fatalf("Put() length = %d, want 40", n)
	}
	if binary.LittleEndian.Uint16(buf[2:4]) != 36 {
		t.Errorf("header len = %d, want 36", binary.LittleEndian.Uint16(buf[2:4]))
	}

	decoded, err := DecodeVersionReply(buf[:n])
	if err != nil {
		t.Fatalf("DecodeVersionReply() error = %v", err)
	}
	if decoded.Version != reply.Version {
		t.Errorf("Version = %q, want %q", decoded.Version, reply.Version)
	}
	if !decoded.HasCustomKey || decoded.PasswordLocked {
		t.Errorf("flags = %v/%v, want true/false", decoded.HasCustomKey, decoded.PasswordLocked)
	}
	if decoded.Challenge != reply.Challenge {
		t.Errorf("Challenge = %v, want %v", decoded.Challenge, reply.Challenge)
	}
}

func TestVersionReply_LongVersionTruncated(t *testing.T) {
	reply := &VersionReply{Version: "0123456789ABCDEFGHIJ"}
	buf := make([]byte, 64)
	n, err := reply.Put(buf)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	decoded, err := DecodeVersionReply(buf[:n])
	if err != nil {
		t.Fatalf("DecodeVersionReply() error = %v", err)
	}
	if decoded.Version != "0123456789ABCDEF" {
		t.Errorf("Version = %q, want 16 characters", decoded.Version)
	}
}

func TestPut_BufferTooSmall(t *testing.T) {
	small := make([]byte, 4)
	if _, err := (&VersionReply{}).Put(small); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("VersionReply.Put() error = %v", err)
	}
	if _, err := (&ReadReply{Data: make([]byte, 8)}).Put(small); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("ReadReply.Put() error = %v", err)
	}
	if _, err := (&UnlockReply{}).Put(small); !errors.Is(err, ErrBufferTooSmall) {
		t.Errorf("UnlockReply.Put() error = %v", err)
	}
}

func TestReadReply_PutAndDecode(t *testing.T) {
	reply := &ReadReply{Offset: 0x0100, Data: []byte{0xDE, 0xAD, 0xBE, 0xEF}}
	buf := make([]byte, 256)
	n, err := reply.Put(buf)
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if n != 12 {
		t.Fatalf("Put() length = %d, want 12", n)
	}

	decoded, err := DecodeReadReply(buf[:n])
	if err != nil {
		t.Fatalf("DecodeReadReply() error = %v", err)
	}
	if decoded.Offset != 0x0100 {
		t.Errorf("Offset = 0x%X, want 0x100", decoded.Offset)
	}
	if !bytes.Equal(decoded.Data, reply.Data) {
		t.Errorf("Data = %X, want %X", decoded.Data, reply.Data)
	}
}

func TestDecodeReadReply_ShortData(t *testing.T) {
	buf := make([]byte, 64)
	n, _ := (&ReadReply{Offset: 0, Data: make([]byte, 16)}).Put(buf)
	_, err := DecodeReadReply(buf[:n-1])
	if !errors.Is(err, ErrShortPayload) {
		t.Errorf("DecodeReadReply() error = %v, want ErrShortPayload", err)
	}
}

func TestDecodeReply_WrongID(t *testing.T) {
	buf := make([]byte, 16)
	n, _ := (&BatteryReply{Voltage: 2000, Current: 10}).Put(buf)

	_, err := DecodeRFReply(buf[:n])
	var idErr *ReplyIDError
	if !errors.As(err, &idErr) {
		t.Fatalf("DecodeRFReply() error = %v, want ReplyIDError", err)
	}
	if idErr.Expected != ReplyReadRF || idErr.Actual != ReplyReadBattery {
		t.Errorf("ReplyIDError = %+v", idErr)
	}
}

func TestSmallReplies_PutAndDecode(t *testing.T) {
	buf := make([]byte, 16)

	n, _ := (&WriteReply{Offset: 0x0F30}).Put(buf)
	w, err := DecodeWriteReply(buf[:n])
	if err != nil || w.Offset != 0x0F30 {
		t.Errorf("WriteReply round trip = %+v, %v", w, err)
	}

	n, _ = (&RFReply{RSSI: 0x1FF, Noise: 0x7F, Glitch: 3}).Put(buf)
	rf, err := DecodeRFReply(buf[:n])
	if err != nil || rf.RSSI != 0x1FF || rf.Noise != 0x7F || rf.Glitch != 3 {
		t.Errorf("RFReply round trip = %+v, %v", rf, err)
	}

	n, _ = (&BatteryReply{Voltage: 2100, Current: 42}).Put(buf)
	bat, err := DecodeBatteryReply(buf[:n])
	if err != nil || bat.Voltage != 2100 || bat.Current != 42 {
		t.Errorf("BatteryReply round trip = %+v, %v", bat, err)
	}

	n, _ = (&UnlockReply{Locked: true}).Put(buf)
	u, err := DecodeUnlockReply(buf[:n])
	if err != nil || !u.Locked {
		t.Errorf("UnlockReply round trip = %+v, %v", u, err)
	}
}

func TestWordsBytes_RoundTrip(t *testing.T) {
	w := [4]uint32{0x4AA5CC60, 0x0312CC5F, 0xFFD2DABB, 0x6BBA7F92}
	b := WordsToBytes(w)
	if b[0] != 0x60 || b[3] != 0x4A {
		t.Errorf("WordsToBytes()[0:4] = %X, want little-endian", b[0:4])
	}
	if BytesToWords(b) != w {
		t.Errorf("BytesToWords(WordsToBytes(w)) = %X", BytesToWords(b))
	}
}
