package protocol

import (
	"encoding/binary"

	"github.com/sigurn/crc16"
)

var crcTable = crc16.MakeTable(crc16.CRC16_XMODEM)

// CRC16 computes the CRC-16/XMODEM of p.
func CRC16(p []byte) uint16 {
	return crc16.Checksum(p, crcTable)
}

// CheckFrame verifies a deobfuscated frame of payload followed by its
// little-endian CRC.
func CheckFrame(frame []byte) bool {
	if len(frame) < CRCSize {
		return false
	}
	size := len(frame) - CRCSize
	return CRC16(frame[:size]) == binary.LittleEndian.Uint16(frame[size:])
}
