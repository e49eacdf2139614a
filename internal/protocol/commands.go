package protocol

import "fmt"

// Host configuration commands
const (
	CmdVersion       = 0x0514
	CmdReadEEPROM    = 0x051B
	CmdWriteEEPROM   = 0x051D
	CmdReadRF        = 0x0527
	CmdReadBattery   = 0x0529
	CmdUnlock        = 0x052D
	CmdReconfigure   = 0x052F
	CmdReboot        = 0x05DD
	CmdVersionCipher = 0x6902 // CmdVersion as it appears on the wire once obfuscated
)

// Reply identifiers
const (
	ReplyVersion     = 0x0515
	ReplyReadEEPROM  = 0x051C
	ReplyWriteEEPROM = 0x051E
	ReplyReadRF      = 0x0528
	ReplyReadBattery = 0x052A
	ReplyUnlock      = 0x052E
)

// Frame markers
const (
	StartMarker  = 0xAB
	StartMarker2 = 0xCD
	EndMarker    = 0xDC
	EndMarker2   = 0xBA

	ReplyMagic  = 0xCDAB
	FooterMagic = 0xBADC
)

// Frame layout
const (
	HeaderSize    = 4 // markers + size
	FooterSize    = 4 // crc (or pad) + markers
	FrameOverhead = HeaderSize + FooterSize
	CRCSize       = 2

	CommandHeaderSize = 4 // id + len inside the payload
)

// EEPROM map
const (
	EEPROMSize      = 0x2000
	MaxReadSize     = 128
	WriteChunkSize  = 8
	KeyStart        = 0x0F30
	KeyEnd          = 0x0F40
	PasswordStart   = 0x0E98
	PasswordEnd     = 0x0EA0
	KilledFlagAddr  = 0x0F42
	VersionFieldLen = 16
)

// MaxAttempts is the number of failed unlocks after which the session stays locked.
const MaxAttempts = 3

// DefaultBaudRate of the programming cable
const DefaultBaudRate = 38400

// DefaultKey is the factory AES key shared by every radio.
var DefaultKey = [4]uint32{0x4AA5CC60, 0x0312CC5F, 0xFFD2DABB, 0x6BBA7F92}

// CommandName returns a human-readable name for a command or reply id.
func CommandName(id uint16) string {
	switch id {
	case CmdVersion, CmdVersionCipher:
		return "version"
	case CmdReadEEPROM:
		return "eeprom-read"
	case CmdWriteEEPROM:
		return "eeprom-write"
	case CmdReadRF:
		return "rf-telemetry"
	case CmdReadBattery:
		return "battery-telemetry"
	case CmdUnlock:
		return "challenge-response"
	case CmdReconfigure:
		return "reconfigure"
	case CmdReboot:
		return "reboot"
	case ReplyVersion:
		return "version-reply"
	case ReplyReadEEPROM:
		return "eeprom-read-reply"
	case ReplyWriteEEPROM:
		return "eeprom-write-reply"
	case ReplyReadRF:
		return "rf-telemetry-reply"
	case ReplyReadBattery:
		return "battery-telemetry-reply"
	case ReplyUnlock:
		return "challenge-response-reply"
	default:
		return fmt.Sprintf("unknown(0x%04X)", id)
	}
}

// Overlaps reports whether [off, off+n) intersects [start, end).
func Overlaps(off, n, start, end int) bool {
	return off < end && off+n > start
}
