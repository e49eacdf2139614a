package embedded

import (
	_ "embed"
	"strings"
)

//go:embed version.txt
var version string

// FirmwareVersion returns the version string the emulated radio reports.
func FirmwareVersion() string {
	return strings.TrimSpace(version)
}
