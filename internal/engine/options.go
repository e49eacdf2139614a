package engine

import (
	"crypto/rand"
	"io"

	"github.com/bigbag/k5link/internal/protocol"
)

// DefaultFirmwareVersion is reported in version replies unless overridden.
const DefaultFirmwareVersion = "K5LINK"

// Config holds engine settings.
type Config struct {
	FirmwareVersion string
	DefaultKey      [4]uint32
	Random          io.Reader
}

// Option configures an Engine.
type Option func(*Config)

func defaultConfig() Config {
	return Config{
		FirmwareVersion: DefaultFirmwareVersion,
		DefaultKey:      protocol.DefaultKey,
		Random:          rand.Reader,
	}
}

// WithFirmwareVersion sets the version string sent in version replies.
// It is truncated to 16 bytes on the wire.
func WithFirmwareVersion(v string) Option {
	return func(c *Config) {
		c.FirmwareVersion = v
	}
}

// WithDefaultKey replaces the factory AES key.
func WithDefaultKey(key [4]uint32) Option {
	return func(c *Config) {
		c.DefaultKey = key
	}
}

// WithRandom sets the source of challenge bytes.
func WithRandom(r io.Reader) Option {
	return func(c *Config) {
		if r != nil {
			c.Random = r
		}
	}
}
