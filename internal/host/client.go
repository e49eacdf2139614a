// Package host talks to a radio over its programming cable.
package host

import (
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/bigbag/k5link/internal/aesblock"
	"github.com/bigbag/k5link/internal/link"
	"github.com/bigbag/k5link/internal/protocol"
)

// DefaultTimeout bounds each request/reply exchange.
const DefaultTimeout = 500 * time.Millisecond

// RestoreChunkSize is the number of bytes sent per write command.
const RestoreChunkSize = 64

// Port is the byte link to the radio.
type Port interface {
	Write(p []byte) (int, error)
	ReadWithTimeout(buf []byte, timeout time.Duration) (int, error)
	Flush() error
}

// ProgressCallback is called to report dump and restore progress.
type ProgressCallback func(current, total int)

// Client runs configuration sessions against a radio.
type Client struct {
	port      Port
	encrypted bool
	timeout   time.Duration
	progress  ProgressCallback
	now       func() time.Time

	pending []byte
	session *protocol.VersionReply
	stamp   uint32
}

// New creates a client for the given port. It talks in encrypted mode.
func New(port Port) *Client {
	return &Client{
		port:      port,
		encrypted: true,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
}

// SetEncrypted selects obfuscated or plain traffic. It takes effect with
// the next Hello, which switches the radio too.
func (c *Client) SetEncrypted(encrypted bool) {
	c.encrypted = encrypted
}

// SetTimeout sets the per-reply timeout.
func (c *Client) SetTimeout(d time.Duration) {
	c.timeout = d
}

// SetProgressCallback sets the progress callback function.
func (c *Client) SetProgressCallback(cb ProgressCallback) {
	c.progress = cb
}

func (c *Client) reportProgress(current, total int) {
	if c.progress != nil {
		c.progress(current, total)
	}
}

// Session returns the reply to the last Hello, or nil.
func (c *Client) Session() *protocol.VersionReply {
	return c.session
}

// Hello opens a session. The radio answers with its firmware version,
// lock flags and a fresh challenge.
func (c *Client) Hello() (*protocol.VersionReply, error) {
	return c.startSession(protocol.CmdVersion)
}

// Reconfigure resets the radio's runtime settings and opens a new session.
func (c *Client) Reconfigure() (*protocol.VersionReply, error) {
	return c.startSession(protocol.CmdReconfigure)
}

func (c *Client) startSession(id uint16) (*protocol.VersionReply, error) {
	stamp := uint32(c.now().Unix())
	p, err := c.transact(protocol.SessionRequest{Timestamp: stamp}.Encode(id))
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", protocol.CommandName(id), err)
	}

	v, err := protocol.DecodeVersionReply(p)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", protocol.CommandName(id), err)
	}

	c.session = v
	c.stamp = stamp
	return v, nil
}

// Unlock answers the session challenge with key.
func (c *Client) Unlock(key [4]uint32) error {
	if c.session == nil {
		return ErrNoSession
	}

	req := protocol.UnlockRequest{Response: aesblock.Response(key, c.session.Challenge)}
	p, err := c.transact(req.Encode())
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}

	reply, err := protocol.DecodeUnlockReply(p)
	if err != nil {
		return fmt.Errorf("unlock failed: %w", err)
	}
	if reply.Locked {
		return &LockedError{HasCustomKey: c.session.HasCustomKey}
	}
	return nil
}

// ReadEEPROM reads up to 128 bytes at offset. Reads near the end of the
// EEPROM come back short.
func (c *Client) ReadEEPROM(offset uint16, size int) ([]byte, error) {
	if c.session == nil {
		return nil, ErrNoSession
	}
	if size <= 0 || size > protocol.MaxReadSize {
		return nil, fmt.Errorf("read size %d out of range 1..%d", size, protocol.MaxReadSize)
	}

	req := protocol.ReadRequest{Offset: offset, Size: uint8(size), Timestamp: c.stamp}
	p, err := c.transact(req.Encode())
	if err != nil {
		return nil, fmt.Errorf("read at 0x%04X failed: %w", offset, err)
	}

	reply, err := protocol.DecodeReadReply(p)
	if err != nil {
		return nil, fmt.Errorf("read at 0x%04X failed: %w", offset, err)
	}
	if reply.Offset != offset {
		return nil, fmt.Errorf("read at 0x%04X: got 0x%04X: %w", offset, reply.Offset, ErrOffsetMismatch)
	}

	return reply.Data, nil
}

// WriteEEPROM writes data at offset. The radio only stores whole 8-byte
// chunks and silently skips protected ones.
func (c *Client) WriteEEPROM(offset uint16, data []byte, allowPassword bool) error {
	if c.session == nil {
		return ErrNoSession
	}
	if len(data)%protocol.WriteChunkSize != 0 {
		return ErrUnaligned
	}
	if len(data) > 0xFF {
		return fmt.Errorf("write of %d bytes exceeds 255", len(data))
	}

	req := protocol.WriteRequest{Offset: offset, AllowPassword: allowPassword, Timestamp: c.stamp, Data: data}
	p, err := c.transact(req.Encode())
	if err != nil {
		return fmt.Errorf("write at 0x%04X failed: %w", offset, err)
	}

	reply, err := protocol.DecodeWriteReply(p)
	if err != nil {
		return fmt.Errorf("write at 0x%04X failed: %w", offset, err)
	}
	if reply.Offset != offset {
		return fmt.Errorf("write at 0x%04X: got 0x%04X: %w", offset, reply.Offset, ErrOffsetMismatch)
	}

	return nil
}

// Dump reads length bytes starting at start.
func (c *Client) Dump(start, length int) ([]byte, error) {
	if start < 0 || length < 0 || start+length > protocol.EEPROMSize {
		return nil, fmt.Errorf("dump range 0x%04X+%d outside eeprom", start, length)
	}

	out := make([]byte, 0, length)
	for len(out) < length {
		n := min(protocol.MaxReadSize, length-len(out))
		data, err := c.ReadEEPROM(uint16(start+len(out)), n)
		if err != nil {
			return nil, err
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("empty read at 0x%04X", start+len(out))
		}
		out = append(out, data...)
		c.reportProgress(len(out), length)
	}

	return out, nil
}

// Restore writes data starting at start in RestoreChunkSize pieces.
func (c *Client) Restore(start int, data []byte, allowPassword bool) error {
	if len(data)%protocol.WriteChunkSize != 0 {
		return ErrUnaligned
	}
	if start < 0 || start+len(data) > protocol.EEPROMSize {
		return fmt.Errorf("restore range 0x%04X+%d outside eeprom", start, len(data))
	}

	for done := 0; done < len(data); {
		n := min(RestoreChunkSize, len(data)-done)
		if err := c.WriteEEPROM(uint16(start+done), data[done:done+n], allowPassword); err != nil {
			return err
		}
		done += n
		c.reportProgress(done, len(data))
	}

	return nil
}

// RF reads the receiver telemetry.
func (c *Client) RF() (*protocol.RFReply, error) {
	p, err := c.transact(protocol.EncodeCommand(protocol.CmdReadRF))
	if err != nil {
		return nil, fmt.Errorf("rf telemetry failed: %w", err)
	}
	return protocol.DecodeRFReply(p)
}

// Battery reads the battery telemetry.
func (c *Client) Battery() (*protocol.BatteryReply, error) {
	p, err := c.transact(protocol.EncodeCommand(protocol.CmdReadBattery))
	if err != nil {
		return nil, fmt.Errorf("battery telemetry failed: %w", err)
	}
	return protocol.DecodeBatteryReply(p)
}

// Reboot resets the radio. There is no reply.
func (c *Client) Reboot() error {
	if err := c.send(protocol.EncodeCommand(protocol.CmdReboot)); err != nil {
		return fmt.Errorf("reboot failed: %w", err)
	}
	c.session = nil
	return nil
}

func (c *Client) send(payload []byte) error {
	if err := c.port.Flush(); err != nil {
		return fmt.Errorf("failed to flush input: %w", err)
	}
	c.pending = c.pending[:0]
	_, err := c.port.Write(link.Encode(payload, c.encrypted))
	return err
}

// transact sends one command and waits for its reply payload.
func (c *Client) transact(payload []byte) ([]byte, error) {
	if err := c.send(payload); err != nil {
		return nil, err
	}
	return c.readReply(c.timeout)
}

// readReply reads until a reply frame decodes or the timeout expires.
func (c *Client) readReply(timeout time.Duration) ([]byte, error) {
	deadline := time.Now().Add(timeout)
	chunk := make([]byte, 256)

	for time.Now().Before(deadline) {
		n, err := c.port.ReadWithTimeout(chunk, 50*time.Millisecond)
		if n > 0 {
			c.pending = append(c.pending, chunk[:n]...)
		}
		if err != nil && n == 0 {
			continue
		}

		for {
			frame, remaining := link.ReadFrame(c.pending)
			c.pending = remaining
			if frame == nil {
				break
			}
			p, err := link.Decode(frame, c.encrypted)
			if err != nil {
				glog.V(2).Infof("Skipping reply frame: %v", err)
				continue
			}
			return p, nil
		}
	}

	return nil, ErrTimeout
}
