// Package engine implements the radio side of the serial configuration
// protocol: frame extraction, the plain/encrypted mode toggle, integrity
// checking, command dispatch and reply encoding.
//
// An Engine is not safe for concurrent use. Bytes may be written to its
// receive buffer from another goroutine; everything else runs on the
// goroutine that calls Poll.
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"github.com/bigbag/k5link/internal/auth"
	"github.com/bigbag/k5link/internal/protocol"
	"github.com/bigbag/k5link/internal/ring"
)

// Engine holds all protocol state for one serial line.
type Engine struct {
	cfg     Config
	deps    Deps
	scanner *ring.Scanner
	auth    *auth.State

	encrypted bool
	timestamp uint32

	reply   [protocol.HeaderSize + maxReplyPayload + protocol.FooterSize]byte
	scratch [protocol.MaxReadSize]byte
}

// New builds an engine reading from rx. The engine starts in encrypted
// mode, locked, with a fresh challenge and the custom key loaded from EEPROM.
func New(rx *ring.Buffer, deps Deps, opts ...Option) (*Engine, error) {
	if rx == nil {
		return nil, errors.New("engine: nil receive buffer")
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	e := &Engine{
		cfg:       cfg,
		deps:      deps,
		scanner:   ring.NewScanner(rx),
		auth:      auth.New(cfg.DefaultKey),
		encrypted: true,
	}

	if err := e.loadCustomKey(); err != nil {
		return nil, err
	}
	if err := e.auth.IssueChallenge(cfg.Random); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return e, nil
}

// Poll extracts at most one frame from the receive buffer and handles it.
func (e *Engine) Poll() Result {
	payload, res := e.next()
	if payload == nil {
		return res
	}

	h, err := protocol.DecodeHeader(payload)
	if err != nil {
		glog.V(2).Infof("Dropped frame: %v", err)
		return Result{Status: Malformed}
	}

	return e.dispatch(h.ID, payload)
}

// next extracts one frame, applies the mode toggle and checks its
// integrity. It returns the plain payload, or nil and the reason there is
// none.
func (e *Engine) next() ([]byte, Result) {
	frame, st := e.scanner.Next()
	switch st {
	case ring.StatusIdle:
		return nil, Result{Status: Idle}
	case ring.StatusIncomplete:
		return nil, Result{Status: Incomplete}
	case ring.StatusFrame:
	default:
		glog.V(2).Infof("Dropped pending bytes: %s", st)
		return nil, Result{Status: FramingError}
	}

	e.toggleMode(frame)
	if e.encrypted {
		protocol.Obfuscate(frame)
	}

	if !protocol.CheckFrame(frame) {
		glog.V(2).Infof("Dropped frame of %d bytes: bad CRC", len(frame)-protocol.CRCSize)
		return nil, Result{Status: IntegrityError}
	}

	return frame[:len(frame)-protocol.CRCSize], Result{}
}

// Drain polls until no complete frame is pending and returns how many
// frames were handled.
func (e *Engine) Drain() int {
	handled := 0
	for {
		res := e.Poll()
		if !res.Consumed() {
			return handled
		}
		if res.Status == Handled {
			handled++
		}
	}
}

// toggleMode looks at the command id as it arrived, before deobfuscation.
// A plain version query switches to plain mode and an obfuscated one back
// to encrypted mode.
func (e *Engine) toggleMode(frame []byte) {
	if len(frame) < protocol.CRCSize+2 {
		return
	}
	switch binary.LittleEndian.Uint16(frame[0:2]) {
	case protocol.CmdVersion:
		if e.encrypted {
			glog.V(1).Info("Switching to plain mode")
		}
		e.encrypted = false
	case protocol.CmdVersionCipher:
		if !e.encrypted {
			glog.V(1).Info("Switching to encrypted mode")
		}
		e.encrypted = true
	}
}

func (e *Engine) loadCustomKey() error {
	var b [16]byte
	if err := e.deps.EEPROM.Read(protocol.KeyStart, b[:]); err != nil {
		return fmt.Errorf("load custom key: %w", err)
	}

	present := false
	for _, c := range b {
		if c != 0xFF {
			present = true
			break
		}
	}
	e.auth.SetCustomKey(protocol.BytesToWords(b), present)
	return nil
}

// Encrypted reports whether payloads are obfuscated.
func (e *Engine) Encrypted() bool { return e.encrypted }

// Locked reports whether the session is locked.
func (e *Engine) Locked() bool { return e.auth.Locked() }

// Attempts returns the number of failed unlocks.
func (e *Engine) Attempts() int { return e.auth.Attempts() }

// Challenge returns the current challenge.
func (e *Engine) Challenge() [4]uint32 { return e.auth.Challenge() }

// HasCustomKey reports whether EEPROM holds a custom AES key.
func (e *Engine) HasCustomKey() bool { return e.auth.HasCustomKey() }

// Timestamp returns the current session timestamp.
func (e *Engine) Timestamp() uint32 { return e.timestamp }
