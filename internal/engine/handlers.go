package engine

import (
	"github.com/golang/glog"

	"github.com/bigbag/k5link/internal/protocol"
)

func (e *Engine) dispatch(id uint16, p []byte) Result {
	glog.V(1).Infof("Command %s (%d bytes)", protocol.CommandName(id), len(p))

	switch id {
	case protocol.CmdVersion:
		return e.handleVersion(id, p)
	case protocol.CmdReadEEPROM:
		return e.handleRead(id, p)
	case protocol.CmdWriteEEPROM:
		return e.handleWrite(id, p)
	case protocol.CmdReadRF:
		return e.handleRF(id)
	case protocol.CmdReadBattery:
		return e.handleBattery(id)
	case protocol.CmdUnlock:
		return e.handleUnlock(id, p)
	case protocol.CmdReconfigure:
		return e.handleReconfigure(id, p)
	case protocol.CmdReboot:
		e.deps.System.Reset()
		return Result{Status: Handled, Command: id}
	default:
		glog.V(2).Infof("Ignoring unknown command 0x%04X", id)
		return Result{Status: Unhandled, Command: id}
	}
}

func malformed(id uint16, err error) Result {
	glog.V(2).Infof("Dropped %s: %v", protocol.CommandName(id), err)
	return Result{Status: Malformed, Command: id}
}

func (e *Engine) handleVersion(id uint16, p []byte) Result {
	req, err := protocol.DecodeSessionRequest(p)
	if err != nil {
		return malformed(id, err)
	}
	return e.startSession(id, req.Timestamp)
}

func (e *Engine) handleReconfigure(id uint16, p []byte) Result {
	req, err := protocol.DecodeSessionRequest(p)
	if err != nil {
		return malformed(id, err)
	}
	e.deps.Radio.ResetConfiguration()
	return e.startSession(id, req.Timestamp)
}

// startSession records the session timestamp, issues a new challenge and
// answers with a version reply.
func (e *Engine) startSession(id uint16, timestamp uint32) Result {
	e.timestamp = timestamp
	e.deps.Session.Arm()

	if err := e.auth.IssueChallenge(e.cfg.Random); err != nil {
		glog.Warningf("Issue challenge: %v", err)
		return Result{Status: Handled, Command: id, Err: err}
	}

	return e.sendReply(id, &protocol.VersionReply{
		Version:        e.cfg.FirmwareVersion,
		HasCustomKey:   e.auth.HasCustomKey(),
		PasswordLocked: e.deps.Radio.PasswordLocked(),
		Challenge:      e.auth.Challenge(),
	})
}

func (e *Engine) staleSession(id uint16, timestamp uint32) bool {
	if timestamp == e.timestamp {
		return false
	}
	glog.V(2).Infof("Dropped %s: session 0x%08X, want 0x%08X", protocol.CommandName(id), timestamp, e.timestamp)
	return true
}

func (e *Engine) handleRead(id uint16, p []byte) Result {
	req, err := protocol.DecodeReadRequest(p)
	if err != nil {
		return malformed(id, err)
	}
	if e.staleSession(id, req.Timestamp) {
		return Result{Status: StaleSession, Command: id}
	}
	e.deps.Session.Arm()

	offset := int(req.Offset)
	if offset >= protocol.EEPROMSize {
		return Result{Status: RangeError, Command: id}
	}
	n := min(int(req.Size), protocol.MaxReadSize, protocol.EEPROMSize-offset)
	if n == 0 {
		return Result{Status: RangeError, Command: id}
	}

	data := e.scratch[:n]
	if e.auth.HasCustomKey() && e.auth.Locked() {
		clear(data)
	} else if err := e.deps.EEPROM.Read(req.Offset, data); err != nil {
		glog.Warningf("EEPROM read at 0x%04X: %v", offset, err)
		return Result{Status: Handled, Command: id, Err: err}
	}

	return e.sendReply(id, &protocol.ReadReply{Offset: req.Offset, Data: data})
}

func (e *Engine) handleWrite(id uint16, p []byte) Result {
	req, err := protocol.DecodeWriteRequest(p)
	if err != nil {
		return malformed(id, err)
	}
	if e.staleSession(id, req.Timestamp) {
		return Result{Status: StaleSession, Command: id}
	}
	e.deps.Session.Arm()

	offset := int(req.Offset)
	if offset >= protocol.EEPROMSize {
		return Result{Status: RangeError, Command: id}
	}

	if !(e.auth.HasCustomKey() && e.auth.Locked()) {
		if err := e.writeChunks(offset, req.Data, req.AllowPassword); err != nil {
			glog.Warningf("EEPROM write at 0x%04X: %v", offset, err)
			return Result{Status: Handled, Command: id, Err: err}
		}
	}

	return e.sendReply(id, &protocol.WriteReply{Offset: req.Offset})
}

// writeChunks stores data in 8-byte chunks starting at offset, skipping
// chunks the current lock state protects. A trailing partial chunk is
// dropped.
func (e *Engine) writeChunks(offset int, data []byte, allowPassword bool) error {
	if room := protocol.EEPROMSize - offset; len(data) > room {
		data = data[:room]
	}

	passwordLocked := e.deps.Radio.PasswordLocked()
	reloadKey := false

	for i := 0; i+protocol.WriteChunkSize <= len(data); i += protocol.WriteChunkSize {
		addr := offset + i
		touchesKey := protocol.Overlaps(addr, protocol.WriteChunkSize, protocol.KeyStart, protocol.KeyEnd)

		if touchesKey && e.auth.Locked() {
			glog.V(2).Infof("Skipping chunk 0x%04X: key region locked", addr)
			continue
		}
		if passwordLocked && !allowPassword &&
			protocol.Overlaps(addr, protocol.WriteChunkSize, protocol.PasswordStart, protocol.PasswordEnd) {
			glog.V(2).Infof("Skipping chunk 0x%04X: password locked", addr)
			continue
		}

		var chunk [protocol.WriteChunkSize]byte
		copy(chunk[:], data[i:i+protocol.WriteChunkSize])

		if protocol.Overlaps(addr, protocol.WriteChunkSize, protocol.KilledFlagAddr, protocol.KilledFlagAddr+1) {
			chunk[protocol.KilledFlagAddr-addr] = 0
			e.deps.Radio.ClearKilled()
		}

		if err := e.deps.EEPROM.Write8(uint16(addr), &chunk); err != nil {
			return err
		}
		if touchesKey {
			reloadKey = true
		}
	}

	if reloadKey {
		return e.loadCustomKey()
	}
	return nil
}

func (e *Engine) handleRF(id uint16) Result {
	t := e.deps.Telemetry
	return e.sendReply(id, &protocol.RFReply{
		RSSI:   t.RSSI(),
		Noise:  t.Noise(),
		Glitch: t.Glitch(),
	})
}

func (e *Engine) handleBattery(id uint16) Result {
	voltage, current := e.deps.Power.Battery()
	return e.sendReply(id, &protocol.BatteryReply{Voltage: voltage, Current: current})
}

func (e *Engine) handleUnlock(id uint16, p []byte) Result {
	req, err := protocol.DecodeUnlockRequest(p)
	if err != nil {
		return malformed(id, err)
	}
	e.deps.Session.Arm()

	outcome := e.auth.Verify(e.deps.Cipher, req.Response)
	glog.V(1).Infof("Unlock: %s (attempts %d)", outcome, e.auth.Attempts())

	return e.sendReply(id, &protocol.UnlockReply{Locked: e.auth.Locked()})
}
