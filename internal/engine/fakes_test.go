package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bigbag/k5link/internal/aesblock"
	"github.com/bigbag/k5link/internal/link"
	"github.com/bigbag/k5link/internal/protocol"
	"github.com/bigbag/k5link/internal/ring"
)

const session = 0x6A0F1E23

var customKey = [4]uint32{0x11111111, 0x22222222, 0x33333333, 0x44444444}

type fakeTransport struct {
	frames [][]byte
	err    error
}

func (f *fakeTransport) Send(p []byte) error {
	if f.err != nil {
		return f.err
	}
	f.frames = append(f.frames, append([]byte{}, p...))
	return nil
}

type fakeEEPROM struct {
	mem      [protocol.EEPROMSize]byte
	writes   []uint16
	readErr  error
	writeErr error
}

func newFakeEEPROM() *fakeEEPROM {
	m := &fakeEEPROM{}
	for i := range m.mem {
		m.mem[i] = 0xFF
	}
	return m
}

func (m *fakeEEPROM) Read(addr uint16, buf []byte) error {
	if m.readErr != nil {
		return m.readErr
	}
	if int(addr)+len(buf) > len(m.mem) {
		return errors.New("read out of range")
	}
	copy(buf, m.mem[addr:])
	return nil
}

func (m *fakeEEPROM) Write8(addr uint16, data *[8]byte) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	if int(addr)+len(data) > len(m.mem) {
		return errors.New("write out of range")
	}
	copy(m.mem[addr:], data[:])
	m.writes = append(m.writes, addr)
	return nil
}

func (m *fakeEEPROM) setKey(key [4]uint32) {
	b := protocol.WordsToBytes(key)
	copy(m.mem[protocol.KeyStart:], b[:])
}

// fakeRadio stands in for telemetry, power, system, radio and session.
type fakeRadio struct {
	passwordLocked bool
	killedCleared  int
	configResets   int
	resets         int
	arms           int
}

func (r *fakeRadio) RSSI() uint16 { return 0x01A5 }
func (r *fakeRadio) Noise() uint8 { return 0x22 }
func (r *fakeRadio) Glitch() uint8 { return 0x07 }
func (r *fakeRadio) Battery() (voltage, current uint16) { return 2090, 15 }
func (r *fakeRadio) Reset() { r.resets++ }
func (r *fakeRadio) PasswordLocked() bool { return r.passwordLocked }
func (r *fakeRadio) ClearKilled() { r.killedCleared++ }
func (r *fakeRadio) ResetConfiguration() { r.configResets++ }
func (r *fakeRadio) Arm() { r.arms++ }

// seqReader yields an endless counting sequence.
type seqReader struct {
	n byte
}

func (s *seqReader) Read(p []byte) (int, error) {
	for i := range p {
		s.n++
		p[i] = s.n
	}
	return len(p), nil
}

type harness struct {
	t   *testing.T
	rx  *ring.Buffer
	eng *Engine
	tx  *fakeTransport
	mem *fakeEEPROM
	dev *fakeRadio
}

// newHarness builds the collaborators. Call start to create the engine.
func newHarness(t *testing.T) *harness {
	t.Helper()
	rx, err := ring.NewBuffer(ring.DefaultCapacity)
	require.NoError(t, err)
	return &harness{
		t:   t,
		rx:  rx,
		tx:  &fakeTransport{},
		mem: newFakeEEPROM(),
		dev: &fakeRadio{},
	}
}

func (h *harness) deps() Deps {
	return Deps{
		Transport: h.tx,
		EEPROM:    h.mem,
		Cipher:    aesblock.Cipher{},
		Telemetry: h.dev,
		Power:     h.dev,
		System:    h.dev,
		Radio:     h.dev,
		Session:   h.dev,
	}
}

func (h *harness) start(opts ...Option) *harness {
	h.t.Helper()
	opts = append([]Option{WithRandom(&seqReader{})}, opts...)
	eng, err := New(h.rx, h.deps(), opts...)
	require.NoError(h.t, err)
	h.eng = eng
	return h
}

func started(t *testing.T) *harness {
	t.Helper()
	return newHarness(t).start()
}

func (h *harness) send(payload []byte, encrypted bool) Result {
	h.rx.Write(link.Encode(payload, encrypted))
	return h.eng.Poll()
}

func (h *harness) lastReply(encrypted bool) []byte {
	h.t.Helper()
	require.NotEmpty(h.t, h.tx.frames, "no reply sent")
	p, err := link.Decode(h.tx.frames[len(h.tx.frames)-1], encrypted)
	require.NoError(h.t, err)
	return p
}

// hello opens a session; its encoding also selects the mode.
func (h *harness) hello(encrypted bool) *protocol.VersionReply {
	h.t.Helper()
	res := h.send(protocol.SessionRequest{Timestamp: session}.Encode(protocol.CmdVersion), encrypted)
	require.Equal(h.t, Handled, res.Status)
	require.True(h.t, res.Replied)
	v, err := protocol.DecodeVersionReply(h.lastReply(encrypted))
	require.NoError(h.t, err)
	return v
}

func (h *harness) unlock(response [4]uint32, encrypted bool) *protocol.UnlockReply {
	h.t.Helper()
	res := h.send(protocol.UnlockRequest{Response: response}.Encode(), encrypted)
	require.Equal(h.t, Handled, res.Status)
	u, err := protocol.DecodeUnlockReply(h.lastReply(encrypted))
	require.NoError(h.t, err)
	return u
}

func (h *harness) unlockWith(key [4]uint32) *protocol.UnlockReply {
	h.t.Helper()
	return h.unlock(aesblock.Response(key, h.eng.Challenge()), h.eng.Encrypted())
}

func (h *harness) read(offset uint16, size uint8) Result {
	req := protocol.ReadRequest{Offset: offset, Size: size, Timestamp: session}
	return h.send(req.Encode(), h.eng.Encrypted())
}

func (h *harness) write(offset uint16, data []byte, allowPassword bool) Result {
	req := protocol.WriteRequest{Offset: offset, AllowPassword: allowPassword, Timestamp: session, Data: data}
	return h.send(req.Encode(), h.eng.Encrypted())
}

func fill(n int, b byte) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}
