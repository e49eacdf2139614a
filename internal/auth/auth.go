// Package auth implements the lock state machine that gates privileged
// configuration access behind an AES challenge-response.
package auth

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/bigbag/k5link/internal/protocol"
)

// BlockCipher encrypts one block under key with the given IV.
type BlockCipher interface {
	EncryptBlock(key, iv, in [4]uint32) [4]uint32
}

// Outcome of a challenge-response attempt.
type Outcome int

const (
	// OutcomeRejected means the response matched no key.
	OutcomeRejected Outcome = iota
	// OutcomeUnlockedCustom means the response matched the custom key.
	OutcomeUnlockedCustom
	// OutcomeUnlockedDefault means the response matched the default key.
	OutcomeUnlockedDefault
	// OutcomeLockedOut means the attempt budget is spent for this session.
	OutcomeLockedOut
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRejected:
		return "rejected"
	case OutcomeUnlockedCustom:
		return "unlocked (custom key)"
	case OutcomeUnlockedDefault:
		return "unlocked (default key)"
	case OutcomeLockedOut:
		return "locked out"
	default:
		return "unknown"
	}
}

// State is the authentication state of one session.
type State struct {
	locked     bool
	attempts   int
	challenge  [4]uint32
	defaultKey [4]uint32
	customKey  [4]uint32
	hasCustom  bool
}

// New returns a locked state with no outstanding challenge.
func New(defaultKey [4]uint32) *State {
	return &State{locked: true, defaultKey: defaultKey}
}

// Locked reports whether privileged operations are refused.
func (s *State) Locked() bool { return s.locked }

// Attempts returns the number of consecutive failed responses.
func (s *State) Attempts() int { return s.attempts }

// Challenge returns the outstanding challenge.
func (s *State) Challenge() [4]uint32 { return s.challenge }

// HasCustomKey reports whether a custom key is installed.
func (s *State) HasCustomKey() bool { return s.hasCustom }

// SetCustomKey installs or removes the custom key.
func (s *State) SetCustomKey(key [4]uint32, present bool) {
	s.customKey, s.hasCustom = key, present
}

// IssueChallenge replaces the challenge with 128 fresh bits from rand.
func (s *State) IssueChallenge(rand io.Reader) error {
	var b [16]byte
	if _, err := io.ReadFull(rand, b[:]); err != nil {
		return fmt.Errorf("issue challenge: %w", err)
	}
	for i := range s.challenge {
		s.challenge[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return nil
}

// Verify checks a response against the challenge encrypted with a zero IV
// under the custom key (if any) and then the default key.
//
// After MaxAttempts consecutive failures the state stays locked for the rest
// of the session; later responses are not evaluated, even correct ones.
func (s *State) Verify(c BlockCipher, response [4]uint32) Outcome {
	if s.attempts >= protocol.MaxAttempts {
		s.locked = true
		return OutcomeLockedOut
	}

	var zero [4]uint32
	switch {
	case s.hasCustom && c.EncryptBlock(s.customKey, zero, s.challenge) == response:
		s.locked, s.attempts = false, 0
		return OutcomeUnlockedCustom
	case c.EncryptBlock(s.defaultKey, zero, s.challenge) == response:
		s.locked, s.attempts = false, 0
		return OutcomeUnlockedDefault
	}

	s.attempts++
	if s.attempts >= protocol.MaxAttempts {
		s.attempts = protocol.MaxAttempts
		s.locked = true
		return OutcomeLockedOut
	}
	s.locked = true
	return OutcomeRejected
}
