package protocol

import (
	"errors"
	"fmt"
)

var (
	// ErrShortPayload indicates a payload too short for its command.
	ErrShortPayload = errors.New("payload too short")
	// ErrBufferTooSmall indicates a reply does not fit the destination buffer.
	ErrBufferTooSmall = errors.New("buffer too small")
)

// ReplyIDError reports a reply whose id does not match the request.
type ReplyIDError struct {
	Expected uint16
	Actual   uint16
}

func (e *ReplyIDError) Error() string {
	return fmt.Sprintf("unexpected reply 0x%04X (%s), want 0x%04X (%s)",
		e.Actual, CommandName(e.Actual), e.Expected, CommandName(e.Expected))
}
