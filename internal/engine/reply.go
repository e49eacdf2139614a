package engine

import (
	"encoding/binary"

	"github.com/golang/glog"

	"github.com/bigbag/k5link/internal/protocol"
)

// maxReplyPayload is the largest reply payload, an eeprom-read of 128 bytes.
const maxReplyPayload = protocol.CommandHeaderSize + 4 + protocol.MaxReadSize

type replyWriter interface {
	Put(dst []byte) (int, error)
}

// sendReply serializes r into the reply buffer, frames it and sends it in
// one write.
func (e *Engine) sendReply(cmd uint16, r replyWriter) Result {
	buf := e.reply[:]
	n, err := r.Put(buf[protocol.HeaderSize : len(buf)-protocol.FooterSize])
	if err != nil {
		glog.Warningf("Reply to %s: %v", protocol.CommandName(cmd), err)
		return Result{Status: Handled, Command: cmd, Err: err}
	}

	frame := frameReply(buf, n, e.encrypted)
	if err := e.deps.Transport.Send(frame); err != nil {
		glog.Warningf("Send reply to %s: %v", protocol.CommandName(cmd), err)
		return Result{Status: Handled, Command: cmd, Err: err}
	}

	return Result{Status: Handled, Command: cmd, Replied: true}
}

// frameReply completes a reply whose n-byte payload already sits at
// buf[HeaderSize:]. It returns the frame.
func frameReply(buf []byte, n int, encrypted bool) []byte {
	binary.LittleEndian.PutUint16(buf[0:2], protocol.ReplyMagic)
	binary.LittleEndian.PutUint16(buf[2:4], uint16(n))

	if encrypted {
		protocol.Obfuscate(buf[protocol.HeaderSize : protocol.HeaderSize+n])
	}

	tail := buf[protocol.HeaderSize+n:]
	pad := protocol.FooterPad(n, encrypted)
	tail[0], tail[1] = pad[0], pad[1]
	binary.LittleEndian.PutUint16(tail[2:4], protocol.FooterMagic)

	return buf[:n+protocol.FrameOverhead]
}
