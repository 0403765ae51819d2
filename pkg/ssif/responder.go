// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

import (
	"sync"

	"github.com/u-root/ssif-bmc/pkg/logger"
)

var log = logger.LogContainer.GetSimpleLogger()

// Listener is the slave-mode control surface the responder needs from the
// I2C bus controller: stop listening once a request is complete so the next
// transaction cannot race the consumer, and resume when a response has been
// submitted. Both calls must be idempotent and safe to call from the
// byte-event critical section.
type Listener interface {
	EnableRx()
	DisableRx()
}

type nopListener struct{}

func (nopListener) EnableRx()  {}
func (nopListener) DisableRx() {}

// Responder is the SSIF protocol state machine. The bus controller feeds it
// byte events through OnEvent; a consumer exchanges messages with it through
// ReceiveRequest and SendResponse.
//
// mu guards all transaction and mailbox state and is held only for short,
// non-blocking sections (OnEvent runs entirely under it). rxMu and txMu
// serialize concurrent ReceiveRequest and SendResponse callers per
// direction; they are separate so a consumer can wait for a request while
// another goroutine submits a response.
type Responder struct {
	mu   sync.Mutex
	cond sync.Cond
	rxMu sync.Mutex
	txMu sync.Mutex

	listener Listener

	smbusCmd byte

	// Inbound single-slot mailbox, filled by OnEvent, drained by
	// ReceiveRequest.
	request      Message
	requestReady bool

	// Outbound single-slot mailbox, filled by SendResponse, drained byte
	// by byte by OnEvent.
	response         Message
	responseInFlight bool

	// Multi-part response framing state.
	chunk          [BlockSize]byte
	multiPart      bool
	middleStart    bool
	bytesEmitted   byte
	bytesRemaining byte
	blockNum       byte

	// cursor indexes the current transaction's byte stream; reset at
	// every transaction boundary.
	cursor int
}

// NewResponder returns a responder bound to the given slave-mode control.
// A nil Listener is allowed and leaves listening untouched.
func NewResponder(l Listener) *Responder {
	if l == nil {
		l = nopListener{}
	}
	r := &Responder{listener: l}
	r.cond.L = &r.mu
	return r
}

// OnEvent is the byte-event callback for the I2C slave controller. It must
// be invoked once per protocol event; for ReadRequested and ReadProcessed
// the return value is the next byte to place on the bus, for all other
// events it is zero. OnEvent never blocks and never fails: anomalies are
// logged and a benign byte is produced, since the bus offers no failure
// channel.
func (r *Responder) OnEvent(ev Event, in byte) byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out byte
	switch ev {
	case ReadRequested:
		r.cursor = 0
		out = r.firstReadByte()
	case WriteRequested:
		r.cursor = 0
	case ReadProcessed:
		out = r.nextReadByte()
	case WriteReceived:
		if r.cursor == 0 {
			// First byte of a write is the SMBus command code,
			// not part of the SSIF message.
			r.smbusCmd = in
			r.cursor++
			if in == CmdMultiPartRequestStart || in == CmdMultiPartRequestMiddle {
				log.Warnf("ssif: multi-part requests are not supported (command 0x%02x)", in)
			}
		} else {
			r.receiveByte(in)
		}
	case Stop:
		r.cursor = 0
	}
	return out
}

// receiveByte stores one request byte. Bytes past the message structure are
// dropped; the structure caps what a request can carry.
func (r *Responder) receiveByte(b byte) {
	if r.cursor >= messageSize {
		return
	}
	r.request.setByte(r.cursor-1, b)
	r.cursor++
	if r.cursor-1 >= r.request.WireLen() {
		r.completeRequest()
	}
}

// completeRequest publishes the assembled request to the inbound mailbox.
// Called with mu held.
func (r *Responder) completeRequest() {
	// Stop listening before the consumer is woken, so the master's next
	// transaction cannot race the hand-off.
	r.listener.DisableRx()

	if r.requestReady {
		// The consumer never drained the previous request; its buffer
		// was overwritten during assembly and the old message is gone.
		droppedRequestsTotal.Inc()
		log.Warnf("ssif: request completed before the previous one was consumed, old message dropped")
	}
	r.requestReady = true

	// A new request invalidates whatever response was left behind. The
	// master abandoned that read, so free the outbound slot too or the
	// consumer would wait on it forever.
	r.response = Message{}
	r.responseInFlight = false
	r.multiPart = false

	requestsTotal.Inc()
	r.cond.Broadcast()
}

// nextReadByte handles ReadProcessed: the previously supplied byte was
// accepted, produce the next one. Called with mu held.
func (r *Responder) nextReadByte() byte {
	if !r.multiPart {
		var out byte
		if r.response.Len != 0 && r.cursor < r.response.WireLen() {
			r.cursor++
			out = r.response.byteAt(r.cursor)
		}
		if r.cursor+1 >= r.response.WireLen() {
			r.completeResponse()
		}
		return out
	}

	var out byte
	switch r.smbusCmd {
	case CmdResponse, CmdMultiPartResponseMiddle:
		if r.cursor < BlockSize {
			out = r.chunk[r.cursor]
		}
		r.cursor++
	default:
		protocolErrorsTotal.Inc()
		log.Errorf("ssif: unexpected SMBus command 0x%02x while reading a multi-part response", r.smbusCmd)
		out = 0x01
	}
	if r.blockNum == endBlock && r.cursor > int(r.bytesRemaining) {
		r.completeResponse()
	}
	return out
}

// completeResponse invalidates the outbound mailbox once the last byte has
// been emitted and wakes any writer waiting to submit the next response.
// Called with mu held.
func (r *Responder) completeResponse() {
	if r.responseInFlight {
		responsesTotal.Inc()
	}
	r.response.Len = 0
	r.responseInFlight = false
	r.multiPart = false
	r.middleStart = false
	r.bytesEmitted = 0
	r.bytesRemaining = 0
	r.blockNum = 0
	r.chunk = [BlockSize]byte{}
	r.cond.Broadcast()
}
