// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package bmc serves IPMI requests arriving over the SSIF responder,
// either through an in-process command router or by handing the raw
// messages to an external consumer over a local socket.
package bmc

import (
	"sync"

	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// Network function codes, requester form (even). The response carries the
// same code with bit 2 set.
const (
	NetFnChassis   = 0x00
	NetFnSensor    = 0x04
	NetFnApp       = 0x06
	NetFnStorage   = 0x0a
	NetFnTransport = 0x0c
)

// IPMI completion codes.
const (
	CodeOK               = 0x00
	CodeNodeBusy         = 0xc0
	CodeInvalidCommand   = 0xc1
	CodeRequestTruncated = 0xc6
	CodeInvalidDataField = 0xcc
	CodeUnspecified      = 0xff
)

// Request is a decoded IPMI request as handlers see it.
type Request struct {
	NetFn byte
	LUN   byte
	Cmd   byte
	Data  []byte
}

// HandlerFunc serves one command. It returns a completion code and any
// response data following it.
type HandlerFunc func(req Request) (byte, []byte)

// Router dispatches requests to handlers registered per netfn/cmd pair.
// Unregistered commands complete with 0xc1, invalid command.
type Router struct {
	mu       sync.RWMutex
	handlers map[uint16]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[uint16]HandlerFunc)}
}

func key(netfn, cmd byte) uint16 {
	return uint16(netfn)<<8 | uint16(cmd)
}

func (r *Router) Handle(netfn, cmd byte, h HandlerFunc) {
	r.mu.Lock()
	r.handlers[key(netfn, cmd)] = h
	r.mu.Unlock()
}

// Respond serves req and builds the matching response message. The
// response netfn is the request netfn with the response bit set, cmd and
// LUN are echoed back, and the payload is the completion code followed by
// the handler's data.
func (r *Router) Respond(req *ssif.Message) ssif.Message {
	if req.Len < 2 {
		resp := ssif.Message{NetFnLun: req.NetFnLun | 0x04, Cmd: req.Cmd, Len: 3}
		resp.Payload[0] = CodeRequestTruncated
		return resp
	}
	in := Request{
		NetFn: req.NetFnLun >> 2,
		LUN:   req.NetFnLun & 0x3,
		Cmd:   req.Cmd,
		Data:  req.Payload[:req.Len-2],
	}

	r.mu.RLock()
	h, ok := r.handlers[key(in.NetFn, in.Cmd)]
	r.mu.RUnlock()

	code := byte(CodeInvalidCommand)
	var data []byte
	if ok {
		code, data = h(in)
	}
	if len(data) > ssif.MaxPayload-1 {
		code = CodeUnspecified
		data = nil
	}

	resp := ssif.Message{
		NetFnLun: (in.NetFn|0x01)<<2 | in.LUN,
		Cmd:      in.Cmd,
		Len:      byte(3 + len(data)),
	}
	resp.Payload[0] = code
	copy(resp.Payload[1:], data)
	return resp
}
