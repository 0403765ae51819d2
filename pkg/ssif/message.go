// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ssif implements the BMC side of the SMBus System Interface, the
// IPMI transport between a host processor and its BMC over an I2C/SMBus
// link. The BMC is the I2C slave; the host master issues SMBus block write
// (request) and block read (response) transactions against it.
package ssif

const (
	// MaxPayload is the largest IPMI payload one SSIF message carries.
	MaxPayload = 252

	// BlockSize is the SMBus block transfer limit of 32 data bytes.
	BlockSize = 32

	// messageSize is the flat size of a Message on the wire: the length
	// byte, netfn/lun, command and the full payload.
	messageSize = 3 + MaxPayload

	// IPMI data capacity of the multi-part Start chunk (32 bytes minus
	// the two start flag bytes) and of a Middle/End chunk (32 bytes
	// minus the block number byte).
	startChunkData  = 30
	middleChunkData = 31

	// endBlock is the block number that marks the final chunk of a
	// multi-part response.
	endBlock = 0xFF
)

// SMBus command codes assigned to SSIF transactions by the IPMI spec.
const (
	CmdRequest                 = 0x02
	CmdResponse                = 0x03
	CmdMultiPartRequestStart   = 0x06
	CmdMultiPartRequestMiddle  = 0x07
	CmdMultiPartResponseMiddle = 0x09
)

// Message is one IPMI message in SSIF framing. Len counts the bytes that
// follow it, so a message occupies Len+1 bytes on the wire. Payload bytes
// past Len-2 are undefined.
type Message struct {
	Len      byte
	NetFnLun byte
	Cmd      byte
	Payload  [MaxPayload]byte
}

// WireLen returns the on-wire size of the message, including Len itself.
func (m *Message) WireLen() int {
	return int(m.Len) + 1
}

// byteAt returns wire byte i, or 0 past the end of the structure.
func (m *Message) byteAt(i int) byte {
	switch {
	case i == 0:
		return m.Len
	case i == 1:
		return m.NetFnLun
	case i == 2:
		return m.Cmd
	case i < messageSize:
		return m.Payload[i-3]
	}
	return 0
}

// setByte stores wire byte i. Bytes past the end of the structure are
// dropped.
func (m *Message) setByte(i int, b byte) {
	switch {
	case i == 0:
		m.Len = b
	case i == 1:
		m.NetFnLun = b
	case i == 2:
		m.Cmd = b
	case i < messageSize:
		m.Payload[i-3] = b
	}
}

// Data returns the netfn/lun and command bytes followed by the defined
// payload, i.e. the Len bytes that follow the length byte on the wire.
func (m *Message) Data() []byte {
	out := make([]byte, m.Len)
	for i := range out {
		out[i] = m.byteAt(i + 1)
	}
	return out
}

// Encode returns the wire representation of the message:
// [len][netfn_lun][cmd][payload...], WireLen bytes in total.
func (m *Message) Encode() []byte {
	out := make([]byte, m.WireLen())
	for i := range out {
		out[i] = m.byteAt(i)
	}
	return out
}

// DecodeMessage parses one wire-layout message from p. The buffer may be
// longer than the encoded message but must cover the declared length, and
// must not exceed the maximum message size.
func DecodeMessage(p []byte) (Message, error) {
	var m Message
	if len(p) == 0 {
		return m, ErrTruncatedMessage
	}
	if len(p) > messageSize {
		return m, ErrMessageTooLarge
	}
	for i, b := range p {
		m.setByte(i, b)
	}
	if len(p) < m.WireLen() {
		return m, ErrTruncatedMessage
	}
	return m, nil
}
