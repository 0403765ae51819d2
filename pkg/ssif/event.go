// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

// Event is one byte-level protocol event reported by the I2C slave
// controller. The controller delivers events synchronously, one at a time,
// and for read events expects the next outgoing byte before the master's
// clock proceeds.
type Event int

const (
	// ReadRequested: the master started a read, supply the first byte.
	ReadRequested Event = iota
	// WriteRequested: the master is about to write.
	WriteRequested
	// ReadProcessed: the previous byte was accepted, supply the next one.
	ReadProcessed
	// WriteReceived: the master delivered a byte.
	WriteReceived
	// Stop: the bus transaction ended.
	Stop
)

func (e Event) String() string {
	switch e {
	case ReadRequested:
		return "read-requested"
	case WriteRequested:
		return "write-requested"
	case ReadProcessed:
		return "read-processed"
	case WriteReceived:
		return "write-received"
	case Stop:
		return "stop"
	}
	return "unknown"
}
