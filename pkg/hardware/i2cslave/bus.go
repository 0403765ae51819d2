// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package i2cslave models the slave-mode capability of an I2C bus
// controller: something that reports byte-level protocol events to a
// handler and can be told to stop and resume listening. The package ships
// an in-process fake that doubles as an SMBus master simulator, a stream
// adapter for external bus controllers, and a binary event trace
// recorder/replayer.
package i2cslave

import (
	"errors"

	"github.com/u-root/ssif-bmc/pkg/logger"
	"github.com/u-root/ssif-bmc/pkg/ssif"
)

var log = logger.LogContainer.GetSimpleLogger()

var (
	// ErrNotListening is returned to the master when the slave does not
	// answer its address.
	ErrNotListening = errors.New("i2cslave: slave is not listening")

	// ErrNoHandler is returned when no event handler is attached.
	ErrNoHandler = errors.New("i2cslave: no handler attached")
)

// Handler consumes one slave byte event. For ReadRequested and
// ReadProcessed the returned byte is placed on the bus; for other events
// the return value is ignored.
type Handler func(ev ssif.Event, b byte) byte

// Bus is the slave-mode capability of an I2C bus controller.
type Bus interface {
	// SetHandler attaches the byte-event handler. Must be called before
	// listening is enabled.
	SetHandler(Handler)
	ssif.Listener
	Close() error
}

// WithRecorder returns a Bus identical to b except that every event passing
// through its handler is also appended to rec's trace.
func WithRecorder(b Bus, rec *Recorder) Bus {
	return &recordingBus{b, rec}
}

type recordingBus struct {
	Bus
	rec *Recorder
}

func (b *recordingBus) SetHandler(h Handler) {
	b.Bus.SetHandler(b.rec.Wrap(h))
}
