// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2cslave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// Frame kinds sent back to the controller fronting the physical bus.
const (
	frameReply     = 0x00
	frameEnableRx  = 0x01
	frameDisableRx = 0x02
)

// StreamBus adapts an external bus controller, reached over a byte stream
// (a companion microcontroller bridge or an emulated host), into a Bus.
// The controller sends one two-byte frame [event, data] per slave byte
// event and receives [0x00, value] in reply, where value is the byte to
// place on the bus for read events. Enable and disable requests are
// forwarded to the controller as [0x01, 0] and [0x02, 0] control frames.
type StreamBus struct {
	conn net.Conn

	wmu sync.Mutex // serializes frame writes

	hmu     sync.Mutex
	handler Handler

	enabled atomic.Bool
}

func NewStreamBus(conn net.Conn) *StreamBus {
	return &StreamBus{conn: conn}
}

func (b *StreamBus) SetHandler(h Handler) {
	b.hmu.Lock()
	b.handler = h
	b.hmu.Unlock()
}

func (b *StreamBus) EnableRx() {
	b.enabled.Store(true)
	b.send(frameEnableRx, 0)
}

func (b *StreamBus) DisableRx() {
	b.enabled.Store(false)
	b.send(frameDisableRx, 0)
}

func (b *StreamBus) Close() error {
	return b.conn.Close()
}

func (b *StreamBus) send(kind, data byte) {
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if _, err := b.conn.Write([]byte{kind, data}); err != nil {
		log.Errorf("i2cslave: controller write failed: %v", err)
	}
}

// Run pumps events from the controller into the handler until the
// connection closes or ctx is canceled. Events arriving while listening is
// disabled are acknowledged but not delivered; the controller is expected
// to stop forwarding them, the local gate only covers the race around the
// control frame.
func (b *StreamBus) Run(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			b.conn.Close()
		case <-done:
		}
	}()

	buf := make([]byte, 2)
	for {
		if _, err := io.ReadFull(b.conn, buf); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("controller read: %v", err)
		}
		ev, data := ssif.Event(buf[0]), buf[1]

		var out byte
		b.hmu.Lock()
		h := b.handler
		b.hmu.Unlock()
		if h != nil && b.enabled.Load() {
			out = h(ev, data)
		}
		b.send(frameReply, out)
	}
}
