// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2cslave

import (
	"sync"
	"sync/atomic"

	"github.com/u-root/ssif-bmc/pkg/smbus"
	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// FakeBus is an in-process Bus whose master side is driven directly by test
// code: WriteBlock and ReadBlock perform SMBus block transactions against
// the attached handler, delivering the same event sequences a slave
// controller would. Disabling listening suppresses event delivery the way
// masking the slave interrupts does on real hardware, so a transaction can
// be cut short in the middle.
type FakeBus struct {
	mu      sync.Mutex
	handler Handler
	enabled atomic.Bool
	addr    byte
	pec     bool
}

// NewFakeBus returns a fake bus answering on the given 7-bit address.
// Listening starts disabled, as on a freshly attached controller.
func NewFakeBus(addr byte) *FakeBus {
	return &FakeBus{addr: addr}
}

func (b *FakeBus) SetHandler(h Handler) {
	b.mu.Lock()
	b.handler = h
	b.mu.Unlock()
}

func (b *FakeBus) EnableRx()  { b.enabled.Store(true) }
func (b *FakeBus) DisableRx() { b.enabled.Store(false) }

// Enabled reports whether the slave currently answers its address.
func (b *FakeBus) Enabled() bool { return b.enabled.Load() }

func (b *FakeBus) Close() error {
	b.DisableRx()
	return nil
}

// SetPEC makes the simulated master append a packet error code to block
// writes.
func (b *FakeBus) SetPEC(on bool) {
	b.mu.Lock()
	b.pec = on
	b.mu.Unlock()
}

// deliver hands one event to the handler unless listening was disabled,
// which models the controller's interrupts being masked mid-transaction.
func (b *FakeBus) deliver(h Handler, ev ssif.Event, v byte) byte {
	if !b.enabled.Load() {
		return 0
	}
	return h(ev, v)
}

// WriteBlock performs an SMBus block write as the master: the command code,
// a byte count, then the data bytes. It fails only when the slave does not
// answer its address at the start of the transaction.
func (b *FakeBus) WriteBlock(cmd byte, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.handler
	if h == nil {
		return ErrNoHandler
	}
	if !b.enabled.Load() {
		return ErrNotListening
	}

	b.deliver(h, ssif.WriteRequested, 0)
	b.deliver(h, ssif.WriteReceived, cmd)
	b.deliver(h, ssif.WriteReceived, byte(len(data)))
	for _, v := range data {
		b.deliver(h, ssif.WriteReceived, v)
	}
	if b.pec {
		p := smbus.PEC(0, smbus.AddrWrite(b.addr), cmd, byte(len(data)))
		p = smbus.PEC(p, data...)
		b.deliver(h, ssif.WriteReceived, p)
	}
	b.deliver(h, ssif.Stop, 0)
	return nil
}

// ReadBlock performs an SMBus block read as the master and returns the data
// bytes that followed the count byte.
func (b *FakeBus) ReadBlock(cmd byte) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.handler
	if h == nil {
		return nil, ErrNoHandler
	}
	if !b.enabled.Load() {
		return nil, ErrNotListening
	}

	b.deliver(h, ssif.WriteRequested, 0)
	b.deliver(h, ssif.WriteReceived, cmd)
	// Repeated start; the slave supplies the count byte first and then
	// one byte per processed-read event.
	n := b.deliver(h, ssif.ReadRequested, 0)
	data := make([]byte, n)
	for i := range data {
		data[i] = b.deliver(h, ssif.ReadProcessed, 0)
	}
	b.deliver(h, ssif.Stop, 0)
	return data, nil
}
