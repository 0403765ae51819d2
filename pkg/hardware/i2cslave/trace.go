// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package i2cslave

import (
	"encoding/binary"
	"io"
	"sync"
	"time"

	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// traceRecord is the on-disk form of one slave byte event. For read events
// the data byte is the byte the slave placed on the bus.
type traceRecord struct {
	UnixNano int64
	Event    uint8
	Data     uint8
}

// Recorder copies every event passing through a wrapped handler into a
// binary trace that Replay and the ssifwatch tool understand.
type Recorder struct {
	mu sync.Mutex
	w  io.Writer
}

func NewRecorder(w io.Writer) *Recorder {
	return &Recorder{w: w}
}

// Wrap returns a handler that forwards to h and appends each event to the
// trace.
func (r *Recorder) Wrap(h Handler) Handler {
	return func(ev ssif.Event, b byte) byte {
		out := h(ev, b)
		v := b
		if ev == ssif.ReadRequested || ev == ssif.ReadProcessed {
			v = out
		}
		r.mu.Lock()
		err := binary.Write(r.w, binary.LittleEndian, traceRecord{
			UnixNano: time.Now().UnixNano(),
			Event:    uint8(ev),
			Data:     v,
		})
		r.mu.Unlock()
		if err != nil {
			log.Errorf("i2cslave: trace write failed: %v", err)
		}
		return out
	}
}

// Replay reads back a recorded event trace.
type Replay struct {
	r io.Reader
}

func NewReplay(r io.Reader) *Replay {
	return &Replay{r: r}
}

// Next returns the following event in the trace; io.EOF marks the end.
func (p *Replay) Next() (ssif.Event, byte, error) {
	var rec traceRecord
	if err := binary.Read(p.r, binary.LittleEndian, &rec); err != nil {
		return 0, 0, err
	}
	return ssif.Event(rec.Event), rec.Data, nil
}
