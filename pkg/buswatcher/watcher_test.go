// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package buswatcher

import (
	"io"
	"strings"
	"testing"

	"github.com/u-root/ssif-bmc/pkg/smbus"
	"github.com/u-root/ssif-bmc/pkg/ssif"
)

type step struct {
	ev   ssif.Event
	data byte
}

type sliceSource struct {
	steps []step
	i     int
}

func (s *sliceSource) Next() (ssif.Event, byte, error) {
	if s.i >= len(s.steps) {
		return 0, 0, io.EOF
	}
	st := s.steps[s.i]
	s.i++
	return st.ev, st.data, nil
}

func writeTx(cmd byte, block []byte) []step {
	steps := []step{{ssif.WriteRequested, 0}, {ssif.WriteReceived, cmd}}
	for _, b := range block {
		steps = append(steps, step{ssif.WriteReceived, b})
	}
	return append(steps, step{ssif.Stop, 0})
}

func readTx(cmd byte, block []byte) []step {
	steps := []step{
		{ssif.WriteRequested, 0},
		{ssif.WriteReceived, cmd},
		{ssif.ReadRequested, block[0]},
	}
	for _, b := range block[1:] {
		steps = append(steps, step{ssif.ReadProcessed, b})
	}
	return append(steps, step{ssif.Stop, 0})
}

func TestWatchRequestWithPEC(t *testing.T) {
	const addr = 0x10
	block := []byte{0x02, 0x18, 0x01}
	pec := smbus.PEC(0, smbus.AddrWrite(addr), ssif.CmdRequest)
	pec = smbus.PEC(pec, block...)

	var out strings.Builder
	w := New(addr, &out)
	src := &sliceSource{steps: writeTx(ssif.CmdRequest, append(block, pec))}
	if err := w.Watch(src); err != nil {
		t.Fatalf("Error watching trace: %v", err)
	}

	line := out.String()
	for _, want := range []string{"wr cmd 0x02", "request netfn 0x06 cmd 0x01 len 2", "pec=ok"} {
		if !strings.Contains(line, want) {
			t.Errorf("Output %q does not contain %q", line, want)
		}
	}
}

func TestWatchBadPEC(t *testing.T) {
	var out strings.Builder
	w := New(0x10, &out)
	src := &sliceSource{steps: writeTx(ssif.CmdRequest, []byte{0x02, 0x18, 0x01, 0x00})}
	if err := w.Watch(src); err != nil {
		t.Fatalf("Error watching trace: %v", err)
	}
	if !strings.Contains(out.String(), "pec=bad") {
		t.Errorf("Output %q does not flag the bad PEC", out.String())
	}
}

func TestWatchResponseChunks(t *testing.T) {
	var out strings.Builder
	w := New(0x10, &out)

	var steps []step
	// Single-part response.
	steps = append(steps, readTx(ssif.CmdResponse, []byte{0x03, 0x1c, 0x01, 0x00})...)
	// Multi-part start, middle and end chunks.
	start := append([]byte{0x20, 0x00, 0x01}, make([]byte, 30)...)
	steps = append(steps, readTx(ssif.CmdResponse, start)...)
	middle := append([]byte{0x20, 0x00}, make([]byte, 31)...)
	steps = append(steps, readTx(ssif.CmdMultiPartResponseMiddle, middle)...)
	end := append([]byte{0x0b, 0xff}, make([]byte, 10)...)
	steps = append(steps, readTx(ssif.CmdMultiPartResponseMiddle, end)...)

	if err := w.Watch(&sliceSource{steps: steps}); err != nil {
		t.Fatalf("Error watching trace: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected 4 transactions, got %d:\n%s", len(lines), out.String())
	}
	for i, want := range []string{
		"response netfn 0x07 cmd 0x01 len 3",
		"response multi-part start",
		"response multi-part middle block 0",
		"response multi-part end len 11",
	} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("Line %d %q does not contain %q", i, lines[i], want)
		}
	}
}

func TestWatchUnsupportedMultiPartRequest(t *testing.T) {
	var out strings.Builder
	w := New(0x10, &out)
	src := &sliceSource{steps: writeTx(ssif.CmdMultiPartRequestStart, []byte{0x20, 0x18, 0x01})}
	if err := w.Watch(src); err != nil {
		t.Fatalf("Error watching trace: %v", err)
	}
	if !strings.Contains(out.String(), "multi-part request start (unsupported)") {
		t.Errorf("Output %q does not flag the unsupported transfer", out.String())
	}
}
