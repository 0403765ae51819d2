// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package buswatcher decodes recorded slave byte events back into SMBus
// block transactions and annotates the SSIF traffic they carry.
package buswatcher

import (
	"fmt"
	"io"

	"github.com/u-root/ssif-bmc/pkg/smbus"
	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// Source yields one slave byte event at a time, io.EOF when exhausted.
type Source interface {
	Next() (ssif.Event, byte, error)
}

type Watcher struct {
	addr byte
	w    io.Writer

	// current transaction
	active bool
	hasCmd bool
	cmd    byte
	writes []byte
	reads  []byte
}

func New(addr byte, w io.Writer) *Watcher {
	return &Watcher{addr: addr, w: w}
}

// Watch consumes src until io.EOF, printing one line per rebuilt SMBus
// transaction.
func (t *Watcher) Watch(src Source) error {
	for {
		ev, data, err := src.Next()
		if err == io.EOF {
			t.flush()
			return nil
		}
		if err != nil {
			return err
		}
		switch ev {
		case ssif.WriteRequested:
			t.active = true
		case ssif.ReadRequested:
			// Recorded read events carry the byte the slave produced,
			// for ReadRequested that is the block count byte.
			t.active = true
			t.reads = append(t.reads, data)
		case ssif.WriteReceived:
			if !t.hasCmd {
				t.hasCmd = true
				t.cmd = data
			} else {
				t.writes = append(t.writes, data)
			}
		case ssif.ReadProcessed:
			t.reads = append(t.reads, data)
		case ssif.Stop:
			t.flush()
		}
	}
}

func (t *Watcher) flush() {
	if !t.active {
		return
	}
	defer func() {
		t.active = false
		t.hasCmd = false
		t.writes = nil
		t.reads = nil
	}()
	if !t.hasCmd {
		fmt.Fprintf(t.w, "addr 0x%02x: empty transaction\n", t.addr)
		return
	}
	if len(t.reads) > 0 {
		fmt.Fprintf(t.w, "addr 0x%02x: rd cmd 0x%02x %s [% x]\n",
			t.addr, t.cmd, t.describe(t.cmd, t.reads), t.reads)
		return
	}
	fmt.Fprintf(t.w, "addr 0x%02x: wr cmd 0x%02x %s pec=%s [% x]\n",
		t.addr, t.cmd, t.describe(t.cmd, t.writes), t.checkPEC(), t.writes)
}

// describe classifies the SSIF command code and summarizes the block
// payload it carries.
func (t *Watcher) describe(cmd byte, block []byte) string {
	switch cmd {
	case ssif.CmdRequest:
		if len(block) < 3 {
			return "request (short)"
		}
		return fmt.Sprintf("request netfn 0x%02x cmd 0x%02x len %d",
			block[1]>>2, block[2], block[0])
	case ssif.CmdResponse:
		if len(block) >= 3 && block[0] == ssif.BlockSize && block[1] == 0x00 && block[2] == 0x01 {
			return "response multi-part start"
		}
		if len(block) < 3 {
			return "response (short)"
		}
		return fmt.Sprintf("response netfn 0x%02x cmd 0x%02x len %d",
			block[1]>>2, block[2], block[0])
	case ssif.CmdMultiPartRequestStart:
		return "multi-part request start (unsupported)"
	case ssif.CmdMultiPartRequestMiddle:
		return "multi-part request middle/end (unsupported)"
	case ssif.CmdMultiPartResponseMiddle:
		if len(block) >= 2 && block[1] == 0xff {
			return fmt.Sprintf("response multi-part end len %d", block[0])
		}
		if len(block) >= 2 {
			return fmt.Sprintf("response multi-part middle block %d", block[1])
		}
		return "response multi-part (short)"
	default:
		return "unknown"
	}
}

// checkPEC validates the trailing packet error code of a write block, if
// one is present. A write block without a PEC byte reports "absent".
func (t *Watcher) checkPEC() string {
	if len(t.writes) < 1 {
		return "absent"
	}
	count := int(t.writes[0])
	// [count][count data bytes][pec]
	if len(t.writes) != count+2 {
		return "absent"
	}
	crc := smbus.PEC(0, smbus.AddrWrite(t.addr), t.cmd)
	crc = smbus.PEC(crc, t.writes...)
	if crc == 0 {
		return "ok"
	}
	return "bad"
}
