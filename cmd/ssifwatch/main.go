// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ssifwatch replays a recorded bus trace from stdin and prints the SMBus
// transactions it carries, one per line.
package main

import (
	"flag"
	"log"
	"os"

	"github.com/u-root/ssif-bmc/pkg/buswatcher"
	"github.com/u-root/ssif-bmc/pkg/hardware/i2cslave"
)

var addr = flag.Uint("addr", 0x10, "7-bit slave address the trace was taken at")

func main() {
	flag.Parse()

	w := buswatcher.New(byte(*addr), os.Stdout)
	if err := w.Watch(i2cslave.NewReplay(os.Stdin)); err != nil {
		log.Fatalf("replay failed: %v", err)
	}
}
