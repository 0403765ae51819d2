// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// ssifd answers SSIF traffic from a bus controller reached over a stream
// socket, serving IPMI requests in-process or forwarding them to a
// consumer over a local socket.
package main

import (
	"context"
	"flag"
	"net"
	"os"
	"os/signal"
	"strings"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/u-root/ssif-bmc/config"
	"github.com/u-root/ssif-bmc/pkg/bmc"
	"github.com/u-root/ssif-bmc/pkg/hardware/i2cslave"
	"github.com/u-root/ssif-bmc/pkg/logger"
)

var (
	busAddr = flag.String("bus", "unix:/run/ssif-bus.sock", "bus controller endpoint, unix:PATH or tcp:ADDR")
	socket  = flag.String("socket", "", "hand requests to a consumer on this unix socket instead of serving them in-process")
	metrics = flag.String("metrics", "[::]:9371", "prometheus endpoint, empty to disable")
	addr    = flag.Uint("addr", 0x10, "7-bit slave address")
	trace   = flag.String("trace", "", "record bus events to this file")
)

var log = logger.LogContainer.GetSimpleLogger()

func dialBus(spec string) (net.Conn, error) {
	network, target, ok := strings.Cut(spec, ":")
	if !ok {
		network, target = "unix", spec
	}
	return net.Dial(network, target)
}

func main() {
	flag.Parse()

	c := config.DefaultConfig()
	c.SlaveAddress = byte(*addr)
	c.ConsumerSocket = *socket
	c.MetricsAddr = *metrics

	conn, err := dialBus(*busAddr)
	if err != nil {
		log.Fatalf("bus controller: %v", err)
	}
	sbus := i2cslave.NewStreamBus(conn)

	var bus i2cslave.Bus = sbus
	if *trace != "" {
		f, err := os.Create(*trace)
		if err != nil {
			log.Fatalf("trace file: %v", err)
		}
		defer f.Close()
		bus = i2cslave.WithRecorder(bus, i2cslave.NewRecorder(f))
	}

	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sbus.Run(ctx)
	})
	g.Go(func() error {
		return bmc.Startup(ctx, bus, c, bmc.DefaultRouter(c))
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("%v", err)
	}
}
