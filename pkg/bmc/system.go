// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmc

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/u-root/ssif-bmc/config"
	"github.com/u-root/ssif-bmc/pkg/hardware/i2cslave"
	"github.com/u-root/ssif-bmc/pkg/logger"
	"github.com/u-root/ssif-bmc/pkg/metric"
	"github.com/u-root/ssif-bmc/pkg/ssif"
)

var log = logger.LogContainer.GetSimpleLogger()

// The gauge is registered once at package level; Startup only points it at
// the live responder.
var (
	pendingSource atomic.Pointer[ssif.Responder]

	requestPendingGauge = metric.Gauge(metric.MetricOpts{
		Namespace: "ssifbmc",
		Name:      "request_pending",
		Help:      "Whether a completed request is waiting for the consumer.",
	}, func() float64 {
		if r := pendingSource.Load(); r != nil && r.RequestPending() {
			return 1
		}
		return 0
	})
)

// Startup wires the responder onto the bus and runs the daemon until ctx
// is canceled: the metrics endpoint, and either the in-process router or
// the consumer socket depending on configuration.
func Startup(ctx context.Context, bus i2cslave.Bus, c *config.Config, router *Router) error {
	r := ssif.NewResponder(bus)
	bus.SetHandler(r.OnEvent)
	bus.EnableRx()
	pendingSource.Store(r)

	log.Infof("ssif-bmc %s listening at slave address 0x%02x", c.Version, c.SlaveAddress)

	g, ctx := errgroup.WithContext(ctx)

	if c.MetricsAddr != "" {
		mux := http.NewServeMux()
		metric.StartMetrics(mux)
		srv := &http.Server{Addr: c.MetricsAddr, Handler: mux}
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(sctx)
		})
		g.Go(func() error {
			if err := srv.ListenAndServe(); err != http.ErrServerClosed {
				return err
			}
			return nil
		})
	}

	if c.ConsumerSocket != "" {
		srv, err := ListenStream("unix", c.ConsumerSocket, r)
		if err != nil {
			return err
		}
		log.Infof("consumer socket at %v", srv.Addr())
		g.Go(func() error {
			return srv.Serve(ctx)
		})
	} else {
		g.Go(func() error {
			return serveRouter(ctx, r, router)
		})
	}

	return g.Wait()
}

// serveRouter answers requests with the in-process command router.
func serveRouter(ctx context.Context, r *ssif.Responder, router *Router) error {
	for {
		req, err := r.ReceiveRequest(ctx, false)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		resp := router.Respond(&req)
		if err := r.SendResponse(ctx, false, &resp); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
	}
}
