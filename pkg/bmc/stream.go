// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"github.com/u-root/ssif-bmc/pkg/ssif"
)

// StreamServer hands raw SSIF messages to one external consumer process
// over a local stream socket. Requests flow out length-prefixed, responses
// flow back the same way. One consumer at a time.
type StreamServer struct {
	ln net.Listener
	r  *ssif.Responder
}

func ListenStream(network, addr string, r *ssif.Responder) (*StreamServer, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("consumer socket: %v", err)
	}
	return &StreamServer{ln: ln, r: r}, nil
}

func (s *StreamServer) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve accepts consumers until ctx is canceled. Accept errors back off
// exponentially without a deadline, the socket stays up for the life of
// the daemon.
func (s *StreamServer) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			s.ln.Close()
		case <-done:
		}
	}()

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 0
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			d := bo.NextBackOff()
			log.Errorf("consumer accept failed, retrying in %v: %v", d, err)
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		bo.Reset()
		log.Infof("consumer connected from %v", conn.RemoteAddr())
		if err := s.handle(ctx, conn); err != nil {
			log.Errorf("consumer session ended: %v", err)
		} else {
			log.Infof("consumer disconnected")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// handle runs one consumer session. Outbound requests and inbound
// responses run on separate goroutines so a consumer can keep reading
// while it prepares a response.
func (s *StreamServer) handle(parent context.Context, conn net.Conn) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-ctx.Done()
		conn.Close()
		return nil
	})
	g.Go(func() error {
		defer cancel()
		for {
			msg, err := s.r.ReceiveRequest(ctx, false)
			if err != nil {
				return err
			}
			if _, err := conn.Write(msg.Encode()); err != nil {
				return fmt.Errorf("consumer write: %v", err)
			}
		}
	})
	g.Go(func() error {
		defer cancel()
		br := bufio.NewReader(conn)
		for {
			length, err := br.ReadByte()
			if err != nil {
				return err
			}
			buf := make([]byte, 1+int(length))
			buf[0] = length
			if _, err := io.ReadFull(br, buf[1:]); err != nil {
				return fmt.Errorf("consumer read: %v", err)
			}
			msg, err := ssif.DecodeMessage(buf)
			if err != nil {
				return fmt.Errorf("consumer sent bad message: %v", err)
			}
			if err := s.r.SendResponse(ctx, false, &msg); err != nil {
				return err
			}
		}
	})

	err := g.Wait()
	if parent.Err() != nil || err == io.EOF {
		return nil
	}
	return err
}
