// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

import "context"

// ReceiveRequest returns the next completed request from the host. With
// nonBlocking set it returns ErrWouldBlock when no request is pending;
// otherwise it waits until one completes or ctx is canceled, in which case
// it returns ErrInterrupted. Consuming the request frees the inbound slot.
func (r *Responder) ReceiveRequest(ctx context.Context, nonBlocking bool) (Message, error) {
	r.rxMu.Lock()
	defer r.rxMu.Unlock()

	stop := r.interruptOnCancel(ctx, nonBlocking)
	defer stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	for !r.requestReady {
		if nonBlocking {
			return Message{}, ErrWouldBlock
		}
		if ctx.Err() != nil {
			return Message{}, ErrInterrupted
		}
		r.cond.Wait()
	}
	m := r.request
	r.requestReady = false
	return m, nil
}

// SendResponse submits the response for the request most recently handed
// out. With nonBlocking set it returns ErrWouldBlock while a previous
// response is still being drained by the master; otherwise it waits for the
// slot, or returns ErrInterrupted when ctx is canceled. On success the
// slave is told to listen again so the master's read transactions reach the
// state machine.
func (r *Responder) SendResponse(ctx context.Context, nonBlocking bool, m *Message) error {
	r.txMu.Lock()
	defer r.txMu.Unlock()

	stop := r.interruptOnCancel(ctx, nonBlocking)
	defer stop()

	r.mu.Lock()
	for r.responseInFlight {
		if nonBlocking {
			r.mu.Unlock()
			return ErrWouldBlock
		}
		if ctx.Err() != nil {
			r.mu.Unlock()
			return ErrInterrupted
		}
		r.cond.Wait()
	}
	r.response = *m
	r.responseInFlight = true
	r.multiPart = r.response.WireLen() > BlockSize+1
	r.mu.Unlock()

	r.listener.EnableRx()
	return nil
}

// RequestPending reports whether a completed request is waiting to be read.
func (r *Responder) RequestPending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.requestReady
}

// interruptOnCancel arranges for waiters on cond to be woken when ctx is
// canceled. The broadcast happens under mu, so a waiter cannot check the
// context and then miss the wakeup. The returned stop function releases the
// watcher.
func (r *Responder) interruptOnCancel(ctx context.Context, nonBlocking bool) func() {
	if nonBlocking || ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			r.mu.Lock()
			r.cond.Broadcast()
			r.mu.Unlock()
		case <-stop:
		}
	}()
	return func() { close(stop) }
}
