// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

import (
	"bytes"
	"context"
	"testing"
	"time"
)

// masterWrite plays the byte events of one SMBus block write against the
// responder, the way a bus controller would deliver them.
func masterWrite(r *Responder, cmd byte, data []byte) {
	r.OnEvent(WriteRequested, 0)
	r.OnEvent(WriteReceived, cmd)
	for _, b := range data {
		r.OnEvent(WriteReceived, b)
	}
	r.OnEvent(Stop, 0)
}

// masterRead plays one SMBus block read and returns the data bytes the
// responder produced.
func masterRead(r *Responder, cmd byte) []byte {
	r.OnEvent(WriteRequested, 0)
	r.OnEvent(WriteReceived, cmd)
	n := r.OnEvent(ReadRequested, 0)
	out := make([]byte, n)
	for i := range out {
		out[i] = r.OnEvent(ReadProcessed, 0)
	}
	r.OnEvent(Stop, 0)
	return out
}

// collectResponse reads a complete response, reassembling multi-part
// chunks, and returns the IPMI data bytes.
func collectResponse(t *testing.T, r *Responder) []byte {
	t.Helper()

	blk := masterRead(r, CmdResponse)
	if len(blk) != BlockSize || blk[0] != 0x00 || blk[1] != 0x01 {
		// Single-part response, the block is the data.
		return blk
	}
	data := append([]byte{}, blk[2:]...)
	for block := 0; ; block++ {
		blk = masterRead(r, CmdMultiPartResponseMiddle)
		if len(blk) < 1 {
			t.Fatalf("Empty multi-part chunk after block %d", block-1)
		}
		if blk[0] == endBlock {
			return append(data, blk[1:]...)
		}
		if int(blk[0]) != block {
			t.Fatalf("Expected middle chunk block number %d, got %d", block, blk[0])
		}
		if len(blk) != BlockSize {
			t.Fatalf("Middle chunk carried %d bytes, expected %d", len(blk), BlockSize)
		}
		data = append(data, blk[1:]...)
	}
}

func response(payloadLen int) Message {
	m := Message{Len: byte(2 + payloadLen), NetFnLun: 0x1c, Cmd: 0x01}
	for i := 0; i < payloadLen; i++ {
		m.Payload[i] = byte(i)
	}
	return m
}

func TestSinglePartExchange(t *testing.T) {
	r := NewResponder(nil)
	ctx := context.Background()

	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x01})

	if !r.RequestPending() {
		t.Fatal("Expected a pending request after the block write completed")
	}
	req, err := r.ReceiveRequest(ctx, true)
	if err != nil {
		t.Fatalf("Error receiving completed request: %v", err)
	}
	if req.Len != 2 || req.NetFnLun != 0x18 || req.Cmd != 0x01 {
		t.Fatalf("Unexpected request: % x", req.Encode())
	}
	if r.RequestPending() {
		t.Error("Request still pending after it was consumed")
	}

	resp := response(3)
	if err := r.SendResponse(ctx, true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}

	got := collectResponse(t, r)
	if !bytes.Equal(got, resp.Data()) {
		t.Errorf("Master read % x, expected % x", got, resp.Data())
	}
	if r.responseInFlight {
		t.Error("Response still in flight after the master drained it")
	}
}

func TestSinglePartLargestBlock(t *testing.T) {
	// 32 message bytes fit one block, no multi-part framing.
	r := NewResponder(nil)
	resp := response(30)
	if err := r.SendResponse(context.Background(), true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}
	if r.multiPart {
		t.Fatal("A 32 byte message must not use multi-part framing")
	}
	got := masterRead(r, CmdResponse)
	if !bytes.Equal(got, resp.Data()) {
		t.Errorf("Master read % x, expected % x", got, resp.Data())
	}
}

func TestMultiPartBoundaries(t *testing.T) {
	// Message lengths around the chunking boundaries: the smallest
	// multi-part message, an End chunk landing exactly on the block
	// limit, one byte past it, and the largest possible message.
	for _, payloadLen := range []int{31, 59, 60, 252} {
		r := NewResponder(nil)
		resp := response(payloadLen)
		if err := r.SendResponse(context.Background(), true, &resp); err != nil {
			t.Fatalf("Error submitting %d byte payload: %v", payloadLen, err)
		}
		if !r.multiPart {
			t.Fatalf("A %d byte message must use multi-part framing", resp.WireLen())
		}
		got := collectResponse(t, r)
		if !bytes.Equal(got, resp.Data()) {
			t.Errorf("Payload length %d: master reassembled % x, expected % x",
				payloadLen, got, resp.Data())
		}
		if r.responseInFlight {
			t.Errorf("Payload length %d: response still in flight after the End chunk", payloadLen)
		}
	}
}

func TestMultiPartEndChunkLength(t *testing.T) {
	// A 40 byte message emits a 32 byte Start chunk carrying 30 data
	// bytes, leaving 10 for the End chunk, whose block length is 11.
	r := NewResponder(nil)
	resp := response(38)
	if err := r.SendResponse(context.Background(), true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}

	start := masterRead(r, CmdResponse)
	if len(start) != BlockSize {
		t.Fatalf("Start chunk block length %d, expected %d", len(start), BlockSize)
	}
	end := masterRead(r, CmdMultiPartResponseMiddle)
	if len(end) != 11 {
		t.Fatalf("End chunk block length %d, expected 11", len(end))
	}
	if end[0] != endBlock {
		t.Fatalf("End chunk block number 0x%02x, expected 0x%02x", end[0], endBlock)
	}
}

func TestRequestThenMultiPartResponse(t *testing.T) {
	r := NewResponder(nil)
	ctx := context.Background()

	masterWrite(r, CmdRequest, []byte{0x02, 0x20, 0x01})
	req, err := r.ReceiveRequest(ctx, true)
	if err != nil {
		t.Fatalf("Error receiving request: %v", err)
	}
	if req.Len != 2 || req.NetFnLun != 0x20 || req.Cmd != 0x01 {
		t.Fatalf("Unexpected request: % x", req.Encode())
	}

	resp := response(38) // 40 byte message
	if err := r.SendResponse(ctx, true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}
	got := collectResponse(t, r)
	if !bytes.Equal(got, resp.Data()) {
		t.Errorf("Master reassembled % x, expected % x", got, resp.Data())
	}
}

func TestMultiPartUnexpectedCommand(t *testing.T) {
	// A read with a bogus SMBus command while a multi-part response is
	// pending must not produce data or corrupt the framing state: the
	// responder reports a one-byte block, emits a benign 0x01 and keeps
	// the response intact for a correctly framed retry.
	r := NewResponder(nil)
	resp := response(60)
	if err := r.SendResponse(context.Background(), true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}

	got := masterRead(r, CmdRequest)
	if len(got) != 1 || got[0] != 0x01 {
		t.Fatalf("Expected a single 0x01 byte for an unexpected command, got % x", got)
	}
	if !r.responseInFlight {
		t.Fatal("Response no longer in flight after the bogus transaction")
	}

	data := collectResponse(t, r)
	if !bytes.Equal(data, resp.Data()) {
		t.Errorf("Master reassembled % x after the bogus transaction, expected % x", data, resp.Data())
	}
}

func TestZeroLengthReadWorkaround(t *testing.T) {
	// With no response pending the slave cannot NACK, so it reports one
	// byte and produces a zero.
	r := NewResponder(nil)
	got := masterRead(r, CmdResponse)
	if len(got) != 1 || got[0] != 0x00 {
		t.Errorf("Expected a single zero byte with no response pending, got % x", got)
	}
}

func TestReceiveNonBlockingEmpty(t *testing.T) {
	r := NewResponder(nil)
	if _, err := r.ReceiveRequest(context.Background(), true); err != ErrWouldBlock {
		t.Errorf("Expected ErrWouldBlock with no request pending, got %v", err)
	}
}

func TestUnconsumedRequestDropped(t *testing.T) {
	r := NewResponder(nil)

	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x01})
	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x02})

	req, err := r.ReceiveRequest(context.Background(), true)
	if err != nil {
		t.Fatalf("Error receiving request: %v", err)
	}
	if req.Cmd != 0x02 {
		t.Errorf("Expected the later request to win, got command 0x%02x", req.Cmd)
	}
	if r.RequestPending() {
		t.Error("Only one request slot exists, nothing further should be pending")
	}
}

func TestSendNonBlockingBusy(t *testing.T) {
	r := NewResponder(nil)
	ctx := context.Background()

	first := response(3)
	if err := r.SendResponse(ctx, true, &first); err != nil {
		t.Fatalf("Error submitting first response: %v", err)
	}
	second := response(4)
	if err := r.SendResponse(ctx, true, &second); err != ErrWouldBlock {
		t.Fatalf("Expected ErrWouldBlock while a response is in flight, got %v", err)
	}
	// The in-flight response is untouched by the failed submit.
	got := masterRead(r, CmdResponse)
	if !bytes.Equal(got, first.Data()) {
		t.Errorf("Master read % x, expected the first response % x", got, first.Data())
	}
}

func TestNewRequestAbandonsResponse(t *testing.T) {
	r := NewResponder(nil)
	ctx := context.Background()

	resp := response(3)
	if err := r.SendResponse(ctx, true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}

	// The master never reads the response and issues a new request
	// instead. The outbound slot must come free.
	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x03})

	if _, err := r.ReceiveRequest(ctx, true); err != nil {
		t.Fatalf("Error receiving request: %v", err)
	}
	next := response(5)
	if err := r.SendResponse(ctx, true, &next); err != nil {
		t.Fatalf("Expected a free response slot after a new request, got %v", err)
	}
	got := collectResponse(t, r)
	if !bytes.Equal(got, next.Data()) {
		t.Errorf("Master read % x, expected % x", got, next.Data())
	}
}

func TestReceiveInterrupted(t *testing.T) {
	r := NewResponder(nil)
	ctx, cancel := context.WithCancel(context.Background())

	errs := make(chan error, 1)
	go func() {
		_, err := r.ReceiveRequest(ctx, false)
		errs <- err
	}()

	// Give the receiver a moment to block, then cancel.
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errs:
		if err != ErrInterrupted {
			t.Errorf("Expected ErrInterrupted, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReceiveRequest did not return after its context was canceled")
	}
}

func TestReceiveWokenByRequest(t *testing.T) {
	r := NewResponder(nil)

	type result struct {
		msg Message
		err error
	}
	results := make(chan result, 1)
	go func() {
		msg, err := r.ReceiveRequest(context.Background(), false)
		results <- result{msg, err}
	}()

	time.Sleep(10 * time.Millisecond)
	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x01})

	select {
	case res := <-results:
		if res.err != nil {
			t.Fatalf("Error receiving request: %v", res.err)
		}
		if res.msg.Cmd != 0x01 {
			t.Errorf("Received command 0x%02x, expected 0x01", res.msg.Cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("ReceiveRequest did not wake up for a completed request")
	}
}

func TestSendInterrupted(t *testing.T) {
	r := NewResponder(nil)
	first := response(3)
	if err := r.SendResponse(context.Background(), true, &first); err != nil {
		t.Fatalf("Error submitting first response: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	second := response(4)
	if err := r.SendResponse(ctx, false, &second); err != ErrInterrupted {
		t.Errorf("Expected ErrInterrupted with a canceled context, got %v", err)
	}
}

type recordingListener struct {
	enables  int
	disables int
}

func (l *recordingListener) EnableRx()  { l.enables++ }
func (l *recordingListener) DisableRx() { l.disables++ }

func TestListenerHandOff(t *testing.T) {
	l := &recordingListener{}
	r := NewResponder(l)

	masterWrite(r, CmdRequest, []byte{0x02, 0x18, 0x01})
	if l.disables != 1 {
		t.Errorf("Expected listening disabled once after the request completed, got %d", l.disables)
	}

	if _, err := r.ReceiveRequest(context.Background(), true); err != nil {
		t.Fatalf("Error receiving request: %v", err)
	}
	resp := response(3)
	if err := r.SendResponse(context.Background(), true, &resp); err != nil {
		t.Fatalf("Error submitting response: %v", err)
	}
	if l.enables != 1 {
		t.Errorf("Expected listening enabled once after the response was submitted, got %d", l.enables)
	}
}
