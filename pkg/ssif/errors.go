// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

import "errors"

var (
	// ErrWouldBlock is returned by a non-blocking exchange operation
	// that found nothing to do.
	ErrWouldBlock = errors.New("ssif: operation would block")

	// ErrInterrupted is returned when a blocking wait is aborted by the
	// caller's context.
	ErrInterrupted = errors.New("ssif: blocking wait interrupted")

	// ErrMessageTooLarge is returned for a submission larger than the
	// maximum message size.
	ErrMessageTooLarge = errors.New("ssif: message exceeds maximum size")

	// ErrTruncatedMessage is returned when a buffer is shorter than the
	// length its first byte declares.
	ErrTruncatedMessage = errors.New("ssif: buffer shorter than declared length")
)
