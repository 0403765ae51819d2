// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ssif

// firstReadByte handles ReadRequested: the master started a read and the
// first byte on the bus is the SMBus block length. Called with mu held.
func (r *Responder) firstReadByte() byte {
	if !r.multiPart {
		if b := r.response.byteAt(0); b != 0 {
			return b
		}
		// The slave cannot NACK a read while no response is pending.
		// A length of 0 is known to wedge some masters (Aspeed I2C),
		// so report 1 byte instead; the master reads a zero byte and
		// retries, which is harmless.
		return 1
	}
	return r.prepareChunk()
}

// prepareChunk fills the chunk buffer with the next Start, Middle or End
// block of a multi-part response, selected by the SMBus command of the
// current transaction, and returns the block length byte for the master.
// Called with mu held.
func (r *Responder) prepareChunk() byte {
	switch r.smbusCmd {
	case CmdResponse:
		// Start chunk: two start flag bytes, then the first 30 bytes
		// of IPMI data (netfn/lun, command, payload[0..27]).
		r.bytesRemaining = r.response.Len - startChunkData
		r.blockNum = 0
		// If more than one further chunk is needed, the next Middle
		// restarts block numbering at 0 instead of incrementing.
		r.middleStart = r.bytesRemaining > middleChunkData

		r.chunk[0] = 0x00
		r.chunk[1] = 0x01
		r.chunk[2] = r.response.NetFnLun
		r.chunk[3] = r.response.Cmd
		r.chunk[4] = r.response.Payload[0]
		n := copy(r.chunk[5:], r.response.Payload[1:1+BlockSize-5])
		r.bytesEmitted = byte(n)

		chunksTotal.Inc()
		return BlockSize

	case CmdMultiPartResponseMiddle:
		if r.bytesRemaining <= middleChunkData {
			// End chunk: block number 0xFF plus the remaining
			// data, so the block length is remaining+1.
			r.blockNum = endBlock
			r.chunk[0] = endBlock
			off := 1 + int(r.bytesEmitted)
			copy(r.chunk[1:1+int(r.bytesRemaining)], r.response.Payload[off:])
			chunksTotal.Inc()
			return r.bytesRemaining + 1
		}

		// Middle chunk: block number plus exactly 31 data bytes.
		if r.middleStart {
			r.blockNum = 0
			r.middleStart = false
		} else {
			r.blockNum++
		}
		r.chunk[0] = r.blockNum
		off := 1 + int(r.bytesEmitted)
		copy(r.chunk[1:], r.response.Payload[off:off+middleChunkData])
		r.bytesEmitted += middleChunkData
		r.bytesRemaining -= middleChunkData
		chunksTotal.Inc()
		return BlockSize
	}

	protocolErrorsTotal.Inc()
	log.Errorf("ssif: unexpected SMBus command 0x%02x while preparing a multi-part response", r.smbusCmd)
	// Same benign length the zero-length workaround uses; the master
	// reads one zero byte and can retry.
	return 1
}
