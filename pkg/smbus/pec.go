// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package smbus holds the small pieces of SMBus arithmetic shared by the
// bus fakes and the trace decoder: packet error code (PEC) computation and
// 7-bit to 8-bit address conversion.
package smbus

// AddrWrite returns the 8-bit wire form of a 7-bit address for a write.
func AddrWrite(addr byte) byte {
	return addr << 1
}

// AddrRead returns the 8-bit wire form of a 7-bit address for a read.
func AddrRead(addr byte) byte {
	return addr<<1 | 1
}

// CRC-8 polynomial x^8 + x^2 + x + 1, pre-shifted for the 16-bit register.
const poly = 0x1070 << 3

func crc8(data uint16) byte {
	for i := 0; i < 8; i++ {
		if data&0x8000 != 0 {
			data ^= poly
		}
		data <<= 1
	}
	return byte(data >> 8)
}

// PEC extends crc over p and returns the new packet error code. The PEC of
// a full SMBus transaction covers every byte on the wire including the
// address bytes; appending the resulting code makes the whole sequence sum
// to zero.
func PEC(crc byte, p ...byte) byte {
	for _, b := range p {
		crc = crc8(uint16(crc^b) << 8)
	}
	return crc
}
