// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package bmc

import (
	"github.com/u-root/ssif-bmc/config"
)

// App netfn commands served by the built-in router.
const (
	CmdGetDeviceID        = 0x01
	CmdGetSelfTestResults = 0x04
)

// DefaultRouter builds a router answering the baseline discovery commands
// a host driver probes before it trusts the interface.
func DefaultRouter(c *config.Config) *Router {
	r := NewRouter()
	r.Handle(NetFnApp, CmdGetDeviceID, func(req Request) (byte, []byte) {
		id := c.Identity
		return CodeOK, []byte{
			id.DeviceID,
			id.DeviceRevision,
			id.FirmwareMajor & 0x7f,
			id.FirmwareMinor,
			0x02, // IPMI 2.0
			id.DeviceSupport,
			byte(id.ManufacturerID),
			byte(id.ManufacturerID >> 8),
			byte(id.ManufacturerID >> 16),
			byte(id.ProductID),
			byte(id.ProductID >> 8),
		}
	})
	r.Handle(NetFnApp, CmdGetSelfTestResults, func(req Request) (byte, []byte) {
		// 0x56: self test not implemented on this device.
		return CodeOK, []byte{0x56, 0x00}
	})
	return r
}
