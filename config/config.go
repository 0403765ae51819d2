// Copyright 2023 the u-root Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config carries the build and runtime settings of the daemon.
package config

// Version is stamped by the build, the default marks untagged builds.
var Version = "0.1.0"

// Identity is what Get Device ID reports to the host.
type Identity struct {
	DeviceID       byte
	DeviceRevision byte
	FirmwareMajor  byte
	FirmwareMinor  byte
	DeviceSupport  byte
	ManufacturerID uint32
	ProductID      uint16
}

type Config struct {
	// SlaveAddress is the 7-bit address the responder answers on.
	SlaveAddress byte

	// ConsumerSocket, when set, hands requests to an external consumer
	// over this unix socket instead of the in-process router.
	ConsumerSocket string

	// MetricsAddr serves Prometheus metrics, empty disables it.
	MetricsAddr string

	Identity Identity
	Version  string
}

func DefaultConfig() *Config {
	return &Config{
		SlaveAddress: 0x10,
		MetricsAddr:  "[::]:9371",
		Identity: Identity{
			DeviceID:       0x20,
			DeviceRevision: 0x01,
			FirmwareMajor:  0x00,
			FirmwareMinor:  0x01,
			// IPMB event generator and receiver.
			DeviceSupport:  0x0a,
			ManufacturerID: 0x000000,
			ProductID:      0x0000,
		},
		Version: Version,
	}
}
