// go-ndeftext
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-ndeftext.
//
// go-ndeftext is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-ndeftext is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-ndeftext; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package testing

// Canned response payloads for pn532.MockTransport, in the form returned
// by pn532.Transport.SendCommand.

// BuildFirmwareVersionResponse returns a PN532 v1.6 firmware reply.
func BuildFirmwareVersionResponse() []byte {
	return []byte{0x03, 0x32, 0x01, 0x06, 0x07}
}

// BuildSAMConfigurationResponse returns the SAMConfiguration reply.
func BuildSAMConfigurationResponse() []byte {
	return []byte{0x15}
}

// BuildTagDetectionResponse returns an InListPassiveTarget reply listing
// one NTAG with uid as target 1.
func BuildTagDetectionResponse(uid []byte) []byte {
	resp := make([]byte, 0, 7+len(uid))
	resp = append(resp, 0x4B, 0x01, 0x01, 0x00, 0x44, 0x00, byte(len(uid)))
	return append(resp, uid...)
}

// BuildNoTagResponse returns an InListPassiveTarget reply with no target.
func BuildNoTagResponse() []byte {
	return []byte{0x4B, 0x00}
}

// BuildDataExchangeResponse returns a successful InDataExchange reply.
func BuildDataExchangeResponse(data []byte) []byte {
	resp := make([]byte, 0, 2+len(data))
	resp = append(resp, 0x41, 0x00)
	return append(resp, data...)
}

// BuildStatusResponse returns a reply to cmd carrying only status.
func BuildStatusResponse(cmd, status byte) []byte {
	return []byte{cmd + 1, status}
}
