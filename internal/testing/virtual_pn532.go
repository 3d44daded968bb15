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

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-ndeftext/internal/frame"
	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
)

// PN532 commands handled by the simulator.
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdInDataExchange      = 0x40
	CmdInDeselect          = 0x44
	CmdInListPassiveTarget = 0x4A
	CmdInRelease           = 0x52
	CmdInSelect            = 0x54
)

// Status codes returned in response status bytes.
const (
	statusOK           = 0x00
	statusTimeout      = 0x01
	statusDataFormat   = 0x13
	statusWrongContext = 0x27
)

// Type 2 tag commands.
const (
	tagRead  = 0x30
	tagWrite = 0xA2
)

const simTargetNumber = 0x01

// VirtualPN532 simulates a PN532 at the frame level. The host writes
// command frames with Write and reads the ACK and response with Read, as
// it would over a serial line.
type VirtualPN532 struct {
	card          *VirtualCard
	rx            bytes.Buffer
	tx            bytes.Buffer
	lastResponse  []byte
	commands      []byte
	mu            syncutil.Mutex
	listed        bool
	selected      bool
	samConfigured bool
	corruptNext   bool
	dropNextACK   bool
}

// NewVirtualPN532 returns a simulator with an empty field.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{}
}

// SetCard puts card in the field. Pass nil to empty it.
func (v *VirtualPN532) SetCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.card = card
	v.listed = false
	v.selected = false
}

// Write receives bytes from the host.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.rx.Write(data)
	v.process()
	return len(data), nil
}

// Read returns pending bytes for the host. It returns 0, nil when there is
// nothing to read, like a serial port whose read timed out.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.tx.Len() == 0 {
		return 0, nil
	}
	return v.tx.Read(buf)
}

// HasPendingResponse reports whether bytes are waiting to be read.
func (v *VirtualPN532) HasPendingResponse() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.tx.Len() > 0
}

// InjectChecksumError corrupts the DCS of the next response on the wire.
// A NACK gets the intact frame.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	v.corruptNext = true
	v.mu.Unlock()
}

// DropNextACK skips the ACK of the next command.
func (v *VirtualPN532) DropNextACK() {
	v.mu.Lock()
	v.dropNextACK = true
	v.mu.Unlock()
}

// SAMConfigured reports whether SAMConfiguration was received.
func (v *VirtualPN532) SAMConfigured() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.samConfigured
}

// CommandCount returns how many times cmd was received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return bytes.Count(v.commands, []byte{cmd})
}

func (v *VirtualPN532) process() {
	for v.rx.Len() > 0 {
		fr, n, err := frame.Decode(v.rx.Bytes())
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}
		v.rx.Next(n)
		if err != nil {
			continue
		}

		switch fr.Kind {
		case frame.KindAck:
		case frame.KindNack:
			v.tx.Write(v.lastResponse)
		case frame.KindData:
			v.handleFrame(fr)
		case frame.KindError:
			v.sendErrorFrame()
		}
	}
}

func (v *VirtualPN532) handleFrame(fr frame.Frame) {
	if fr.TFI != frame.HostToPn532 || len(fr.Payload) == 0 {
		v.sendErrorFrame()
		return
	}
	if v.dropNextACK {
		v.dropNextACK = false
	} else {
		v.tx.Write(frame.AckFrame)
	}

	cmd, params := fr.Payload[0], fr.Payload[1:]
	v.commands = append(v.commands, cmd)

	var resp []byte
	switch cmd {
	case CmdGetFirmwareVersion:
		resp = []byte{0x32, 0x01, 0x06, 0x07}
	case CmdSAMConfiguration:
		v.samConfigured = true
	case CmdInListPassiveTarget:
		resp = v.listTarget()
	case CmdInDataExchange:
		resp = v.dataExchange(params)
	case CmdInSelect:
		resp = v.targetStatus(params, func() { v.selected = true })
	case CmdInDeselect:
		resp = v.targetStatus(params, func() { v.selected = false })
	case CmdInRelease:
		resp = v.targetStatus(params, func() { v.listed, v.selected = false, false })
	default:
		v.sendErrorFrame()
		return
	}
	v.sendResponse(cmd, resp)
}

func (v *VirtualPN532) listTarget() []byte {
	if v.card == nil || !v.card.Present() {
		return []byte{0x00}
	}
	v.listed, v.selected = true, true
	uid := v.card.UIDBytes()
	resp := []byte{0x01, simTargetNumber, 0x00, 0x44, 0x00, byte(len(uid))}
	return append(resp, uid...)
}

func (v *VirtualPN532) targetStatus(params []byte, apply func()) []byte {
	if !v.listed || len(params) == 0 || params[0] != simTargetNumber {
		return []byte{statusWrongContext}
	}
	apply()
	return []byte{statusOK}
}

func (v *VirtualPN532) dataExchange(params []byte) []byte {
	if len(params) < 2 || params[0] != simTargetNumber {
		return []byte{statusWrongContext}
	}
	if !v.selected {
		return []byte{statusWrongContext}
	}
	if !v.card.Present() {
		return []byte{statusTimeout}
	}

	v.card.mu.Lock()
	defer v.card.mu.Unlock()

	data := params[1:]
	switch {
	case data[0] == tagRead && len(data) == 2:
		pages, err := v.card.readLocked(data[1])
		if err != nil {
			return []byte{statusDataFormat}
		}
		return append([]byte{statusOK}, pages...)
	case data[0] == tagWrite && len(data) == 6:
		if err := v.card.writeLocked(data[1], [4]byte(data[2:6])); err != nil {
			return []byte{statusDataFormat}
		}
		return []byte{statusOK}
	default:
		return []byte{statusDataFormat}
	}
}

func (v *VirtualPN532) sendResponse(cmd byte, data []byte) {
	payload := append([]byte{cmd + 1}, data...)
	out, err := frame.Encode(frame.Pn532ToHost, payload)
	if err != nil {
		v.sendErrorFrame()
		return
	}
	v.lastResponse = out
	if v.corruptNext {
		v.corruptNext = false
		bad := append([]byte(nil), out...)
		bad[len(bad)-2] ^= 0xFF
		v.tx.Write(bad)
		return
	}
	v.tx.Write(out)
}

// sendErrorFrame writes the fixed syntax error frame.
func (v *VirtualPN532) sendErrorFrame() {
	out := []byte{0x00, 0x00, 0xFF, 0x01, 0xFF, frame.ErrorTFI, 0x81, 0x00}
	v.lastResponse = out
	v.tx.Write(out)
}
