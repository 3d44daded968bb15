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

// Package testing provides test doubles: an in-memory Type 2 tag, a
// wire-level PN532 simulator that talks to it, and a pn532.Transport backed
// by the simulator.
package testing

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
)

// NTAG213 geometry.
const (
	NTAG213Pages    = 45
	NTAG213DataSize = 144

	pageSize      = 4
	readPages     = 4
	ccPage        = 3
	firstDataPage = 4
)

// Errors reported by VirtualCard.
var (
	ErrTagRemoved       = errors.New("tag removed from field")
	ErrNotConnected     = errors.New("not connected")
	ErrAlreadyConnected = errors.New("already connected")
	ErrPageOutOfRange   = errors.New("page out of range")
	ErrPageReadOnly     = errors.New("page is read-only")
	ErrInjectedFailure  = errors.New("injected failure")
)

// TestNTAG213UID is the UID used by NewVirtualNTAG213 when none is given.
var TestNTAG213UID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}

// VirtualCard is an in-memory Type 2 tag. It satisfies type2.Card and can
// also sit behind a VirtualPN532.
type VirtualCard struct {
	connectErr error
	readErr    error
	writeErr   error
	closeErr   error
	uid        []byte
	pages      [][pageSize]byte
	mu         syncutil.Mutex
	connects   int
	closes     int
	writes     int
	failPage   int
	connected  bool
	present    bool
	locked     bool
}

// NewVirtualNTAG213 returns a formatted NTAG213 holding an empty NDEF TLV.
func NewVirtualNTAG213(uid []byte) *VirtualCard {
	v := NewBlankCard(uid, NTAG213Pages)
	v.pages[ccPage] = [pageSize]byte{0xE1, 0x10, NTAG213DataSize / 8, 0x00}
	v.pages[firstDataPage] = [pageSize]byte{0x03, 0x00, 0xFE, 0x00}
	return v
}

// NewBlankCard returns a tag with pages pages whose capability container
// was never written.
func NewBlankCard(uid []byte, pages int) *VirtualCard {
	if uid == nil {
		uid = TestNTAG213UID
	}
	v := &VirtualCard{
		uid:      append([]byte(nil), uid...),
		pages:    make([][pageSize]byte, pages),
		present:  true,
		failPage: -1,
	}
	copy(v.pages[0][:3], v.uid)
	if len(v.uid) > 3 {
		copy(v.pages[1][:], v.uid[3:])
	}
	return v
}

// UID returns the UID as lowercase hex.
func (v *VirtualCard) UID() string {
	return hex.EncodeToString(v.uid)
}

// UIDBytes returns the raw UID.
func (v *VirtualCard) UIDBytes() []byte {
	return append([]byte(nil), v.uid...)
}

// Connect implements type2.Card.
func (v *VirtualCard) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.present {
		return ErrTagRemoved
	}
	if v.connectErr != nil {
		return v.connectErr
	}
	if v.connected {
		return ErrAlreadyConnected
	}
	v.connected = true
	v.connects++
	return nil
}

// Close implements type2.Card. A close with an injected error still
// disconnects.
func (v *VirtualCard) Close() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return ErrNotConnected
	}
	v.connected = false
	v.closes++
	return v.closeErr
}

// ReadPage implements type2.Card.
func (v *VirtualCard) ReadPage(ctx context.Context, page byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return nil, ErrNotConnected
	}
	return v.readLocked(page)
}

// WritePage implements type2.Card.
func (v *VirtualCard) WritePage(ctx context.Context, page byte, data [4]byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return ErrNotConnected
	}
	return v.writeLocked(page, data)
}

// readLocked returns four pages, rolling over to page 0 past the end like
// the NTAG READ command.
func (v *VirtualCard) readLocked(page byte) ([]byte, error) {
	if !v.present {
		return nil, ErrTagRemoved
	}
	if v.readErr != nil {
		return nil, v.readErr
	}
	if int(page) >= len(v.pages) {
		return nil, fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	out := make([]byte, 0, readPages*pageSize)
	for i := range readPages {
		p := v.pages[(int(page)+i)%len(v.pages)]
		out = append(out, p[:]...)
	}
	return out, nil
}

func (v *VirtualCard) writeLocked(page byte, data [4]byte) error {
	if !v.present {
		return ErrTagRemoved
	}
	if v.writeErr != nil && (v.failPage < 0 || v.failPage == int(page)) {
		return v.writeErr
	}
	if int(page) >= len(v.pages) {
		return fmt.Errorf("%w: %d", ErrPageOutOfRange, page)
	}
	if page < 2 || (v.locked && page >= firstDataPage) {
		return fmt.Errorf("%w: %d", ErrPageReadOnly, page)
	}
	switch page {
	case 2:
		// Only the lock bytes can change, and only from 0 to 1.
		v.pages[2][2] |= data[2]
		v.pages[2][3] |= data[3]
	case ccPage:
		// One-time programmable.
		for i := range data {
			v.pages[ccPage][i] |= data[i]
		}
	default:
		v.pages[page] = data
	}
	v.writes++
	return nil
}

// SetCapabilityContainer overwrites page 3.
func (v *VirtualCard) SetCapabilityContainer(cc [4]byte) {
	v.mu.Lock()
	v.pages[ccPage] = cc
	v.mu.Unlock()
}

// SetData writes data from the first data page on, bypassing write rules.
func (v *VirtualCard) SetData(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for off := 0; off < len(data); off += pageSize {
		var p [pageSize]byte
		copy(p[:], data[off:])
		v.pages[firstDataPage+off/pageSize] = p
	}
}

// Data returns the memory from the first data page to the end of the tag.
func (v *VirtualCard) Data() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, 0, (len(v.pages)-firstDataPage)*pageSize)
	for _, p := range v.pages[firstDataPage:] {
		out = append(out, p[:]...)
	}
	return out
}

// Page returns a copy of one page.
func (v *VirtualCard) Page(page int) [4]byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pages[page]
}

// Lock sets the capability container to read-only and rejects further
// writes to the data area.
func (v *VirtualCard) Lock() {
	v.mu.Lock()
	v.pages[ccPage][3] = 0x0F
	v.locked = true
	v.mu.Unlock()
}

// Remove takes the tag out of the field.
func (v *VirtualCard) Remove() {
	v.mu.Lock()
	v.present = false
	v.mu.Unlock()
}

// Insert puts the tag back in the field.
func (v *VirtualCard) Insert() {
	v.mu.Lock()
	v.present = true
	v.mu.Unlock()
}

// Present reports whether the tag is in the field.
func (v *VirtualCard) Present() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.present
}

// FailConnect makes Connect return err. Pass nil to clear.
func (v *VirtualCard) FailConnect(err error) {
	v.mu.Lock()
	v.connectErr = err
	v.mu.Unlock()
}

// FailRead makes every read return err. Pass nil to clear.
func (v *VirtualCard) FailRead(err error) {
	v.mu.Lock()
	v.readErr = err
	v.mu.Unlock()
}

// FailWrite makes writes to page fail with err. A negative page fails
// every write. Pass a nil err to clear.
func (v *VirtualCard) FailWrite(page int, err error) {
	v.mu.Lock()
	v.failPage = page
	v.writeErr = err
	v.mu.Unlock()
}

// FailClose makes Close return err. Pass nil to clear.
func (v *VirtualCard) FailClose(err error) {
	v.mu.Lock()
	v.closeErr = err
	v.mu.Unlock()
}

// Connected reports whether a connection is open.
func (v *VirtualCard) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// ConnectCount returns the number of successful connects.
func (v *VirtualCard) ConnectCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connects
}

// CloseCount returns the number of closes of an open connection.
func (v *VirtualCard) CloseCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.closes
}

// WriteCount returns the number of page writes that succeeded.
func (v *VirtualCard) WriteCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.writes
}
