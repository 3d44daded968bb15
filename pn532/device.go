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

package pn532

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
)

// PN532 command codes.
const (
	cmdGetFirmwareVersion  = 0x02
	cmdSAMConfiguration    = 0x14
	cmdInDataExchange      = 0x40
	cmdInDeselect          = 0x44
	cmdInListPassiveTarget = 0x4A
	cmdInRelease           = 0x52
	cmdInSelect            = 0x54
)

const (
	errorFrameTFI = 0x7F
	baudISO14443A = 0x00
	samModeNormal = 0x01
	samTimeout    = 0x14 // 50ms units, 1s
	samUseIRQ     = 0x01
)

// FirmwareVersion is the reply to GetFirmwareVersion.
type FirmwareVersion struct {
	Version          string
	IC               byte
	SupportISO14443A bool
	SupportISO14443B bool
	SupportISO18092  bool
}

// DetectedTag is an ISO14443A target listed by InListPassiveTarget.
type DetectedTag struct {
	DetectedAt   time.Time
	UID          string
	UIDBytes     []byte
	ATQ          []byte
	SAK          byte
	TargetNumber byte
}

// Option configures a Device.
type Option func(*Device) error

// WithRetryConfig sets how failed commands are retried.
func WithRetryConfig(config *RetryConfig) Option {
	return func(d *Device) error {
		d.retry = config
		return nil
	}
}

// WithTimeout sets the transport response timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("invalid timeout %v", timeout)
		}
		if err := d.transport.SetTimeout(timeout); err != nil {
			return fmt.Errorf("set timeout: %w", err)
		}
		return nil
	}
}

// Device is a PN532 reader. Commands are serialized.
type Device struct {
	transport Transport
	retry     *RetryConfig
	firmware  *FirmwareVersion
	mu        syncutil.Mutex
}

// New wraps transport. Call Init before detecting tags.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, errors.New("nil transport")
	}
	d := &Device{
		transport: transport,
		retry:     DefaultRetryConfig(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	return d, nil
}

// Transport returns the underlying transport.
func (d *Device) Transport() Transport {
	return d.transport
}

// FirmwareVersion returns the version read by Init, or nil.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmware
}

// Init checks the chip answers and puts the SAM in normal mode.
func (d *Device) Init(ctx context.Context) error {
	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	debugf("firmware %s (IC 0x%02X)", fw.Version, fw.IC)

	if err := d.SAMConfiguration(ctx); err != nil {
		return fmt.Errorf("init: %w", err)
	}

	d.mu.Lock()
	d.firmware = fw
	d.mu.Unlock()
	return nil
}

// GetFirmwareVersion queries the chip version.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.send(ctx, cmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, fmt.Errorf("GetFirmwareVersion: %w", err)
	}
	if len(res) < 5 {
		return nil, fmt.Errorf("GetFirmwareVersion: %w: %X", ErrInvalidResponse, res)
	}
	return &FirmwareVersion{
		IC:               res[1],
		Version:          fmt.Sprintf("%d.%d", res[2], res[3]),
		SupportISO14443A: res[4]&0x01 != 0,
		SupportISO14443B: res[4]&0x02 != 0,
		SupportISO18092:  res[4]&0x04 != 0,
	}, nil
}

// SAMConfiguration selects normal mode, which the chip needs before it can
// act as an initiator.
func (d *Device) SAMConfiguration(ctx context.Context) error {
	if _, err := d.send(ctx, cmdSAMConfiguration, []byte{samModeNormal, samTimeout, samUseIRQ}); err != nil {
		return fmt.Errorf("SAMConfiguration: %w", err)
	}
	return nil
}

// DetectTag lists one ISO14443A target. It returns ErrNoTag when the field
// is empty.
func (d *Device) DetectTag(ctx context.Context) (*DetectedTag, error) {
	res, err := d.send(ctx, cmdInListPassiveTarget, []byte{0x01, baudISO14443A})
	if err != nil {
		return nil, fmt.Errorf("InListPassiveTarget: %w", err)
	}
	if len(res) < 2 {
		return nil, fmt.Errorf("InListPassiveTarget: %w: %X", ErrInvalidResponse, res)
	}
	if res[1] == 0 {
		return nil, ErrNoTag
	}
	tag, err := parseTarget(res[2:])
	if err != nil {
		return nil, fmt.Errorf("InListPassiveTarget: %w", err)
	}
	debugf("detected tag %s (target %d, SAK 0x%02X)", tag.UID, tag.TargetNumber, tag.SAK)
	return tag, nil
}

// parseTarget reads Tg, SENS_RES, SEL_RES, NFCIDLength and NFCID1.
func parseTarget(data []byte) (*DetectedTag, error) {
	if len(data) < 5 {
		return nil, fmt.Errorf("%w: target data too short: %X", ErrInvalidResponse, data)
	}
	uidLen := int(data[4])
	if len(data) < 5+uidLen {
		return nil, fmt.Errorf("%w: UID truncated: %X", ErrInvalidResponse, data)
	}
	uid := append([]byte(nil), data[5:5+uidLen]...)
	return &DetectedTag{
		TargetNumber: data[0],
		ATQ:          append([]byte(nil), data[1:3]...),
		SAK:          data[3],
		UIDBytes:     uid,
		UID:          hex.EncodeToString(uid),
		DetectedAt:   time.Now(),
	}, nil
}

// DataExchange sends data to the target and returns its reply.
func (d *Device) DataExchange(ctx context.Context, target byte, data []byte) ([]byte, error) {
	args := make([]byte, 0, len(data)+1)
	args = append(args, target)
	args = append(args, data...)

	res, err := d.send(ctx, cmdInDataExchange, args)
	if err != nil {
		return nil, fmt.Errorf("InDataExchange: %w", err)
	}
	if err := checkStatus("InDataExchange", res); err != nil {
		return nil, err
	}
	return res[2:], nil
}

// InSelect activates a listed target.
func (d *Device) InSelect(ctx context.Context, target byte) error {
	return d.targetCommand(ctx, cmdInSelect, "InSelect", target)
}

// InDeselect puts a target to sleep while keeping it listed, so it can be
// selected again.
func (d *Device) InDeselect(ctx context.Context, target byte) error {
	return d.targetCommand(ctx, cmdInDeselect, "InDeselect", target)
}

// InRelease drops a target from the list.
func (d *Device) InRelease(ctx context.Context, target byte) error {
	return d.targetCommand(ctx, cmdInRelease, "InRelease", target)
}

func (d *Device) targetCommand(ctx context.Context, cmd byte, name string, target byte) error {
	res, err := d.send(ctx, cmd, []byte{target})
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return checkStatus(name, res)
}

// Close closes the transport.
func (d *Device) Close() error {
	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

func checkStatus(name string, res []byte) error {
	if len(res) < 2 {
		return fmt.Errorf("%s: %w: %X", name, ErrInvalidResponse, res)
	}
	if status := res[1] & 0x3F; status != 0x00 {
		return NewPN532Error(status, name, "")
	}
	return nil
}

// send runs one command with retries and checks the response code.
func (d *Device) send(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var res []byte
	err := RetryWithConfig(ctx, d.retry, func() error {
		r, err := d.transport.SendCommand(ctx, cmd, args)
		if err != nil {
			return err
		}
		if len(r) > 0 && r[0] == errorFrameTFI {
			code := byte(errorFrameTFI)
			if len(r) > 1 {
				code = r[1]
			}
			return NewPN532Error(code, fmt.Sprintf("command 0x%02X", cmd), "error frame")
		}
		if len(r) == 0 || r[0] != cmd+1 {
			return fmt.Errorf("%w: expected response 0x%02X, got %X", ErrInvalidResponse, cmd+1, r)
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
