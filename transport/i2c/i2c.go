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

// Package i2c implements pn532.Transport over an I2C bus using periph.io.
package i2c

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/internal/frame"
	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// PN532 7-bit I2C address. The datasheet's 0x48 includes the R/W bit.
	pn532Addr = 0x24

	pn532Ready   = 0x01
	maxClockFreq = 400 * physic.KiloHertz

	defaultTimeout = time.Second
	processDelay   = 6 * time.Millisecond
	maxNackRetries = 3

	// Every read restarts at the start of the chip's output buffer, so a
	// response is read whole in one transaction.
	maxReadSize = frame.MaxFrameDataLength + 8
)

// conn is the part of *i2c.Dev the transport uses.
type conn interface {
	Tx(w, r []byte) error
}

// Transport implements pn532.Transport for I2C communication.
type Transport struct {
	dev     conn
	bus     i2c.BusCloser
	busName string
	timeout time.Duration
	mu      syncutil.Mutex
	closed  bool
}

var _ pn532.Transport = (*Transport)(nil)

// parseI2CPath accepts "/dev/i2c-1" or "/dev/i2c-1:0x24".
func parseI2CPath(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// New opens busName and addresses the PN532 on it.
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	bus, err := i2creg.Open(parseI2CPath(busName))
	if err != nil {
		return nil, fmt.Errorf("failed to open I2C bus %s: %w", busName, err)
	}
	if err := bus.SetSpeed(maxClockFreq); err != nil {
		debugf("keeping default bus speed: %v", err)
	}

	t := newTransport(&i2c.Dev{Addr: pn532Addr, Bus: bus}, busName)
	t.bus = bus
	return t, nil
}

func newTransport(dev conn, busName string) *Transport {
	return &Transport{dev: dev, busName: busName, timeout: defaultTimeout}
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, pn532.NewTransportError("SendCommand", t.busName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	out, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}
	if err := t.write("sendFrame", out); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	if err := t.waitAck(ctx, deadline); err != nil {
		return nil, err
	}
	if err := sleepCtx(ctx, processDelay); err != nil {
		return nil, err
	}

	resp, err := t.receive(ctx, deadline)
	if err != nil {
		return nil, err
	}
	return frame.Response(resp, "receiveFrame", t.busName)
}

func (t *Transport) waitAck(ctx context.Context, deadline time.Time) error {
	if err := t.waitReady(ctx, deadline); err != nil {
		if errors.Is(err, pn532.ErrTransportNotReady) {
			return pn532.NewNoACKError("waitAck", t.busName)
		}
		return err
	}
	ack := make([]byte, len(frame.AckFrame))
	if err := t.read(ack); err != nil {
		return err
	}
	if !bytes.Equal(ack, frame.AckFrame) {
		return pn532.NewNoACKError("waitAck", t.busName)
	}
	return nil
}

// receive reads the response, asking for a resend when it arrives damaged.
func (t *Transport) receive(ctx context.Context, deadline time.Time) (frame.Frame, error) {
	var lastErr error
	for range maxNackRetries {
		if err := t.waitReady(ctx, deadline); err != nil {
			if errors.Is(err, pn532.ErrTransportNotReady) {
				return frame.Frame{}, pn532.NewTimeoutError("receiveFrame", t.busName)
			}
			return frame.Frame{}, err
		}

		buf := make([]byte, maxReadSize)
		if err := t.read(buf); err != nil {
			return frame.Frame{}, err
		}
		fr, _, err := frame.Decode(buf)
		if errors.Is(err, frame.ErrIncomplete) {
			err = pn532.NewFrameCorruptedError("receiveFrame", t.busName)
		}
		if err == nil {
			return fr, nil
		}
		lastErr = err
		debugf("bad frame on %s, sending NACK: %v", t.busName, err)
		if err := t.write("sendNack", frame.NackFrame); err != nil {
			return frame.Frame{}, err
		}
	}
	return frame.Frame{}, lastErr
}

// waitReady polls the status byte with exponential backoff, capped at 16ms.
func (t *Transport) waitReady(ctx context.Context, deadline time.Time) error {
	status := make([]byte, 1)
	delay := time.Millisecond
	for {
		if err := t.dev.Tx(nil, status); err != nil {
			return pn532.NewTransportError("checkReady", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		if status[0] == pn532Ready {
			return nil
		}
		if time.Now().After(deadline) {
			return pn532.NewTransportNotReadyError("checkReady", t.busName)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
		delay = min(delay*2, 16*time.Millisecond)
	}
}

// read fills buf, stripping the status byte the chip prepends to every
// read transaction.
func (t *Transport) read(buf []byte) error {
	raw := make([]byte, len(buf)+1)
	if err := t.dev.Tx(nil, raw); err != nil {
		return pn532.NewTransportError("read", t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
	}
	if raw[0] != pn532Ready {
		return pn532.NewTransportNotReadyError("read", t.busName)
	}
	copy(buf, raw[1:])
	return nil
}

func (t *Transport) write(op string, data []byte) error {
	if err := t.dev.Tx(data, nil); err != nil {
		return pn532.NewTransportError(op, t.busName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SetTimeout sets how long a command may wait for its ACK and response.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus file descriptor.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.bus != nil {
		if err := t.bus.Close(); err != nil {
			return fmt.Errorf("failed to close I2C bus: %w", err)
		}
	}
	return nil
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportI2C
}

func debugf(format string, args ...any) {
	ndeftext.Debugf("i2c: "+format, args...)
}
