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

// Package uart implements pn532.Transport over a serial (HSU) link.
package uart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/internal/frame"
	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"go.bug.st/serial"
)

const (
	baudRate       = 115200
	defaultTimeout = time.Second
	maxNackRetries = 3

	cmdInListPassiveTarget = 0x4A
)

// wakeUp brings the PN532 out of power down. The 0x55 is followed by
// enough zeros to cover the oscillator start-up.
var wakeUp = []byte{
	0x55, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x00,
}

// port is the part of serial.Port the transport uses.
type port interface {
	io.ReadWriteCloser
	Drain() error
	SetReadTimeout(t time.Duration) error
}

// Transport implements pn532.Transport for UART communication.
type Transport struct {
	port     port
	portName string
	pending  []byte
	timeout  time.Duration
	mu       syncutil.Mutex
	closed   bool
}

var _ pn532.Transport = (*Transport)(nil)

// pollInterval is the serial read timeout. Windows drivers need longer.
func pollInterval() time.Duration {
	if runtime.GOOS == "windows" {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// New opens portName at 115200 8N1.
func New(portName string) (*Transport, error) {
	p, err := serial.Open(portName, &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}
	t, err := newTransport(p, portName)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	return t, nil
}

func newTransport(p port, portName string) (*Transport, error) {
	if err := p.SetReadTimeout(pollInterval()); err != nil {
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}
	return &Transport{port: p, portName: portName, timeout: defaultTimeout}, nil
}

// SendCommand implements pn532.Transport.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil, pn532.NewTransportError("SendCommand", t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}

	out, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}
	t.pending = t.pending[:0]
	if err := t.write("wake up", wakeUp); err != nil {
		return nil, err
	}
	if err := t.write("send frame", out); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(t.timeout)
	ack, err := t.readFrame(ctx, deadline)
	if err != nil {
		return nil, err
	}
	if ack.Kind != frame.KindAck {
		return nil, pn532.NewNoACKError("waitAck", t.portName)
	}

	resp, err := t.receive(ctx, deadline)
	if err != nil {
		// Some firmware never answers InListPassiveTarget when the field
		// is empty.
		if cmd == cmdInListPassiveTarget && errors.Is(err, pn532.ErrTransportTimeout) {
			debugf("no reply to InListPassiveTarget, assuming no tag")
			return []byte{cmdInListPassiveTarget + 1, 0x00}, nil
		}
		return nil, err
	}
	if err := t.write("ACK", frame.AckFrame); err != nil {
		return nil, err
	}
	return frame.Response(resp, "receiveFrame", t.portName)
}

// receive reads the response frame, asking for a resend when it arrives
// damaged.
func (t *Transport) receive(ctx context.Context, deadline time.Time) (frame.Frame, error) {
	var lastErr error
	for range maxNackRetries {
		fr, err := t.readFrame(ctx, deadline)
		if err == nil {
			return fr, nil
		}
		if !errors.Is(err, pn532.ErrChecksumMismatch) && !errors.Is(err, pn532.ErrFrameCorrupted) {
			return frame.Frame{}, err
		}
		lastErr = err
		debugf("bad frame from %s, sending NACK: %v", t.portName, err)
		if err := t.write("NACK", frame.NackFrame); err != nil {
			return frame.Frame{}, err
		}
	}
	return frame.Frame{}, lastErr
}

// readFrame reads until one frame decodes or deadline passes. Bytes after
// the frame are kept for the next call.
func (t *Transport) readFrame(ctx context.Context, deadline time.Time) (frame.Frame, error) {
	buf := make([]byte, frame.MaxFrameDataLength+frame.MinFrameLength+2)
	for {
		if len(t.pending) > 0 {
			fr, n, err := frame.Decode(t.pending)
			if !errors.Is(err, frame.ErrIncomplete) {
				t.pending = t.pending[n:]
				return fr, err
			}
		}

		if err := ctx.Err(); err != nil {
			return frame.Frame{}, err
		}
		if time.Now().After(deadline) {
			return frame.Frame{}, pn532.NewTimeoutError("receiveFrame", t.portName)
		}

		n, err := t.port.Read(buf)
		if err != nil {
			return frame.Frame{}, pn532.NewTransportError("read", t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportRead, err), pn532.ErrorTypeTransient)
		}
		t.pending = append(t.pending, buf[:n]...)
	}
}

func (t *Transport) write(op string, data []byte) error {
	n, err := t.port.Write(data)
	if err != nil {
		return pn532.NewTransportError(op, t.portName, fmt.Errorf("%w: %w", pn532.ErrTransportWrite, err), pn532.ErrorTypeTransient)
	}
	if n != len(data) {
		return pn532.NewTransportError(op, t.portName, pn532.ErrTransportWrite, pn532.ErrorTypeTransient)
	}
	return t.drain(op)
}

// drain waits for the output buffer to empty, retrying when a signal
// interrupts the syscall.
func (t *Transport) drain(op string) error {
	const maxRetries = 3
	delay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		if err = t.port.Drain(); err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			break
		}
		if attempt < maxRetries-1 {
			time.Sleep(delay << attempt)
		}
	}
	return fmt.Errorf("UART %s drain failed: %w", op, err)
}

func isInterruptedSystemCall(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "interrupted system call") || strings.Contains(msg, "eintr")
}

// SetTimeout sets how long a command may wait for its ACK and response.
func (t *Transport) SetTimeout(timeout time.Duration) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// Type implements pn532.Transport.
func (*Transport) Type() pn532.TransportType {
	return pn532.TransportUART
}

func debugf(format string, args ...any) {
	ndeftext.Debugf("uart: "+format, args...)
}
