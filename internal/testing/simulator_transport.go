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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ndeftext/internal/frame"
	"github.com/ZaparooProject/go-ndeftext/pn532"
)

var _ pn532.Transport = (*SimulatorTransport)(nil)

// CommandLogEntry records one command sent through a SimulatorTransport.
type CommandLogEntry struct {
	Args []byte
	Cmd  byte
}

// SimulatorTransport implements pn532.Transport on top of a VirtualPN532,
// going through real frame encoding and decoding.
type SimulatorTransport struct {
	sim        *VirtualPN532
	CommandLog []CommandLogEntry
	timeout    time.Duration
	closed     bool
}

// NewSimulatorTransport wraps sim.
func NewSimulatorTransport(sim *VirtualPN532) *SimulatorTransport {
	return &SimulatorTransport{sim: sim, timeout: time.Second}
}

// SendCommand implements pn532.Transport.
func (t *SimulatorTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if t.closed {
		return nil, pn532.NewTransportError("send", "simulator", pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}
	t.CommandLog = append(t.CommandLog, CommandLogEntry{Cmd: cmd, Args: append([]byte(nil), args...)})

	out, err := frame.BuildCommand(cmd, args)
	if err != nil {
		return nil, err
	}
	if _, err := t.sim.Write(out); err != nil {
		return nil, fmt.Errorf("simulator write: %w", err)
	}

	ack, err := t.readFrame()
	if err != nil {
		return nil, err
	}
	if ack.Kind != frame.KindAck {
		return nil, pn532.NewNoACKError("send", "simulator")
	}

	resp, err := t.readFrame()
	if err != nil {
		return nil, err
	}
	return frame.Response(resp, "send", "simulator")
}

// readFrame decodes the next frame from everything the simulator has
// queued. The simulator answers synchronously, so an incomplete frame
// means the reply never came.
func (t *SimulatorTransport) readFrame() (frame.Frame, error) {
	var buf []byte
	for {
		chunk := make([]byte, 64)
		n, _ := t.sim.Read(chunk)
		if n == 0 {
			break
		}
		buf = append(buf, chunk[:n]...)
		if fr, used, err := frame.Decode(buf); !errors.Is(err, frame.ErrIncomplete) {
			t.unread(buf[used:])
			return fr, err
		}
	}
	if len(buf) == 0 {
		return frame.Frame{}, pn532.NewTimeoutError("read", "simulator")
	}
	return frame.Frame{}, pn532.NewFrameCorruptedError("read", "simulator")
}

// unread hands bytes after a decoded frame back to the simulator queue.
func (t *SimulatorTransport) unread(rest []byte) {
	if len(rest) == 0 {
		return
	}
	t.sim.mu.Lock()
	pending := append(append([]byte(nil), rest...), t.sim.tx.Bytes()...)
	t.sim.tx.Reset()
	t.sim.tx.Write(pending)
	t.sim.mu.Unlock()
}

// SetTimeout implements pn532.Transport.
func (t *SimulatorTransport) SetTimeout(timeout time.Duration) error {
	t.timeout = timeout
	return nil
}

// Close implements pn532.Transport.
func (t *SimulatorTransport) Close() error {
	t.closed = true
	return nil
}

// Type implements pn532.Transport.
func (*SimulatorTransport) Type() pn532.TransportType {
	return pn532.TransportMock
}

// Simulator returns the simulator behind the transport.
func (t *SimulatorTransport) Simulator() *VirtualPN532 {
	return t.sim
}

// CommandCount returns how many times cmd was sent.
func (t *SimulatorTransport) CommandCount(cmd byte) int {
	count := 0
	for _, e := range t.CommandLog {
		if e.Cmd == cmd {
			count++
		}
	}
	return count
}
