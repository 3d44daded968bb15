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
	"time"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
)

// Transport carries PN532 commands to the chip. UART and I2C backends live
// under transport/.
type Transport interface {
	// SendCommand sends cmd with args and returns the response payload,
	// starting with the response code (cmd+1). An error frame from the chip
	// is returned as []byte{0x7F, code}.
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)

	// SetTimeout sets how long to wait for a response.
	SetTimeout(timeout time.Duration) error

	// Close releases the underlying port or bus.
	Close() error

	// Type returns the transport type.
	Type() TransportType
}

// TransportType names a transport backend.
type TransportType string

const (
	// TransportUART is a serial (HSU) connection.
	TransportUART TransportType = "uart"
	// TransportI2C is an I2C bus connection.
	TransportI2C TransportType = "i2c"
	// TransportMock is an in-memory transport used in tests.
	TransportMock TransportType = "mock"
)

// MockTransport is a scripted Transport for tests.
type MockTransport struct {
	responses map[byte][][]byte
	callCount map[byte]int
	lastArgs  map[byte][]byte
	errorMap  map[byte]error
	timeout   time.Duration
	delay     time.Duration
	mu        syncutil.RWMutex
	closed    bool
}

// NewMockTransport creates a mock that answers every command with a bare
// success status until told otherwise.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][][]byte),
		callCount: make(map[byte]int),
		lastArgs:  make(map[byte][]byte),
		errorMap:  make(map[byte]error),
		timeout:   time.Second,
	}
}

// SendCommand implements Transport.
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	closed, delay := m.closed, m.delay
	m.mu.RUnlock()
	if closed {
		return nil, NewTransportError("send", "mock", ErrTransportClosed, ErrorTypePermanent)
	}

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount[cmd]++
	m.lastArgs[cmd] = append([]byte(nil), args...)

	if err, ok := m.errorMap[cmd]; ok {
		return nil, err
	}

	queue := m.responses[cmd]
	switch len(queue) {
	case 0:
		return []byte{cmd + 1, 0x00}, nil
	case 1:
		return append([]byte(nil), queue[0]...), nil
	default:
		m.responses[cmd] = queue[1:]
		return append([]byte(nil), queue[0]...), nil
	}
}

// SetTimeout implements Transport.
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Timeout returns the last value passed to SetTimeout.
func (m *MockTransport) Timeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

// Close implements Transport.
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// Type implements Transport.
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// SetResponse makes every later cmd return response.
func (m *MockTransport) SetResponse(cmd byte, response []byte) {
	m.mu.Lock()
	m.responses[cmd] = [][]byte{response}
	m.mu.Unlock()
}

// QueueResponses makes the next calls to cmd return responses in order.
// The last one keeps being returned once the others are used up.
func (m *MockTransport) QueueResponses(cmd byte, responses ...[]byte) {
	m.mu.Lock()
	m.responses[cmd] = append([][]byte(nil), responses...)
	m.mu.Unlock()
}

// SetError makes every later cmd fail with err.
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	m.errorMap[cmd] = err
	m.mu.Unlock()
}

// ClearError removes an error set with SetError.
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	delete(m.errorMap, cmd)
	m.mu.Unlock()
}

// SetDelay delays every response by delay.
func (m *MockTransport) SetDelay(delay time.Duration) {
	m.mu.Lock()
	m.delay = delay
	m.mu.Unlock()
}

// GetCallCount returns how many times cmd was sent.
func (m *MockTransport) GetCallCount(cmd byte) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount[cmd]
}

// LastArgs returns the arguments of the most recent cmd.
func (m *MockTransport) LastArgs(cmd byte) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]byte(nil), m.lastArgs[cmd]...)
}
