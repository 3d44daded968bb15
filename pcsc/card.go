// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pcsc

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/type2"
	"github.com/ebfe/scard"
)

// Errors returned by Card.
var (
	ErrNotConnected = errors.New("card not connected")
	ErrShortAPDU    = errors.New("short APDU response")
)

// StatusError is a response APDU whose status word is not 90 00.
type StatusError struct {
	Op  string
	SW1 byte
	SW2 byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: APDU failed: SW=%02X%02X", e.Op, e.SW1, e.SW2)
}

const (
	connectAttempts = 10
	connectBackoff  = 100 * time.Millisecond
	readLen         = 0x10
)

var _ type2.Card = (*Card)(nil)

// cardConn is the part of *scard.Card used here.
type cardConn interface {
	Transmit(cmd []byte) ([]byte, error)
	Disconnect(d scard.Disposition) error
}

// Card is a Type 2 tag on a PC/SC reader, reached through the reader's
// storage pseudo-APDUs.
type Card struct {
	conn cardConn
	dial func() (cardConn, error)
	uid  string
	mu   syncutil.Mutex
}

// UID returns the UID read when the card was detected.
func (c *Card) UID() string {
	return c.uid
}

// Connect opens an exclusive connection, retrying briefly while the card
// settles in the field.
func (c *Card) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return nil
	}

	var err error
	for range connectAttempts {
		var conn cardConn
		if conn, err = c.dial(); err == nil {
			c.conn = conn
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(connectBackoff):
		}
	}
	return fmt.Errorf("connect: %w", err)
}

// Close disconnects and leaves the card powered.
func (c *Card) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Disconnect(scard.LeaveCard)
	c.conn = nil
	if err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	return nil
}

// ReadUID fetches the UID with GET DATA (FF CA 00 00 00).
func (c *Card) ReadUID(ctx context.Context) ([]byte, error) {
	return c.transmit(ctx, "get UID", []byte{0xFF, 0xCA, 0x00, 0x00, 0x00})
}

// ReadPage implements type2.Card with READ BINARY (FF B0 00 page 10).
func (c *Card) ReadPage(ctx context.Context, page byte) ([]byte, error) {
	data, err := c.transmit(ctx, fmt.Sprintf("read page %d", page), []byte{0xFF, 0xB0, 0x00, page, readLen})
	if err != nil {
		return nil, err
	}
	if len(data) < readLen {
		return nil, fmt.Errorf("read page %d: %w: %d bytes", page, ErrShortAPDU, len(data))
	}
	return data, nil
}

// WritePage implements type2.Card with UPDATE BINARY (FF D6 00 page 04).
func (c *Card) WritePage(ctx context.Context, page byte, data [4]byte) error {
	apdu := []byte{0xFF, 0xD6, 0x00, page, 0x04, data[0], data[1], data[2], data[3]}
	_, err := c.transmit(ctx, fmt.Sprintf("write page %d", page), apdu)
	return err
}

func (c *Card) transmit(ctx context.Context, op string, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrNotConnected)
	}

	resp, err := c.conn.Transmit(apdu)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(resp) < 2 {
		return nil, fmt.Errorf("%s: %w", op, ErrShortAPDU)
	}
	sw1, sw2 := resp[len(resp)-2], resp[len(resp)-1]
	if sw1 != 0x90 || sw2 != 0x00 {
		return nil, &StatusError{Op: op, SW1: sw1, SW2: sw2}
	}
	return resp[:len(resp)-2], nil
}

func uidString(uid []byte) string {
	return hex.EncodeToString(uid)
}
