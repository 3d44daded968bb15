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

package pn532

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/type2"
)

// Type 2 tag commands sent through InDataExchange.
const (
	type2Read  = 0x30
	type2Write = 0xA2

	type2ReadLen = 16
)

var _ type2.Card = (*Card)(nil)

// Card is a Type 2 tag reached through a Device.
type Card struct {
	dev      *Device
	tag      *DetectedTag
	mu       syncutil.Mutex
	selected bool
}

// Card returns a type2.Card for a tag found by DetectTag. The tag is
// already active after detection, but Connect selects it again so that
// every session starts from a known state.
func (d *Device) Card(tag *DetectedTag) *Card {
	return &Card{dev: d, tag: tag}
}

// UID returns the tag UID as lowercase hex.
func (c *Card) UID() string {
	return c.tag.UID
}

// Connect selects the tag.
func (c *Card) Connect(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.dev.InSelect(ctx, c.tag.TargetNumber); err != nil {
		return err
	}
	c.selected = true
	return nil
}

// Close deselects the tag. The tag stays listed until Release.
func (c *Card) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return nil
	}
	c.selected = false
	return c.dev.InDeselect(context.Background(), c.tag.TargetNumber)
}

// Release drops the tag from the reader once the interaction is over.
func (c *Card) Release(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = false
	return c.dev.InRelease(ctx, c.tag.TargetNumber)
}

// ReadPage returns the 16 bytes starting at page.
func (c *Card) ReadPage(ctx context.Context, page byte) ([]byte, error) {
	if err := c.checkSelected(); err != nil {
		return nil, err
	}
	data, err := c.dev.DataExchange(ctx, c.tag.TargetNumber, []byte{type2Read, page})
	if err != nil {
		return nil, fmt.Errorf("read page %d: %w", page, err)
	}
	if len(data) < type2ReadLen {
		return nil, fmt.Errorf("read page %d: %w: got %d bytes", page, ErrShortRead, len(data))
	}
	return data[:type2ReadLen], nil
}

// WritePage writes 4 bytes to page.
func (c *Card) WritePage(ctx context.Context, page byte, data [4]byte) error {
	if err := c.checkSelected(); err != nil {
		return err
	}
	cmd := []byte{type2Write, page, data[0], data[1], data[2], data[3]}
	if _, err := c.dev.DataExchange(ctx, c.tag.TargetNumber, cmd); err != nil {
		return fmt.Errorf("write page %d: %w: %w", page, ErrWriteRejected, err)
	}
	return nil
}

func (c *Card) checkSelected() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.selected {
		return ErrTagNotSelected
	}
	return nil
}
