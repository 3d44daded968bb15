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

package tagops

import (
	"context"
	"errors"
	"fmt"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"github.com/ZaparooProject/go-ndeftext/type2"
)

// PN532Source polls a PN532 for Type 2 tags.
type PN532Source struct {
	dev  *pn532.Device
	card *pn532.Card
	opts []type2.Option
}

// NewPN532Source polls dev. opts are passed to type2.Discover.
func NewPN532Source(dev *pn532.Device, opts ...type2.Option) *PN532Source {
	return &PN532Source{dev: dev, opts: opts}
}

// Next implements Source.
func (s *PN532Source) Next(ctx context.Context) (ndeftext.Tag, error) {
	detected, err := s.dev.DetectTag(ctx)
	if errors.Is(err, pn532.ErrNoTag) {
		return nil, ErrNoTag
	}
	if err != nil {
		return nil, err
	}

	s.card = s.dev.Card(detected)
	tag, err := type2.Discover(ctx, s.card, detected.UID, s.opts...)
	if err != nil {
		return nil, errors.Join(err, s.Release(ctx))
	}
	return tag, nil
}

// Release implements Source by releasing the target on the PN532.
func (s *PN532Source) Release(ctx context.Context) error {
	if s.card == nil {
		return nil
	}
	card := s.card
	s.card = nil
	if err := card.Release(ctx); err != nil {
		return fmt.Errorf("release %s: %w", card.UID(), err)
	}
	return nil
}
