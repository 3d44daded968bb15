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
	"time"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/pn532"
)

// ErrNoTag is returned by Source.Next when the field is empty.
var ErrNoTag = errors.New("no tag detected")

// Source yields detected tags.
type Source interface {
	// Next returns the tag in the field, or ErrNoTag.
	Next(ctx context.Context) (ndeftext.Tag, error)

	// Release ends the event for the tag returned by the last Next.
	Release(ctx context.Context) error
}

// PollConfig controls Run.
type PollConfig struct {
	// IsFatal reports errors that stop polling. Others are logged and
	// polling continues.
	IsFatal func(error) bool
	// IsTagGone reports errors caused by the tag leaving the field. They
	// count as a removal, so the tag is handled again when it comes back.
	IsTagGone func(error) bool
	// PollInterval is the pause between polls. Zero or less uses
	// DefaultPollInterval.
	PollInterval time.Duration
}

// DefaultPollInterval is the pause between polls used by DefaultPollConfig.
const DefaultPollInterval = 250 * time.Millisecond

// DefaultPollConfig returns the settings used by Run when config is nil.
func DefaultPollConfig() *PollConfig {
	return &PollConfig{
		PollInterval: DefaultPollInterval,
		IsFatal:      pn532.IsFatal,
		IsTagGone:    pn532.IsTagGone,
	}
}

// cardState remembers the tag last handled so it is handled once per
// presentation.
type cardState struct {
	lastUID string
	present bool
}

func (cs *cardState) seen(uid string) bool {
	dup := cs.present && cs.lastUID == uid
	cs.lastUID, cs.present = uid, true
	return dup
}

func (cs *cardState) removed() {
	cs.lastUID, cs.present = "", false
}

// Run handles tags from src until ctx ends or a fatal error occurs. A tag
// that stays in the field is handled once. report, if set, receives every
// outcome.
func (h *Handler) Run(ctx context.Context, src Source, counter *Counter, config *PollConfig, report func(Outcome)) error {
	if config == nil {
		config = DefaultPollConfig()
	}
	interval := config.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var state cardState
	for {
		if ctx.Err() != nil {
			return nil
		}

		err := h.poll(ctx, src, counter, &state, report)
		if err != nil && config.IsTagGone != nil && config.IsTagGone(err) {
			ndeftext.Debugf("poll: tag left the field: %v", err)
			state.removed()
			err = nil
		}
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return nil
		case config.IsFatal != nil && config.IsFatal(err):
			return err
		default:
			ndeftext.Debugf("poll: %v", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (h *Handler) poll(ctx context.Context, src Source, counter *Counter, state *cardState, report func(Outcome)) error {
	tag, err := src.Next(ctx)
	if errors.Is(err, ErrNoTag) {
		state.removed()
		return nil
	}
	if err != nil {
		return fmt.Errorf("detect tag: %w", err)
	}

	if !state.seen(tag.UID()) {
		out := h.Handle(ctx, tag, counter)
		if report != nil {
			report(out)
		}
	}

	if err := src.Release(ctx); err != nil {
		return fmt.Errorf("release tag: %w", err)
	}
	return nil
}
