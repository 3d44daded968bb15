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

// Package tagops handles tag events: in read mode it reports the text
// stored on a tag, in write mode it stores the next "Tag content NR. N"
// text. Run drives a Handler from a polling Source.
package tagops

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
	"github.com/google/uuid"
)

// Defaults used by New.
const (
	DefaultLanguage      = "en"
	DefaultContentPrefix = "Tag content NR. "
)

// Mode selects what the handler does with a tag.
type Mode int

const (
	// ModeRead reports the tag's text.
	ModeRead Mode = iota
	// ModeWrite writes the next counter text.
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode parses "read" or "write".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "read", "":
		return ModeRead, nil
	case "write":
		return ModeWrite, nil
	default:
		return ModeRead, fmt.Errorf("unknown mode %q", s)
	}
}

// Counter numbers written contents. It belongs to the caller and starts at 1.
type Counter struct {
	next int
}

// NewCounter returns a counter whose first value is start.
func NewCounter(start int) *Counter {
	return &Counter{next: start}
}

// Next returns the current value and advances the counter.
func (c *Counter) Next() int {
	if c.next == 0 {
		c.next = 1
	}
	n := c.next
	c.next++
	return n
}

// Peek returns the value Next will return. A nil counter peeks 1.
func (c *Counter) Peek() int {
	if c == nil || c.next == 0 {
		return 1
	}
	return c.next
}

// Option configures a Handler.
type Option func(*Handler)

// WithLanguage sets the language code of written records.
func WithLanguage(language string) Option {
	return func(h *Handler) {
		h.language = language
	}
}

// WithContentPrefix sets the text written before the counter value.
func WithContentPrefix(prefix string) Option {
	return func(h *Handler) {
		h.prefix = prefix
	}
}

// WithMode sets the initial mode.
func WithMode(mode Mode) Option {
	return func(h *Handler) {
		h.mode = mode
	}
}

// Handler runs one tag event at a time.
type Handler struct {
	language string
	prefix   string
	mode     Mode
	modeMu   syncutil.RWMutex
	mu       syncutil.Mutex
}

// New creates a handler in read mode.
func New(opts ...Option) *Handler {
	h := &Handler{
		language: DefaultLanguage,
		prefix:   DefaultContentPrefix,
		mode:     ModeRead,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SetMode switches between read and write. It applies from the next event.
func (h *Handler) SetMode(mode Mode) {
	h.modeMu.Lock()
	h.mode = mode
	h.modeMu.Unlock()
}

// Mode returns the current mode.
func (h *Handler) Mode() Mode {
	h.modeMu.RLock()
	defer h.modeMu.RUnlock()
	return h.mode
}

// Handle processes one detected tag. In write mode counter is advanced
// whether or not the write succeeds; a nil counter fails the write with
// ndeftext.ErrInvalidArgument. Read mode ignores counter.
func (h *Handler) Handle(ctx context.Context, tag ndeftext.Tag, counter *Counter) Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()

	mode := h.Mode()
	out := Outcome{EventID: uuid.NewString(), Mode: mode}
	if tag != nil {
		out.UID = tag.UID()
	}
	session := ndeftext.NewSession(tag, ndeftext.WithSessionID(out.EventID))

	if mode == ModeWrite {
		h.write(ctx, session, counter, &out)
	} else {
		h.read(tag, session, &out)
	}
	ndeftext.Debugf("event %s: tag %s: %s", out.EventID, out.UID, out.Message())
	return out
}

func (h *Handler) write(ctx context.Context, session *ndeftext.Session, counter *Counter, out *Outcome) {
	if counter == nil {
		out.Kind = OutcomeWriteFailed
		out.Err = fmt.Errorf("%w: nil counter", ndeftext.ErrInvalidArgument)
		return
	}
	out.Text = h.prefix + strconv.Itoa(counter.Next())
	out.Language = h.language
	if err := session.WriteText(ctx, out.Text, h.language); err != nil {
		out.Kind, out.Err = OutcomeWriteFailed, err
		return
	}
	out.Kind = OutcomeWritten
}

func (*Handler) read(tag ndeftext.Tag, session *ndeftext.Session, out *Outcome) {
	msg, ok := session.Read()
	if !ok {
		out.Kind = OutcomeNoMessage
		if hasEmptyMessage(tag) {
			out.Kind = OutcomeNoRecord
		}
		return
	}

	text, language, err := ndef.FirstText(msg)
	switch {
	case err == nil:
		out.Kind, out.Text, out.Language = OutcomeContent, text, language
	case errors.Is(err, ndef.ErrNotTextRecord):
		out.Kind = OutcomeNotText
	case errors.Is(err, ndef.ErrNoRecord):
		out.Kind = OutcomeNoRecord
	default:
		out.Kind, out.Err = OutcomeUnreadable, err
	}
}

// hasEmptyMessage reports a message that was read but holds no records.
func hasEmptyMessage(tag ndeftext.Tag) bool {
	if tag == nil {
		return false
	}
	tech, ok := tag.NDEF()
	return ok && tech != nil && tech.CachedMessage() != nil
}
