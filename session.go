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

// Package ndeftext reads and writes NDEF Text records on NFC tags.
//
// A Session drives a single interaction with a detected tag: it reads the
// message captured at discovery, or connects, writes (or formats) and
// disconnects. The tag hardware is reached through the Tag, Technology and
// Formattable interfaces, which the type2, pn532 and pcsc packages implement.
package ndeftext

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
	"github.com/google/uuid"
)

// ErrNoMessage is returned by Session.ReadText when the tag carries no
// NDEF message.
var ErrNoMessage = errors.New("tag has no NDEF message")

// State is the connection state of a Session.
type State int

const (
	// StateDisconnected means no connection is open.
	StateDisconnected State = iota
	// StateConnectedWritable means the NDEF view is open and writable.
	StateConnectedWritable
	// StateConnectedReadOnly means the NDEF view is open but read-only.
	StateConnectedReadOnly
	// StateConnectedUnformatted means the formattable view is open.
	StateConnectedUnformatted
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnectedWritable:
		return "connected-writable"
	case StateConnectedReadOnly:
		return "connected-readonly"
	case StateConnectedUnformatted:
		return "connected-unformatted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithStateObserver registers fn to be called on every state transition.
// fn runs with the session locked and must not call back into it.
func WithStateObserver(fn func(State)) SessionOption {
	return func(s *Session) {
		s.observer = fn
	}
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		s.id = id
	}
}

// Session is one read or write interaction with a detected tag. It must not
// be kept beyond the detection event it was created for.
type Session struct {
	tag      Tag
	observer func(State)
	id       string
	mu       syncutil.Mutex
	state    State
}

// NewSession creates a session for tag.
func NewSession(tag Tag, opts ...SessionOption) *Session {
	s := &Session{
		tag:   tag,
		id:    uuid.NewString(),
		state: StateDisconnected,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session identifier used in log lines.
func (s *Session) ID() string {
	return s.id
}

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) uid() string {
	if s.tag == nil {
		return ""
	}
	return s.tag.UID()
}

// setState must be called with s.mu held.
func (s *Session) setState(st State) {
	if s.state == st {
		return
	}
	Debugf("session %s: %s -> %s", s.id, s.state, st)
	s.state = st
	if s.observer != nil {
		s.observer(st)
	}
}

// Read returns the message captured when the tag was discovered. It does
// not connect to the tag. The second result is false when the tag has no
// NDEF view or no message was captured.
func (s *Session) Read() (*ndef.Message, bool) {
	if s.tag == nil {
		return nil, false
	}
	tech, ok := s.tag.NDEF()
	if !ok || tech == nil {
		return nil, false
	}
	msg := tech.CachedMessage()
	if msg.Len() == 0 {
		return nil, false
	}
	return msg, true
}

// ReadText decodes the first record of the cached message as a Text record.
// It returns ErrNoMessage, ndef.ErrNotTextRecord or an error wrapping
// ndef.ErrMalformedPayload when no text can be produced.
func (s *Session) ReadText() (text, language string, err error) {
	msg, ok := s.Read()
	if !ok {
		return "", "", ErrNoMessage
	}
	text, language, err = ndef.FirstText(msg)
	if err != nil {
		return "", "", fmt.Errorf("read text from tag %s: %w", s.uid(), err)
	}
	return text, language, nil
}

// WriteText encodes text as a single Text record message and writes it.
func (s *Session) WriteText(ctx context.Context, text, language string) error {
	rec, err := ndef.EncodeText(text, language)
	if err != nil {
		return fmt.Errorf("encode text: %w", err)
	}
	msg, err := ndef.NewMessage(rec)
	if err != nil {
		return fmt.Errorf("build message: %w", err)
	}
	return s.Write(ctx, msg)
}

// Write stores msg on the tag.
//
// A tag without an NDEF view is formatted with msg as its first content.
// A read-only tag is reported as ErrNotWritable without any write being
// attempted. Every successful connect is paired with a close before Write
// returns, whatever the outcome.
func (s *Session) Write(ctx context.Context, msg *ndef.Message) error {
	if s.tag == nil {
		return fmt.Errorf("%w: nil tag", ErrInvalidArgument)
	}
	if msg.Len() == 0 {
		return fmt.Errorf("%w: empty message", ErrInvalidArgument)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tech, ok := s.tag.NDEF()
	if !ok || tech == nil {
		Debugf("session %s: tag %s has no NDEF view, formatting", s.id, s.uid())
		return s.format(ctx, msg)
	}
	return s.write(ctx, tech, msg)
}

func (s *Session) write(ctx context.Context, tech Technology, msg *ndef.Message) error {
	if err := tech.Connect(ctx); err != nil {
		return newSessionError(ErrIO, "connect", s.uid(), err)
	}

	if !tech.IsWritable() {
		s.setState(StateConnectedReadOnly)
		closeErr := s.closeView(tech)
		return newSessionError(ErrNotWritable, "", s.uid(), closeErr)
	}
	s.setState(StateConnectedWritable)

	if err := tech.WriteMessage(ctx, msg); err != nil {
		closeErr := s.closeView(tech)
		return newSessionError(ErrIO, "write", s.uid(), errors.Join(err, closeErr))
	}

	if err := s.closeView(tech); err != nil {
		return newSessionError(ErrIO, "close", s.uid(), err)
	}
	Debugf("session %s: wrote %d record(s) to tag %s", s.id, msg.Len(), s.uid())
	return nil
}

func (s *Session) format(ctx context.Context, msg *ndef.Message) error {
	f, ok := s.tag.Formattable()
	if !ok || f == nil {
		return newSessionError(ErrFormatFailed, "format", s.uid(), ErrNotFormattable)
	}

	if err := f.Connect(ctx); err != nil {
		return newSessionError(ErrFormatFailed, "connect", s.uid(), err)
	}
	s.setState(StateConnectedUnformatted)

	if err := f.Format(ctx, msg); err != nil {
		closeErr := s.closeView(f)
		return newSessionError(ErrFormatFailed, "format", s.uid(), errors.Join(err, closeErr))
	}

	if err := s.closeView(f); err != nil {
		return newSessionError(ErrFormatFailed, "close", s.uid(), err)
	}
	Debugf("session %s: formatted tag %s", s.id, s.uid())
	return nil
}

func (s *Session) closeView(c interface{ Close() error }) error {
	err := c.Close()
	s.setState(StateDisconnected)
	if err != nil {
		Debugf("session %s: close failed: %v", s.id, err)
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// ReadMessage returns the message cached on tag at discovery.
func ReadMessage(tag Tag) (*ndef.Message, bool) {
	return NewSession(tag).Read()
}

// WriteMessage writes msg to tag in a one-shot session.
func WriteMessage(ctx context.Context, tag Tag, msg *ndef.Message) error {
	return NewSession(tag).Write(ctx, msg)
}
