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

import "fmt"

// OutcomeKind classifies the result of a tag event.
type OutcomeKind int

const (
	// OutcomeContent means a text record was read.
	OutcomeContent OutcomeKind = iota
	// OutcomeNotText means the first record is not a text record.
	OutcomeNotText
	// OutcomeNoRecord means the message holds no records.
	OutcomeNoRecord
	// OutcomeNoMessage means the tag carries no NDEF message.
	OutcomeNoMessage
	// OutcomeUnreadable means the text record payload is malformed.
	OutcomeUnreadable
	// OutcomeWritten means the counter text was stored.
	OutcomeWritten
	// OutcomeWriteFailed means the write did not complete.
	OutcomeWriteFailed
)

// Outcome is the result of one tag event.
type Outcome struct {
	Err      error
	EventID  string
	UID      string
	Text     string
	Language string
	Kind     OutcomeKind
	Mode     Mode
}

// Message returns the line shown to the user.
func (o Outcome) Message() string {
	switch o.Kind {
	case OutcomeContent:
		return fmt.Sprintf("Content: %s", o.Text)
	case OutcomeNotText:
		return "Record is not Text formatted."
	case OutcomeNoRecord:
		return "No Ndef record found."
	case OutcomeNoMessage:
		return "No Ndef message found."
	case OutcomeUnreadable:
		return "Text record could not be decoded."
	case OutcomeWritten:
		return "Tag written!"
	case OutcomeWriteFailed:
		return "Failed to write tag"
	default:
		return fmt.Sprintf("OutcomeKind(%d)", int(o.Kind))
	}
}

// OK reports whether the event did what its mode asked for.
func (o Outcome) OK() bool {
	return o.Kind == OutcomeContent || o.Kind == OutcomeWritten
}
