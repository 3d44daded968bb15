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

package ndeftext

import (
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
)

// Write outcome kinds. A failed WriteMessage returns a *SessionError whose
// Kind is one of these.
var (
	ErrNotWritable  = errors.New("tag is read-only")
	ErrFormatFailed = errors.New("tag format failed")
	ErrIO           = errors.New("tag I/O failed")
)

// Codec kinds, shared with the ndef package.
var (
	ErrEncoding         = ndef.ErrEncoding
	ErrMalformedPayload = ndef.ErrMalformedPayload
)

// Causes.
var (
	ErrNotFormattable  = errors.New("tag has neither an NDEF nor a formattable view")
	ErrInvalidArgument = errors.New("invalid argument")
)

var kinds = []error{
	ErrNotWritable,
	ErrFormatFailed,
	ErrIO,
	ErrEncoding,
	ErrMalformedPayload,
}

// SessionError describes a failed tag operation.
type SessionError struct {
	Kind error  // One of ErrNotWritable, ErrFormatFailed, ErrIO
	Err  error  // Underlying cause, may be nil
	Op   string // Step that failed: connect, write, format, close
	UID  string // Tag UID if known
}

func (e *SessionError) Error() string {
	msg := e.Kind.Error()
	if e.UID != "" {
		msg = fmt.Sprintf("%s (tag %s)", msg, e.UID)
	}
	if e.Op != "" {
		msg += ": " + e.Op
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *SessionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindOf returns the outcome kind carried by err, or nil when err is nil or
// does not belong to the taxonomy.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	var se *SessionError
	if errors.As(err, &se) {
		return se.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

func newSessionError(kind error, op, uid string, err error) *SessionError {
	return &SessionError{Kind: kind, Op: op, UID: uid, Err: err}
}
