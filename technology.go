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
	"context"

	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
)

// Tag is a detected tag handed over by the reader for one interaction.
// Each view is optional: a tag that was never formatted has no NDEF view,
// and a tag that cannot be formatted has no Formattable view.
type Tag interface {
	// UID returns the tag identifier as a hex string.
	UID() string

	// NDEF returns the NDEF technology view of the tag.
	NDEF() (Technology, bool)

	// Formattable returns the formatting view of the tag.
	Formattable() (Formattable, bool)
}

// Technology is the NDEF-capable view of a tag.
type Technology interface {
	// Connect opens a connection to the tag.
	Connect(ctx context.Context) error

	// Close releases the connection. Close is called exactly once for
	// every successful Connect.
	Close() error

	// IsWritable reports whether the tag accepts writes. It is only
	// meaningful while connected.
	IsWritable() bool

	// CachedMessage returns the message read at discovery time, or nil.
	CachedMessage() *ndef.Message

	// WriteMessage replaces the message stored on the tag.
	WriteMessage(ctx context.Context, msg *ndef.Message) error
}

// Formattable is the view of an unformatted tag that can be initialized
// with a first NDEF message.
type Formattable interface {
	Connect(ctx context.Context) error
	Format(ctx context.Context, msg *ndef.Message) error
	Close() error
}
