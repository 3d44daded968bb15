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

// Package type2 maps the NDEF and formattable tag views onto the memory of
// an NFC Forum Type 2 tag (NTAG21x, Ultralight). The reader is reached
// through the Card interface, which the pn532 and pcsc packages implement.
package type2

import (
	"context"
	"fmt"
)

// Card is raw page access to a Type 2 tag.
type Card interface {
	// Connect opens a connection to the tag.
	Connect(ctx context.Context) error

	// Close releases the connection.
	Close() error

	// ReadPage returns 16 bytes (four pages) starting at page.
	ReadPage(ctx context.Context, page byte) ([]byte, error)

	// WritePage writes one page.
	WritePage(ctx context.Context, page byte, data [4]byte) error
}

// Memory layout.
const (
	PageSize = 4
	ReadSize = 16

	capabilityPage = 3
	firstDataPage  = 4
)

// Capability container constants.
const (
	ccMagic      = 0xE1
	ccVersion    = 0x10
	ccWriteMask  = 0x0F
	ccSizeFactor = 8
)

// DefaultBlankSize is the data area of an NTAG213 in bytes, used when an
// unformatted tag is formatted without an explicit size.
const DefaultBlankSize = 144

// CapabilityContainer is page 3 of the tag: magic, mapping version, data
// area size in units of 8 bytes and access conditions.
type CapabilityContainer [4]byte

// NewCapabilityContainer returns a read/write capability container for a
// data area of size bytes.
func NewCapabilityContainer(size int) (CapabilityContainer, error) {
	if size <= 0 || size%ccSizeFactor != 0 || size/ccSizeFactor > 0xFF {
		return CapabilityContainer{}, fmt.Errorf("invalid data area size %d", size)
	}
	return CapabilityContainer{ccMagic, ccVersion, byte(size / ccSizeFactor), 0x00}, nil
}

// IsNDEF reports whether the tag has been formatted for NDEF.
func (cc CapabilityContainer) IsNDEF() bool {
	return cc[0] == ccMagic
}

// IsBlank reports whether the capability container was never written.
func (cc CapabilityContainer) IsBlank() bool {
	return cc == CapabilityContainer{}
}

// DataSize returns the size of the data area in bytes.
func (cc CapabilityContainer) DataSize() int {
	return int(cc[2]) * ccSizeFactor
}

// Writable reports whether the write access condition grants access.
func (cc CapabilityContainer) Writable() bool {
	return cc[3]&ccWriteMask == 0x00
}

func (cc CapabilityContainer) String() string {
	return fmt.Sprintf("%02X %02X %02X %02X", cc[0], cc[1], cc[2], cc[3])
}
