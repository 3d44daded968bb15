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

package type2

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// TLV block types found in the data area.
const (
	TLVNull          = 0x00
	TLVLockControl   = 0x01
	TLVMemoryControl = 0x02
	TLVNDEF          = 0x03
	TLVProprietary   = 0xFD
	TLVTerminator    = 0xFE
)

const longLengthMarker = 0xFF

// TLV errors.
var (
	ErrTLVNotFound  = errors.New("NDEF TLV not found")
	ErrTLVTruncated = errors.New("TLV truncated")
)

// WrapTLV frames an NDEF message as an NDEF TLV followed by a terminator.
// Messages of 255 bytes or more use the three byte length form.
func WrapTLV(msg []byte) []byte {
	out := make([]byte, 0, len(msg)+5)
	out = append(out, TLVNDEF)
	if len(msg) < longLengthMarker {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, longLengthMarker)
		out = binary.BigEndian.AppendUint16(out, uint16(len(msg))) //nolint:gosec // capped by tag capacity
	}
	out = append(out, msg...)
	return append(out, TLVTerminator)
}

// ExtractNDEF returns the value of the first NDEF TLV in data. NULL, lock
// control, memory control and proprietary blocks before it are skipped.
func ExtractNDEF(data []byte) ([]byte, error) {
	off := 0
	for off < len(data) {
		typ := data[off]
		switch typ {
		case TLVNull:
			off++
			continue
		case TLVTerminator:
			return nil, ErrTLVNotFound
		}

		length, header, err := readLength(data, off)
		if err != nil {
			return nil, err
		}
		start := off + header
		end := start + length
		if end > len(data) {
			return nil, fmt.Errorf("%w: type 0x%02X needs %d bytes, %d left",
				ErrTLVTruncated, typ, length, len(data)-start)
		}
		if typ == TLVNDEF {
			return data[start:end], nil
		}
		off = end
	}
	return nil, ErrTLVNotFound
}

// readLength decodes the length field of the TLV at off and returns the
// value length and the size of the type plus length fields.
func readLength(data []byte, off int) (length, header int, err error) {
	if off+1 >= len(data) {
		return 0, 0, fmt.Errorf("%w: missing length at offset %d", ErrTLVTruncated, off)
	}
	if data[off+1] != longLengthMarker {
		return int(data[off+1]), 2, nil
	}
	if off+3 >= len(data) {
		return 0, 0, fmt.Errorf("%w: incomplete long length at offset %d", ErrTLVTruncated, off)
	}
	return int(binary.BigEndian.Uint16(data[off+2 : off+4])), 4, nil
}
