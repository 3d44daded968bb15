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

// Package ndef implements the NFC Data Exchange Format record and message
// encoding together with the well-known Text record payload codec.
package ndef

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// TNF is the 3-bit Type Name Format field of a record header.
type TNF byte

// TNF values as defined by NFC Forum.
const (
	TNFEmpty       TNF = 0x00 // Empty record
	TNFWellKnown   TNF = 0x01 // NFC Forum well-known type
	TNFMedia       TNF = 0x02 // Media-type (RFC 2046)
	TNFAbsoluteURI TNF = 0x03 // Absolute URI (RFC 3986)
	TNFExternal    TNF = 0x04 // NFC Forum external type
	TNFUnknown     TNF = 0x05 // Unknown
	TNFUnchanged   TNF = 0x06 // Unchanged (for chunked records)
	TNFReserved    TNF = 0x07 // Reserved
)

const (
	tnfMask           byte = 0x07
	flagMB            byte = 0x80
	flagME            byte = 0x40
	flagCF            byte = 0x20
	flagSR            byte = 0x10
	flagIL            byte = 0x08
	shortRecordMaxLen      = 255
	maxFieldLen            = 255
)

// String returns the NFC Forum name of the TNF value.
func (t TNF) String() string {
	switch t {
	case TNFEmpty:
		return "empty"
	case TNFWellKnown:
		return "well-known"
	case TNFMedia:
		return "media"
	case TNFAbsoluteURI:
		return "absolute-uri"
	case TNFExternal:
		return "external"
	case TNFUnknown:
		return "unknown"
	case TNFUnchanged:
		return "unchanged"
	case TNFReserved:
		return "reserved"
	default:
		return fmt.Sprintf("TNF(0x%02X)", byte(t))
	}
}

// Record is a single NDEF record. A Record is immutable once constructed:
// accessors hand out copies of the underlying bytes.
type Record struct {
	typ     []byte
	id      []byte
	payload []byte
	tnf     TNF
}

// NewRecord builds a record from its four fields. The byte slices are copied.
func NewRecord(tnf TNF, typ, id, payload []byte) (*Record, error) {
	if byte(tnf) > byte(TNFReserved) {
		return nil, fmt.Errorf("%w: 0x%02X", ErrInvalidTNF, byte(tnf))
	}
	if len(typ) > maxFieldLen {
		return nil, fmt.Errorf("%w: type length %d", ErrInvalidRecord, len(typ))
	}
	if len(id) > maxFieldLen {
		return nil, fmt.Errorf("%w: id length %d", ErrInvalidRecord, len(id))
	}
	return &Record{
		tnf:     tnf,
		typ:     bytes.Clone(typ),
		id:      bytes.Clone(id),
		payload: bytes.Clone(payload),
	}, nil
}

// TNF returns the record's Type Name Format.
func (r *Record) TNF() TNF { return r.tnf }

// Type returns a copy of the record type bytes.
func (r *Record) Type() []byte { return bytes.Clone(r.typ) }

// ID returns a copy of the record id bytes.
func (r *Record) ID() []byte { return bytes.Clone(r.id) }

// Payload returns a copy of the record payload.
func (r *Record) Payload() []byte { return bytes.Clone(r.payload) }

// typeIs compares the record type without copying it.
func (r *Record) typeIs(typ string) bool {
	return string(r.typ) == typ
}

func (r *Record) String() string {
	return fmt.Sprintf("Record{TNF: %s, Type: %q, ID: %q, Payload: %d bytes}",
		r.tnf, r.typ, r.id, len(r.payload))
}

// Message is an ordered sequence of one or more records.
type Message struct {
	records []*Record
}

// NewMessage builds a message from records. At least one record is required.
func NewMessage(records ...*Record) (*Message, error) {
	if len(records) == 0 {
		return nil, ErrEmptyMessage
	}
	for i, rec := range records {
		if rec == nil {
			return nil, fmt.Errorf("%w: record %d is nil", ErrInvalidRecord, i)
		}
	}
	return &Message{records: append([]*Record(nil), records...)}, nil
}

// Records returns the message records in order.
func (m *Message) Records() []*Record {
	if m == nil {
		return nil
	}
	return append([]*Record(nil), m.records...)
}

// Len returns the number of records in the message.
func (m *Message) Len() int {
	if m == nil {
		return 0
	}
	return len(m.records)
}

// Marshal serializes the message to its wire form.
func (m *Message) Marshal() ([]byte, error) {
	if m.Len() == 0 {
		return nil, ErrEmptyMessage
	}

	var result []byte
	for i, rec := range m.records {
		data, err := rec.marshal(i == 0, i == len(m.records)-1)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		result = append(result, data...)
	}
	return result, nil
}

// Unmarshal parses NDEF message data and returns the number of bytes consumed.
// Parsing stops at the first record carrying the ME flag.
func (m *Message) Unmarshal(data []byte) (int, error) {
	if len(data) == 0 {
		return 0, ErrEmptyMessage
	}

	m.records = nil
	offset := 0
	seenME := false

	for offset < len(data) && !seenME {
		rec := &Record{}
		mb, me, n, err := rec.unmarshal(data[offset:])
		if err != nil {
			return offset, fmt.Errorf("record at offset %d: %w", offset, err)
		}
		if mb && len(m.records) > 0 {
			// A second MB starts another message.
			break
		}
		seenME = me

		m.records = append(m.records, rec)
		offset += n
	}

	if len(m.records) == 0 {
		return 0, ErrEmptyMessage
	}
	return offset, nil
}

// ParseMessage is a convenience wrapper around Message.Unmarshal.
func ParseMessage(data []byte) (*Message, error) {
	msg := &Message{}
	if _, err := msg.Unmarshal(data); err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Record) marshal(mb, me bool) ([]byte, error) {
	if byte(r.tnf) > byte(TNFReserved) {
		return nil, ErrInvalidTNF
	}

	payloadLen := len(r.payload)
	flags := byte(r.tnf) & tnfMask
	if mb {
		flags |= flagMB
	}
	if me {
		flags |= flagME
	}
	if payloadLen <= shortRecordMaxLen {
		flags |= flagSR
	}
	if len(r.id) > 0 {
		flags |= flagIL
	}

	header := []byte{flags, byte(len(r.typ))}
	if payloadLen <= shortRecordMaxLen {
		header = append(header, byte(payloadLen))
	} else {
		//nolint:gosec // payloadLen is non-negative and larger than 255 here
		header = binary.BigEndian.AppendUint32(header, uint32(payloadLen))
	}
	if len(r.id) > 0 {
		header = append(header, byte(len(r.id)))
	}

	result := make([]byte, 0, len(header)+len(r.typ)+len(r.id)+payloadLen)
	result = append(result, header...)
	result = append(result, r.typ...)
	result = append(result, r.id...)
	result = append(result, r.payload...)
	return result, nil
}

// unmarshal parses a single record and reports its MB/ME flags and the
// number of bytes consumed.
func (r *Record) unmarshal(data []byte) (mb, me bool, n int, err error) {
	if len(data) < 3 {
		return false, false, 0, ErrTruncatedRecord
	}

	flags := data[0]
	mb = flags&flagMB != 0
	me = flags&flagME != 0
	isShort := flags&flagSR != 0
	hasID := flags&flagIL != 0

	if flags&flagCF != 0 {
		return false, false, 0, ErrChunkedRecord
	}

	tnf := TNF(flags & tnfMask)
	if tnf > TNFUnchanged {
		return false, false, 0, ErrInvalidTNF
	}

	typeLen := int(data[1])
	offset := 2

	var payloadLen int
	if isShort {
		payloadLen = int(data[offset])
		offset++
	} else {
		if offset+4 > len(data) {
			return false, false, 0, ErrTruncatedRecord
		}
		payloadLen = int(binary.BigEndian.Uint32(data[offset : offset+4]))
		offset += 4
	}

	var idLen int
	if hasID {
		if offset >= len(data) {
			return false, false, 0, ErrTruncatedRecord
		}
		idLen = int(data[offset])
		offset++
	}

	if payloadLen < 0 || offset+typeLen+idLen+payloadLen > len(data) {
		return false, false, 0, ErrTruncatedRecord
	}

	r.tnf = tnf
	r.typ = bytes.Clone(data[offset : offset+typeLen])
	offset += typeLen
	r.id = bytes.Clone(data[offset : offset+idLen])
	offset += idLen
	r.payload = bytes.Clone(data[offset : offset+payloadLen])
	offset += payloadLen

	return mb, me, offset, nil
}
