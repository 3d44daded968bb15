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

package ndef

// FirstRecord returns the first record of msg, or false when msg is nil or
// has no records. Later records are never examined.
func FirstRecord(msg *Message) (*Record, bool) {
	if msg.Len() == 0 {
		return nil, false
	}
	return msg.records[0], true
}

// IsWellKnownText reports whether rec is an NFC Forum well-known record
// whose type is exactly "T".
func IsWellKnownText(rec *Record) bool {
	return rec != nil && rec.tnf == TNFWellKnown && rec.typeIs(TextRecordType)
}

// FirstText decodes the first record of msg as a Text record.
//
// It returns ErrNoRecord when the message is empty, ErrNotTextRecord when the
// first record is not a well-known Text record and an error wrapping
// ErrMalformedPayload when the payload cannot be decoded.
func FirstText(msg *Message) (text, language string, err error) {
	rec, ok := FirstRecord(msg)
	if !ok {
		return "", "", ErrNoRecord
	}
	if !IsWellKnownText(rec) {
		return "", "", ErrNotTextRecord
	}
	return DecodeText(rec)
}
