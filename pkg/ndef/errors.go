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

import "errors"

// Wire format errors.
var (
	ErrEmptyMessage    = errors.New("ndef: empty message")
	ErrInvalidRecord   = errors.New("ndef: invalid record")
	ErrTruncatedRecord = errors.New("ndef: truncated record data")
	ErrInvalidTNF      = errors.New("ndef: invalid TNF value")
	ErrChunkedRecord   = errors.New("ndef: chunked records not supported")
)

// Text record errors.
var (
	// ErrEncoding is returned when a text record cannot be built from the
	// given text and language.
	ErrEncoding = errors.New("ndef: text encoding error")

	// ErrMalformedPayload is returned when a text record payload does not
	// conform to the RTD Text layout.
	ErrMalformedPayload = errors.New("ndef: malformed text payload")
)

// Inspection errors.
var (
	ErrNoRecord      = errors.New("ndef: message has no records")
	ErrNotTextRecord = errors.New("ndef: record is not a well-known text record")
)
