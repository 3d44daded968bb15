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

import (
	"fmt"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Text record constants.
const (
	TextRecordType    = "T"
	textUTF16Flag     = 0x80
	textLangCodeMask  = 0x3F
	maxLanguageLength = 63 // 6 bits
)

// TextRecord is the decoded content of a Text record payload.
type TextRecord struct {
	Text     string
	Language string
	UTF16    bool
}

// utf16Decoder follows RTD-Text: big-endian unless a BOM says otherwise.
var utf16Decoder = unicode.UTF16(unicode.BigEndian, unicode.UseBOM)

// EncodeText builds a well-known Text record carrying text in UTF-8.
// The language is an IANA language code such as "en" or "en-US" and may be
// empty.
func EncodeText(text, language string) (*Record, error) {
	payload, err := EncodeTextPayload(text, language)
	if err != nil {
		return nil, err
	}
	return &Record{
		tnf:     TNFWellKnown,
		typ:     []byte(TextRecordType),
		id:      nil,
		payload: payload,
	}, nil
}

// ValidateLanguage checks that language fits the status byte: at most 63
// bytes, all ASCII. The error wraps ErrEncoding.
func ValidateLanguage(language string) error {
	if len(language) > maxLanguageLength {
		return fmt.Errorf("%w: language code is %d bytes, max %d",
			ErrEncoding, len(language), maxLanguageLength)
	}
	for i := range len(language) {
		if c := language[i]; c > 0x7F {
			return fmt.Errorf("%w: language code byte 0x%02X at %d is not ASCII",
				ErrEncoding, c, i)
		}
	}
	return nil
}

// EncodeTextPayload builds the status byte, language and UTF-8 text payload.
func EncodeTextPayload(text, language string) ([]byte, error) {
	if err := ValidateLanguage(language); err != nil {
		return nil, err
	}
	if _, _, err := transform.String(encoding.UTF8Validator, text); err != nil {
		return nil, fmt.Errorf("%w: text: %w", ErrEncoding, err)
	}

	payload := make([]byte, 1+len(language)+len(text))
	payload[0] = byte(len(language)) & textLangCodeMask
	copy(payload[1:], language)
	copy(payload[1+len(language):], text)
	return payload, nil
}

// DecodeText extracts the text and language from a Text record. The caller
// is expected to have checked the record with IsWellKnownText.
func DecodeText(rec *Record) (text, language string, err error) {
	if rec == nil {
		return "", "", fmt.Errorf("%w: nil record", ErrMalformedPayload)
	}
	parsed, err := ParseTextRecord(rec.payload)
	if err != nil {
		return "", "", err
	}
	return parsed.Text, parsed.Language, nil
}

// ParseTextRecord decodes a raw Text record payload.
func ParseTextRecord(payload []byte) (*TextRecord, error) {
	if len(payload) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedPayload)
	}

	status := payload[0]
	langLen := int(status & textLangCodeMask)
	isUTF16 := status&textUTF16Flag != 0

	if 1+langLen > len(payload) {
		return nil, fmt.Errorf("%w: language length %d exceeds payload of %d bytes",
			ErrMalformedPayload, langLen, len(payload))
	}

	lang := payload[1 : 1+langLen]
	for i, c := range lang {
		if c > 0x7F {
			return nil, fmt.Errorf("%w: language code byte 0x%02X at %d is not ASCII",
				ErrMalformedPayload, c, i)
		}
	}

	text, err := decodeTextBytes(payload[1+langLen:], isUTF16)
	if err != nil {
		return nil, err
	}

	return &TextRecord{
		Text:     text,
		Language: string(lang),
		UTF16:    isUTF16,
	}, nil
}

func decodeTextBytes(raw []byte, isUTF16 bool) (string, error) {
	if !isUTF16 {
		if _, _, err := transform.Bytes(encoding.UTF8Validator, raw); err != nil {
			return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
		}
		return string(raw), nil
	}

	if len(raw)%2 != 0 {
		return "", fmt.Errorf("%w: UTF-16 text has odd length %d", ErrMalformedPayload, len(raw))
	}
	out, _, err := transform.Bytes(utf16Decoder.NewDecoder(), raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return string(out), nil
}
