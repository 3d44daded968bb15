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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeText_ExactPayload(t *testing.T) {
	t.Parallel()

	rec, err := EncodeText("Tag content NR. 1", "en")
	require.NoError(t, err)

	want := append([]byte{0x02, 'e', 'n'}, []byte("Tag content NR. 1")...)
	assert.Equal(t, want, rec.Payload())
	assert.Equal(t, TNFWellKnown, rec.TNF())
	assert.Equal(t, []byte{0x54}, rec.Type())
	assert.Empty(t, rec.ID())
}

func TestEncodeDecodeText_RoundTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		language string
	}{
		{"simple", "Hello", "en"},
		{"locale", "Bonjour", "fr-FR"},
		{"unicode text", "你好世界", "zh"},
		{"emoji", "tag \U0001F3F7", "en"},
		{"empty text", "", "en"},
		{"empty language", "no language", ""},
		{"max language", "x", strings.Repeat("a", 63)},
		{"space in language", "hi", "en US"},
		{"tab in language", "hi", "en\t"},
		{"control byte in language", "hi", "x\x00"},
		{"DEL in language", "hi", "en\x7F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := EncodeText(tt.text, tt.language)
			require.NoError(t, err)
			assert.True(t, IsWellKnownText(rec))
			assert.Equal(t, byte(len(tt.language)), rec.Payload()[0])

			text, lang, err := DecodeText(rec)
			require.NoError(t, err)
			assert.Equal(t, tt.text, text)
			assert.Equal(t, tt.language, lang)
		})
	}
}

func TestEncodeText_LanguageBoundary(t *testing.T) {
	t.Parallel()

	_, err := EncodeText("x", strings.Repeat("a", 63))
	require.NoError(t, err)

	_, err = EncodeText("x", strings.Repeat("a", 64))
	require.ErrorIs(t, err, ErrEncoding)
}

func TestValidateLanguage(t *testing.T) {
	t.Parallel()

	require.NoError(t, ValidateLanguage(""))
	require.NoError(t, ValidateLanguage("en US"))
	require.NoError(t, ValidateLanguage("x\x00"))
	require.ErrorIs(t, ValidateLanguage("\x80"), ErrEncoding)
	require.ErrorIs(t, ValidateLanguage(strings.Repeat("a", 64)), ErrEncoding)

	err := ValidateLanguage("d\xe9")
	require.ErrorIs(t, err, ErrEncoding)
	assert.Contains(t, err.Error(), "byte 0xE9 at 1 is not ASCII")
}

func TestEncodeText_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		text     string
		language string
	}{
		{"non-ASCII language", "x", "én"},
		{"invalid UTF-8 text", "bad \xff\xfe text", "en"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec, err := EncodeText(tt.text, tt.language)
			require.ErrorIs(t, err, ErrEncoding)
			assert.Nil(t, rec)
		})
	}
}

func TestParseTextRecord(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		wantText  string
		wantLang  string
		payload   []byte
		wantUTF16 bool
		wantErr   bool
	}{
		{
			name:     "valid UTF-8 english",
			payload:  []byte{0x02, 'e', 'n', 'H', 'e', 'l', 'l', 'o'},
			wantText: "Hello",
			wantLang: "en",
		},
		{
			name:     "valid with locale",
			payload:  []byte{0x05, 'e', 'n', '-', 'U', 'S', 'H', 'i'},
			wantText: "Hi",
			wantLang: "en-US",
		},
		{
			name:     "empty text",
			payload:  []byte{0x02, 'e', 'n'},
			wantText: "",
			wantLang: "en",
		},
		{
			name:     "reserved bit ignored",
			payload:  []byte{0x42, 'e', 'n', 'H', 'i'},
			wantText: "Hi",
			wantLang: "en",
		},
		{
			name:      "UTF-16 big endian",
			payload:   []byte{0x82, 'e', 'n', 0x00, 'H', 0x00, 'i'},
			wantText:  "Hi",
			wantLang:  "en",
			wantUTF16: true,
		},
		{
			name:      "UTF-16 little endian with BOM",
			payload:   []byte{0x82, 'e', 'n', 0xFF, 0xFE, 'H', 0x00, 'i', 0x00},
			wantText:  "Hi",
			wantLang:  "en",
			wantUTF16: true,
		},
		{
			name:      "UTF-16 surrogate pair",
			payload:   []byte{0x80, 0xD8, 0x3D, 0xDE, 0x00},
			wantText:  "\U0001F600",
			wantLang:  "",
			wantUTF16: true,
		},
		{
			name:    "empty payload",
			payload: []byte{},
			wantErr: true,
		},
		{
			name:    "truncated language",
			payload: []byte{0x05, 'e', 'n'},
			wantErr: true,
		},
		{
			name:    "language length uses six bits",
			payload: []byte{0x3F, 'e', 'n'},
			wantErr: true,
		},
		{
			name:    "non-ASCII language",
			payload: []byte{0x02, 0xC3, 0xA9, 'H'},
			wantErr: true,
		},
		{
			name:    "invalid UTF-8 text",
			payload: []byte{0x02, 'e', 'n', 0xFF},
			wantErr: true,
		},
		{
			name:    "odd UTF-16 length",
			payload: []byte{0x82, 'e', 'n', 0x00, 'H', 0x00},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parsed, err := ParseTextRecord(tt.payload)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrMalformedPayload)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, parsed.Text)
			assert.Equal(t, tt.wantLang, parsed.Language)
			assert.Equal(t, tt.wantUTF16, parsed.UTF16)
		})
	}
}

func TestDecodeText_NilRecord(t *testing.T) {
	t.Parallel()

	_, _, err := DecodeText(nil)
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestEncodeText_SequentialCounterPayloads(t *testing.T) {
	t.Parallel()

	var prev []byte
	for i := 1; i <= 9; i++ {
		rec, err := EncodeText("Tag content NR. "+string(rune('0'+i)), "en")
		require.NoError(t, err)

		payload := rec.Payload()
		if prev != nil {
			require.Len(t, payload, len(prev))
			last := len(payload) - 1
			assert.Equal(t, prev[:last], payload[:last])
			assert.NotEqual(t, prev[last], payload[last])
		}
		prev = payload
	}
}
