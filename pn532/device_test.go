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

package pn532

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDevice(t *testing.T) (*Device, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	dev, err := New(mock, WithRetryConfig(fastRetry(3)))
	require.NoError(t, err)
	return dev, mock
}

func TestNew(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.Error(t, err)

	mock := NewMockTransport()
	dev, err := New(mock, WithTimeout(250*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, mock.Timeout())
	assert.Same(t, mock, dev.Transport())

	_, err = New(mock, WithTimeout(0))
	require.Error(t, err)
}

func TestDevice_Init(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t)
	mock.SetResponse(cmdGetFirmwareVersion, []byte{0x03, 0x32, 0x01, 0x06, 0x07})
	mock.SetResponse(cmdSAMConfiguration, []byte{0x15})

	require.NoError(t, dev.Init(context.Background()))

	fw := dev.FirmwareVersion()
	require.NotNil(t, fw)
	assert.Equal(t, "1.6", fw.Version)
	assert.Equal(t, byte(0x32), fw.IC)
	assert.True(t, fw.SupportISO14443A)
	assert.True(t, fw.SupportISO14443B)
	assert.True(t, fw.SupportISO18092)
	assert.Equal(t, []byte{0x01, 0x14, 0x01}, mock.LastArgs(cmdSAMConfiguration))
}

func TestDevice_InitErrors(t *testing.T) {
	t.Parallel()

	t.Run("short firmware reply", func(t *testing.T) {
		t.Parallel()
		dev, mock := newTestDevice(t)
		mock.SetResponse(cmdGetFirmwareVersion, []byte{0x03, 0x32})

		err := dev.Init(context.Background())
		require.ErrorIs(t, err, ErrInvalidResponse)
		assert.Nil(t, dev.FirmwareVersion())
	})

	t.Run("wrong response code", func(t *testing.T) {
		t.Parallel()
		dev, mock := newTestDevice(t)
		mock.SetResponse(cmdGetFirmwareVersion, []byte{0x05, 0x32, 0x01, 0x06, 0x07})

		require.ErrorIs(t, dev.Init(context.Background()), ErrInvalidResponse)
	})

	t.Run("error frame", func(t *testing.T) {
		t.Parallel()
		dev, mock := newTestDevice(t)
		mock.SetResponse(cmdGetFirmwareVersion, []byte{0x03, 0x32, 0x01, 0x06, 0x07})
		mock.SetResponse(cmdSAMConfiguration, []byte{0x7F})

		err := dev.Init(context.Background())
		var pe *PN532Error
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, byte(0x7F), pe.ErrorCode)
	})
}

func TestDevice_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t)
	mock.SetError(cmdGetFirmwareVersion, NewChecksumMismatchError("read", "mock"))

	_, err := dev.GetFirmwareVersion(context.Background())
	require.ErrorIs(t, err, ErrChecksumMismatch)
	assert.Equal(t, 3, mock.GetCallCount(cmdGetFirmwareVersion))

	mock.ClearError(cmdGetFirmwareVersion)
	mock.SetResponse(cmdGetFirmwareVersion, []byte{0x03, 0x32, 0x01, 0x06, 0x07})
	fw, err := dev.GetFirmwareVersion(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "1.6", fw.Version)
}

func TestDevice_DetectTag(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr  error
		name     string
		wantUID  string
		response []byte
		wantSAK  byte
	}{
		{
			name:     "seven byte UID",
			response: []byte{0x4B, 0x01, 0x01, 0x00, 0x44, 0x00, 0x07, 0x04, 0x12, 0x34, 0x56, 0x78, 0x9A, 0xBC},
			wantUID:  "04123456789abc",
			wantSAK:  0x00,
		},
		{
			name:     "four byte UID",
			response: []byte{0x4B, 0x01, 0x01, 0x00, 0x04, 0x08, 0x04, 0xDE, 0xAD, 0xBE, 0xEF},
			wantUID:  "deadbeef",
			wantSAK:  0x08,
		},
		{
			name:     "empty field",
			response: []byte{0x4B, 0x00},
			wantErr:  ErrNoTag,
		},
		{
			name:     "truncated UID",
			response: []byte{0x4B, 0x01, 0x01, 0x00, 0x44, 0x00, 0x07, 0x04, 0x12},
			wantErr:  ErrInvalidResponse,
		},
		{
			name:     "missing target count",
			response: []byte{0x4B},
			wantErr:  ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			dev, mock := newTestDevice(t)
			mock.SetResponse(cmdInListPassiveTarget, tt.response)

			tag, err := dev.DetectTag(context.Background())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantUID, tag.UID)
			assert.Equal(t, tt.wantSAK, tag.SAK)
			assert.Equal(t, byte(0x01), tag.TargetNumber)
			assert.False(t, tag.DetectedAt.IsZero())
			assert.Equal(t, []byte{0x01, 0x00}, mock.LastArgs(cmdInListPassiveTarget))
		})
	}
}

func TestDevice_DataExchangeStatus(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t)
	mock.SetResponse(cmdInDataExchange, []byte{0x41, 0x00, 0xAA, 0xBB})

	data, err := dev.DataExchange(context.Background(), 1, []byte{0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, data)
	assert.Equal(t, []byte{0x01, 0x30, 0x04}, mock.LastArgs(cmdInDataExchange))

	// The top two status bits carry chaining flags, not an error.
	mock.SetResponse(cmdInDataExchange, []byte{0x41, 0x40, 0xCC})
	data, err = dev.DataExchange(context.Background(), 1, []byte{0x30, 0x04})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xCC}, data)

	mock.SetResponse(cmdInDataExchange, []byte{0x41, 0x01})
	_, err = dev.DataExchange(context.Background(), 1, []byte{0x30, 0x04})
	var pe *PN532Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.IsTimeoutError())
	assert.Equal(t, 3, mock.GetCallCount(cmdInDataExchange))
}

func TestDevice_TargetCommands(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t)
	ctx := context.Background()

	require.NoError(t, dev.InSelect(ctx, 1))
	require.NoError(t, dev.InDeselect(ctx, 1))
	require.NoError(t, dev.InRelease(ctx, 1))
	assert.Equal(t, []byte{0x01}, mock.LastArgs(cmdInRelease))

	mock.SetResponse(cmdInSelect, []byte{0x55, 0x27})
	err := dev.InSelect(ctx, 1)
	var pe *PN532Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "InSelect", pe.Command)
}

func TestDevice_Close(t *testing.T) {
	t.Parallel()

	dev, _ := newTestDevice(t)
	require.NoError(t, dev.Close())

	_, err := dev.GetFirmwareVersion(context.Background())
	require.ErrorIs(t, err, ErrTransportClosed)
	assert.True(t, IsFatal(err))
}

func TestDevice_ContextCancelled(t *testing.T) {
	t.Parallel()

	dev, mock := newTestDevice(t)
	mock.SetDelay(time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := dev.DetectTag(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
