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

package pcsc

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	testutil "github.com/ZaparooProject/go-ndeftext/internal/testing"
	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
	"github.com/ZaparooProject/go-ndeftext/type2"
	"github.com/ebfe/scard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// apduCard answers the ACR122U storage pseudo-APDUs from a virtual tag.
type apduCard struct {
	card  *testutil.VirtualCard
	sent  [][]byte
	swErr []byte
}

func (a *apduCard) Transmit(cmd []byte) ([]byte, error) {
	a.sent = append(a.sent, append([]byte(nil), cmd...))
	if a.swErr != nil {
		return a.swErr, nil
	}
	ok := []byte{0x90, 0x00}
	fail := []byte{0x63, 0x00}
	if len(cmd) < 5 || cmd[0] != 0xFF {
		return []byte{0x6E, 0x00}, nil
	}

	switch cmd[1] {
	case 0xCA:
		return append(a.card.UIDBytes(), ok...), nil
	case 0xB0:
		data, err := a.card.ReadPage(context.Background(), cmd[3])
		if err != nil {
			return fail, nil
		}
		return append(data, ok...), nil
	case 0xD6:
		var page [4]byte
		copy(page[:], cmd[5:9])
		if err := a.card.WritePage(context.Background(), cmd[3], page); err != nil {
			return fail, nil
		}
		return ok, nil
	default:
		return []byte{0x6D, 0x00}, nil
	}
}

func (a *apduCard) Disconnect(scard.Disposition) error {
	return a.card.Close()
}

type statusScript struct {
	errs   []error
	events []scard.StateFlag
	calls  int
}

func (s *statusScript) GetStatusChange(states []scard.ReaderState, _ time.Duration) error {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return s.errs[i]
	}
	if i >= len(s.events) {
		i = len(s.events) - 1
	}
	states[0].EventState = s.events[i]
	return nil
}

func newTestReader(card *testutil.VirtualCard, status statusSource) (*Reader, *apduCard) {
	conn := &apduCard{card: card}
	return &Reader{
		name:   "ACS ACR122U PICC Interface 00 00",
		status: status,
		dial: func() (cardConn, error) {
			if err := card.Connect(context.Background()); err != nil {
				return nil, err
			}
			return conn, nil
		},
	}, conn
}

func TestReader_DetectAndWriteText(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	status := &statusScript{events: []scard.StateFlag{scard.StateEmpty, scard.StatePresent | scard.StateChanged}}
	reader, _ := newTestReader(vc, status)

	ctx := context.Background()
	card, err := reader.Detect(ctx)
	require.NoError(t, err)
	assert.Equal(t, vc.UID(), card.UID())
	assert.Equal(t, 2, status.calls)
	assert.False(t, vc.Connected())

	tag, err := type2.Discover(ctx, card, card.UID())
	require.NoError(t, err)
	tech, ok := tag.NDEF()
	require.True(t, ok)

	rec, err := ndef.EncodeText("Tag content NR. 1", "en")
	require.NoError(t, err)
	msg, err := ndef.NewMessage(rec)
	require.NoError(t, err)

	require.NoError(t, tech.Connect(ctx))
	require.NoError(t, tech.WriteMessage(ctx, msg))
	require.NoError(t, tech.Close())

	again, err := type2.Discover(ctx, card, card.UID())
	require.NoError(t, err)
	againTech, ok := again.NDEF()
	require.True(t, ok)
	text, lang, err := ndef.FirstText(againTech.CachedMessage())
	require.NoError(t, err)
	assert.Equal(t, "Tag content NR. 1", text)
	assert.Equal(t, "en", lang)
}

func TestReader_WaitForRemoval(t *testing.T) {
	t.Parallel()

	status := &statusScript{
		errs:   []error{scard.ErrTimeout},
		events: []scard.StateFlag{0, scard.StatePresent, scard.StateEmpty},
	}
	reader, _ := newTestReader(testutil.NewVirtualNTAG213(nil), status)

	require.NoError(t, reader.WaitForRemoval(context.Background()))
	assert.Equal(t, 3, status.calls)
}

func TestReader_WaitErrors(t *testing.T) {
	t.Parallel()

	t.Run("reader gone", func(t *testing.T) {
		t.Parallel()
		status := &statusScript{errs: []error{scard.ErrUnknownReader}}
		reader, _ := newTestReader(testutil.NewVirtualNTAG213(nil), status)

		_, err := reader.Detect(context.Background())
		require.ErrorIs(t, err, scard.ErrUnknownReader)
	})

	t.Run("context cancelled", func(t *testing.T) {
		t.Parallel()
		status := &statusScript{events: []scard.StateFlag{scard.StateEmpty}}
		reader, _ := newTestReader(testutil.NewVirtualNTAG213(nil), status)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := reader.Detect(ctx)
		require.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, status.calls)
	})
}

func TestCard_APDUs(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	conn := &apduCard{card: vc}
	card := &Card{dial: func() (cardConn, error) { return conn, vc.Connect(context.Background()) }}
	ctx := context.Background()

	require.NoError(t, card.Connect(ctx))
	_, err := card.ReadPage(ctx, 4)
	require.NoError(t, err)
	require.NoError(t, card.WritePage(ctx, 5, [4]byte{1, 2, 3, 4}))
	require.NoError(t, card.Close())

	assert.Equal(t, [][]byte{
		{0xFF, 0xB0, 0x00, 0x04, 0x10},
		{0xFF, 0xD6, 0x00, 0x05, 0x04, 1, 2, 3, 4},
	}, conn.sent)
	assert.Equal(t, [4]byte{1, 2, 3, 4}, vc.Page(5))
}

func TestCard_Errors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("not connected", func(t *testing.T) {
		t.Parallel()
		card := &Card{}
		_, err := card.ReadPage(ctx, 4)
		require.ErrorIs(t, err, ErrNotConnected)
		require.NoError(t, card.Close())
	})

	t.Run("status word", func(t *testing.T) {
		t.Parallel()
		conn := &apduCard{card: testutil.NewVirtualNTAG213(nil), swErr: []byte{0x63, 0x00}}
		card := &Card{dial: func() (cardConn, error) { return conn, nil }}
		require.NoError(t, card.Connect(ctx))

		err := card.WritePage(ctx, 4, [4]byte{})
		var se *StatusError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, byte(0x63), se.SW1)
		assert.Contains(t, err.Error(), "SW=6300")
	})

	t.Run("short response", func(t *testing.T) {
		t.Parallel()
		conn := &apduCard{card: testutil.NewVirtualNTAG213(nil), swErr: []byte{0x90}}
		card := &Card{dial: func() (cardConn, error) { return conn, nil }}
		require.NoError(t, card.Connect(ctx))

		_, err := card.ReadUID(ctx)
		require.ErrorIs(t, err, ErrShortAPDU)
	})

	t.Run("short page", func(t *testing.T) {
		t.Parallel()
		conn := &apduCard{card: testutil.NewVirtualNTAG213(nil), swErr: []byte{0x01, 0x02, 0x90, 0x00}}
		card := &Card{dial: func() (cardConn, error) { return conn, nil }}
		require.NoError(t, card.Connect(ctx))

		_, err := card.ReadPage(ctx, 4)
		require.ErrorIs(t, err, ErrShortAPDU)
	})

	t.Run("connect gives up on cancel", func(t *testing.T) {
		t.Parallel()
		dialErr := errors.New("no card")
		card := &Card{dial: func() (cardConn, error) { return nil, dialErr }}

		cctx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		require.ErrorIs(t, card.Connect(cctx), context.DeadlineExceeded)
	})
}

func TestIsFatal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		name string
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "no reader", err: ErrNoReader, want: true},
		{name: "reader unplugged", err: fmt.Errorf("status change: %w", scard.ErrReaderUnavailable), want: true},
		{name: "service stopped", err: scard.ErrServiceStopped, want: true},
		{name: "card removed", err: scard.ErrRemovedCard, want: false},
		{name: "apdu failure", err: &StatusError{Op: "read page 4", SW1: 0x63, SW2: 0x00}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsFatal(tt.err))
		})
	}
}

func TestSource(t *testing.T) {
	t.Parallel()

	vc := testutil.NewBlankCard(nil, testutil.NTAG213Pages)
	status := &statusScript{events: []scard.StateFlag{scard.StatePresent, scard.StateEmpty}}
	reader, _ := newTestReader(vc, status)
	src := NewSource(reader, type2.WithBlankSize(48))
	ctx := context.Background()

	tag, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, vc.UID(), tag.UID())
	_, ok := tag.NDEF()
	assert.False(t, ok)
	_, ok = tag.Formattable()
	assert.True(t, ok)

	require.NoError(t, src.Release(ctx))
	assert.Equal(t, 2, status.calls)
	assert.False(t, vc.Connected())
}
