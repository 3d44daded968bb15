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

package uart

import (
	"context"
	"errors"
	"testing"
	"time"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/internal/frame"
	testutil "github.com/ZaparooProject/go-ndeftext/internal/testing"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"github.com/ZaparooProject/go-ndeftext/type2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// simPort is a serial port wired to a simulated PN532. When limited, it
// delivers at most budget bytes and then goes quiet.
type simPort struct {
	sim      *testutil.VirtualPN532
	readErr  error
	budget   int
	drains   int
	readWait time.Duration
	limited  bool
	closed   bool
}

func (p *simPort) Read(buf []byte) (int, error) {
	if p.readErr != nil {
		return 0, p.readErr
	}
	if p.limited {
		if p.budget == 0 {
			time.Sleep(p.readWait)
			return 0, nil
		}
		if len(buf) > p.budget {
			buf = buf[:p.budget]
		}
	}
	n, err := p.sim.Read(buf)
	if n == 0 {
		time.Sleep(p.readWait)
	}
	if p.limited {
		p.budget -= n
	}
	return n, err
}

func (p *simPort) Write(data []byte) (int, error) {
	return p.sim.Write(data)
}

func (p *simPort) Drain() error {
	p.drains++
	return nil
}

func (*simPort) SetReadTimeout(time.Duration) error {
	return nil
}

func (p *simPort) Close() error {
	p.closed = true
	return nil
}

func newSimTransport(t *testing.T, card *testutil.VirtualCard) (*Transport, *simPort) {
	t.Helper()
	sim := testutil.NewVirtualPN532()
	sim.SetCard(card)
	p := &simPort{sim: sim, readWait: time.Millisecond}
	tr, err := newTransport(p, "/dev/ttyTEST")
	require.NoError(t, err)
	require.NoError(t, tr.SetTimeout(200*time.Millisecond))
	return tr, p
}

func TestTransport_SendCommand(t *testing.T) {
	t.Parallel()

	tr, p := newSimTransport(t, nil)

	res, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), res)
	assert.Equal(t, pn532.TransportUART, tr.Type())
	assert.Equal(t, 3, p.drains)
	assert.False(t, p.sim.HasPendingResponse())
}

func TestTransport_NacksCorruptedResponse(t *testing.T) {
	t.Parallel()

	tr, p := newSimTransport(t, nil)
	p.sim.InjectChecksumError()

	res, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), res)
	assert.Equal(t, 1, p.sim.CommandCount(testutil.CmdGetFirmwareVersion))
}

func TestTransport_Errors(t *testing.T) {
	t.Parallel()

	t.Run("missing ACK", func(t *testing.T) {
		t.Parallel()
		tr, p := newSimTransport(t, nil)
		p.sim.DropNextACK()

		_, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, pn532.ErrNoACK)
	})

	t.Run("silent chip", func(t *testing.T) {
		t.Parallel()
		tr, p := newSimTransport(t, nil)
		p.limited = true

		_, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, pn532.ErrTransportTimeout)
		assert.True(t, pn532.IsRetryable(err))
	})

	t.Run("read failure", func(t *testing.T) {
		t.Parallel()
		tr, p := newSimTransport(t, nil)
		p.readErr = errors.New("device unplugged")

		_, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, pn532.ErrTransportRead)
	})

	t.Run("cancelled", func(t *testing.T) {
		t.Parallel()
		tr, _ := newSimTransport(t, nil)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := tr.SendCommand(ctx, testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("closed", func(t *testing.T) {
		t.Parallel()
		tr, p := newSimTransport(t, nil)
		require.NoError(t, tr.Close())
		require.NoError(t, tr.Close())
		assert.True(t, p.closed)

		_, err := tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
		require.ErrorIs(t, err, pn532.ErrTransportClosed)
	})

	t.Run("payload too large", func(t *testing.T) {
		t.Parallel()
		tr, _ := newSimTransport(t, nil)

		_, err := tr.SendCommand(context.Background(), testutil.CmdInDataExchange, make([]byte, 300))
		require.ErrorIs(t, err, pn532.ErrDataTooLarge)
	})
}

func TestTransport_SilentInListPassiveTarget(t *testing.T) {
	t.Parallel()

	tr, p := newSimTransport(t, nil)
	require.NoError(t, tr.SetTimeout(20*time.Millisecond))

	// ACK only, the list reply never comes.
	p.limited, p.budget = true, len(frame.AckFrame)
	res, err := tr.SendCommand(context.Background(), testutil.CmdInListPassiveTarget, []byte{0x01, 0x00})
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildNoTagResponse(), res)

	// Other commands report the timeout.
	p.budget = len(frame.AckFrame)
	_, err = tr.SendCommand(context.Background(), testutil.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, pn532.ErrTransportTimeout)
}

func TestTransport_ReadWriteTag(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	tr, _ := newSimTransport(t, vc)
	ctx := context.Background()

	dev, err := pn532.New(tr)
	require.NoError(t, err)
	require.NoError(t, dev.Init(ctx))

	detected, err := dev.DetectTag(ctx)
	require.NoError(t, err)
	tag, err := type2.Discover(ctx, dev.Card(detected), detected.UID)
	require.NoError(t, err)
	require.NoError(t, ndeftext.NewSession(tag).WriteText(ctx, "over the wire", "en"))

	again, err := type2.Discover(ctx, dev.Card(detected), detected.UID)
	require.NoError(t, err)
	text, _, err := ndeftext.NewSession(again).ReadText()
	require.NoError(t, err)
	assert.Equal(t, "over the wire", text)
}
