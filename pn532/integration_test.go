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

package pn532_test

import (
	"context"
	"testing"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	testutil "github.com/ZaparooProject/go-ndeftext/internal/testing"
	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"github.com/ZaparooProject/go-ndeftext/type2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimulatedReader(t *testing.T, card *testutil.VirtualCard) (*pn532.Device, *testutil.SimulatorTransport) {
	t.Helper()
	sim := testutil.NewVirtualPN532()
	sim.SetCard(card)
	transport := testutil.NewSimulatorTransport(sim)

	dev, err := pn532.New(transport)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))
	require.True(t, sim.SAMConfigured())
	return dev, transport
}

// detect lists the tag in the field and reads it the way a polling loop
// does at the start of every event.
func detect(t *testing.T, dev *pn532.Device) (*pn532.Card, *type2.Tag) {
	t.Helper()
	ctx := context.Background()

	detected, err := dev.DetectTag(ctx)
	require.NoError(t, err)
	card := dev.Card(detected)

	tag, err := type2.Discover(ctx, card, detected.UID)
	require.NoError(t, err)
	return card, tag
}

func TestPN532_WriteThenReadText(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	dev, _ := newSimulatedReader(t, vc)
	ctx := context.Background()

	card, tag := detect(t, dev)
	assert.Equal(t, vc.UID(), tag.UID())

	session := ndeftext.NewSession(tag)
	_, _, err := session.ReadText()
	require.ErrorIs(t, err, ndeftext.ErrNoMessage)

	require.NoError(t, session.WriteText(ctx, "Tag content NR. 1", "en"))
	assert.Equal(t, ndeftext.StateDisconnected, session.State())
	require.NoError(t, card.Release(ctx))

	_, again := detect(t, dev)
	text, lang, err := ndeftext.NewSession(again).ReadText()
	require.NoError(t, err)
	assert.Equal(t, "Tag content NR. 1", text)
	assert.Equal(t, "en", lang)
}

func TestPN532_FormatsBlankTag(t *testing.T) {
	t.Parallel()

	vc := testutil.NewBlankCard(nil, testutil.NTAG213Pages)
	dev, _ := newSimulatedReader(t, vc)
	ctx := context.Background()

	_, tag := detect(t, dev)
	_, ok := tag.NDEF()
	require.False(t, ok)

	require.NoError(t, ndeftext.NewSession(tag).WriteText(ctx, "first", "en"))
	assert.Equal(t, [4]byte{0xE1, 0x10, 0x12, 0x00}, vc.Page(3))

	_, again := detect(t, dev)
	msg, ok := ndeftext.ReadMessage(again)
	require.True(t, ok)
	text, _, err := ndef.FirstText(msg)
	require.NoError(t, err)
	assert.Equal(t, "first", text)
}

func TestPN532_ReadOnlyTag(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	vc.SetCapabilityContainer([4]byte{0xE1, 0x10, 0x12, 0x0F})
	dev, transport := newSimulatedReader(t, vc)

	_, tag := detect(t, dev)
	before := transport.CommandCount(testutil.CmdInDataExchange)

	err := ndeftext.NewSession(tag).WriteText(context.Background(), "nope", "en")
	require.ErrorIs(t, err, ndeftext.ErrNotWritable)
	assert.Equal(t, before, transport.CommandCount(testutil.CmdInDataExchange))
	assert.Zero(t, vc.WriteCount())
}

func TestPN532_RetriesCorruptedResponse(t *testing.T) {
	t.Parallel()

	sim := testutil.NewVirtualPN532()
	sim.SetCard(testutil.NewVirtualNTAG213(nil))
	sim.InjectChecksumError()
	transport := testutil.NewSimulatorTransport(sim)

	dev, err := pn532.New(transport)
	require.NoError(t, err)
	require.NoError(t, dev.Init(context.Background()))

	assert.Equal(t, 2, transport.CommandCount(testutil.CmdGetFirmwareVersion))
	require.NotNil(t, dev.FirmwareVersion())
	assert.Equal(t, "1.6", dev.FirmwareVersion().Version)
}

func TestPN532_EmptyField(t *testing.T) {
	t.Parallel()

	dev, _ := newSimulatedReader(t, nil)
	_, err := dev.DetectTag(context.Background())
	require.ErrorIs(t, err, pn532.ErrNoTag)
}

func TestPN532_TagRemovedBeforeRead(t *testing.T) {
	t.Parallel()

	vc := testutil.NewVirtualNTAG213(nil)
	dev, _ := newSimulatedReader(t, vc)
	ctx := context.Background()

	detected, err := dev.DetectTag(ctx)
	require.NoError(t, err)
	vc.Remove()

	_, err = type2.Discover(ctx, dev.Card(detected), detected.UID)
	var pe *pn532.PN532Error
	require.ErrorAs(t, err, &pe)
	assert.True(t, pe.IsTimeoutError())
}

func TestPN532_CannedResponses(t *testing.T) {
	t.Parallel()

	mock := pn532.NewMockTransport()
	mock.SetResponse(testutil.CmdGetFirmwareVersion, testutil.BuildFirmwareVersionResponse())
	mock.SetResponse(testutil.CmdSAMConfiguration, testutil.BuildSAMConfigurationResponse())
	mock.QueueResponses(testutil.CmdInListPassiveTarget,
		testutil.BuildNoTagResponse(),
		testutil.BuildTagDetectionResponse(testutil.TestNTAG213UID),
	)
	mock.SetResponse(testutil.CmdInSelect, testutil.BuildStatusResponse(testutil.CmdInSelect, 0x00))

	dev, err := pn532.New(mock)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, dev.Init(ctx))

	_, err = dev.DetectTag(ctx)
	require.ErrorIs(t, err, pn532.ErrNoTag)

	detected, err := dev.DetectTag(ctx)
	require.NoError(t, err)
	assert.Equal(t, "04abcdef123456", detected.UID)

	// Blank header: UID bytes then an all-zero capability container.
	header := make([]byte, 16)
	copy(header, testutil.TestNTAG213UID)
	mock.SetResponse(testutil.CmdInDataExchange, testutil.BuildDataExchangeResponse(header))

	tag, err := type2.Discover(ctx, dev.Card(detected), detected.UID)
	require.NoError(t, err)
	_, ok := tag.Formattable()
	assert.True(t, ok)
	assert.Equal(t, 1, mock.GetCallCount(testutil.CmdInDeselect))
}
