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

package frame

import (
	"bytes"
	"errors"

	"github.com/ZaparooProject/go-ndeftext/pn532"
)

// ErrIncomplete is returned by Decode when buf ends inside a frame.
var ErrIncomplete = errors.New("incomplete frame")

var startCode = []byte{StartCode1, StartCode2}

// Kind tells the frame types apart.
type Kind int

const (
	// KindData is a normal information frame.
	KindData Kind = iota
	// KindAck is an ACK frame.
	KindAck
	// KindNack is a NACK frame.
	KindNack
	// KindError is a syntax error frame sent by the chip.
	KindError
)

// Frame is a decoded frame. Payload excludes the TFI.
type Frame struct {
	Payload []byte
	Kind    Kind
	TFI     byte
}

// Encode builds a normal information frame with the given TFI.
func Encode(tfi byte, payload []byte) ([]byte, error) {
	if len(payload) > MaxPayloadLength {
		return nil, pn532.NewDataTooLargeError("encode", "")
	}
	length := byte(len(payload) + 1)
	dcs := -(tfi + CalculateChecksum(payload))

	out := make([]byte, 0, len(payload)+8)
	out = append(out, Preamble, StartCode1, StartCode2, length, -length, tfi)
	out = append(out, payload...)
	return append(out, dcs, Postamble), nil
}

// BuildCommand builds the host frame for cmd.
func BuildCommand(cmd byte, args []byte) ([]byte, error) {
	payload := make([]byte, 0, len(args)+1)
	payload = append(payload, cmd)
	payload = append(payload, args...)
	return Encode(HostToPn532, payload)
}

// Decode reads the first frame in buf and returns it with the number of
// bytes consumed, including anything before its start code. Checksum errors
// still report n so the caller can skip the bad frame.
func Decode(buf []byte) (f Frame, n int, err error) {
	i := bytes.Index(buf, startCode)
	if i < 0 {
		return Frame{}, 0, ErrIncomplete
	}
	if i+4 > len(buf) {
		return Frame{}, 0, ErrIncomplete
	}

	length, lcs := buf[i+2], buf[i+3]
	switch {
	case length == 0x00 && lcs == 0xFF:
		return Frame{Kind: KindAck}, skipPostamble(buf, i+4), nil
	case length == 0xFF && lcs == 0x00:
		return Frame{Kind: KindNack}, skipPostamble(buf, i+4), nil
	case length == 0xFF && lcs == 0xFF:
		return Frame{}, i + 4, pn532.NewFrameCorruptedError("decode extended frame", "")
	case length+lcs != 0:
		return Frame{}, i + 2, pn532.NewChecksumMismatchError("decode length", "")
	case length == 0:
		return Frame{}, i + 4, pn532.NewFrameCorruptedError("decode length", "")
	}

	end := i + 4 + int(length) // index of DCS
	if end >= len(buf) {
		return Frame{}, 0, ErrIncomplete
	}
	n = skipPostamble(buf, end+1)
	if CalculateChecksum(buf[i+4:end+1]) != 0 {
		return Frame{}, n, pn532.NewChecksumMismatchError("decode data", "")
	}

	tfi := buf[i+4]
	if tfi == ErrorTFI {
		return Frame{Kind: KindError, TFI: tfi}, n, nil
	}
	return Frame{
		Kind:    KindData,
		TFI:     tfi,
		Payload: append([]byte(nil), buf[i+5:end]...),
	}, n, nil
}

func skipPostamble(buf []byte, n int) int {
	if n < len(buf) && buf[n] == Postamble {
		return n + 1
	}
	return n
}

// Response turns a decoded chip frame into the value returned by
// pn532.Transport.SendCommand.
func Response(f Frame, op, port string) ([]byte, error) {
	switch f.Kind {
	case KindData:
		if f.TFI != Pn532ToHost || len(f.Payload) == 0 {
			return nil, pn532.NewFrameCorruptedError(op, port)
		}
		return f.Payload, nil
	case KindError:
		return []byte{ErrorTFI}, nil
	case KindNack:
		return nil, pn532.NewNACKReceivedError(op, port)
	default:
		return nil, pn532.NewFrameCorruptedError(op, port)
	}
}
