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

package pn532

import (
	"errors"
	"fmt"
	"io"
)

// Transport and frame level errors.
var (
	ErrTransportTimeout  = errors.New("transport timeout")
	ErrTransportWrite    = errors.New("transport write failed")
	ErrTransportRead     = errors.New("transport read failed")
	ErrTransportClosed   = errors.New("transport is closed")
	ErrTransportNotReady = errors.New("transport not ready")
	ErrNoACK             = errors.New("no ACK received")
	ErrNACKReceived      = errors.New("NACK received")
	ErrFrameCorrupted    = errors.New("frame corrupted")
	ErrChecksumMismatch  = errors.New("checksum mismatch")
	ErrDataTooLarge      = errors.New("data too large")
)

// Device and tag level errors.
var (
	ErrInvalidResponse = errors.New("invalid response format")
	ErrNoTag           = errors.New("no tag in field")
	ErrTagNotSelected  = errors.New("tag not selected")
	ErrShortRead       = errors.New("tag returned fewer bytes than requested")
	ErrWriteRejected   = errors.New("tag rejected write")
)

// ErrorType classifies a TransportError for the retry logic.
type ErrorType int

const (
	// ErrorTypeTransient may succeed when retried.
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent will not succeed when retried.
	ErrorTypePermanent
	// ErrorTypeTimeout is a transient error caused by a missing reply.
	ErrorTypeTimeout
)

// TransportError wraps an error raised while talking to the reader.
type TransportError struct {
	Err       error
	Op        string
	Port      string
	Type      ErrorType
	Retryable bool
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransportError builds a TransportError; timeouts and transient errors
// are marked retryable.
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTimeoutError reports that no reply arrived in time.
func NewTimeoutError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportTimeout, ErrorTypeTimeout)
}

// NewNoACKError reports a command that was never acknowledged.
func NewNoACKError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNoACK, ErrorTypeTimeout)
}

// NewNACKReceivedError reports a command the reader asked to resend.
func NewNACKReceivedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrNACKReceived, ErrorTypeTransient)
}

// NewFrameCorruptedError reports a frame with a broken layout.
func NewFrameCorruptedError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrFrameCorrupted, ErrorTypeTransient)
}

// NewChecksumMismatchError reports a frame failing its LCS or DCS check.
func NewChecksumMismatchError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrChecksumMismatch, ErrorTypeTransient)
}

// NewDataTooLargeError reports a payload that does not fit a normal frame.
func NewDataTooLargeError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrDataTooLarge, ErrorTypePermanent)
}

// NewTransportNotReadyError reports a reader that never signalled ready.
func NewTransportNotReadyError(op, port string) *TransportError {
	return NewTransportError(op, port, ErrTransportNotReady, ErrorTypeTimeout)
}

// PN532Error is an error status reported by the PN532 itself.
type PN532Error struct {
	Command   string
	Context   string
	ErrorCode byte
}

func (e *PN532Error) Error() string {
	msg := fmt.Sprintf("%s error 0x%02X (%s)", e.Command, e.ErrorCode, errorCodeMeaning(e.ErrorCode))
	if e.Context != "" {
		msg += ": " + e.Context
	}
	return msg
}

// NewPN532Error builds a PN532Error for command.
func NewPN532Error(code byte, command, context string) *PN532Error {
	return &PN532Error{ErrorCode: code, Command: command, Context: context}
}

// IsTimeoutError reports whether the PN532 gave up waiting for the tag.
func (e *PN532Error) IsTimeoutError() bool {
	return e.ErrorCode == 0x01
}

// IsTagGone reports whether the tag left the field during the exchange.
func (e *PN532Error) IsTagGone() bool {
	return e.ErrorCode == 0x29 || e.ErrorCode == 0x2B
}

// IsTagGone reports whether err carries a PN532 status saying the tag left
// the field.
func IsTagGone(err error) bool {
	var pe *PN532Error
	return errors.As(err, &pe) && pe.IsTagGone()
}

// Status codes from the PN532 user manual, section 7.1.
var errorCodes = map[byte]string{
	0x01: "timeout",
	0x02: "CRC error",
	0x03: "parity error",
	0x04: "erroneous bit count during anti-collision",
	0x05: "framing error",
	0x06: "abnormal bit collision",
	0x07: "communication buffer size insufficient",
	0x09: "RF buffer overflow",
	0x0A: "RF field not activated in time",
	0x0B: "RF protocol error",
	0x0D: "overheating",
	0x0E: "internal buffer overflow",
	0x10: "invalid parameter",
	0x13: "data format does not match",
	0x14: "authentication error",
	0x23: "UID check byte is wrong",
	0x25: "invalid device state",
	0x26: "operation not allowed",
	0x27: "wrong context for command",
	0x29: "target released by initiator",
	0x2A: "card ID mismatch",
	0x2B: "card disappeared",
	0x2D: "over-current event",
	0x7F: "syntax error",
	0x81: "command not supported",
}

func errorCodeMeaning(code byte) string {
	if m, ok := errorCodes[code]; ok {
		return m
	}
	return "unknown error"
}

// IsRetryable reports whether err may go away if the command is resent.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	var pe *PN532Error
	if errors.As(err, &pe) {
		return pe.IsTimeoutError()
	}

	switch {
	case errors.Is(err, ErrTransportTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrNoACK),
		errors.Is(err, ErrFrameCorrupted),
		errors.Is(err, ErrChecksumMismatch):
		return true
	default:
		return false
	}
}

// IsFatal reports whether err means the reader is gone and the caller
// should stop using it.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}
