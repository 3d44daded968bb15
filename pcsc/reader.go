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

// Package pcsc reaches Type 2 tags through a PC/SC reader such as the
// ACR122U, using github.com/ebfe/scard.
package pcsc

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ebfe/scard"
)

// ErrNoReader is returned by Open when no matching reader is attached.
var ErrNoReader = errors.New("no PC/SC reader found")

const statusTimeout = time.Second

// statusSource is the part of *scard.Context used to watch a reader.
type statusSource interface {
	GetStatusChange(states []scard.ReaderState, timeout time.Duration) error
}

// Reader is one PC/SC reader.
type Reader struct {
	status  statusSource
	dial    func() (cardConn, error)
	release func() error
	name    string
}

// Open establishes a PC/SC context and picks the first reader whose name
// contains name. An empty name picks the first reader.
func Open(name string) (*Reader, error) {
	sc, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("establish context: %w", err)
	}

	readers, err := sc.ListReaders()
	if err != nil {
		_ = sc.Release()
		return nil, fmt.Errorf("list readers: %w", err)
	}

	var chosen string
	for _, r := range readers {
		if strings.Contains(r, name) {
			chosen = r
			break
		}
	}
	if chosen == "" {
		_ = sc.Release()
		return nil, ErrNoReader
	}
	debugf("using reader %q", chosen)

	return &Reader{
		name:   chosen,
		status: sc,
		dial: func() (cardConn, error) {
			return sc.Connect(chosen, scard.ShareExclusive, scard.ProtocolAny)
		},
		release: sc.Release,
	}, nil
}

// Name returns the full reader name.
func (r *Reader) Name() string {
	return r.name
}

// Close releases the PC/SC context.
func (r *Reader) Close() error {
	if r.release == nil {
		return nil
	}
	if err := r.release(); err != nil {
		return fmt.Errorf("release context: %w", err)
	}
	return nil
}

// Detect waits for a card and reads its UID. The returned card is not
// connected.
func (r *Reader) Detect(ctx context.Context) (*Card, error) {
	if err := r.waitFor(ctx, true); err != nil {
		return nil, err
	}

	card := &Card{dial: r.dial}
	if err := card.Connect(ctx); err != nil {
		return nil, err
	}
	uid, err := card.ReadUID(ctx)
	closeErr := card.Close()
	if err != nil {
		return nil, err
	}
	if closeErr != nil {
		return nil, closeErr
	}
	card.uid = uidString(uid)
	debugf("detected card %s", card.uid)
	return card, nil
}

// WaitForRemoval blocks until the reader reports an empty field.
func (r *Reader) WaitForRemoval(ctx context.Context) error {
	return r.waitFor(ctx, false)
}

func (r *Reader) waitFor(ctx context.Context, present bool) error {
	states := []scard.ReaderState{{Reader: r.name, CurrentState: scard.StateUnaware}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.status.GetStatusChange(states, statusTimeout)
		if errors.Is(err, scard.ErrTimeout) {
			continue
		}
		if err != nil {
			return fmt.Errorf("status change: %w", err)
		}
		event := states[0].EventState
		states[0].CurrentState = event &^ scard.StateChanged
		if (event&scard.StatePresent != 0) == present {
			return nil
		}
	}
}
