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

package type2

import (
	"context"
	"errors"
	"fmt"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/internal/syncutil"
	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
)

// Errors returned by the tag views.
var (
	ErrMessageTooLarge = errors.New("message does not fit the tag")
	ErrReadOnly        = errors.New("tag is write protected")
	ErrShortRead       = errors.New("short page read")
	ErrNotBlank        = errors.New("tag is already formatted")
)

// Option configures Discover.
type Option func(*Tag)

// WithBlankSize sets the data area size written when an unformatted tag is
// formatted. It must be a multiple of 8.
func WithBlankSize(size int) Option {
	return func(t *Tag) {
		t.blankSize = size
	}
}

// Tag is a discovered Type 2 tag. It implements ndeftext.Tag.
type Tag struct {
	card      Card
	message   *ndef.Message
	uid       string
	mu        syncutil.Mutex
	blankSize int
	cc        CapabilityContainer
}

var _ ndeftext.Tag = (*Tag)(nil)

// Discover connects to card, reads its capability container and, on a
// formatted tag, its NDEF message. Data that does not hold a parseable
// message leaves the cached message empty without failing discovery.
// The card is closed before Discover returns.
func Discover(ctx context.Context, card Card, uid string, opts ...Option) (tag *Tag, err error) {
	t := &Tag{card: card, uid: uid, blankSize: DefaultBlankSize}
	for _, opt := range opts {
		opt(t)
	}

	if err := card.Connect(ctx); err != nil {
		return nil, fmt.Errorf("discover %s: connect: %w", uid, err)
	}
	defer func() {
		if cerr := card.Close(); cerr != nil && err == nil {
			tag, err = nil, fmt.Errorf("discover %s: close: %w", uid, cerr)
		}
	}()

	head, err := card.ReadPage(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("discover %s: read header: %w", uid, err)
	}
	if len(head) < ReadSize {
		return nil, fmt.Errorf("discover %s: %w: %d bytes", uid, ErrShortRead, len(head))
	}
	copy(t.cc[:], head[capabilityPage*PageSize:])
	debugf("tag %s: capability container %s", uid, t.cc)

	if !t.cc.IsNDEF() {
		return t, nil
	}

	data, err := readData(ctx, card, t.cc.DataSize())
	if err != nil {
		return nil, fmt.Errorf("discover %s: %w", uid, err)
	}
	t.message = parseData(uid, data)
	return t, nil
}

func readData(ctx context.Context, card Card, size int) ([]byte, error) {
	data := make([]byte, 0, size+ReadSize)
	for page := firstDataPage; len(data) < size; page += ReadSize / PageSize {
		if page > 0xFF {
			break
		}
		chunk, err := card.ReadPage(ctx, byte(page))
		if err != nil {
			return nil, fmt.Errorf("read page %d: %w", page, err)
		}
		if len(chunk) < ReadSize {
			return nil, fmt.Errorf("read page %d: %w: %d bytes", page, ErrShortRead, len(chunk))
		}
		data = append(data, chunk[:ReadSize]...)
	}
	if len(data) > size {
		data = data[:size]
	}
	return data, nil
}

func parseData(uid string, data []byte) *ndef.Message {
	raw, err := ExtractNDEF(data)
	if err != nil {
		debugf("tag %s: no NDEF TLV: %v", uid, err)
		return nil
	}
	msg, err := ndef.ParseMessage(raw)
	if err != nil {
		debugf("tag %s: unparseable message: %v", uid, err)
		return nil
	}
	return msg
}

// UID returns the tag identifier.
func (t *Tag) UID() string {
	return t.uid
}

// CapabilityContainer returns the capability container read at discovery or
// written by Format.
func (t *Tag) CapabilityContainer() CapabilityContainer {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cc
}

// NDEF returns the NDEF view of a formatted tag.
func (t *Tag) NDEF() (ndeftext.Technology, bool) {
	if !t.CapabilityContainer().IsNDEF() {
		return nil, false
	}
	return &ndefView{tag: t}, true
}

// Formattable returns the formatting view of a tag whose capability
// container is still blank.
func (t *Tag) Formattable() (ndeftext.Formattable, bool) {
	if !t.CapabilityContainer().IsBlank() {
		return nil, false
	}
	return &formatView{tag: t}, true
}

func (t *Tag) cachedMessage() *ndef.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.message
}

func (t *Tag) update(cc CapabilityContainer, msg *ndef.Message) {
	t.mu.Lock()
	t.cc = cc
	t.message = msg
	t.mu.Unlock()
}

// writeMessage writes msg as an NDEF TLV from the first data page.
func (t *Tag) writeMessage(ctx context.Context, msg *ndef.Message, capacity int) error {
	raw, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data := WrapTLV(raw)
	if len(data) == capacity+1 {
		// The terminator may be dropped when the message fills the area.
		data = data[:capacity]
	}
	if len(data) > capacity {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrMessageTooLarge, len(data), capacity)
	}

	for off := 0; off < len(data); off += PageSize {
		var page [4]byte
		copy(page[:], data[off:])
		pageNum := firstDataPage + off/PageSize
		if pageNum > 0xFF {
			return fmt.Errorf("%w: page %d is not addressable", ErrMessageTooLarge, pageNum)
		}
		if err := t.card.WritePage(ctx, byte(pageNum), page); err != nil {
			return fmt.Errorf("write page %d: %w", pageNum, err)
		}
	}
	debugf("tag %s: wrote %d bytes", t.uid, len(data))
	return nil
}

type ndefView struct {
	tag *Tag
}

func (v *ndefView) Connect(ctx context.Context) error {
	return v.tag.card.Connect(ctx)
}

func (v *ndefView) Close() error {
	return v.tag.card.Close()
}

func (v *ndefView) IsWritable() bool {
	return v.tag.CapabilityContainer().Writable()
}

func (v *ndefView) CachedMessage() *ndef.Message {
	return v.tag.cachedMessage()
}

func (v *ndefView) WriteMessage(ctx context.Context, msg *ndef.Message) error {
	cc := v.tag.CapabilityContainer()
	if !cc.Writable() {
		return ErrReadOnly
	}
	if err := v.tag.writeMessage(ctx, msg, cc.DataSize()); err != nil {
		return err
	}
	v.tag.update(cc, msg)
	return nil
}

type formatView struct {
	tag *Tag
}

func (v *formatView) Connect(ctx context.Context) error {
	return v.tag.card.Connect(ctx)
}

func (v *formatView) Close() error {
	return v.tag.card.Close()
}

// Format writes msg into the data area and then the capability container,
// so a failed format leaves the tag blank.
func (v *formatView) Format(ctx context.Context, msg *ndef.Message) error {
	if !v.tag.CapabilityContainer().IsBlank() {
		return ErrNotBlank
	}
	cc, err := NewCapabilityContainer(v.tag.blankSize)
	if err != nil {
		return err
	}
	if err := v.tag.writeMessage(ctx, msg, cc.DataSize()); err != nil {
		return err
	}
	if err := v.tag.card.WritePage(ctx, capabilityPage, cc); err != nil {
		return fmt.Errorf("write capability container: %w", err)
	}
	v.tag.update(cc, msg)
	debugf("tag %s: formatted with %d byte data area", v.tag.uid, cc.DataSize())
	return nil
}
