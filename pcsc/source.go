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

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/type2"
)

// Source yields the Type 2 tags presented to a reader, one per presentation.
// It satisfies tagops.Source.
type Source struct {
	reader *Reader
	opts   []type2.Option
}

// NewSource waits on reader. opts are passed to type2.Discover.
func NewSource(reader *Reader, opts ...type2.Option) *Source {
	return &Source{reader: reader, opts: opts}
}

// Next blocks until a card is present and discovers it.
func (s *Source) Next(ctx context.Context) (ndeftext.Tag, error) {
	card, err := s.reader.Detect(ctx)
	if err != nil {
		return nil, err
	}
	return type2.Discover(ctx, card, card.UID(), s.opts...)
}

// Release waits for the card to leave the field.
func (s *Source) Release(ctx context.Context) error {
	return s.reader.WaitForRemoval(ctx)
}
