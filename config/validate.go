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

package config

import (
	"fmt"

	"github.com/ZaparooProject/go-ndeftext/pkg/ndef"
	"github.com/ZaparooProject/go-ndeftext/tagops"
	"github.com/ZaparooProject/go-ndeftext/type2"
)

// Validate returns the first invalid setting found.
func (c *Config) Validate() error {
	if err := c.Reader.Validate(); err != nil {
		return fmt.Errorf("reader config: %w", err)
	}
	if err := c.Tag.Validate(); err != nil {
		return fmt.Errorf("tag config: %w", err)
	}
	if _, err := tagops.ParseMode(c.Mode); err != nil {
		return fmt.Errorf("mode must be read or write: %w", err)
	}
	return nil
}

// Validate checks reader settings.
func (r *ReaderConfig) Validate() error {
	switch r.Transport {
	case TransportI2C:
		if r.Device == "" {
			return fmt.Errorf("device is required for the %s transport", r.Transport)
		}
	case TransportUART, TransportPCSC:
	default:
		return fmt.Errorf("transport must be uart, i2c or pcsc, got %q", r.Transport)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", r.Timeout)
	}
	return nil
}

// Validate checks tag settings.
func (t *TagConfig) Validate() error {
	if err := ndef.ValidateLanguage(t.Language); err != nil {
		return fmt.Errorf("language: %w", err)
	}
	if _, err := type2.NewCapabilityContainer(t.BlankSize); err != nil {
		return fmt.Errorf("blank_size: %w", err)
	}
	return nil
}
