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

// Package config loads the settings of the ndeftext command from YAML.
// Decoding is strict: unknown keys are rejected.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ZaparooProject/go-ndeftext/tagops"
	"github.com/ZaparooProject/go-ndeftext/type2"
	"gopkg.in/yaml.v3"
)

// Transport names accepted in reader.transport.
const (
	TransportUART = "uart"
	TransportI2C  = "i2c"
	TransportPCSC = "pcsc"
)

// DefaultTimeout is the PN532 response timeout.
const DefaultTimeout = time.Second

// Config is the complete command configuration.
type Config struct {
	Reader     ReaderConfig `yaml:"reader"`
	Tag        TagConfig    `yaml:"tag"`
	Mode       string       `yaml:"mode"`
	SessionLog string       `yaml:"session_log,omitempty"` // Directory for the session log, empty disables it
	Debug      bool         `yaml:"debug,omitempty"`
}

// ReaderConfig selects the reader hardware.
type ReaderConfig struct {
	Transport string        `yaml:"transport"` // uart, i2c or pcsc
	Device    string        `yaml:"device"`    // Serial port (detected when empty), I2C bus or PC/SC reader name
	Timeout   time.Duration `yaml:"timeout"`
}

// TagConfig controls what is written to tags.
type TagConfig struct {
	Language      string `yaml:"language"`
	ContentPrefix string `yaml:"content_prefix"`
	BlankSize     int    `yaml:"blank_size"` // Data area in bytes used when formatting
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.setDefaults()
	return &cfg
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults. An empty document
// yields the defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Reader.Transport == "" {
		c.Reader.Transport = TransportUART
	}
	if c.Reader.Timeout == 0 {
		c.Reader.Timeout = DefaultTimeout
	}
	if c.Tag.Language == "" {
		c.Tag.Language = tagops.DefaultLanguage
	}
	if c.Tag.ContentPrefix == "" {
		c.Tag.ContentPrefix = tagops.DefaultContentPrefix
	}
	if c.Tag.BlankSize == 0 {
		c.Tag.BlankSize = type2.DefaultBlankSize
	}
	if c.Mode == "" {
		c.Mode = tagops.ModeRead.String()
	}
}

// HandlerOptions returns the tagops options for this configuration. It
// assumes Validate passed.
func (c *Config) HandlerOptions() []tagops.Option {
	mode, _ := tagops.ParseMode(c.Mode)
	return []tagops.Option{
		tagops.WithLanguage(c.Tag.Language),
		tagops.WithContentPrefix(c.Tag.ContentPrefix),
		tagops.WithMode(mode),
	}
}

// DiscoverOptions returns the type2 options for this configuration.
func (c *Config) DiscoverOptions() []type2.Option {
	return []type2.Option{type2.WithBlankSize(c.Tag.BlankSize)}
}
