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

// Command ndeftext reads and writes NDEF Text records on Type 2 tags through
// a PN532 (UART or I2C) or a PC/SC reader.
//
// In read mode every tag presented is reported with its text. In write mode
// each tag receives "Tag content NR. N", N counting up from 1.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	ndeftext "github.com/ZaparooProject/go-ndeftext"
	"github.com/ZaparooProject/go-ndeftext/config"
	"github.com/ZaparooProject/go-ndeftext/pcsc"
	"github.com/ZaparooProject/go-ndeftext/pn532"
	"github.com/ZaparooProject/go-ndeftext/tagops"
	"github.com/ZaparooProject/go-ndeftext/transport/i2c"
	"github.com/ZaparooProject/go-ndeftext/transport/uart"
)

const unavailableMessage = "NFC is not available on this device. This application may not work correctly."

// parseConfig loads the optional config file and applies the flags that were
// set explicitly on top of it.
func parseConfig(args []string, stderr io.Writer) (*config.Config, error) {
	fs := flag.NewFlagSet("ndeftext", flag.ContinueOnError)
	fs.SetOutput(stderr)

	configPath := fs.String("config", "", "YAML configuration file")
	transport := fs.String("transport", "", "Reader transport: uart, i2c or pcsc")
	device := fs.String("device", "", "Serial port (detected when empty), I2C bus or PC/SC reader name")
	timeout := fs.Duration("timeout", 0, "PN532 response timeout")
	mode := fs.String("mode", "", "read or write")
	language := fs.String("language", "", "Language code of written records")
	sessionLog := fs.String("session-log", "", "Directory for a session log file")
	debug := fs.Bool("debug", false, "Enable debug output")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "transport":
			cfg.Reader.Transport = *transport
		case "device":
			cfg.Reader.Device = *device
		case "timeout":
			cfg.Reader.Timeout = *timeout
		case "mode":
			cfg.Mode = *mode
		case "language":
			cfg.Tag.Language = *language
		case "session-log":
			cfg.SessionLog = *sessionLog
		case "debug":
			cfg.Debug = *debug
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// reader is an opened tag source and the function that shuts it down.
type reader struct {
	source tagops.Source
	poll   *tagops.PollConfig
	close  func() error
}

func openPN532(ctx context.Context, cfg *config.Config, transport pn532.Transport) (*reader, error) {
	device, err := pn532.New(transport, pn532.WithTimeout(cfg.Reader.Timeout))
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("create device: %w", err)
	}
	if err := device.Init(ctx); err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("initialize PN532: %w", err)
	}
	if fw := device.FirmwareVersion(); fw != nil {
		ndeftext.Debugf("PN532 firmware %s", fw.Version)
	}
	return &reader{
		source: tagops.NewPN532Source(device, cfg.DiscoverOptions()...),
		poll:   tagops.DefaultPollConfig(),
		close:  device.Close,
	}, nil
}

func openReader(ctx context.Context, cfg *config.Config) (*reader, error) {
	switch cfg.Reader.Transport {
	case config.TransportUART:
		path := cfg.Reader.Device
		if path == "" {
			detected, err := uart.Detect(ctx)
			if err != nil {
				return nil, fmt.Errorf("detect PN532: %w", err)
			}
			path = detected
		}
		transport, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("open UART transport: %w", err)
		}
		return openPN532(ctx, cfg, transport)
	case config.TransportI2C:
		transport, err := i2c.New(cfg.Reader.Device)
		if err != nil {
			return nil, fmt.Errorf("open I2C transport: %w", err)
		}
		return openPN532(ctx, cfg, transport)
	case config.TransportPCSC:
		r, err := pcsc.Open(cfg.Reader.Device)
		if err != nil {
			return nil, fmt.Errorf("open PC/SC reader: %w", err)
		}
		ndeftext.Debugf("PC/SC reader %q", r.Name())
		poll := tagops.DefaultPollConfig()
		poll.IsFatal = pcsc.IsFatal
		return &reader{
			source: pcsc.NewSource(r, cfg.DiscoverOptions()...),
			poll:   poll,
			close:  r.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", cfg.Reader.Transport)
	}
}

func run(ctx context.Context, cfg *config.Config, stdout io.Writer, open func(context.Context, *config.Config) (*reader, error)) error {
	r, err := open(ctx, cfg)
	if err != nil {
		_, _ = fmt.Fprintln(stdout, unavailableMessage)
		return err
	}
	defer func() {
		if err := r.close(); err != nil {
			ndeftext.Debugf("close reader: %v", err)
		}
	}()

	h := tagops.New(cfg.HandlerOptions()...)
	_, _ = fmt.Fprintf(stdout, "Waiting for tags in %s mode. Press Ctrl+C to stop...\n", h.Mode())

	return h.Run(ctx, r.source, tagops.NewCounter(1), r.poll, func(out tagops.Outcome) {
		_, _ = fmt.Fprintf(stdout, "[%s] %s\n", out.UID, out.Message())
		if out.Err != nil {
			ndeftext.Debugf("event %s: %v", out.EventID, out.Err)
		}
	})
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	if cfg.Debug {
		ndeftext.SetDebugEnabled(true)
	}
	if cfg.SessionLog != "" {
		path, logErr := ndeftext.InitSessionLog(cfg.SessionLog)
		if logErr != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", logErr)
			return 1
		}
		_, _ = fmt.Fprintf(os.Stderr, "Session log: %s\n", path)
		defer func() { _ = ndeftext.CloseSessionLog() }()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, os.Stdout, openReader); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
