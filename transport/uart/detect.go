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

package uart

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/ZaparooProject/go-ndeftext/pn532"
	"go.bug.st/serial/enumerator"
)

// ErrNoDevice is returned by Detect when no serial port answers as a PN532.
var ErrNoDevice = errors.New("no PN532 found on serial ports")

const probeTimeout = 2 * time.Second

// USB-serial bridges commonly fitted to PN532 boards.
var knownBridges = []string{
	"067B:2303", // Prolific PL2303
	"0403:6001", // FTDI FT232
	"10C4:EA60", // Silicon Labs CP210x
	"1A86:7523", // QinHeng CH340
}

var productKeywords = []string{"pn532", "nfc", "rfid", "13.56"}

// Port is a serial port found on the system.
type Port struct {
	Path         string
	VIDPID       string
	Product      string
	SerialNumber string
	USB          bool
}

// Likely reports whether the port looks like a PN532 board from its USB
// descriptor.
func (p Port) Likely() bool {
	if !p.USB {
		return false
	}
	if slices.Contains(knownBridges, strings.ToUpper(p.VIDPID)) {
		return true
	}
	product := strings.ToLower(p.Product)
	for _, kw := range productKeywords {
		if strings.Contains(product, kw) {
			return true
		}
	}
	return false
}

// ListPorts returns the serial ports on the system, likely PN532 boards
// first.
func ListPorts() ([]Port, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return sortPorts(fromDetails(details)), nil
}

func fromDetails(details []*enumerator.PortDetails) []Port {
	ports := make([]Port, 0, len(details))
	for _, d := range details {
		p := Port{Path: d.Name, USB: d.IsUSB, Product: d.Product, SerialNumber: d.SerialNumber}
		if d.VID != "" && d.PID != "" {
			p.VIDPID = strings.ToUpper(d.VID + ":" + d.PID)
		}
		ports = append(ports, p)
	}
	return ports
}

func sortPorts(ports []Port) []Port {
	slices.SortStableFunc(ports, func(a, b Port) int {
		switch {
		case a.Likely() == b.Likely():
			return 0
		case a.Likely():
			return -1
		default:
			return 1
		}
	})
	return ports
}

// Detect probes every serial port not listed in ignore with
// GetFirmwareVersion and returns the path of the first that answers. Each
// port gets a single attempt.
func Detect(ctx context.Context, ignore ...string) (string, error) {
	ports, err := ListPorts()
	if err != nil {
		return "", err
	}
	return detect(ctx, ports, ignore, probe)
}

func detect(ctx context.Context, ports []Port, ignore []string, probe func(context.Context, string) error) (string, error) {
	for _, p := range ports {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if isIgnored(p.Path, ignore) {
			continue
		}
		if err := probe(ctx, p.Path); err != nil {
			debugf("probe %s: %v", p.Path, err)
			continue
		}
		debugf("found PN532 on %s", p.Path)
		return p.Path, nil
	}
	return "", ErrNoDevice
}

func probe(ctx context.Context, path string) error {
	t, err := New(path)
	if err != nil {
		return err
	}
	defer func() { _ = t.Close() }()

	dev, err := pn532.New(t, pn532.WithRetryConfig(&pn532.RetryConfig{MaxAttempts: 1}))
	if err != nil {
		return err
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err = dev.GetFirmwareVersion(probeCtx)
	return err
}

func isIgnored(path string, ignore []string) bool {
	clean := filepath.Clean(path)
	for _, ig := range ignore {
		if ig != "" && strings.EqualFold(clean, filepath.Clean(ig)) {
			return true
		}
	}
	return false
}
