// Copyright 2026 The Sliplink Project Contributors.
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

// Package detection enumerates serial ports that are plausible SLIP link
// endpoints. SLIP carries no probe command, so confidence comes entirely
// from USB descriptors: a port behind a known USB-serial bridge ranks
// higher than an anonymous built-in tty.
package detection

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.bug.st/serial/enumerator"
)

// Confidence represents how likely a port is to be a usable serial link
type Confidence int

const (
	// Low confidence - a tty with no identifying metadata
	Low Confidence = iota
	// Medium confidence - a USB serial device of unknown make
	Medium
	// High confidence - a recognized USB-serial bridge chip
	High
)

// DeviceInfo represents a detected serial port
type DeviceInfo struct {
	// Additional metadata (e.g., vidpid, product, serial)
	Metadata map[string]string
	// Connection path (e.g., "/dev/ttyUSB0", "COM3")
	Path string
	// Human-readable device name
	Name string
	// Detection confidence level
	Confidence Confidence
}

// String returns a human-readable representation of the device
func (d DeviceInfo) String() string {
	confidence := "unknown"
	switch d.Confidence {
	case Low:
		confidence = "low"
	case Medium:
		confidence = "medium"
	case High:
		confidence = "high"
	}
	return fmt.Sprintf("serial port %s (confidence: %s)", d.Path, confidence)
}

// Options configures the detection behavior
type Options struct {
	// USB VID:PID pairs to skip (e.g., ["1234:5678", "ABCD:EF01"])
	Blocklist []string
	// Device paths to explicitly ignore (e.g., ["/dev/ttyUSB0", "COM2"])
	IgnorePaths []string
	// Cache TTL duration
	CacheTTL time.Duration
	// Enable result caching
	EnableCache bool
}

// DefaultOptions returns sensible default detection options
func DefaultOptions() Options {
	return Options{
		Blocklist:   DefaultBlocklist(),
		EnableCache: true,
		CacheTTL:    30 * time.Second,
	}
}

// Errors
var (
	// ErrNoPortsFound indicates no candidate serial ports were detected
	ErrNoPortsFound = errors.New("no serial ports found")
	// ErrDetectionTimeout indicates detection was cancelled or timed out
	ErrDetectionTimeout = errors.New("detection timeout")
)

// listPorts is indirected for tests
var listPorts = enumerator.GetDetailedPortsList

// Detect enumerates candidate serial ports, filtered through the
// blocklist and ignore paths, ordered as the OS reports them. Results
// may be served from the TTL cache when enabled.
func Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	if opts == nil {
		defaults := DefaultOptions()
		opts = &defaults
	}

	if opts.EnableCache {
		if cached, found := getCached(opts.CacheTTL); found {
			// Cached results bypass enumeration, so the filters must
			// be re-applied here.
			return filterDevices(cached, opts), nil
		}
	}

	select {
	case <-ctx.Done():
		return nil, ErrDetectionTimeout
	default:
	}

	details, err := listPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	var devices []DeviceInfo
	for _, detail := range details {
		select {
		case <-ctx.Done():
			return nil, ErrDetectionTimeout
		default:
		}
		devices = append(devices, deviceFromPort(detail))
	}

	devices = filterDevices(devices, opts)

	if opts.EnableCache {
		if len(devices) > 0 {
			setCached(devices)
		} else {
			// Clear stale cache when no ports remain. Without this, a
			// cached result for a now-unplugged adapter persists until
			// TTL expiry and consumers try to open a dead path.
			clearCache()
		}
	}

	if len(devices) == 0 {
		return nil, ErrNoPortsFound
	}
	return devices, nil
}

// deviceFromPort builds a DeviceInfo from OS port details
func deviceFromPort(detail *enumerator.PortDetails) DeviceInfo {
	info := DeviceInfo{
		Path:       detail.Name,
		Name:       detail.Name,
		Confidence: Low,
		Metadata:   map[string]string{},
	}

	if !detail.IsUSB {
		return info
	}

	info.Confidence = Medium
	info.Metadata["vidpid"] = strings.ToUpper(detail.VID + ":" + detail.PID)
	if detail.Product != "" {
		info.Name = detail.Product
		info.Metadata["product"] = detail.Product
	}
	if detail.SerialNumber != "" {
		info.Metadata["serial"] = detail.SerialNumber
	}
	if isLikelySerialAdapter(detail) {
		info.Confidence = High
	}
	return info
}

// Vendor IDs of the USB-serial bridges SLIP hardware typically hides
// behind.
var knownBridgeVIDs = map[string]string{
	"0403": "FTDI",
	"10C4": "Silicon Labs",
	"1A86": "QinHeng",
	"067B": "Prolific",
	"2341": "Arduino",
}

// isLikelySerialAdapter checks if the port matches known good device patterns
func isLikelySerialAdapter(detail *enumerator.PortDetails) bool {
	if _, ok := knownBridgeVIDs[strings.ToUpper(detail.VID)]; ok {
		return true
	}

	product := strings.ToLower(detail.Product)
	goodPatterns := []string{"uart", "usb serial", "usb-serial", "ftdi", "cp210", "ch340"}
	for _, pattern := range goodPatterns {
		if strings.Contains(product, pattern) {
			return true
		}
	}
	return false
}

// filterDevices applies IgnorePaths and Blocklist filtering to a device list
func filterDevices(devices []DeviceInfo, opts *Options) []DeviceInfo {
	if len(opts.IgnorePaths) == 0 && len(opts.Blocklist) == 0 {
		return devices
	}

	var filtered []DeviceInfo
	for _, device := range devices {
		if IsPathIgnored(device.Path, opts.IgnorePaths) {
			continue
		}
		if vidpid, ok := device.Metadata["vidpid"]; ok && IsBlocked(vidpid, opts.Blocklist) {
			continue
		}
		filtered = append(filtered, device)
	}
	return filtered
}

// ClearDetectionCache removes all cached detection results
func ClearDetectionCache() {
	clearCache()
}
