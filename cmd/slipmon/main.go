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

// Command slipmon opens a serial port, prints every SLIP frame received
// on it, and optionally sends a single message before exiting.
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"unicode"

	slip "github.com/sliplink/go-slip"
	"github.com/sliplink/go-slip/detection"
	"github.com/sliplink/go-slip/transport/uart"
)

type config struct {
	devicePath string
	sendText   string
	baudRate   int
	maxLen     int
	debug      bool
}

// Package-level flag variables
var (
	flagDevicePath string
	flagSendText   string
	flagBaudRate   int
	flagMaxLen     int
	flagDebug      bool
)

func init() {
	flag.StringVar(&flagDevicePath, "device", "", "Serial port path (auto-detect if empty)")
	flag.StringVar(&flagSendText, "send", "", "Message to send after connecting (exits after flush)")
	flag.IntVar(&flagBaudRate, "baud", 115200, "Baud rate for the serial port")
	flag.IntVar(&flagMaxLen, "max-length", slip.DefaultMessageMaxLength, "Maximum decoded message length in bytes")
	flag.BoolVar(&flagDebug, "debug", false, "Enable debug output")
}

func parseConfig() *config {
	cfg := &config{
		devicePath: flagDevicePath,
		sendText:   flagSendText,
		baudRate:   flagBaudRate,
		maxLen:     flagMaxLen,
		debug:      flagDebug,
	}

	// Enable debug output if --debug flag is set
	if cfg.debug {
		slip.SetDebugEnabled(true)
	}

	return cfg
}

// resolveDevicePath returns the configured path, or auto-detects the most
// likely serial adapter when none was given.
func resolveDevicePath(ctx context.Context, cfg *config) (string, error) {
	if cfg.devicePath != "" {
		return cfg.devicePath, nil
	}

	if cfg.debug {
		_, _ = fmt.Println("Auto-detecting serial ports...")
	}

	devices, err := detection.Detect(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("device detection failed: %w", err)
	}

	// Detect sorts by nothing in particular; prefer the highest confidence.
	best := devices[0]
	for _, device := range devices[1:] {
		if device.Confidence > best.Confidence {
			best = device
		}
	}

	if cfg.debug {
		for _, device := range devices {
			_, _ = fmt.Printf("  found %s\n", device.String())
		}
	}
	_, _ = fmt.Printf("Using %s\n", best.String())

	return best.Path, nil
}

func newFramer(cfg *config, path string) (*slip.Framer, error) {
	transport, err := uart.New(path, uart.WithBaudRate(cfg.baudRate))
	if err != nil {
		return nil, fmt.Errorf("failed to open UART transport for %s: %w", path, err)
	}

	proto, err := slip.NewProtocol(slip.WithMessageMaxLength(cfg.maxLen))
	if err != nil {
		closeErr := transport.Close()
		return nil, errors.Join(fmt.Errorf("invalid protocol settings: %w", err), closeErr)
	}

	framer, err := slip.New(transport, slip.WithProtocol(proto))
	if err != nil {
		closeErr := transport.Close()
		return nil, errors.Join(fmt.Errorf("failed to create framer: %w", err), closeErr)
	}
	return framer, nil
}

// printMessage renders a decoded message as hex plus printable ASCII.
func printMessage(msg []byte) {
	text := make([]rune, 0, len(msg))
	for _, b := range msg {
		r := rune(b)
		if r > unicode.MaxASCII || !unicode.IsPrint(r) {
			r = '.'
		}
		text = append(text, r)
	}
	_, _ = fmt.Printf("RX %3d bytes  %s  %q\n", len(msg), hex.EncodeToString(msg), string(text))
}

func runSendMode(framer *slip.Framer, cfg *config) error {
	if err := framer.SendMessageAndDrain([]byte(cfg.sendText)); err != nil {
		return fmt.Errorf("send failed: %w", err)
	}
	_, _ = fmt.Printf("Sent %d bytes\n", len(cfg.sendText))
	return nil
}

func runMonitorMode(ctx context.Context, framer *slip.Framer) error {
	if err := framer.Start(); err != nil {
		return fmt.Errorf("failed to start receiving: %w", err)
	}

	_, _ = fmt.Println("Monitoring for frames. Press Ctrl+C to stop...")

	<-ctx.Done()
	return ctx.Err()
}

func run(ctx context.Context, cfg *config) error {
	path, err := resolveDevicePath(ctx, cfg)
	if err != nil {
		return err
	}

	framer, err := newFramer(cfg, path)
	if err != nil {
		return err
	}
	defer func() {
		if err := framer.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close framer: %v\n", err)
		}
	}()

	framer.OnMessage(printMessage)
	framer.OnError(func(err error) {
		_, _ = fmt.Fprintf(os.Stderr, "Frame error: %v\n", err)
	})

	// Mode selection based on the send parameter
	if cfg.sendText != "" {
		// Send mode - write one message, confirm the flush, and exit
		return runSendMode(framer, cfg)
	}
	// Monitor mode - continuously print decoded frames
	return runMonitorMode(ctx, framer)
}

func main() {
	flag.Parse()
	os.Exit(mainWithExitCode())
}

func mainWithExitCode() int {
	// Parse command-line flags
	cfg := parseConfig()

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		_, _ = fmt.Print("\nShutting down gracefully...\n")
		cancel()
	}()

	// Run the main application logic
	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) {
			// User requested shutdown, exit cleanly
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
