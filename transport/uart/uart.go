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

// Package uart implements the slip.Transport interface over a serial
// port. A background read loop delivers whatever byte chunks the driver
// hands out, at most one chunk at a time, in arrival order; framing is
// entirely the caller's business.
package uart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	slip "github.com/sliplink/go-slip"
	"github.com/sliplink/go-slip/internal/syncutil"
	"go.bug.st/serial"
)

const (
	defaultBaudRate = 115200

	// readBufferSize matches the 256-byte FIFO of common USB-UART
	// bridges; the driver rarely returns more per read anyway.
	readBufferSize = 256

	// defaultReadTimeout keeps the read loop responsive to Close
	// without busy-spinning on an idle line.
	defaultReadTimeout = 50 * time.Millisecond
)

// Transport implements the slip.Transport interface for UART communication.
type Transport struct {
	port     serial.Port
	portName string

	writeMu syncutil.Mutex

	mu      sync.Mutex
	handler func(chunk []byte)
	running bool
	closed  bool
	done    chan struct{}
}

// Option configures the transport before the port is opened
type Option func(*openConfig)

// openConfig holds pre-open settings
type openConfig struct {
	retry    *slip.RetryConfig
	baudRate int
}

// WithBaudRate overrides the default baud rate of 115200
func WithBaudRate(baud int) Option {
	return func(c *openConfig) { c.baudRate = baud }
}

// WithRetryConfig overrides the retry policy applied to opening the port.
// Opening retries only transient failures such as a still-enumerating or
// busy device; a missing port fails immediately.
func WithRetryConfig(config *slip.RetryConfig) Option {
	return func(c *openConfig) { c.retry = config }
}

// New opens a serial port and returns a transport over it.
func New(portName string, opts ...Option) (*Transport, error) {
	cfg := &openConfig{
		baudRate: defaultBaudRate,
		retry:    slip.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	var port serial.Port
	err := slip.RetryWithConfig(context.Background(), cfg.retry, func() error {
		var openErr error
		port, openErr = serial.Open(portName, &serial.Mode{
			BaudRate: cfg.baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		})
		if openErr != nil {
			return slip.NewTransportError("open", portName, openErr, classifyOpenError(openErr))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open UART port %s: %w", portName, err)
	}

	if err := port.SetReadTimeout(defaultReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("failed to set UART read timeout: %w", err)
	}

	return &Transport{
		port:     port,
		portName: portName,
		done:     make(chan struct{}),
	}, nil
}

// NewWithPort wraps an already-opened serial port. The caller keeps
// responsibility for the port's mode and timeout settings; portName is
// used only for error context.
func NewWithPort(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
		done:     make(chan struct{}),
	}
}

// classifyOpenError maps serial library open failures onto retry classes
func classifyOpenError(err error) slip.ErrorType {
	var portErr *serial.PortError
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortBusy:
			return slip.ErrorTypeTransient
		case serial.PortNotFound:
			return slip.ErrorTypePermanent
		}
	}
	return slip.ErrorTypePermanent
}

// Write queues p in the driver's outgoing buffer.
func (t *Transport) Write(p []byte) (int, error) {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.IsConnected() {
		return 0, slip.NewTransportClosedError("Write", t.portName)
	}

	n, err := t.port.Write(p)
	if err != nil {
		return n, fmt.Errorf("UART write failed: %w", err)
	}
	if n != len(p) {
		return n, slip.NewTransportWriteError("Write", t.portName)
	}

	slip.TraceTX(t.portName, p)
	return n, nil
}

// Drain blocks until the driver's outgoing buffer has been transmitted.
func (t *Transport) Drain() error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	if !t.IsConnected() {
		return slip.NewTransportClosedError("Drain", t.portName)
	}
	return t.drainWithRetry("Drain")
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := t.port.Drain()
		if err == nil {
			return nil
		}

		if isInterruptedSystemCall(err) {
			if attempt < maxRetries-1 {
				delay := baseDelay * time.Duration(1<<attempt) // 2ms, 4ms, 8ms
				time.Sleep(delay)
				continue
			}
		}

		return fmt.Errorf("UART %s drain failed: %w", operation, err)
	}

	return fmt.Errorf("UART %s drain failed after %d retries", operation, maxRetries)
}

// SetDataHandler registers h to receive incoming chunks and starts the
// read loop on first registration. Passing nil keeps the loop running
// but discards incoming bytes.
func (t *Transport) SetDataHandler(h func(chunk []byte)) {
	t.mu.Lock()
	t.handler = h
	start := !t.running && !t.closed
	if start {
		t.running = true
	}
	t.mu.Unlock()

	if start {
		go t.readLoop()
	}
}

// readLoop pulls chunks off the port until the transport closes. Chunks
// are handed to the registered handler one at a time, so downstream
// reassembly never sees overlapping deliveries.
func (t *Transport) readLoop() {
	buf := make([]byte, readBufferSize)

	for {
		select {
		case <-t.done:
			return
		default:
		}

		n, err := t.port.Read(buf)
		if err != nil {
			if isInterruptedSystemCall(err) {
				continue
			}
			if t.IsConnected() && !slip.IsFatal(err) {
				slip.Debugf("UART %s read error: %v", t.portName, err)
				continue
			}
			slip.Debugf("UART %s read loop stopping: %v", t.portName, err)
			return
		}
		if n == 0 {
			// Read timeout tick on an idle line
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		slip.TraceRX(t.portName, chunk)

		t.mu.Lock()
		h := t.handler
		t.mu.Unlock()
		if h != nil {
			h(chunk)
		}
	}
}

// SetReadTimeout sets the read timeout for the transport
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	if err := t.port.SetReadTimeout(timeout); err != nil {
		return fmt.Errorf("UART set timeout failed: %w", err)
	}
	return nil
}

// Close stops the read loop and closes the port.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	close(t.done)
	t.mu.Unlock()

	// Closing the port unblocks a read loop parked in Read
	if err := t.port.Close(); err != nil {
		return fmt.Errorf("UART close failed: %w", err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil && !t.closed
}

// Type returns the transport type
func (*Transport) Type() slip.TransportType {
	return slip.TransportUART
}
