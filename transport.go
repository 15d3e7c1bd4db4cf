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

package slip

import (
	"sync"
	"time"
)

// Transport is the byte-chunk link a Framer is layered over. It can be
// implemented by a serial port, a socket, or an in-memory pipe; the framer
// never assumes anything about its internal representation.
type Transport interface {
	// Write queues p in the transport's outgoing buffer and returns the
	// number of bytes accepted. Returning is no guarantee of physical
	// transmission; pair with Drain for that.
	Write(p []byte) (int, error)

	// Drain blocks until all previously written bytes have left the
	// local outgoing buffer.
	Drain() error

	// SetDataHandler registers h to receive raw incoming chunks. The
	// transport invokes h at most once at a time, in arrival order, and
	// must not retain the chunk after h returns. Register the handler
	// before data starts flowing.
	SetDataHandler(h func(chunk []byte))

	// SetReadTimeout sets the read timeout for the transport
	SetReadTimeout(timeout time.Duration) error

	// Close closes the transport connection
	Close() error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// MockTransport provides a mock implementation of Transport for testing.
// Writes and drains are recorded; incoming chunks are pushed with
// FeedChunk. All methods are safe for concurrent use.
type MockTransport struct {
	writeErr  error
	drainErr  error
	handler   func(chunk []byte)
	writes    [][]byte
	timeout   time.Duration
	drains    int
	mu        sync.Mutex
	connected bool
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		timeout:   time.Second,
	}
}

// Write implements Transport interface
func (m *MockTransport) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return 0, NewTransportClosedError("Write", "mock")
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}

	buf := make([]byte, len(p))
	copy(buf, p)
	m.writes = append(m.writes, buf)
	return len(p), nil
}

// Drain implements Transport interface
func (m *MockTransport) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.connected {
		return NewTransportClosedError("Drain", "mock")
	}
	if m.drainErr != nil {
		return m.drainErr
	}
	m.drains++
	return nil
}

// SetDataHandler implements Transport interface
func (m *MockTransport) SetDataHandler(h func(chunk []byte)) {
	m.mu.Lock()
	m.handler = h
	m.mu.Unlock()
}

// SetReadTimeout implements Transport interface
func (m *MockTransport) SetReadTimeout(timeout time.Duration) error {
	m.mu.Lock()
	m.timeout = timeout
	m.mu.Unlock()
	return nil
}

// Close implements Transport interface
func (m *MockTransport) Close() error {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

// IsConnected implements Transport interface
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Type implements Transport interface
func (*MockTransport) Type() TransportType {
	return TransportMock
}

// Test helper methods

// FeedChunk delivers one incoming chunk to the registered data handler,
// honoring the at-most-once-at-a-time contract.
func (m *MockTransport) FeedChunk(chunk []byte) {
	m.mu.Lock()
	h := m.handler
	m.mu.Unlock()

	if h != nil {
		h(chunk)
	}
}

// SetWriteError configures an error to be returned by Write
func (m *MockTransport) SetWriteError(err error) {
	m.mu.Lock()
	m.writeErr = err
	m.mu.Unlock()
}

// SetDrainError configures an error to be returned by Drain
func (m *MockTransport) SetDrainError(err error) {
	m.mu.Lock()
	m.drainErr = err
	m.mu.Unlock()
}

// Writes returns a copy of every byte sequence passed to Write, in order
func (m *MockTransport) Writes() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([][]byte, len(m.writes))
	for i, w := range m.writes {
		buf := make([]byte, len(w))
		copy(buf, w)
		out[i] = buf
	}
	return out
}

// Written returns all written bytes flattened into one sequence
func (m *MockTransport) Written() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []byte
	for _, w := range m.writes {
		out = append(out, w...)
	}
	return out
}

// DrainCount returns how many times Drain completed successfully
func (m *MockTransport) DrainCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.drains
}

// Reset clears recorded writes and reconnects the mock
func (m *MockTransport) Reset() {
	m.mu.Lock()
	m.writes = nil
	m.drains = 0
	m.connected = true
	m.mu.Unlock()
}
