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

// Package testing provides test utilities for exercising the framing
// stack without hardware: an in-memory serial.Port and helpers that
// fragment byte streams the way real USB-UART bridges do.
package testing

import (
	"io"
	"sync"
	"time"

	"go.bug.st/serial"
)

// LoopbackPort is an in-memory implementation of serial.Port. Bytes
// pushed with Push (or echoed from Write when Echo is set) come back out
// of Read, optionally fragmented to simulate driver chunking.
type LoopbackPort struct {
	mu      sync.Mutex
	rx      []byte
	tx      []byte
	notify  chan struct{}
	timeout time.Duration
	closed  bool

	// Echo loops every Write back into the read side
	Echo bool
	// FragmentMax caps the bytes returned per Read (0 = no cap)
	FragmentMax int
}

// NewLoopbackPort creates an open loopback port with a 10ms read timeout
func NewLoopbackPort() *LoopbackPort {
	return &LoopbackPort{
		notify:  make(chan struct{}, 1),
		timeout: 10 * time.Millisecond,
	}
}

// Push injects bytes into the read side, simulating the remote peer
func (p *LoopbackPort) Push(data []byte) {
	p.mu.Lock()
	p.rx = append(p.rx, data...)
	p.mu.Unlock()
	p.wake()
}

// Written returns everything passed to Write so far
func (p *LoopbackPort) Written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]byte, len(p.tx))
	copy(out, p.tx)
	return out
}

func (p *LoopbackPort) wake() {
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Read pops pending bytes, honoring the configured read timeout: an
// empty buffer yields (0, nil) after the timeout, like a real port.
func (p *LoopbackPort) Read(buf []byte) (int, error) {
	deadline := time.NewTimer(p.timeout)
	defer deadline.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, io.ErrClosedPipe
		}
		if len(p.rx) > 0 {
			n := len(p.rx)
			if n > len(buf) {
				n = len(buf)
			}
			if p.FragmentMax > 0 && n > p.FragmentMax {
				n = p.FragmentMax
			}
			copy(buf, p.rx[:n])
			p.rx = p.rx[n:]
			stillPending := len(p.rx) > 0
			p.mu.Unlock()
			if stillPending {
				p.wake()
			}
			return n, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-deadline.C:
			return 0, nil
		}
	}
}

// Write records data and, in echo mode, feeds it back to the read side
func (p *LoopbackPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, io.ErrClosedPipe
	}
	p.tx = append(p.tx, data...)
	echo := p.Echo
	if echo {
		p.rx = append(p.rx, data...)
	}
	p.mu.Unlock()
	if echo {
		p.wake()
	}
	return len(data), nil
}

// Drain implements serial.Port; an in-memory buffer is always drained
func (*LoopbackPort) Drain() error { return nil }

// Close implements serial.Port
func (p *LoopbackPort) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wake()
	return nil
}

// SetMode implements serial.Port
func (*LoopbackPort) SetMode(_ *serial.Mode) error { return nil }

// SetReadTimeout implements serial.Port
func (p *LoopbackPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	p.timeout = t
	p.mu.Unlock()
	return nil
}

// ResetInputBuffer implements serial.Port
func (p *LoopbackPort) ResetInputBuffer() error {
	p.mu.Lock()
	p.rx = nil
	p.mu.Unlock()
	return nil
}

// ResetOutputBuffer implements serial.Port
func (p *LoopbackPort) ResetOutputBuffer() error {
	p.mu.Lock()
	p.tx = nil
	p.mu.Unlock()
	return nil
}

// SetDTR implements serial.Port
func (*LoopbackPort) SetDTR(_ bool) error { return nil }

// SetRTS implements serial.Port
func (*LoopbackPort) SetRTS(_ bool) error { return nil }

// GetModemStatusBits implements serial.Port
func (*LoopbackPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

// Break implements serial.Port
func (*LoopbackPort) Break(_ time.Duration) error { return nil }

// Compile-time assertion that LoopbackPort satisfies serial.Port.
var _ serial.Port = (*LoopbackPort)(nil)
