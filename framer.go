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

// Package slip implements SLIP-style (RFC 1055) message framing over
// unreliable, chunked byte transports such as serial links. Outgoing
// messages are escaped and terminated for the wire; incoming chunks are
// reassembled into complete, decoded messages regardless of how the
// transport fragments them.
//
// The Framer composes a Transport (see transport/uart for a serial
// implementation) with the escape codec and the frame reassembler. The
// codec and reassembler are also usable on their own when no transport
// plumbing is wanted.
package slip

import (
	"context"
	"fmt"

	"github.com/sliplink/go-slip/internal/syncutil"
)

// MessageHandler receives one fully decoded message per call, in frame
// order. The handler owns the buffer.
type MessageHandler func(msg []byte)

// ErrorHandler receives frame-local reassembly failures. The stream
// continues after every reported error.
type ErrorHandler func(err error)

// FramerConfig contains configuration options for the Framer
type FramerConfig struct {
	// Protocol is the resolved framing definition
	Protocol *Protocol
	// RetryConfig configures retry behavior for transport helpers;
	// the framer core itself never retries
	RetryConfig *RetryConfig
}

// DefaultFramerConfig returns default framer configuration
func DefaultFramerConfig() *FramerConfig {
	return &FramerConfig{
		Protocol:    DefaultProtocol(),
		RetryConfig: DefaultRetryConfig(),
	}
}

// Framer frames outgoing messages onto a Transport and reassembles
// incoming chunks into messages. One Framer serves one connection.
//
// Thread Safety: the send methods are serialized internally and may be
// called from multiple goroutines. Message and error handlers are invoked
// sequentially from the transport's delivery context and must not block
// for long.
type Framer struct {
	transport Transport
	config    *FramerConfig
	reasm     *Reassembler
	onMessage MessageHandler
	onError   ErrorHandler
	writeMu   syncutil.Mutex
	started   bool
}

// Option is a functional option for configuring a Framer
type Option func(*Framer) error

// WithProtocol sets a custom protocol definition
func WithProtocol(p *Protocol) Option {
	return func(f *Framer) error {
		if p == nil {
			return newConfigError("protocol", 0, ErrInvalidMaxLen)
		}
		f.config.Protocol = p
		return nil
	}
}

// WithRetryConfig sets the retry configuration used by transport helpers
func WithRetryConfig(config *RetryConfig) Option {
	return func(f *Framer) error {
		f.config.RetryConfig = config
		return nil
	}
}

// New creates a Framer over the given transport
func New(transport Transport, opts ...Option) (*Framer, error) {
	framer := &Framer{
		transport: transport,
		config:    DefaultFramerConfig(),
	}

	for _, opt := range opts {
		if err := opt(framer); err != nil {
			return nil, err
		}
	}

	framer.reasm = NewReassembler(framer.config.Protocol)
	return framer, nil
}

// Protocol returns the resolved protocol definition in use
func (f *Framer) Protocol() *Protocol {
	return f.config.Protocol
}

// OnMessage registers the message handler. Must be called before Start.
func (f *Framer) OnMessage(h MessageHandler) {
	f.onMessage = h
}

// OnError registers the error handler. Must be called before Start.
func (f *Framer) OnError(h ErrorHandler) {
	f.onError = h
}

// Start subscribes to the transport's data notifications and begins
// routing chunks through the reassembler.
func (f *Framer) Start() error {
	if f.started {
		return nil
	}
	if !f.transport.IsConnected() {
		return NewTransportNotReadyError("Start", string(f.transport.Type()))
	}
	f.transport.SetDataHandler(f.handleChunk)
	f.started = true
	return nil
}

// handleChunk is the transport data callback. The transport contract
// guarantees sequential invocation, which satisfies the reassembler's
// single-caller requirement.
func (f *Framer) handleChunk(chunk []byte) {
	msgs, err := f.reasm.Ingest(chunk)
	for _, msg := range msgs {
		if f.onMessage != nil {
			f.onMessage(msg)
		}
	}
	if err != nil {
		Debugf("reassembly: %v", err)
		if f.onError != nil {
			f.onError(err)
		}
	}
}

// SendMessage frames payload and hands it to the transport's outgoing
// buffer. Fire and forget: returning does not guarantee the bytes reached
// the wire.
func (f *Framer) SendMessage(payload []byte) error {
	frame, err := f.config.Protocol.BuildFrame(payload)
	if err != nil {
		return err
	}
	return f.writeFrame(frame)
}

// SendMessageWithContext is SendMessage with an early-cancellation check.
// Cancellation is best effort: once the write has been handed to the
// transport it cannot be recalled.
func (f *Framer) SendMessageWithContext(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("send cancelled: %w", ctx.Err())
	default:
	}
	return f.SendMessage(payload)
}

// SendMessageAndDrain frames payload, writes it, and returns only after
// the transport confirms its outgoing buffer fully drained to the
// physical medium. Use this when on-wire delivery must be guaranteed
// before proceeding, e.g. before closing the connection.
func (f *Framer) SendMessageAndDrain(payload []byte) error {
	frame, err := f.config.Protocol.BuildFrame(payload)
	if err != nil {
		return err
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if err := f.write(frame); err != nil {
		return err
	}
	if err := f.transport.Drain(); err != nil {
		return fmt.Errorf("drain after send failed: %w", err)
	}
	return nil
}

// SendMessageAndDrainWithContext is SendMessageAndDrain with an
// early-cancellation check.
func (f *Framer) SendMessageAndDrainWithContext(ctx context.Context, payload []byte) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("send cancelled: %w", ctx.Err())
	default:
	}
	return f.SendMessageAndDrain(payload)
}

// Close closes the underlying transport
func (f *Framer) Close() error {
	if err := f.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

// writeFrame serializes concurrent senders so frames never interleave on
// the wire.
func (f *Framer) writeFrame(frame []byte) error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	return f.write(frame)
}

func (f *Framer) write(frame []byte) error {
	n, err := f.transport.Write(frame)
	if err != nil {
		return fmt.Errorf("frame write failed: %w", err)
	}
	if n != len(frame) {
		return NewTransportWriteError("SendMessage", string(f.transport.Type()))
	}
	return nil
}
