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

// Standard SLIP byte values (RFC 1055)
const (
	// DefaultEndByte marks the end of a frame on the wire.
	DefaultEndByte byte = 0xC0
	// DefaultEscByte introduces a two-byte escape sequence.
	DefaultEscByte byte = 0xDB
	// DefaultEscEndByte follows the escape byte to represent a literal end byte.
	DefaultEscEndByte byte = 0xDC
	// DefaultEscEscByte follows the escape byte to represent a literal escape byte.
	DefaultEscEscByte byte = 0xDD
)

// DefaultMessageMaxLength bounds the escaped bytes buffered for a single
// unterminated frame. SLIP's traditional MTU is 1006 bytes; 1024 rounds
// that up to a power of two.
const DefaultMessageMaxLength = 1024

// Protocol is the immutable framing definition shared read-only by the
// escape codec and the frame reassembler. It is resolved once via
// NewProtocol and never modified for the lifetime of a connection.
type Protocol struct {
	endByte          byte
	escByte          byte
	escEndByte       byte
	escEscByte       byte
	messageMaxLength int
}

// ProtocolOption overrides a single field of the default SLIP definition
type ProtocolOption func(*Protocol)

// WithEndByte overrides the frame terminator byte
func WithEndByte(b byte) ProtocolOption {
	return func(p *Protocol) { p.endByte = b }
}

// WithEscByte overrides the escape introducer byte
func WithEscByte(b byte) ProtocolOption {
	return func(p *Protocol) { p.escByte = b }
}

// WithEscEndByte overrides the escaped substitute for the end byte
func WithEscEndByte(b byte) ProtocolOption {
	return func(p *Protocol) { p.escEndByte = b }
}

// WithEscEscByte overrides the escaped substitute for the escape byte
func WithEscEscByte(b byte) ProtocolOption {
	return func(p *Protocol) { p.escEscByte = b }
}

// WithMessageMaxLength overrides the per-frame reassembly buffer size
func WithMessageMaxLength(n int) ProtocolOption {
	return func(p *Protocol) { p.messageMaxLength = n }
}

// NewProtocol resolves a complete protocol definition from the standard
// SLIP defaults plus any overrides. Resolution is idempotent: the same
// options always produce an identical definition. A *ConfigError is
// returned if the max length is not positive or two of the four special
// bytes coincide.
func NewProtocol(opts ...ProtocolOption) (*Protocol, error) {
	p := &Protocol{
		endByte:          DefaultEndByte,
		escByte:          DefaultEscByte,
		escEndByte:       DefaultEscEndByte,
		escEscByte:       DefaultEscEscByte,
		messageMaxLength: DefaultMessageMaxLength,
	}

	for _, opt := range opts {
		opt(p)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// DefaultProtocol returns the resolved standard SLIP definition.
// The defaults always validate, so no error is possible.
func DefaultProtocol() *Protocol {
	p, err := NewProtocol()
	if err != nil {
		// Unreachable: the documented defaults are pairwise distinct.
		panic(err)
	}
	return p
}

// validate enforces the protocol invariants: positive max length and
// pairwise distinct special bytes.
func (p *Protocol) validate() error {
	if p.messageMaxLength <= 0 {
		return newConfigError("messageMaxLength", p.messageMaxLength, ErrInvalidMaxLen)
	}

	fields := []struct {
		name  string
		value byte
	}{
		{"endByte", p.endByte},
		{"escByte", p.escByte},
		{"escEndByte", p.escEndByte},
		{"escEscByte", p.escEscByte},
	}
	for i := range fields {
		for j := i + 1; j < len(fields); j++ {
			if fields[i].value == fields[j].value {
				return newConfigError(fields[j].name, int(fields[j].value), ErrByteConflict)
			}
		}
	}

	return nil
}

// EndByte returns the frame terminator byte
func (p *Protocol) EndByte() byte { return p.endByte }

// EscByte returns the escape introducer byte
func (p *Protocol) EscByte() byte { return p.escByte }

// EscEndByte returns the escaped substitute for the end byte
func (p *Protocol) EscEndByte() byte { return p.escEndByte }

// EscEscByte returns the escaped substitute for the escape byte
func (p *Protocol) EscEscByte() byte { return p.escEscByte }

// MessageMaxLength returns the per-frame reassembly buffer size in bytes
func (p *Protocol) MessageMaxLength() int { return p.messageMaxLength }
