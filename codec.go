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

import "fmt"

// maxEncodePayload guards Encode against pathological allocation. A SLIP
// payload anywhere near this size does not belong on a serial line.
const maxEncodePayload = 1 << 20

// Encode byte-stuffs raw into a transport-safe sequence: literal end bytes
// become escByte+escEndByte, literal escape bytes become escByte+escEscByte,
// everything else passes through unchanged. The result contains no end byte
// and no escape byte outside a two-byte escape pair, and Decode inverts it
// exactly.
func (p *Protocol) Encode(raw []byte) ([]byte, error) {
	if len(raw) > maxEncodePayload {
		return nil, fmt.Errorf("encode %d bytes: %w", len(raw), ErrPayloadTooLarge)
	}

	// Worst case is 2x; reserve a little headroom for the common case
	escaped := make([]byte, 0, len(raw)+len(raw)/8+1)
	for _, b := range raw {
		switch b {
		case p.endByte:
			escaped = append(escaped, p.escByte, p.escEndByte)
		case p.escByte:
			escaped = append(escaped, p.escByte, p.escEscByte)
		default:
			escaped = append(escaped, b)
		}
	}
	return escaped, nil
}

// Decode reverses Encode. An escape byte followed by anything other than
// the two substitute bytes, or dangling at the end of the input, yields a
// *FramingError; the ambiguous byte is never passed through.
func (p *Protocol) Decode(escaped []byte) ([]byte, error) {
	raw := make([]byte, 0, len(escaped))
	for i := 0; i < len(escaped); i++ {
		b := escaped[i]
		if b != p.escByte {
			raw = append(raw, b)
			continue
		}

		if i == len(escaped)-1 {
			return nil, newFramingError(i, 0)
		}
		i++
		switch escaped[i] {
		case p.escEndByte:
			raw = append(raw, p.endByte)
		case p.escEscByte:
			raw = append(raw, p.escByte)
		default:
			return nil, newFramingError(i-1, escaped[i])
		}
	}
	return raw, nil
}

// BuildFrame produces the on-wire form of payload: the escaped bytes
// followed by the frame terminator. The receive-side message length cap
// is deliberately not enforced here.
func (p *Protocol) BuildFrame(payload []byte) ([]byte, error) {
	escaped, err := p.Encode(payload)
	if err != nil {
		return nil, err
	}
	return append(escaped, p.endByte), nil
}
