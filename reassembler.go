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
	"bytes"
	"errors"
)

// Reassembler reconstructs complete messages from arbitrarily chunked
// transport input. It owns a fixed-size buffer of messageMaxLength bytes
// holding the escaped, not-yet-terminated bytes accumulated across chunk
// boundaries; one instance serves exactly one connection.
//
// Thread Safety: Reassembler is NOT thread-safe. Ingest must be called
// sequentially, once per received chunk, from a single goroutine or under
// external synchronization. Transports deliver chunks at most once at a
// time, which satisfies this contract.
type Reassembler struct {
	proto *Protocol
	buf   []byte
	n     int // write cursor: next free offset in buf
	// discarding is set after an overflow; input is dropped until the
	// next terminator resynchronizes the stream.
	discarding bool
}

// NewReassembler creates a reassembler for the given protocol definition.
// A nil proto selects the standard SLIP defaults. The buffer is allocated
// once here and reused for the lifetime of the connection.
func NewReassembler(proto *Protocol) *Reassembler {
	if proto == nil {
		proto = DefaultProtocol()
	}
	return &Reassembler{
		proto: proto,
		buf:   make([]byte, proto.MessageMaxLength()),
	}
}

// Ingest consumes one chunk and returns the decoded messages it completed,
// in the exact order their terminators appeared in the input stream. A
// chunk may complete zero, one, or many messages.
//
// Frame-local failures never stop extraction: a malformed escape sequence
// (*FramingError) discards that one frame, an oversized unterminated frame
// (*FrameTooLargeError) discards buffered bytes and resynchronizes at the
// next terminator. All such failures are joined into the returned error
// alongside whatever messages were still extracted. Empty frames between
// back-to-back terminators are dropped, not emitted as zero-length
// messages.
//
// Ownership of the returned message buffers transfers to the caller; the
// reassembler retains no reference to them.
func (r *Reassembler) Ingest(chunk []byte) ([][]byte, error) {
	var msgs [][]byte
	var errs []error

	for len(chunk) > 0 {
		i := bytes.IndexByte(chunk, r.proto.endByte)

		if r.discarding {
			if i < 0 {
				// Still inside the oversized frame; drop the whole chunk
				return msgs, errors.Join(errs...)
			}
			r.discarding = false
			chunk = chunk[i+1:]
			continue
		}

		if i < 0 {
			// No terminator: accumulate the entire chunk for later calls
			if err := r.push(chunk); err != nil {
				errs = append(errs, err)
			}
			break
		}

		if err := r.push(chunk[:i]); err != nil {
			// Overflow, but the terminator is already in hand: the
			// oversized frame ends here, no discard state needed.
			errs = append(errs, err)
			r.discarding = false
			chunk = chunk[i+1:]
			continue
		}

		if r.n > 0 {
			msg, err := r.proto.Decode(r.buf[0:r.n])
			if err != nil {
				errs = append(errs, err)
			} else {
				msgs = append(msgs, msg)
			}
		}
		r.clear()
		chunk = chunk[i+1:]
	}

	return msgs, errors.Join(errs...)
}

// Pending returns the number of escaped bytes currently buffered for an
// unterminated frame.
func (r *Reassembler) Pending() int {
	return r.n
}

// Reset returns the reassembler to its idle state, dropping any partially
// accumulated frame.
func (r *Reassembler) Reset() {
	r.clear()
	r.discarding = false
}

// push appends escaped bytes to the buffer at the write cursor. On
// overflow the buffer is cleared, discard mode is entered, and a
// *FrameTooLargeError describing the rejected size is returned.
func (r *Reassembler) push(p []byte) error {
	if len(p) == 0 {
		return nil
	}
	if r.n+len(p) > len(r.buf) {
		size := r.n + len(p)
		r.clear()
		r.discarding = true
		return &FrameTooLargeError{Size: size, Limit: len(r.buf)}
	}
	copy(r.buf[r.n:], p)
	r.n += len(p)
	return nil
}

// clear resets the cursor and zeroes the consumed span so no stale frame
// bytes survive in the buffer.
func (r *Reassembler) clear() {
	for i := 0; i < r.n; i++ {
		r.buf[i] = 0
	}
	r.n = 0
}
