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
	"fmt"
	"testing"

	testutil "github.com/sliplink/go-slip/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// frame builds the wire form of payload for test input.
func frame(t *testing.T, payload []byte) []byte {
	t.Helper()
	wire, err := DefaultProtocol().BuildFrame(payload)
	require.NoError(t, err)
	return wire
}

func TestIngestSingleFrame(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	msgs, err := r.Ingest(frame(t, []byte{0x01, 0x02, 0x03}))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, msgs[0])
	assert.Equal(t, 0, r.Pending())
}

func TestIngestPartialThenRemainder(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	msgs, err := r.Ingest([]byte{0x01, 0x02})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 2, r.Pending())

	msgs, err = r.Ingest([]byte{0x03, 0xC0})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x01, 0x02, 0x03}, msgs[0])
	assert.Equal(t, 0, r.Pending())
}

func TestIngestSplitAtEveryOffset(t *testing.T) {
	t.Parallel()

	payload := []byte{0x01, 0xC0, 0x02, 0xDB, 0x03}
	wire := frame(t, payload)

	// The same message must come out no matter where the transport cuts
	// the stream, including in the middle of an escape pair.
	for cut := 1; cut < len(wire); cut++ {
		t.Run(fmt.Sprintf("cut_at_%d", cut), func(t *testing.T) {
			t.Parallel()
			r := NewReassembler(nil)

			var got [][]byte
			for _, fragment := range testutil.SplitAt(wire, cut) {
				msgs, err := r.Ingest(fragment)
				require.NoError(t, err)
				got = append(got, msgs...)
			}

			require.Len(t, got, 1)
			assert.Equal(t, payload, got[0])
		})
	}
}

func TestIngestByteAtATime(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	wire := frame(t, []byte{0xC0, 0xDB, 0x42})

	var got [][]byte
	for _, b := range wire {
		msgs, err := r.Ingest([]byte{b})
		require.NoError(t, err)
		got = append(got, msgs...)
	}

	require.Len(t, got, 1)
	assert.Equal(t, []byte{0xC0, 0xDB, 0x42}, got[0])
}

func TestIngestMultipleFramesPerChunk(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	var chunk []byte
	chunk = append(chunk, frame(t, []byte{0x01})...)
	chunk = append(chunk, frame(t, []byte{0x02, 0x03})...)
	chunk = append(chunk, frame(t, []byte{0xC0})...)

	msgs, err := r.Ingest(chunk)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, []byte{0x01}, msgs[0])
	assert.Equal(t, []byte{0x02, 0x03}, msgs[1])
	assert.Equal(t, []byte{0xC0}, msgs[2])
}

func TestIngestEmptyFramesDropped(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	// Keep-alive terminators and back-to-back frame boundaries produce
	// zero-length frames that must not surface as messages.
	msgs, err := r.Ingest([]byte{0xC0, 0xC0, 0x01, 0xC0, 0xC0})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x01}, msgs[0])
}

func TestIngestEmptyChunk(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	msgs, err := r.Ingest(nil)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	msgs, err = r.Ingest([]byte{})
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestIngestFramingErrorDoesNotStopStream(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	var chunk []byte
	chunk = append(chunk, 0xDB, 0x42, 0xC0) // bad escape pair
	chunk = append(chunk, frame(t, []byte{0x99})...)

	msgs, err := r.Ingest(chunk)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMalformedEscape)

	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x99}, msgs[0])
	assert.Equal(t, 0, r.Pending())
}

func TestIngestOverflowResynchronizes(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(8))
	require.NoError(t, err)
	r := NewReassembler(proto)

	// 20 escaped bytes with no terminator overflow the 8-byte buffer.
	msgs, err := r.Ingest(bytes.Repeat([]byte{0x55}, 20))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Empty(t, msgs)

	var tooLarge *FrameTooLargeError
	require.True(t, errors.As(err, &tooLarge))
	assert.Equal(t, 20, tooLarge.Size)
	assert.Equal(t, 8, tooLarge.Limit)

	// Still inside the oversized frame: bytes are dropped silently.
	msgs, err = r.Ingest(bytes.Repeat([]byte{0x55}, 20))
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// The next terminator ends the oversized frame; the frame after it
	// decodes normally.
	var chunk []byte
	chunk = append(chunk, 0x55, 0xC0)
	chunk = append(chunk, frame(t, []byte{0x0A, 0x0B})...)
	msgs, err = r.Ingest(chunk)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x0A, 0x0B}, msgs[0])
}

func TestIngestOverflowAcrossChunks(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(8))
	require.NoError(t, err)
	r := NewReassembler(proto)

	msgs, err := r.Ingest(bytes.Repeat([]byte{0x11}, 6))
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, 6, r.Pending())

	// 6 buffered + 6 more crosses the limit on the second chunk.
	msgs, err = r.Ingest(bytes.Repeat([]byte{0x11}, 6))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	assert.Empty(t, msgs)
	assert.Equal(t, 0, r.Pending())
}

func TestIngestOverflowTerminatedInSameChunk(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(4))
	require.NoError(t, err)
	r := NewReassembler(proto)

	// Oversized frame and its terminator arrive together with a good
	// frame behind them.
	var chunk []byte
	chunk = append(chunk, bytes.Repeat([]byte{0x22}, 10)...)
	chunk = append(chunk, 0xC0)
	chunk = append(chunk, frame(t, []byte{0x7F})...)

	msgs, err := r.Ingest(chunk)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFrameTooLarge)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x7F}, msgs[0])
}

func TestIngestMixedResultsJoinErrors(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	var chunk []byte
	chunk = append(chunk, frame(t, []byte{0x01})...)
	chunk = append(chunk, 0xDB, 0xFF, 0xC0) // malformed frame
	chunk = append(chunk, frame(t, []byte{0x02})...)

	msgs, err := r.Ingest(chunk)
	require.Error(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte{0x01}, msgs[0])
	assert.Equal(t, []byte{0x02}, msgs[1])
}

func TestIngestOrderingAcrossRandomFragmentation(t *testing.T) {
	t.Parallel()

	payloads := [][]byte{
		{0x01},
		{0xC0, 0xDB},
		{0x02, 0x03, 0x04},
		{},
		{0xDB, 0xDB, 0xDB},
		{0xFF},
	}

	var wire []byte
	var want [][]byte
	for _, p := range payloads {
		wire = append(wire, frame(t, p)...)
		if len(p) > 0 { // empty frames are dropped
			want = append(want, p)
		}
	}

	for seed := uint64(0); seed < 16; seed++ {
		r := NewReassembler(nil)
		var got [][]byte
		for _, fragment := range testutil.RandomSplit(wire, seed, 5) {
			msgs, err := r.Ingest(fragment)
			require.NoError(t, err)
			got = append(got, msgs...)
		}
		assert.Equal(t, want, got, "seed %d", seed)
	}
}

func TestIngestReturnedBuffersAreIndependent(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	msgs, err := r.Ingest(frame(t, []byte{0xAA, 0xBB}))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	first := msgs[0]

	// A later frame reusing the internal buffer must not corrupt the
	// message already handed out.
	_, err = r.Ingest(frame(t, []byte{0xCC, 0xDD}))
	require.NoError(t, err)
	assert.Equal(t, []byte{0xAA, 0xBB}, first)
}

func TestReset(t *testing.T) {
	t.Parallel()
	r := NewReassembler(nil)

	_, err := r.Ingest([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.Equal(t, 3, r.Pending())

	r.Reset()
	assert.Equal(t, 0, r.Pending())

	// Bytes from before the reset must not leak into the next frame.
	msgs, err := r.Ingest(frame(t, []byte{0x09}))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x09}, msgs[0])
}

func TestResetClearsDiscardState(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(4))
	require.NoError(t, err)
	r := NewReassembler(proto)

	_, err = r.Ingest(bytes.Repeat([]byte{0x33}, 10))
	require.Error(t, err)

	r.Reset()

	// After a reset the reassembler accepts frames immediately instead
	// of waiting for a resynchronizing terminator.
	msgs, err := r.Ingest(frame(t, []byte{0x44}))
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x44}, msgs[0])
}

func TestIngestCustomTerminator(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithEndByte(0x00), WithEscByte(0x01),
		WithEscEndByte(0x02), WithEscEscByte(0x03))
	require.NoError(t, err)
	r := NewReassembler(proto)

	wire, err := proto.BuildFrame([]byte{0x00, 0xC0})
	require.NoError(t, err)

	msgs, err := r.Ingest(wire)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x00, 0xC0}, msgs[0])
}
