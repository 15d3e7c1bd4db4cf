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
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Helper to set up a started framer over a mock transport
func setupFramer(t *testing.T, opts ...Option) (*Framer, *MockTransport) {
	t.Helper()
	mock := NewMockTransport()
	framer, err := New(mock, opts...)
	require.NoError(t, err)
	return framer, mock
}

func TestNewFramerDefaults(t *testing.T) {
	t.Parallel()

	framer, _ := setupFramer(t)
	assert.Equal(t, byte(0xC0), framer.Protocol().EndByte())
	assert.Equal(t, DefaultMessageMaxLength, framer.Protocol().MessageMaxLength())
}

func TestNewFramerWithProtocol(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(256))
	require.NoError(t, err)

	framer, _ := setupFramer(t, WithProtocol(proto))
	assert.Equal(t, 256, framer.Protocol().MessageMaxLength())
}

func TestNewFramerNilProtocolRejected(t *testing.T) {
	t.Parallel()

	mock := NewMockTransport()
	framer, err := New(mock, WithProtocol(nil))
	require.Error(t, err)
	assert.Nil(t, framer)

	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestSendMessageWritesWireFrame(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	require.NoError(t, framer.SendMessage([]byte{0x01, 0xC0, 0x02}))

	writes := mock.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, []byte{0x01, 0xDB, 0xDC, 0x02, 0xC0}, writes[0])
	assert.Equal(t, 0, mock.DrainCount())
}

func TestSendMessageSingleWritePerFrame(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	require.NoError(t, framer.SendMessage([]byte{0x01}))
	require.NoError(t, framer.SendMessage([]byte{0x02}))

	// One Write call per frame keeps frames contiguous on the wire
	writes := mock.Writes()
	require.Len(t, writes, 2)
	assert.Equal(t, []byte{0x01, 0xC0}, writes[0])
	assert.Equal(t, []byte{0x02, 0xC0}, writes[1])
}

func TestSendMessageEmptyPayload(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	require.NoError(t, framer.SendMessage(nil))
	assert.Equal(t, []byte{0xC0}, mock.Written())
}

func TestSendMessageWriteError(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	mock.SetWriteError(NewTransportWriteError("Write", "mock"))

	err := framer.SendMessage([]byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportWrite)
}

func TestSendMessageAfterClose(t *testing.T) {
	t.Parallel()

	framer, _ := setupFramer(t)
	require.NoError(t, framer.Close())

	err := framer.SendMessage([]byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportClosed)
}

func TestSendMessageAndDrain(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	require.NoError(t, framer.SendMessageAndDrain([]byte{0xAA}))

	assert.Equal(t, []byte{0xAA, 0xC0}, mock.Written())
	assert.Equal(t, 1, mock.DrainCount())
}

func TestSendMessageAndDrainReportsDrainFailure(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	mock.SetDrainError(NewTimeoutError("Drain", "mock"))

	err := framer.SendMessageAndDrain([]byte{0xAA})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportTimeout)

	// The write itself went through; only the flush confirmation failed
	assert.Equal(t, []byte{0xAA, 0xC0}, mock.Written())
}

func TestSendMessageWithContextCancelled(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := framer.SendMessageWithContext(ctx, []byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Writes())

	err = framer.SendMessageAndDrainWithContext(ctx, []byte{0x01})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, mock.Writes())
}

func TestStartRequiresConnectedTransport(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)
	require.NoError(t, mock.Close())

	err := framer.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransportNotReady)
}

func TestFramerDeliversMessages(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)

	var got [][]byte
	framer.OnMessage(func(msg []byte) {
		got = append(got, msg)
	})
	require.NoError(t, framer.Start())

	mock.FeedChunk([]byte{0x01, 0x02, 0xC0, 0x03})
	mock.FeedChunk([]byte{0xC0})

	require.Len(t, got, 2)
	assert.Equal(t, []byte{0x01, 0x02}, got[0])
	assert.Equal(t, []byte{0x03}, got[1])
}

func TestFramerDeliversAcrossSplitEscape(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)

	var got [][]byte
	framer.OnMessage(func(msg []byte) {
		got = append(got, msg)
	})
	require.NoError(t, framer.Start())

	// Escape pair for 0xC0 split across two chunks
	mock.FeedChunk([]byte{0x01, 0xDB})
	mock.FeedChunk([]byte{0xDC, 0x02, 0xC0})

	require.Len(t, got, 1)
	assert.Equal(t, []byte{0x01, 0xC0, 0x02}, got[0])
}

func TestFramerReportsFrameErrors(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)

	var msgs [][]byte
	var errs []error
	framer.OnMessage(func(msg []byte) { msgs = append(msgs, msg) })
	framer.OnError(func(err error) { errs = append(errs, err) })
	require.NoError(t, framer.Start())

	// Malformed frame followed by a good one in the same chunk
	mock.FeedChunk([]byte{0xDB, 0x42, 0xC0, 0x09, 0xC0})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrMalformedEscape)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte{0x09}, msgs[0])
}

func TestFramerReportsOversizedFrames(t *testing.T) {
	t.Parallel()

	proto, err := NewProtocol(WithMessageMaxLength(4))
	require.NoError(t, err)
	framer, mock := setupFramer(t, WithProtocol(proto))

	var errs []error
	framer.OnError(func(err error) { errs = append(errs, err) })
	require.NoError(t, framer.Start())

	mock.FeedChunk([]byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06})

	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrFrameTooLarge)
}

func TestFramerLoopback(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)

	var got [][]byte
	framer.OnMessage(func(msg []byte) { got = append(got, msg) })
	require.NoError(t, framer.Start())

	payload := []byte{0x10, 0xC0, 0xDB, 0x20}
	require.NoError(t, framer.SendMessage(payload))

	// Feed the framer its own output back in two arbitrary pieces
	wire := mock.Written()
	mock.FeedChunk(wire[:3])
	mock.FeedChunk(wire[3:])

	require.Len(t, got, 1)
	assert.Equal(t, payload, got[0])
}

func TestFramerConcurrentSends(t *testing.T) {
	t.Parallel()

	framer, mock := setupFramer(t)

	const senders = 8
	var wg sync.WaitGroup
	for i := range senders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = framer.SendMessage([]byte{byte(i), 0xC0, byte(i)})
		}()
	}
	wg.Wait()

	// Frames never interleave: every recorded write is one whole frame
	writes := mock.Writes()
	require.Len(t, writes, senders)
	for _, w := range writes {
		assert.Len(t, w, 5) // id, escaped 0xC0, id, terminator
		assert.Equal(t, byte(0xC0), w[len(w)-1])
	}
}
