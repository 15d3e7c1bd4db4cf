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

package testing

import (
	"bytes"
	"testing"
)

func join(fragments [][]byte) []byte {
	var out []byte
	for _, f := range fragments {
		out = append(out, f...)
	}
	return out
}

func TestSplitAt(t *testing.T) {
	t.Parallel()

	data := []byte{0, 1, 2, 3, 4, 5}

	fragments := SplitAt(data, 2, 4)
	if len(fragments) != 3 {
		t.Fatalf("got %d fragments, want 3", len(fragments))
	}
	if !bytes.Equal(fragments[0], []byte{0, 1}) ||
		!bytes.Equal(fragments[1], []byte{2, 3}) ||
		!bytes.Equal(fragments[2], []byte{4, 5}) {
		t.Errorf("unexpected fragments: %v", fragments)
	}
}

func TestSplitAtIgnoresOutOfRangeOffsets(t *testing.T) {
	t.Parallel()

	data := []byte{0, 1, 2}
	fragments := SplitAt(data, 0, 5, 2)
	if !bytes.Equal(join(fragments), data) {
		t.Errorf("fragments do not reassemble to input: %v", fragments)
	}
}

func TestRandomSplitReassembles(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte{0xAB, 0xCD}, 50)
	for seed := uint64(0); seed < 8; seed++ {
		fragments := RandomSplit(data, seed, 7)
		if !bytes.Equal(join(fragments), data) {
			t.Fatalf("seed %d: fragments do not reassemble to input", seed)
		}
		for _, f := range fragments {
			if len(f) == 0 || len(f) > 7 {
				t.Fatalf("seed %d: fragment size %d out of range", seed, len(f))
			}
		}
	}
}

func TestRandomSplitDeterministic(t *testing.T) {
	t.Parallel()

	data := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	a := RandomSplit(data, 42, 3)
	b := RandomSplit(data, 42, 3)
	if len(a) != len(b) {
		t.Fatalf("same seed produced different fragment counts: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			t.Fatalf("same seed produced different fragment %d", i)
		}
	}
}
