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

import "math/rand/v2"

// SplitAt splits data at the given byte offsets, returning the resulting
// fragments in order. Offsets outside (0, len(data)) are ignored, so
// callers can sweep every split point of a short frame without edge
// checks.
func SplitAt(data []byte, offsets ...int) [][]byte {
	var chunks [][]byte
	prev := 0
	for _, off := range offsets {
		if off <= prev || off >= len(data) {
			continue
		}
		chunks = append(chunks, data[prev:off])
		prev = off
	}
	chunks = append(chunks, data[prev:])
	return chunks
}

// RandomSplit fragments data into chunks of 1..maxFragment bytes using a
// seeded generator, mimicking the unpredictable chunking of USB-UART
// bridges while keeping the test reproducible.
func RandomSplit(data []byte, seed uint64, maxFragment int) [][]byte {
	if maxFragment < 1 {
		maxFragment = 1
	}
	rng := rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)) //nolint:gosec // Test code, not crypto

	var chunks [][]byte
	for len(data) > 0 {
		n := 1 + rng.IntN(maxFragment)
		if n > len(data) {
			n = len(data)
		}
		chunks = append(chunks, data[:n])
		data = data[n:]
	}
	return chunks
}
