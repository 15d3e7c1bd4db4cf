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

package detection

import (
	"time"

	"github.com/sliplink/go-slip/internal/syncutil"
)

// detectionCache provides thread-safe caching of enumeration results.
// Enumerating USB descriptors is slow enough on some platforms that
// repeat callers benefit from a short TTL.
type detectionCache struct {
	devices   []DeviceInfo
	timestamp time.Time
	valid     bool
	mu        syncutil.RWMutex
}

// global cache instance.
var cache = &detectionCache{}

// getCached returns cached devices if available and not expired
func getCached(ttl time.Duration) ([]DeviceInfo, bool) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	if !cache.valid {
		return nil, false
	}
	if time.Since(cache.timestamp) > ttl {
		return nil, false
	}

	// Return a copy to prevent modification
	devices := make([]DeviceInfo, len(cache.devices))
	copy(devices, cache.devices)
	return devices, true
}

// setCached stores enumeration results in the cache
func setCached(devices []DeviceInfo) {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	// Store a copy to prevent external modification
	devicesCopy := make([]DeviceInfo, len(devices))
	copy(devicesCopy, devices)

	cache.devices = devicesCopy
	cache.timestamp = time.Now()
	cache.valid = true
}

// clearCache invalidates the cached results
func clearCache() {
	cache.mu.Lock()
	defer cache.mu.Unlock()

	cache.devices = nil
	cache.valid = false
}
