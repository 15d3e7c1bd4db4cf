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
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/sliplink/go-slip/internal/syncutil"
)

// Wire trace state. A trace records every chunk that crosses the
// transport boundary, timestamped and hex-dumped, which is usually the
// fastest way to diagnose a peer with different escape bytes.
var (
	traceMu     syncutil.Mutex
	traceFile   *os.File
	tracePath   string
	traceWriter io.Writer
)

func init() {
	if path := os.Getenv("SLIP_TRACE"); path != "" {
		_, _ = StartTrace(path)
	}
}

// StartTrace opens a wire trace file at path, or a timestamped file in
// the current directory when path is empty. Returns the path in use.
func StartTrace(path string) (string, error) {
	traceMu.Lock()
	defer traceMu.Unlock()

	if path == "" {
		path = fmt.Sprintf("slip_%s.trace", time.Now().Format("20060102_150405"))
	}

	file, err := os.Create(path) //nolint:gosec // path comes from the operator, tracing is opt-in
	if err != nil {
		return "", fmt.Errorf("failed to create wire trace: %w", err)
	}

	traceFile = file
	tracePath = path
	traceWriter = file

	writeTraceHeader(file)
	return path, nil
}

// CloseTrace closes the current wire trace file.
func CloseTrace() error {
	traceMu.Lock()
	defer traceMu.Unlock()

	if traceFile == nil {
		return nil
	}

	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(traceWriter, "\n%s === Trace ended ===\n", timestamp)

	err := traceFile.Close()
	traceFile = nil
	tracePath = ""
	traceWriter = nil
	if err != nil {
		return fmt.Errorf("failed to close wire trace: %w", err)
	}
	return nil
}

// TracePath returns the current wire trace file path, or "" when no
// trace is active.
func TracePath() string {
	traceMu.Lock()
	defer traceMu.Unlock()
	return tracePath
}

// TraceRX records received bytes in the wire trace.
func TraceRX(port string, data []byte) {
	traceBytes("RX", port, data)
}

// TraceTX records transmitted bytes in the wire trace.
func TraceTX(port string, data []byte) {
	traceBytes("TX", port, data)
}

func traceBytes(dir, port string, data []byte) {
	traceMu.Lock()
	defer traceMu.Unlock()

	if traceWriter == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(traceWriter, "%s %s %s (%d) %s\n",
		timestamp, dir, port, len(data), hex.EncodeToString(data))
}

// traceLine records a free-form line (used by Debugf/Debugln).
func traceLine(tag, message string) {
	traceMu.Lock()
	defer traceMu.Unlock()

	if traceWriter == nil {
		return
	}
	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(traceWriter, "%s %s: %s\n", timestamp, tag, message)
}

// writeTraceHeader writes metadata about the session to the trace file.
func writeTraceHeader(writer io.Writer) {
	_, _ = fmt.Fprint(writer, "=== SLIP Wire Trace ===\n")
	_, _ = fmt.Fprintf(writer, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(writer, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(writer, "Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprint(writer, "=======================\n\n")
}
