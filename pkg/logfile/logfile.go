// Copyright 2025 The nimbus-go Authors
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

// Package logfile provides an asynchronous log writer. Lines handed to
// Write are copied onto a channel and appended to the log file by a single
// worker goroutine, so callers on the broker's hot path never block on disk
// I/O. Each line is mirrored to the console with its level colorized.
//
// Install it as the output of the standard logger:
//
//	w, _ := logfile.New("nimbus.log")
//	log.SetOutput(w)
//	defer w.Close()
package logfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/fatih/color"
)

var (
	infoTag  = []byte("[INFO]")
	warnTag  = []byte("[WARN]")
	errorTag = []byte("[ERROR]")
)

// Writer is an io.Writer that appends lines to a file from a dedicated
// goroutine and mirrors them to stderr.
type Writer struct {
	ch      chan []byte
	file    *os.File
	console io.Writer
	wg      sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// New opens (or creates) the log file at path and starts the writer
// goroutine. An empty path disables the file and keeps the console mirror.
func New(path string) (*Writer, error) {
	w := &Writer{
		ch:      make(chan []byte, 1024),
		console: os.Stderr,
	}

	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
		}
		w.file = f
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

// Write copies p onto the writer channel. It never blocks on disk; if the
// channel is full or the writer is closed the line only reaches the console.
func (w *Writer) Write(p []byte) (int, error) {
	w.writeConsole(p)

	line := make([]byte, len(p))
	copy(line, p)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return len(p), nil
	}
	select {
	case w.ch <- line:
	default:
	}
	return len(p), nil
}

// Close stops the worker after draining pending lines and syncs the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.ch)
	w.mu.Unlock()

	w.wg.Wait()
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return err
		}
		return w.file.Close()
	}
	return nil
}

func (w *Writer) run() {
	defer w.wg.Done()
	for line := range w.ch {
		if w.file != nil {
			_, _ = w.file.Write(line)
		}
	}
}

func (w *Writer) writeConsole(p []byte) {
	switch {
	case bytes.Contains(p, errorTag):
		_, _ = color.New(color.FgRed).Fprint(w.console, string(p))
	case bytes.Contains(p, warnTag):
		_, _ = color.New(color.FgYellow).Fprint(w.console, string(p))
	case bytes.Contains(p, infoTag):
		_, _ = color.New(color.FgBlue).Fprint(w.console, string(p))
	default:
		_, _ = w.console.Write(p)
	}
}
