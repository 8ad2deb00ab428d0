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

// Package topic implements the hierarchical topic model of the protocol:
// slash-separated topic names, subscription filters with single-level (+) and
// multi-level (#) wildcards, and the filter-to-name matching algorithm.
//
// A topic whose first level starts with '$' belongs to the server-reserved
// namespace. Reserved names only ever match reserved filters and vice versa,
// so "#" does not capture "$sys/..." traffic.
package topic

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	separator      = '/'
	reservedMarker = '$'
)

var (
	// ErrEmptyTopic is returned when a topic name or filter decodes to zero
	// bytes.
	ErrEmptyTopic = errors.New("topic: empty topic")
	// ErrWildcardInName is returned when a wildcard appears in a topic name.
	ErrWildcardInName = errors.New("topic: wildcard not allowed in topic name")
	// ErrWildcardNotAlone is returned when '+' or '#' appears inside a longer
	// level.
	ErrWildcardNotAlone = errors.New("topic: wildcard must be the whole level")
	// ErrMultiWildcardNotLast is returned when '#' is followed by further
	// levels.
	ErrMultiWildcardNotLast = errors.New("topic: multi-level wildcard must be the last level")
)

// readPrefixed reads a big-endian uint16 length followed by that many bytes.
// Topic names and filters travel on the wire in this form.
func readPrefixed(r io.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("topic: read length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("topic: read content: %w", err)
	}
	return buf, nil
}

func encodePrefixed(content []byte) []byte {
	out := make([]byte, 2+len(content))
	binary.BigEndian.PutUint16(out, uint16(len(content)))
	copy(out[2:], content)
	return out
}

func splitLevels(raw []byte) [][]byte {
	var levels [][]byte
	start := 0
	for i, b := range raw {
		if b == separator {
			levels = append(levels, raw[start:i])
			start = i + 1
		}
	}
	return append(levels, raw[start:])
}

func joinLevels(levels [][]byte) []byte {
	var out []byte
	for i, level := range levels {
		if i > 0 {
			out = append(out, separator)
		}
		out = append(out, level...)
	}
	return out
}
