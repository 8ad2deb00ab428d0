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

package topic

import (
	"bytes"
	"io"
	"strings"
)

// Filter is a subscription pattern over topic names. It may contain
// wildcards; a multi-level wildcard is only legal as the final level.
type Filter struct {
	levels   []Level
	reserved bool
}

func newFilter(raw []byte) (Filter, error) {
	if len(raw) == 0 {
		return Filter{}, ErrEmptyTopic
	}
	reserved := raw[0] == reservedMarker
	rawLevels := splitLevels(raw)
	var levels []Level
	for i, levelBytes := range rawLevels {
		level, err := ParseLevel(levelBytes)
		if err != nil {
			return Filter{}, err
		}
		if level.Kind == MultiWildcard && i != len(rawLevels)-1 {
			return Filter{}, ErrMultiWildcardNotLast
		}
		levels = append(levels, level)
	}
	return Filter{levels: levels, reserved: reserved}, nil
}

// ParseFilter builds a Filter from its slash-separated string form.
func ParseFilter(s string) (Filter, error) {
	return newFilter([]byte(s))
}

// DecodeFilter reads a length-prefixed topic filter from the stream.
func DecodeFilter(r io.Reader) (Filter, error) {
	raw, err := readPrefixed(r)
	if err != nil {
		return Filter{}, err
	}
	return newFilter(raw)
}

// Encoded returns the wire form of the filter: a big-endian uint16 length
// followed by the slash-joined levels.
func (f Filter) Encoded() []byte {
	levels := make([][]byte, len(f.levels))
	for i, level := range f.levels {
		levels[i] = []byte(level.String())
	}
	return encodePrefixed(joinLevels(levels))
}

// Matches reports whether the filter matches a topic name. Reserved filters
// only match reserved names. A multi-level wildcard matches all remaining
// name levels, a single-level wildcard matches exactly one, and a literal
// level must be byte-equal. A filter without a multi-level wildcard matches
// only names with the same level count.
func (f Filter) Matches(name Name) bool {
	if f.reserved != name.Reserved() {
		return false
	}
	nameLevels := name.Levels()
	for i, level := range f.levels {
		switch level.Kind {
		case MultiWildcard:
			return true
		case SingleWildcard:
			continue
		default:
			if i >= len(nameLevels) || !bytes.Equal(level.Bytes, nameLevels[i]) {
				return false
			}
		}
	}
	return len(f.levels) == len(nameLevels)
}

// Levels returns the filter's levels in order.
func (f Filter) Levels() []Level {
	return f.levels
}

// Reserved reports whether the filter targets the server-reserved namespace.
func (f Filter) Reserved() bool {
	return f.reserved
}

func (f Filter) String() string {
	parts := make([]string, len(f.levels))
	for i, level := range f.levels {
		parts[i] = level.String()
	}
	return strings.Join(parts, string(separator))
}
