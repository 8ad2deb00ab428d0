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

import "io"

// Name is a concrete topic a message is published under. Names carry no
// wildcards.
type Name struct {
	levels   [][]byte
	reserved bool
}

func newName(raw []byte) (Name, error) {
	if len(raw) == 0 {
		return Name{}, ErrEmptyTopic
	}
	reserved := raw[0] == reservedMarker
	var levels [][]byte
	for _, levelBytes := range splitLevels(raw) {
		level, err := ParseLevel(levelBytes)
		if err != nil {
			return Name{}, err
		}
		if level.Kind != Literal {
			return Name{}, ErrWildcardInName
		}
		levels = append(levels, level.Bytes)
	}
	return Name{levels: levels, reserved: reserved}, nil
}

// ParseName builds a Name from its slash-separated string form.
func ParseName(s string) (Name, error) {
	return newName([]byte(s))
}

// DecodeName reads a length-prefixed topic name from the stream.
func DecodeName(r io.Reader) (Name, error) {
	raw, err := readPrefixed(r)
	if err != nil {
		return Name{}, err
	}
	return newName(raw)
}

// Encoded returns the wire form of the name: a big-endian uint16 length
// followed by the slash-joined levels.
func (n Name) Encoded() []byte {
	return encodePrefixed(joinLevels(n.levels))
}

// Levels returns the name's literal levels in order.
func (n Name) Levels() [][]byte {
	return n.levels
}

// Reserved reports whether the name lives in the server-reserved namespace.
func (n Name) Reserved() bool {
	return n.reserved
}

func (n Name) String() string {
	return string(joinLevels(n.levels))
}
