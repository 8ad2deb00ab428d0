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

import "bytes"

const (
	multiWildcardByte  = '#'
	singleWildcardByte = '+'
)

// LevelKind discriminates the three kinds of filter level.
type LevelKind int

const (
	// Literal matches one name level byte-for-byte.
	Literal LevelKind = iota
	// SingleWildcard matches exactly one name level of any content.
	SingleWildcard
	// MultiWildcard matches all remaining name levels, including none.
	MultiWildcard
)

// Level is one slash-delimited segment of a topic filter.
type Level struct {
	Kind  LevelKind
	Bytes []byte
}

// ParseLevel validates one raw level. A wildcard byte is only legal as the
// entire level.
func ParseLevel(raw []byte) (Level, error) {
	if len(raw) == 1 {
		switch raw[0] {
		case multiWildcardByte:
			return Level{Kind: MultiWildcard}, nil
		case singleWildcardByte:
			return Level{Kind: SingleWildcard}, nil
		}
		return Level{Kind: Literal, Bytes: raw}, nil
	}
	if bytes.IndexByte(raw, multiWildcardByte) >= 0 || bytes.IndexByte(raw, singleWildcardByte) >= 0 {
		return Level{}, ErrWildcardNotAlone
	}
	return Level{Kind: Literal, Bytes: raw}, nil
}

func (l Level) String() string {
	switch l.Kind {
	case MultiWildcard:
		return string(multiWildcardByte)
	case SingleWildcard:
		return string(singleWildcardByte)
	default:
		return string(l.Bytes)
	}
}
