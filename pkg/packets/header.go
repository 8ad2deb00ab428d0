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

package packets

import (
	"fmt"
	"io"
)

// MaxRemainingLength is the largest value the 4-byte varint can carry.
const MaxRemainingLength = 268435455

// FixedHeader is the unencrypted prefix of every control packet: one byte of
// packet type and flags, then the remaining-length varint. The remaining
// length counts the plaintext body; for encrypted types the wire body is
// encryption.Overhead bytes longer.
type FixedHeader struct {
	FirstByte       byte
	RemainingLength int
}

// ReadFixedHeader consumes the first byte and the remaining-length varint.
func ReadFixedHeader(r io.Reader) (FixedHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return FixedHeader{}, fmt.Errorf("packets: read fixed header: %w", err)
	}
	remaining, err := readRemainingLength(r)
	if err != nil {
		return FixedHeader{}, err
	}
	return FixedHeader{FirstByte: buf[0], RemainingLength: remaining}, nil
}

// PacketType returns the high nibble of the first byte.
func (h FixedHeader) PacketType() byte {
	return h.FirstByte >> 4
}

// Flags returns the low nibble of the first byte.
func (h FixedHeader) Flags() byte {
	return h.FirstByte & 0x0F
}

// readRemainingLength decodes the variable-length encoding: 7 bits of value
// per byte, high bit set on all but the last byte. At most 4 bytes; a fifth
// continuation byte is malformed.
func readRemainingLength(r io.Reader) (int, error) {
	multiplier := 1
	value := 0
	for {
		var buf [1]byte
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, fmt.Errorf("packets: read remaining length: %w", err)
		}
		b := buf[0]
		value += int(b&0x7F) * multiplier
		if b&0x80 == 0 {
			return value, nil
		}
		multiplier *= 128
		if multiplier > 128*128*128 {
			return 0, ErrInvalidRemainingLength
		}
	}
}

func encodeRemainingLength(value int) []byte {
	var out []byte
	for {
		b := byte(value % 128)
		value /= 128
		if value > 0 {
			b |= 0x80
		}
		out = append(out, b)
		if value == 0 {
			return out
		}
	}
}
