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

// Package packets implements the binary control-packet codec of the broker
// protocol. The wire format follows the MQTT 3.1.1 framing (fixed header,
// variable-length remaining length, big-endian length-prefixed strings) with
// one twist: the variable header and payload of every content-carrying packet
// travel AEAD-encrypted as a single blob. The remaining length in the fixed
// header always counts the plaintext, so readers of encrypted types consume
// encryption.Overhead extra bytes off the wire.
//
// Pingreq, Pingresp and Disconnect carry zero-length plaintext bodies.
package packets

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nimbusmq/nimbus-go/pkg/encryption"
)

// Control packet types.
const (
	TypeConnect     byte = 0x1
	TypeConnack     byte = 0x2
	TypePublish     byte = 0x3
	TypePuback      byte = 0x4
	TypeSubscribe   byte = 0x8
	TypeSuback      byte = 0x9
	TypeUnsubscribe byte = 0xA
	TypeUnsuback    byte = 0xB
	TypePingreq     byte = 0xC
	TypePingresp    byte = 0xD
	TypeDisconnect  byte = 0xE
)

// reservedFlags is the required fixed-header flag nibble for every type
// except Publish, which packs dup/qos/retain there.
const reservedFlags byte = 0x00

// Packet is one decoded control packet.
type Packet interface {
	// Type returns the 4-bit control packet type.
	Type() byte
	// Encode serializes the packet, sealing the body under key for the
	// content-carrying types.
	Encode(key []byte) ([]byte, error)
}

func isEncryptedType(packetType byte) bool {
	switch packetType {
	case TypeConnect, TypeConnack, TypePublish, TypePuback,
		TypeSubscribe, TypeSuback, TypeUnsubscribe, TypeUnsuback:
		return true
	}
	return false
}

// Read consumes exactly one control packet from the stream, decrypting the
// body with key where the type requires it. Any framing, validation or
// decryption failure is terminal for the stream; the caller must not attempt
// partial recovery.
func Read(r io.Reader, key []byte) (Packet, error) {
	header, err := ReadFixedHeader(r)
	if err != nil {
		return nil, err
	}

	wireLength := header.RemainingLength
	if isEncryptedType(header.PacketType()) {
		wireLength += encryption.Overhead
	}
	body := make([]byte, wireLength)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("packets: read body: %w", err)
	}

	if isEncryptedType(header.PacketType()) {
		body, err = encryption.Decrypt(key, body)
		if err != nil {
			return nil, fmt.Errorf("packets: %w", err)
		}
	}

	br := bytes.NewReader(body)
	var packet Packet
	switch header.PacketType() {
	case TypeConnect:
		packet, err = decodeConnect(header, br)
	case TypeConnack:
		packet, err = decodeConnack(header, br)
	case TypePublish:
		packet, err = decodePublish(header, br)
	case TypePuback:
		packet, err = decodePuback(header, br)
	case TypeSubscribe:
		packet, err = decodeSubscribe(header, br)
	case TypeSuback:
		packet, err = decodeSuback(header, br)
	case TypeUnsubscribe:
		packet, err = decodeUnsubscribe(header, br)
	case TypeUnsuback:
		packet, err = decodeUnsuback(header, br)
	case TypePingreq:
		packet, err = decodePingreq(header)
	case TypePingresp:
		packet, err = decodePingresp(header)
	case TypeDisconnect:
		packet, err = decodeDisconnect(header)
	default:
		return nil, fmt.Errorf("%w: 0x%X", ErrInvalidPacketType, header.PacketType())
	}
	if err != nil {
		return nil, err
	}
	if br.Len() != 0 {
		return nil, ErrTrailingBytes
	}
	return packet, nil
}

// sealBody frames and encrypts a content-carrying packet: the fixed header
// carries the plaintext length, the wire carries nonce+ciphertext+tag.
func sealBody(firstByte byte, body, key []byte) ([]byte, error) {
	if len(body) > MaxRemainingLength {
		return nil, ErrPacketTooLarge
	}
	sealed, err := encryption.Encrypt(key, body)
	if err != nil {
		return nil, err
	}
	out := []byte{firstByte}
	out = append(out, encodeRemainingLength(len(body))...)
	return append(out, sealed...), nil
}

// readString reads a big-endian uint16 length-prefixed byte string.
func readString(r io.Reader) ([]byte, error) {
	var length uint16
	if err := binary.Read(r, binary.BigEndian, &length); err != nil {
		return nil, fmt.Errorf("packets: read string length: %w", err)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("packets: read string: %w", err)
	}
	return buf, nil
}

func writeString(w *bytes.Buffer, s []byte) {
	var length [2]byte
	binary.BigEndian.PutUint16(length[:], uint16(len(s)))
	w.Write(length[:])
	w.Write(s)
}
