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
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/nimbusmq/nimbus-go/pkg/topic"
)

// Publish delivers an application message to a topic. Dup, QoS and Retain
// live in the fixed-header flag nibble; PacketID is only on the wire when
// QoS > 0.
type Publish struct {
	Dup      bool
	QoS      QoS
	Retain   bool
	Topic    topic.Name
	PacketID uint16
	Message  []byte
}

func (*Publish) Type() byte { return TypePublish }

func decodePublish(header FixedHeader, r *bytes.Reader) (*Publish, error) {
	flags := header.Flags()
	qos, err := ParseQoS((flags >> 1) & 0x03)
	if err != nil {
		return nil, err
	}

	name, err := topic.DecodeName(r)
	if err != nil {
		return nil, err
	}

	var packetID uint16
	if qos != QoSAtMost {
		if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
			return nil, fmt.Errorf("packets: read packet id: %w", err)
		}
	}

	// Everything left in the body is the message.
	message := make([]byte, r.Len())
	if _, err := io.ReadFull(r, message); err != nil {
		return nil, fmt.Errorf("packets: read message: %w", err)
	}

	return &Publish{
		Dup:      flags&0x08 != 0,
		QoS:      qos,
		Retain:   flags&0x01 != 0,
		Topic:    name,
		PacketID: packetID,
		Message:  message,
	}, nil
}

func (p *Publish) Encode(key []byte) ([]byte, error) {
	var body bytes.Buffer
	body.Write(p.Topic.Encoded())
	if p.QoS != QoSAtMost {
		if err := binary.Write(&body, binary.BigEndian, p.PacketID); err != nil {
			return nil, err
		}
	}
	body.Write(p.Message)

	var flags byte
	if p.Dup {
		flags |= 0x08
	}
	flags |= byte(p.QoS) << 1
	if p.Retain {
		flags |= 0x01
	}
	return sealBody(TypePublish<<4|flags, body.Bytes(), key)
}

// Puback acknowledges a QoS > 0 Publish.
type Puback struct {
	PacketID uint16
}

func (*Puback) Type() byte { return TypePuback }

func decodePuback(header FixedHeader, r *bytes.Reader) (*Puback, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var packetID uint16
	if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
		return nil, fmt.Errorf("packets: read packet id: %w", err)
	}
	return &Puback{PacketID: packetID}, nil
}

func (p *Puback) Encode(key []byte) ([]byte, error) {
	var body [2]byte
	binary.BigEndian.PutUint16(body[:], p.PacketID)
	return sealBody(TypePuback<<4|reservedFlags, body[:], key)
}
