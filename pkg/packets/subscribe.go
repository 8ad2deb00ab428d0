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

	"github.com/nimbusmq/nimbus-go/pkg/topic"
)

// Subscription is one (filter, requested QoS) pair of a Subscribe payload.
type Subscription struct {
	Filter topic.Filter
	QoS    QoS
}

// Subscribe registers interest in one or more topic filters.
type Subscribe struct {
	PacketID uint16
	Topics   []Subscription
}

func (*Subscribe) Type() byte { return TypeSubscribe }

func decodeSubscribe(header FixedHeader, r *bytes.Reader) (*Subscribe, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var packetID uint16
	if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
		return nil, fmt.Errorf("packets: read packet id: %w", err)
	}

	var topics []Subscription
	for r.Len() > 0 {
		filter, err := topic.DecodeFilter(r)
		if err != nil {
			return nil, err
		}
		qosByte, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("packets: read qos: %w", err)
		}
		qos, err := ParseQoS(qosByte)
		if err != nil {
			return nil, err
		}
		topics = append(topics, Subscription{Filter: filter, QoS: qos})
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	return &Subscribe{PacketID: packetID, Topics: topics}, nil
}

func (p *Subscribe) Encode(key []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.BigEndian, p.PacketID); err != nil {
		return nil, err
	}
	for _, sub := range p.Topics {
		body.Write(sub.Filter.Encoded())
		body.WriteByte(byte(sub.QoS))
	}
	return sealBody(TypeSubscribe<<4|reservedFlags, body.Bytes(), key)
}

// Suback confirms a Subscribe with one return code per requested filter.
type Suback struct {
	PacketID    uint16
	ReturnCodes []SubackReturnCode
}

func (*Suback) Type() byte { return TypeSuback }

func decodeSuback(header FixedHeader, r *bytes.Reader) (*Suback, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var packetID uint16
	if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
		return nil, fmt.Errorf("packets: read packet id: %w", err)
	}
	var codes []SubackReturnCode
	for r.Len() > 0 {
		b, err := r.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("packets: read return code: %w", err)
		}
		code, err := ParseSubackReturnCode(b)
		if err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return &Suback{PacketID: packetID, ReturnCodes: codes}, nil
}

func (p *Suback) Encode(key []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.BigEndian, p.PacketID); err != nil {
		return nil, err
	}
	for _, code := range p.ReturnCodes {
		body.WriteByte(byte(code))
	}
	return sealBody(TypeSuback<<4|reservedFlags, body.Bytes(), key)
}

// Unsubscribe removes interest in one or more topic filters.
type Unsubscribe struct {
	PacketID uint16
	Topics   []topic.Filter
}

func (*Unsubscribe) Type() byte { return TypeUnsubscribe }

func decodeUnsubscribe(header FixedHeader, r *bytes.Reader) (*Unsubscribe, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var packetID uint16
	if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
		return nil, fmt.Errorf("packets: read packet id: %w", err)
	}
	var topics []topic.Filter
	for r.Len() > 0 {
		filter, err := topic.DecodeFilter(r)
		if err != nil {
			return nil, err
		}
		topics = append(topics, filter)
	}
	if len(topics) == 0 {
		return nil, ErrNoTopics
	}
	return &Unsubscribe{PacketID: packetID, Topics: topics}, nil
}

func (p *Unsubscribe) Encode(key []byte) ([]byte, error) {
	var body bytes.Buffer
	if err := binary.Write(&body, binary.BigEndian, p.PacketID); err != nil {
		return nil, err
	}
	for _, filter := range p.Topics {
		body.Write(filter.Encoded())
	}
	return sealBody(TypeUnsubscribe<<4|reservedFlags, body.Bytes(), key)
}

// Unsuback confirms an Unsubscribe.
type Unsuback struct {
	PacketID uint16
}

func (*Unsuback) Type() byte { return TypeUnsuback }

func decodeUnsuback(header FixedHeader, r *bytes.Reader) (*Unsuback, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var packetID uint16
	if err := binary.Read(r, binary.BigEndian, &packetID); err != nil {
		return nil, fmt.Errorf("packets: read packet id: %w", err)
	}
	return &Unsuback{PacketID: packetID}, nil
}

func (p *Unsuback) Encode(key []byte) ([]byte, error) {
	var body [2]byte
	binary.BigEndian.PutUint16(body[:], p.PacketID)
	return sealBody(TypeUnsuback<<4|reservedFlags, body[:], key)
}
