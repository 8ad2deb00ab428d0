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

var protocolName = []byte("MQTT")

const protocolLevel byte = 0x04

// Login carries the credentials of a Connect. Password is nil when the
// password flag was unset.
type Login struct {
	Username []byte
	Password []byte
}

// Will is the message published on behalf of a client that disconnects
// ungracefully. Carried in Connect, stored but not acted upon by the engine.
type Will struct {
	QoS     QoS
	Retain  bool
	Topic   topic.Name
	Message []byte
}

// Connect opens a client session.
type Connect struct {
	CleanSession bool
	KeepAlive    uint16
	ClientID     []byte
	Will         *Will
	Login        *Login
}

func (*Connect) Type() byte { return TypeConnect }

func decodeConnect(header FixedHeader, r *bytes.Reader) (*Connect, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}

	name, err := readString(r)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(name, protocolName) {
		return nil, ErrInvalidProtocolName
	}

	level, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("packets: read protocol level: %w", err)
	}
	if level != protocolLevel {
		return nil, ErrInvalidProtocolLevel
	}

	flags, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("packets: read connect flags: %w", err)
	}
	if flags&0x01 != 0 {
		return nil, ErrInvalidConnectFlags
	}
	cleanSession := flags&0x02 != 0
	willFlag := flags&0x04 != 0
	willQoS, err := ParseQoS((flags >> 3) & 0x03)
	if err != nil {
		return nil, err
	}
	if !willFlag && willQoS != QoSAtMost {
		return nil, ErrInvalidWillQoS
	}
	willRetain := flags&0x20 != 0
	if !willFlag && willRetain {
		return nil, ErrInvalidWillRetain
	}
	usernameFlag := flags&0x80 != 0
	passwordFlag := flags&0x40 != 0
	if passwordFlag && !usernameFlag {
		return nil, ErrPasswordWithoutUsername
	}

	var keepAlive uint16
	if err := binary.Read(r, binary.BigEndian, &keepAlive); err != nil {
		return nil, fmt.Errorf("packets: read keep alive: %w", err)
	}

	clientID, err := readString(r)
	if err != nil {
		return nil, err
	}

	connect := &Connect{
		CleanSession: cleanSession,
		KeepAlive:    keepAlive,
		ClientID:     clientID,
	}

	if willFlag {
		willTopic, err := topic.DecodeName(r)
		if err != nil {
			return nil, err
		}
		willMessage, err := readString(r)
		if err != nil {
			return nil, err
		}
		connect.Will = &Will{
			QoS:     willQoS,
			Retain:  willRetain,
			Topic:   willTopic,
			Message: willMessage,
		}
	}

	if usernameFlag {
		username, err := readString(r)
		if err != nil {
			return nil, err
		}
		login := &Login{Username: username}
		if passwordFlag {
			password, err := readString(r)
			if err != nil {
				return nil, err
			}
			login.Password = password
		}
		connect.Login = login
	}

	return connect, nil
}

func (p *Connect) Encode(key []byte) ([]byte, error) {
	var body bytes.Buffer

	writeString(&body, protocolName)
	body.WriteByte(protocolLevel)

	var flags byte
	if p.CleanSession {
		flags |= 0x02
	}
	if p.Will != nil {
		flags |= 0x04
		flags |= byte(p.Will.QoS) << 3
		if p.Will.Retain {
			flags |= 0x20
		}
	}
	if p.Login != nil {
		flags |= 0x80
		if p.Login.Password != nil {
			flags |= 0x40
		}
	}
	body.WriteByte(flags)

	if err := binary.Write(&body, binary.BigEndian, p.KeepAlive); err != nil {
		return nil, err
	}

	writeString(&body, p.ClientID)
	if p.Will != nil {
		body.Write(p.Will.Topic.Encoded())
		writeString(&body, p.Will.Message)
	}
	if p.Login != nil {
		writeString(&body, p.Login.Username)
		if p.Login.Password != nil {
			writeString(&body, p.Login.Password)
		}
	}

	return sealBody(TypeConnect<<4|reservedFlags, body.Bytes(), key)
}

// Connack accepts or refuses a Connect.
type Connack struct {
	SessionPresent bool
	ReturnCode     ConnectReturnCode
}

func (*Connack) Type() byte { return TypeConnack }

func decodeConnack(header FixedHeader, r *bytes.Reader) (*Connack, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	var buf [2]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return nil, fmt.Errorf("packets: read connack: %w", err)
	}
	code, err := ParseConnectReturnCode(buf[1])
	if err != nil {
		return nil, err
	}
	return &Connack{
		SessionPresent: buf[0]&0x01 != 0,
		ReturnCode:     code,
	}, nil
}

func (p *Connack) Encode(key []byte) ([]byte, error) {
	body := []byte{0x00, byte(p.ReturnCode)}
	if p.SessionPresent {
		body[0] = 0x01
	}
	return sealBody(TypeConnack<<4|reservedFlags, body, key)
}
