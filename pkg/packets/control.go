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

// The three body-less control packets travel unencrypted: two header bytes,
// nothing else.

func encodePlain(packetType byte) []byte {
	return []byte{packetType<<4 | reservedFlags, 0x00}
}

// Pingreq is the client-side keep-alive probe.
type Pingreq struct{}

func (Pingreq) Type() byte { return TypePingreq }

func (Pingreq) Encode([]byte) ([]byte, error) {
	return encodePlain(TypePingreq), nil
}

func decodePingreq(header FixedHeader) (*Pingreq, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	return &Pingreq{}, nil
}

// Pingresp answers a Pingreq.
type Pingresp struct{}

func (Pingresp) Type() byte { return TypePingresp }

func (Pingresp) Encode([]byte) ([]byte, error) {
	return encodePlain(TypePingresp), nil
}

func decodePingresp(header FixedHeader) (*Pingresp, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	return &Pingresp{}, nil
}

// Disconnect announces a graceful connection teardown.
type Disconnect struct{}

func (Disconnect) Type() byte { return TypeDisconnect }

func (Disconnect) Encode([]byte) ([]byte, error) {
	return encodePlain(TypeDisconnect), nil
}

func decodeDisconnect(header FixedHeader) (*Disconnect, error) {
	if header.Flags() != reservedFlags {
		return nil, ErrInvalidHeaderFlags
	}
	return &Disconnect{}, nil
}
