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

// ConnectReturnCode is the status byte carried in a Connack.
type ConnectReturnCode byte

const (
	ConnectionAccepted          ConnectReturnCode = 0x00
	UnacceptableProtocolVersion ConnectReturnCode = 0x01
	IdentifierRejected          ConnectReturnCode = 0x02
	ServerUnavailable           ConnectReturnCode = 0x03
	BadUsernameOrPassword       ConnectReturnCode = 0x04
	NotAuthorized               ConnectReturnCode = 0x05
)

// ParseConnectReturnCode validates a wire Connack return code byte.
func ParseConnectReturnCode(b byte) (ConnectReturnCode, error) {
	if b > byte(NotAuthorized) {
		return 0, ErrInvalidConnectReturnCode
	}
	return ConnectReturnCode(b), nil
}

func (c ConnectReturnCode) String() string {
	switch c {
	case ConnectionAccepted:
		return "connection accepted"
	case UnacceptableProtocolVersion:
		return "unacceptable protocol version"
	case IdentifierRejected:
		return "identifier rejected"
	case ServerUnavailable:
		return "server unavailable"
	case BadUsernameOrPassword:
		return "bad username or password"
	case NotAuthorized:
		return "not authorized"
	}
	return "invalid"
}

// SubackReturnCode is the per-filter status byte carried in a Suback.
type SubackReturnCode byte

const (
	SuccessMaximumQoS0 SubackReturnCode = 0x00
	SuccessMaximumQoS1 SubackReturnCode = 0x01
	SuccessMaximumQoS2 SubackReturnCode = 0x02
	SubscriptionFailed SubackReturnCode = 0x80
)

// ParseSubackReturnCode validates a wire Suback return code byte.
func ParseSubackReturnCode(b byte) (SubackReturnCode, error) {
	switch SubackReturnCode(b) {
	case SuccessMaximumQoS0, SuccessMaximumQoS1, SuccessMaximumQoS2, SubscriptionFailed:
		return SubackReturnCode(b), nil
	}
	return 0, ErrInvalidSubackReturnCode
}
