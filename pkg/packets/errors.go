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

import "errors"

// Decode errors. All of them are terminal for the connection they occur on.
var (
	ErrInvalidPacketType        = errors.New("packets: invalid packet type")
	ErrInvalidHeaderFlags       = errors.New("packets: invalid fixed header flags")
	ErrInvalidRemainingLength   = errors.New("packets: malformed remaining length")
	ErrPacketTooLarge           = errors.New("packets: body exceeds maximum remaining length")
	ErrTrailingBytes            = errors.New("packets: trailing bytes after packet body")
	ErrInvalidQoS               = errors.New("packets: invalid qos level")
	ErrInvalidProtocolName      = errors.New("packets: invalid protocol name")
	ErrInvalidProtocolLevel     = errors.New("packets: invalid protocol level")
	ErrInvalidConnectFlags      = errors.New("packets: reserved connect flag set")
	ErrInvalidWillQoS           = errors.New("packets: will qos set without will flag")
	ErrInvalidWillRetain        = errors.New("packets: will retain set without will flag")
	ErrPasswordWithoutUsername  = errors.New("packets: password flag set without username flag")
	ErrNoTopics                 = errors.New("packets: no topics specified")
	ErrInvalidConnectReturnCode = errors.New("packets: invalid connect return code")
	ErrInvalidSubackReturnCode  = errors.New("packets: invalid suback return code")
)
