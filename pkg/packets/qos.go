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

// QoS is a delivery-guarantee level.
type QoS byte

const (
	// QoSAtMost delivers at most once, with no acknowledgment.
	QoSAtMost QoS = 0x00
	// QoSAtLeast delivers at least once, acknowledged with a Puback.
	QoSAtLeast QoS = 0x01
	// QoSExactly is accepted on the wire but handled like QoSAtLeast.
	QoSExactly QoS = 0x02
)

// ParseQoS validates a wire QoS byte.
func ParseQoS(b byte) (QoS, error) {
	switch QoS(b) {
	case QoSAtMost, QoSAtLeast, QoSExactly:
		return QoS(b), nil
	}
	return 0, ErrInvalidQoS
}

func (q QoS) String() string {
	switch q {
	case QoSAtMost:
		return "at-most-once"
	case QoSAtLeast:
		return "at-least-once"
	case QoSExactly:
		return "exactly-once"
	}
	return "invalid"
}
