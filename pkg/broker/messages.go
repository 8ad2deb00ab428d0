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

package broker

import (
	"io"

	"github.com/nimbusmq/nimbus-go/pkg/packets"
)

// Tasks are posted to the engine mailbox by connection goroutines. The
// engine consumes them one at a time, so no two mutations of broker state
// ever interleave.

// Connect is posted after a connection has passed authentication. The
// engine creates or merges the session and replies with a Connack over
// Conn.
type Connect struct {
	// ClientID identifies the session to create or reattach.
	ClientID string
	// Conn is the transport handle used for all replies to this client.
	Conn io.Writer
}

// Subscribe asks the engine to add the packet's topic filters to the
// client's subscription set and replay matching retained messages.
type Subscribe struct {
	Packet   *packets.Subscribe
	ClientID string
}

// Unsubscribe asks the engine to remove the packet's topic filters from the
// client's subscription set.
type Unsubscribe struct {
	Packet   *packets.Unsubscribe
	ClientID string
}

// Publish carries an inbound publish packet for routing to subscribers.
type Publish struct {
	Packet   *packets.Publish
	ClientID string
}

// Disconnect is posted when a client's connection goroutine exits. The
// session record survives; only its transport and connected flag are
// cleared.
type Disconnect struct {
	ClientID string
}

// Ping asks the engine to reply with a Pingresp if the client is known.
type Ping struct {
	ClientID string
}
