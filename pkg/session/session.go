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

// package session holds the per-client state the broker engine tracks: the
// client id, the ordered subscription set and the transport of the live
// connection, if any. Sessions survive disconnects; a session restored from a
// backup starts with no transport.
package session

import (
	"errors"
	"io"

	"github.com/nimbusmq/nimbus-go/pkg/packets"
	"github.com/nimbusmq/nimbus-go/pkg/topic"
)

// Session is the state for one client. All mutation happens on the broker
// engine goroutine, so the struct carries no lock of its own.
type Session struct {
	ID string

	subscriptions []topic.Filter
	conn          io.Writer
}

// New creates a session. conn may be nil for a session known only from a
// backup.
func New(id string, conn io.Writer) *Session {
	return &Session{ID: id, conn: conn}
}

// Attach installs the transport of a freshly connected client.
func (s *Session) Attach(conn io.Writer) {
	s.conn = conn
}

// Detach drops the transport, keeping subscriptions intact.
func (s *Session) Detach() {
	s.conn = nil
}

// Active reports whether the client currently has a live transport.
func (s *Session) Active() bool {
	return s.conn != nil
}

// Subscribe adds a filter to the subscription set. Re-subscribing to an
// already held filter is a no-op, preserving the original position.
func (s *Session) Subscribe(filter topic.Filter) {
	key := filter.String()
	for _, held := range s.subscriptions {
		if held.String() == key {
			return
		}
	}
	s.subscriptions = append(s.subscriptions, filter)
}

// Unsubscribe removes a filter from the subscription set.
func (s *Session) Unsubscribe(filter topic.Filter) {
	key := filter.String()
	for i, held := range s.subscriptions {
		if held.String() == key {
			s.subscriptions = append(s.subscriptions[:i], s.subscriptions[i+1:]...)
			return
		}
	}
}

// Subscriptions returns the held filters in subscription order.
func (s *Session) Subscriptions() []topic.Filter {
	return s.subscriptions
}

// Matches reports whether any held filter matches the topic name.
func (s *Session) Matches(name topic.Name) bool {
	for _, filter := range s.subscriptions {
		if filter.Matches(name) {
			return true
		}
	}
	return false
}

// ErrNoTransport is returned by Send when the session has no live
// transport, e.g. one restored from a backup.
var ErrNoTransport = errors.New("session: no transport attached")

// Send encodes the packet under key and writes it to the client's transport.
func (s *Session) Send(p packets.Packet, key []byte) error {
	if s.conn == nil {
		return ErrNoTransport
	}
	encoded, err := p.Encode(key)
	if err != nil {
		return err
	}
	_, err = s.conn.Write(encoded)
	return err
}
