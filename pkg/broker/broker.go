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

// package broker contains the message broker engine: a single-consumer
// actor that owns all session, retained-message and offline-queue state,
// plus the TCP server that feeds it tasks.
package broker

import (
	"bytes"
	"context"
	"log"
	"time"

	"github.com/nimbusmq/nimbus-go/pkg/actor"
	"github.com/nimbusmq/nimbus-go/pkg/auth"
	"github.com/nimbusmq/nimbus-go/pkg/metrics"
	"github.com/nimbusmq/nimbus-go/pkg/packets"
	"github.com/nimbusmq/nimbus-go/pkg/persistent"
	"github.com/nimbusmq/nimbus-go/pkg/session"
	"github.com/nimbusmq/nimbus-go/pkg/storage"
	"github.com/nimbusmq/nimbus-go/pkg/topic"
)

var clientRegisterTopic = []byte("$client-register")

const registrationSeparator = ';'

// retainedQueue accumulates every retain-flagged publish for one topic.
// Entries are appended, never replaced: a later subscriber replays the
// whole backlog in arrival order.
type retainedQueue struct {
	name     topic.Name
	messages []*packets.Publish
}

// Broker is the engine actor. All maps below are owned exclusively by the
// goroutine running Start; connection goroutines reach them only through
// tasks posted to the mailbox. The session store carries its own
// reader/writer lock because connection goroutines write response bytes
// directly through session transport handles.
type Broker struct {
	nodeID  string
	key     []byte
	adminID string
	auth    *auth.Registry
	mailbox *actor.Mailbox

	sessions storage.Store // client id -> *session.Session

	retained      map[string]*retainedQueue
	retainedOrder []string
	offline       map[string][]*packets.Publish

	backupMailbox  *actor.Mailbox
	backupInterval time.Duration
}

// New creates a new Broker using the given auth registry, packet key and
// admin identity.
func New(nodeID string, reg *auth.Registry, key []byte, adminID string) *Broker {
	return &Broker{
		nodeID:   nodeID,
		key:      key,
		adminID:  adminID,
		auth:     reg,
		mailbox:  actor.NewMailbox(),
		sessions: storage.NewMemStore(),
		retained: make(map[string]*retainedQueue),
		offline:  make(map[string][]*packets.Publish),
	}
}

// Mailbox returns the engine's task mailbox. Connection handlers post
// tasks here; the supervisor passes it back into Start.
func (b *Broker) Mailbox() *actor.Mailbox {
	return b.mailbox
}

// EnableBackups makes the engine snapshot its state to the persistence
// manager's mailbox every interval. Must be called before Start.
func (b *Broker) EnableBackups(mb *actor.Mailbox, interval time.Duration) {
	b.backupMailbox = mb
	b.backupInterval = interval
}

// Start runs the engine loop, consuming exactly one task at a time until
// the context is cancelled or the mailbox is closed.
func (b *Broker) Start(ctx context.Context, mb *actor.Mailbox) error {
	if mb == nil {
		mb = b.mailbox
	}

	var tick <-chan time.Time
	if b.backupMailbox != nil && b.backupInterval > 0 {
		ticker := time.NewTicker(b.backupInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	log.Printf("[INFO] Broker engine %s started", b.nodeID)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick:
			log.Printf("[INFO] Backing up broker state")
			b.snapshot()
		case msg, ok := <-mb.Chan():
			if !ok {
				return nil
			}
			if err := b.dispatch(msg); err != nil {
				// A failed task never halts the engine.
				log.Printf("[ERROR] Task failed: %v", err)
			}
		}
	}
}

func (b *Broker) dispatch(msg any) error {
	switch t := msg.(type) {
	case Connect:
		return b.handleConnect(t)
	case Subscribe:
		return b.handleSubscribe(t)
	case Unsubscribe:
		return b.handleUnsubscribe(t)
	case Publish:
		return b.handlePublish(t)
	case Disconnect:
		return b.handleDisconnect(t)
	case Ping:
		return b.handlePing(t)
	default:
		log.Printf("[WARN] Unknown task type %T", msg)
		return nil
	}
}

// session fetches the session for a client id, or nil if none exists.
func (b *Broker) session(clientID string) *session.Session {
	v, err := b.sessions.Get(clientID)
	if err != nil {
		return nil
	}
	return v.(*session.Session)
}

func (b *Broker) handleConnect(t Connect) error {
	sess := b.session(t.ClientID)
	if sess != nil {
		log.Printf("[INFO] Client %s reconnected", t.ClientID)
		sess.Attach(t.Conn)
	} else {
		log.Printf("[INFO] New client connected: %s", t.ClientID)
		sess = session.New(t.ClientID, t.Conn)
		if err := b.sessions.Set(t.ClientID, sess); err != nil {
			return err
		}
	}

	ack := &packets.Connack{
		SessionPresent: true,
		ReturnCode:     packets.ConnectionAccepted,
	}
	return sess.Send(ack, b.key)
}

func (b *Broker) handleSubscribe(t Subscribe) error {
	sess := b.session(t.ClientID)
	if sess == nil {
		log.Printf("[WARN] Subscribe from unknown client %s", t.ClientID)
		return nil
	}

	// The Suback goes out before any retained replay.
	codes := make([]packets.SubackReturnCode, len(t.Packet.Topics))
	for i := range codes {
		codes[i] = packets.SuccessMaximumQoS0
	}
	ack := &packets.Suback{PacketID: t.Packet.PacketID, ReturnCodes: codes}
	if err := sess.Send(ack, b.key); err != nil {
		return err
	}

	for _, sub := range t.Packet.Topics {
		sess.Subscribe(sub.Filter)
		log.Printf("[INFO] Client %s subscribed to %s", t.ClientID, sub.Filter.String())

		for _, topicKey := range b.retainedOrder {
			queue := b.retained[topicKey]
			if !sub.Filter.Matches(queue.name) {
				continue
			}
			for _, msg := range queue.messages {
				if err := sess.Send(msg, b.key); err != nil {
					log.Printf("[ERROR] Failed to send retained message to %s: %v", t.ClientID, err)
				}
			}
		}
	}
	return nil
}

func (b *Broker) handleUnsubscribe(t Unsubscribe) error {
	sess := b.session(t.ClientID)
	if sess == nil {
		log.Printf("[WARN] Unsubscribe from unknown client %s", t.ClientID)
		return nil
	}

	for _, filter := range t.Packet.Topics {
		sess.Unsubscribe(filter)
		log.Printf("[INFO] Client %s unsubscribed from %s", t.ClientID, filter.String())
	}
	return sess.Send(&packets.Unsuback{PacketID: t.Packet.PacketID}, b.key)
}

func (b *Broker) handlePublish(t Publish) error {
	pkt := t.Packet
	name := pkt.Topic

	if name.Reserved() {
		return b.handleReservedTopic(pkt, t.ClientID)
	}

	if pkt.Retain {
		b.addRetained(name, pkt)
		metrics.RetainedMessages.Inc()
	}

	var matched []*session.Session
	_ = b.sessions.Range(func(_ string, v interface{}) bool {
		sess := v.(*session.Session)
		if sess.Matches(name) {
			matched = append(matched, sess)
		}
		return true
	})

	if len(matched) == 0 {
		log.Printf("[WARN] No subscribers for topic %s", name.String())
		return nil
	}

	for _, sess := range matched {
		if sess.Active() {
			if err := sess.Send(pkt, b.key); err != nil {
				log.Printf("[ERROR] Failed to deliver message to %s: %v", sess.ID, err)
				continue
			}
			metrics.MessagesRoutedTotal.Inc()
		} else {
			b.offline[sess.ID] = append(b.offline[sess.ID], pkt)
			metrics.MessagesQueuedOffline.Inc()
		}
	}

	if pkt.QoS != packets.QoSAtMost {
		if publisher := b.session(t.ClientID); publisher != nil {
			if err := publisher.Send(&packets.Puback{PacketID: pkt.PacketID}, b.key); err != nil {
				log.Printf("[ERROR] Failed to send Puback to %s: %v", t.ClientID, err)
			}
		}
	}

	// Any queue keyed by the publishing client's own id is flushed now.
	// The trigger is deliberately the publisher's id, matching the
	// behavior this broker is compatible with; see the scenario tests.
	if queued := b.offline[t.ClientID]; len(queued) > 0 {
		if publisher := b.session(t.ClientID); publisher != nil {
			for _, msg := range queued {
				if err := publisher.Send(msg, b.key); err != nil {
					log.Printf("[ERROR] Failed to flush queued message to %s: %v", t.ClientID, err)
				}
			}
			delete(b.offline, t.ClientID)
		}
	}
	return nil
}

// handleReservedTopic processes publishes to the server-reserved namespace.
// Only the admin identity may use it, and the single supported operation is
// client registration on $client-register with an "id;user;pass" payload.
func (b *Broker) handleReservedTopic(pkt *packets.Publish, clientID string) error {
	if clientID != b.adminID {
		log.Printf("[ERROR] Client %s may not publish to reserved topic %s", clientID, pkt.Topic.String())
		return nil
	}

	levels := pkt.Topic.Levels()
	if len(levels) != 1 || !bytes.Equal(levels[0], clientRegisterTopic) {
		log.Printf("[ERROR] Invalid reserved topic %s", pkt.Topic.String())
		return nil
	}

	parts := bytes.Split(pkt.Message, []byte{registrationSeparator})
	if len(parts) != 3 {
		log.Printf("[ERROR] Invalid registration payload on %s", pkt.Topic.String())
		return nil
	}

	if b.auth.Exists(parts[0]) {
		log.Printf("[INFO] Client %s already registered", parts[0])
		return nil
	}

	b.auth.Register(parts[0], parts[1], parts[2])
	log.Printf("[INFO] Registered client %s", parts[0])
	return nil
}

func (b *Broker) handleDisconnect(t Disconnect) error {
	if sess := b.session(t.ClientID); sess != nil {
		sess.Detach()
	}
	b.auth.Disconnect([]byte(t.ClientID))
	log.Printf("[INFO] Client %s disconnected", t.ClientID)
	return nil
}

func (b *Broker) handlePing(t Ping) error {
	sess := b.session(t.ClientID)
	if sess == nil {
		log.Printf("[WARN] Ping from unknown client %s", t.ClientID)
		return nil
	}
	return sess.Send(&packets.Pingresp{}, b.key)
}

func (b *Broker) addRetained(name topic.Name, pkt *packets.Publish) {
	topicKey := name.String()
	queue, ok := b.retained[topicKey]
	if !ok {
		queue = &retainedQueue{name: name}
		b.retained[topicKey] = queue
		b.retainedOrder = append(b.retainedOrder, topicKey)
	}
	queue.messages = append(queue.messages, pkt)
}

// snapshot serializes the offline queues, retained messages and per-client
// subscription sets into backup records and hands them to the persistence
// manager. File I/O happens on the manager's goroutine, never here.
func (b *Broker) snapshot() {
	var records []persistent.Record

	for clientID, queue := range b.offline {
		for _, pkt := range queue {
			data, err := pkt.Encode(b.key)
			if err != nil {
				log.Printf("[ERROR] Failed to encode offline message for backup: %v", err)
				continue
			}
			records = append(records, persistent.Record{
				Tag:   persistent.TagOfflineMessage,
				Key:   []byte(clientID),
				Value: data,
			})
		}
	}

	for _, topicKey := range b.retainedOrder {
		queue := b.retained[topicKey]
		for _, pkt := range queue.messages {
			data, err := pkt.Encode(b.key)
			if err != nil {
				log.Printf("[ERROR] Failed to encode retained message for backup: %v", err)
				continue
			}
			records = append(records, persistent.Record{
				Tag:   persistent.TagRetainedMessage,
				Key:   queue.name.Encoded(),
				Value: data,
			})
		}
	}

	_ = b.sessions.Range(func(clientID string, v interface{}) bool {
		sess := v.(*session.Session)
		for _, filter := range sess.Subscriptions() {
			records = append(records, persistent.Record{
				Tag:   persistent.TagClientSubscription,
				Key:   []byte(clientID),
				Value: filter.Encoded(),
			})
		}
		return true
	})

	b.backupMailbox.Send(persistent.Snapshot{Records: records})
	metrics.BackupsTotal.Inc()
}

// Restore rebuilds broker state from backup records. Sessions come back
// with no transport; liveness is never restored. Must be called before
// Start.
func (b *Broker) Restore(records []persistent.Record) {
	for _, rec := range records {
		switch rec.Tag {
		case persistent.TagOfflineMessage:
			pkt, err := packets.Read(bytes.NewReader(rec.Value), b.key)
			if err != nil {
				log.Printf("[WARN] Skipping unreadable offline record: %v", err)
				continue
			}
			pub, ok := pkt.(*packets.Publish)
			if !ok {
				log.Printf("[WARN] Skipping offline record with packet type %T", pkt)
				continue
			}
			clientID := string(rec.Key)
			b.offline[clientID] = append(b.offline[clientID], pub)

		case persistent.TagRetainedMessage:
			name, err := topic.DecodeName(bytes.NewReader(rec.Key))
			if err != nil {
				log.Printf("[WARN] Skipping retained record with bad topic: %v", err)
				continue
			}
			pkt, err := packets.Read(bytes.NewReader(rec.Value), b.key)
			if err != nil {
				log.Printf("[WARN] Skipping unreadable retained record: %v", err)
				continue
			}
			pub, ok := pkt.(*packets.Publish)
			if !ok {
				log.Printf("[WARN] Skipping retained record with packet type %T", pkt)
				continue
			}
			b.addRetained(name, pub)
			metrics.RetainedMessages.Inc()

		case persistent.TagClientSubscription:
			filter, err := topic.DecodeFilter(bytes.NewReader(rec.Value))
			if err != nil {
				log.Printf("[WARN] Skipping subscription record with bad filter: %v", err)
				continue
			}
			clientID := string(rec.Key)
			sess := b.session(clientID)
			if sess == nil {
				sess = session.New(clientID, nil)
				_ = b.sessions.Set(clientID, sess)
			}
			sess.Subscribe(filter)

		default:
			log.Printf("[WARN] Skipping backup record with unknown tag %q", rec.Tag)
		}
	}
}
