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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmq/nimbus-go/pkg/actor"
	"github.com/nimbusmq/nimbus-go/pkg/auth"
	"github.com/nimbusmq/nimbus-go/pkg/encryption"
	"github.com/nimbusmq/nimbus-go/pkg/packets"
	"github.com/nimbusmq/nimbus-go/pkg/persistent"
	"github.com/nimbusmq/nimbus-go/pkg/topic"
)

var testKey = bytes.Repeat([]byte{0x2A}, encryption.KeySize)

func newTestBroker(t *testing.T) *Broker {
	t.Helper()

	loginFile := filepath.Join(t.TempDir(), "logins.txt")
	logins := "pub = u1 = p1\nsub = u2 = p2\nadmin = root = secret\n"
	require.NoError(t, os.WriteFile(loginFile, []byte(logins), 0644))

	reg := auth.NewRegistry(loginFile)
	t.Cleanup(reg.Close)

	return New("test-node", reg, testKey, "admin")
}

// connect runs a Connect task for the client and returns the buffer its
// replies are written to, after consuming the Connack.
func connect(t *testing.T, b *Broker, clientID string) *bytes.Buffer {
	t.Helper()

	buf := &bytes.Buffer{}
	require.NoError(t, b.dispatch(Connect{ClientID: clientID, Conn: buf}))

	pkt := readOne(t, buf)
	ack, ok := pkt.(*packets.Connack)
	require.True(t, ok, "expected Connack, got %T", pkt)
	assert.True(t, ack.SessionPresent)
	assert.Equal(t, packets.ConnectionAccepted, ack.ReturnCode)
	return buf
}

// readOne decodes the next packet from the buffer.
func readOne(t *testing.T, buf *bytes.Buffer) packets.Packet {
	t.Helper()
	pkt, err := packets.Read(buf, testKey)
	require.NoError(t, err)
	return pkt
}

func mustName(t *testing.T, s string) topic.Name {
	t.Helper()
	name, err := topic.ParseName(s)
	require.NoError(t, err)
	return name
}

func mustFilter(t *testing.T, s string) topic.Filter {
	t.Helper()
	filter, err := topic.ParseFilter(s)
	require.NoError(t, err)
	return filter
}

func subscribePacket(t *testing.T, packetID uint16, filters ...string) *packets.Subscribe {
	t.Helper()
	sub := &packets.Subscribe{PacketID: packetID}
	for _, f := range filters {
		sub.Topics = append(sub.Topics, packets.Subscription{
			Filter: mustFilter(t, f),
			QoS:    packets.QoSAtMost,
		})
	}
	return sub
}

func publishPacket(t *testing.T, topicName, msg string, retain bool, qos packets.QoS) *packets.Publish {
	t.Helper()
	return &packets.Publish{
		QoS:      qos,
		Retain:   retain,
		Topic:    mustName(t, topicName),
		PacketID: 7,
		Message:  []byte(msg),
	}
}

func TestConnectAndReconnect(t *testing.T) {
	b := newTestBroker(t)

	buf := connect(t, b, "pub")
	assert.Zero(t, buf.Len())

	// Reconnection merges the new transport into the existing session.
	sess := b.session("pub")
	require.NotNil(t, sess)
	sess.Subscribe(mustFilter(t, "a/b"))

	buf2 := connect(t, b, "pub")
	assert.NotSame(t, buf, buf2)
	assert.Len(t, b.session("pub").Subscriptions(), 1)
}

func TestSubscribeRepliesSubackPerFilter(t *testing.T) {
	b := newTestBroker(t)
	buf := connect(t, b, "sub")

	sub := subscribePacket(t, 3, "a/b", "c/+")
	require.NoError(t, b.dispatch(Subscribe{Packet: sub, ClientID: "sub"}))

	ack, ok := readOne(t, buf).(*packets.Suback)
	require.True(t, ok)
	assert.Equal(t, uint16(3), ack.PacketID)
	assert.Equal(t, []packets.SubackReturnCode{
		packets.SuccessMaximumQoS0,
		packets.SuccessMaximumQoS0,
	}, ack.ReturnCodes)
}

func TestRetainedMessageReplayedAfterSuback(t *testing.T) {
	// Scenario: a retain-flagged publish arrives before anyone subscribes.
	b := newTestBroker(t)
	connect(t, b, "pub")

	pub := publishPacket(t, "a/b", "M1", true, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))

	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "a/b"), ClientID: "sub"}))

	_, ok := readOne(t, buf).(*packets.Suback)
	require.True(t, ok, "Suback must precede the retained replay")

	got, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, []byte("M1"), got.Message)
	assert.Equal(t, "a/b", got.Topic.String())
}

func TestRetainedMessagesAccumulate(t *testing.T) {
	// Retained entries are appended, never replaced: a later subscriber
	// replays the whole backlog in arrival order.
	b := newTestBroker(t)
	connect(t, b, "pub")

	m1 := publishPacket(t, "a/b", "M1", true, packets.QoSAtMost)
	m2 := publishPacket(t, "a/b", "M2", true, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: m1, ClientID: "pub"}))
	require.NoError(t, b.dispatch(Publish{Packet: m2, ClientID: "pub"}))

	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "a/b"), ClientID: "sub"}))

	_, ok := readOne(t, buf).(*packets.Suback)
	require.True(t, ok)

	first, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	second, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, []byte("M1"), first.Message)
	assert.Equal(t, []byte("M2"), second.Message)
}

func TestPublishRoutedToActiveSubscriber(t *testing.T) {
	b := newTestBroker(t)
	connect(t, b, "pub")
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "home/+/temp"), ClientID: "sub"}))
	readOne(t, buf) // Suback

	pub := publishPacket(t, "home/kitchen/temp", "21C", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))

	got, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, []byte("21C"), got.Message)
}

func TestPublishQoS1RepliesPuback(t *testing.T) {
	b := newTestBroker(t)
	pubBuf := connect(t, b, "pub")
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "t"), ClientID: "sub"}))
	readOne(t, buf)

	pub := publishPacket(t, "t", "hello", false, packets.QoSAtLeast)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))

	ack, ok := readOne(t, pubBuf).(*packets.Puback)
	require.True(t, ok)
	assert.Equal(t, uint16(7), ack.PacketID)
}

func TestPublishWithoutSubscribersIsNoOp(t *testing.T) {
	b := newTestBroker(t)
	pubBuf := connect(t, b, "pub")

	pub := publishPacket(t, "t", "hello", false, packets.QoSAtLeast)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))

	// No subscriber matched, so not even the Puback goes out.
	assert.Zero(t, pubBuf.Len())
}

func TestOfflineQueueFlushedByOwnPublish(t *testing.T) {
	// Scenario: sub holds a subscription to "t" but is disconnected when
	// pub publishes. The queued message is delivered only once sub itself
	// publishes something, not on reconnect.
	b := newTestBroker(t)
	connect(t, b, "pub")
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "t"), ClientID: "sub"}))
	readOne(t, buf)
	require.NoError(t, b.dispatch(Disconnect{ClientID: "sub"}))

	pub := publishPacket(t, "t", "hello", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))
	require.Len(t, b.offline["sub"], 1)

	// Reconnecting alone does not flush the queue.
	buf = connect(t, b, "sub")
	assert.Zero(t, buf.Len())
	assert.Len(t, b.offline["sub"], 1)

	// Publishing as sub does. sub is itself subscribed to "t", so it
	// first receives its own publish live, then the flushed backlog.
	own := publishPacket(t, "t", "ping", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: own, ClientID: "sub"}))

	live, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, []byte("ping"), live.Message)

	flushed, ok := readOne(t, buf).(*packets.Publish)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), flushed.Message)
	assert.Empty(t, b.offline["sub"])
}

func TestUnsubscribeRepliesUnsuback(t *testing.T) {
	b := newTestBroker(t)
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "a/b"), ClientID: "sub"}))
	readOne(t, buf)

	unsub := &packets.Unsubscribe{PacketID: 9, Topics: []topic.Filter{mustFilter(t, "a/b")}}
	require.NoError(t, b.dispatch(Unsubscribe{Packet: unsub, ClientID: "sub"}))

	ack, ok := readOne(t, buf).(*packets.Unsuback)
	require.True(t, ok)
	assert.Equal(t, uint16(9), ack.PacketID)
	assert.Empty(t, b.session("sub").Subscriptions())
}

func TestPingOnlyForKnownSessions(t *testing.T) {
	b := newTestBroker(t)
	buf := connect(t, b, "sub")

	require.NoError(t, b.dispatch(Ping{ClientID: "sub"}))
	_, ok := readOne(t, buf).(*packets.Pingresp)
	assert.True(t, ok)

	// Unknown clients get nothing and cause no error.
	require.NoError(t, b.dispatch(Ping{ClientID: "ghost"}))
}

func TestDisconnectKeepsSessionRecord(t *testing.T) {
	b := newTestBroker(t)
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "a/b"), ClientID: "sub"}))
	readOne(t, buf)

	require.NoError(t, b.dispatch(Disconnect{ClientID: "sub"}))

	sess := b.session("sub")
	require.NotNil(t, sess)
	assert.False(t, sess.Active())
	assert.Len(t, sess.Subscriptions(), 1)
}

func TestClientRegistration(t *testing.T) {
	b := newTestBroker(t)
	connect(t, b, "admin")

	pub := publishPacket(t, "$client-register", "c9;u9;p9", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "admin"}))
	assert.True(t, b.auth.Exists([]byte("c9")))

	// Re-registering an existing id is a no-op.
	again := publishPacket(t, "$client-register", "c9;other;other", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: again, ClientID: "admin"}))
	assert.True(t, b.auth.Authenticate([]byte("c9"), []byte("u9"), []byte("p9")))
}

func TestRegistrationRejectsNonAdmin(t *testing.T) {
	b := newTestBroker(t)
	connect(t, b, "pub")

	pub := publishPacket(t, "$client-register", "c9;u9;p9", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "pub"}))
	assert.False(t, b.auth.Exists([]byte("c9")))
}

func TestRegistrationRejectsMalformedPayload(t *testing.T) {
	b := newTestBroker(t)
	connect(t, b, "admin")

	pub := publishPacket(t, "$client-register", "no-separators", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: pub, ClientID: "admin"}))
	assert.False(t, b.auth.Exists([]byte("no-separators")))

	wrongTopic := publishPacket(t, "$other/topic", "c9;u9;p9", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: wrongTopic, ClientID: "admin"}))
	assert.False(t, b.auth.Exists([]byte("c9")))
}

func TestBackupRestoreRoundTrip(t *testing.T) {
	b := newTestBroker(t)
	connect(t, b, "pub")
	buf := connect(t, b, "sub")
	require.NoError(t, b.dispatch(Subscribe{Packet: subscribePacket(t, 1, "t"), ClientID: "sub"}))
	readOne(t, buf)

	retained := publishPacket(t, "a/b", "M1", true, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: retained, ClientID: "pub"}))

	require.NoError(t, b.dispatch(Disconnect{ClientID: "sub"}))
	queued := publishPacket(t, "t", "hello", false, packets.QoSAtMost)
	require.NoError(t, b.dispatch(Publish{Packet: queued, ClientID: "pub"}))

	sink := actor.NewMailbox()
	defer sink.Close()
	b.EnableBackups(sink, time.Minute)
	b.snapshot()

	msg := <-sink.Chan()
	snap, ok := msg.(persistent.Snapshot)
	require.True(t, ok)

	restored := newTestBroker(t)
	restored.Restore(snap.Records)

	require.Contains(t, restored.retained, "a/b")
	require.Len(t, restored.retained["a/b"].messages, 1)
	assert.Equal(t, []byte("M1"), restored.retained["a/b"].messages[0].Message)

	require.Len(t, restored.offline["sub"], 1)
	assert.Equal(t, []byte("hello"), restored.offline["sub"][0].Message)

	sess := restored.session("sub")
	require.NotNil(t, sess)
	assert.False(t, sess.Active(), "liveness is never restored from backup")
	require.Len(t, sess.Subscriptions(), 1)
	assert.Equal(t, "t", sess.Subscriptions()[0].String())
}

func TestRestoreSkipsMalformedRecords(t *testing.T) {
	b := newTestBroker(t)
	b.Restore([]persistent.Record{
		{Tag: "bogus-tag", Key: []byte("x"), Value: []byte("y")},
		{Tag: persistent.TagOfflineMessage, Key: []byte("c"), Value: []byte{0xFF}},
		{Tag: persistent.TagClientSubscription, Key: []byte("c"), Value: []byte{}},
	})
	assert.Empty(t, b.offline)
	assert.Nil(t, b.session("c"))
}

// syncWriter makes a bytes.Buffer safe to share between the engine
// goroutine and the test.
type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) snapshot() []byte {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]byte(nil), w.buf.Bytes()...)
}

func TestEngineProcessesMailboxTasks(t *testing.T) {
	b := newTestBroker(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- b.Start(ctx, b.Mailbox()) }()

	conn := &syncWriter{}
	b.Mailbox().Send(Connect{ClientID: "sub", Conn: conn})

	require.Eventually(t, func() bool {
		pkt, err := packets.Read(bytes.NewReader(conn.snapshot()), testKey)
		if err != nil {
			return false
		}
		_, ok := pkt.(*packets.Connack)
		return ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
