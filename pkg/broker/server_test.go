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
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusmq/nimbus-go/pkg/packets"
)

func writePacket(t *testing.T, conn net.Conn, p packets.Packet) {
	t.Helper()
	data, err := p.Encode(testKey)
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
}

func connectPacket(clientID, username string, password []byte) *packets.Connect {
	return &packets.Connect{
		CleanSession: true,
		ClientID:     []byte(clientID),
		Login:        &packets.Login{Username: []byte(username), Password: password},
	}
}

func expectTask[T any](t *testing.T, b *Broker) T {
	t.Helper()
	select {
	case msg := <-b.Mailbox().Chan():
		task, ok := msg.(T)
		require.True(t, ok, "expected %T, got %T", task, msg)
		return task
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for task")
		panic("unreachable")
	}
}

func TestHandshakeRejectsBadCredentials(t *testing.T) {
	// A wrong password yields a refusal Connack and drops the connection
	// without touching the connected flag.
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, connectPacket("pub", "u1", []byte("wrong")))

	pkt, err := packets.Read(client, testKey)
	require.NoError(t, err)
	ack, ok := pkt.(*packets.Connack)
	require.True(t, ok)
	assert.False(t, ack.SessionPresent)
	assert.Equal(t, packets.IdentifierRejected, ack.ReturnCode)

	_, err = packets.Read(client, testKey)
	assert.Error(t, err, "connection must be closed after refusal")

	// The failed attempt left the entry available for a proper login.
	assert.True(t, b.auth.Authenticate([]byte("pub"), []byte("u1"), []byte("p1")))
	assert.Nil(t, b.session("pub"), "no session is created for a refused client")
}

func TestHandshakeRejectsMissingCredentials(t *testing.T) {
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, &packets.Connect{CleanSession: true, ClientID: []byte("pub")})

	pkt, err := packets.Read(client, testKey)
	require.NoError(t, err)
	ack, ok := pkt.(*packets.Connack)
	require.True(t, ok)
	assert.Equal(t, packets.BadUsernameOrPassword, ack.ReturnCode)
}

func TestHandshakeRejectsEmptyClientID(t *testing.T) {
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, connectPacket("", "u1", []byte("p1")))

	pkt, err := packets.Read(client, testKey)
	require.NoError(t, err)
	ack, ok := pkt.(*packets.Connack)
	require.True(t, ok)
	assert.Equal(t, packets.IdentifierRejected, ack.ReturnCode)
}

func TestHandshakeRejectsNonConnectFirstPacket(t *testing.T) {
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, &packets.Pingreq{})

	_, err := packets.Read(client, testKey)
	assert.Error(t, err, "connection must be dropped without a reply")
}

func TestConnectionPostsTasksToEngine(t *testing.T) {
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, connectPacket("pub", "u1", []byte("p1")))
	conn := expectTask[Connect](t, b)
	assert.Equal(t, "pub", conn.ClientID)

	writePacket(t, client, subscribePacket(t, 4, "a/b"))
	sub := expectTask[Subscribe](t, b)
	assert.Equal(t, "pub", sub.ClientID)
	assert.Equal(t, uint16(4), sub.Packet.PacketID)

	writePacket(t, client, publishPacket(t, "a/b", "hi", false, packets.QoSAtMost))
	pub := expectTask[Publish](t, b)
	assert.Equal(t, []byte("hi"), pub.Packet.Message)

	writePacket(t, client, &packets.Pingreq{})
	ping := expectTask[Ping](t, b)
	assert.Equal(t, "pub", ping.ClientID)

	writePacket(t, client, &packets.Disconnect{})
	disc := expectTask[Disconnect](t, b)
	assert.Equal(t, "pub", disc.ClientID)

	_, err := packets.Read(client, testKey)
	assert.Error(t, err, "connection closes after Disconnect")
}

func TestConnectionEndsOnDecodeError(t *testing.T) {
	b := newTestBroker(t)

	client, server := net.Pipe()
	defer client.Close()
	go b.handleConnection(server)

	writePacket(t, client, connectPacket("pub", "u1", []byte("p1")))
	expectTask[Connect](t, b)

	// Garbage with an invalid packet type terminates the read loop; the
	// handler still posts the Disconnect task.
	_, err := client.Write([]byte{0x00, 0x00})
	require.NoError(t, err)

	disc := expectTask[Disconnect](t, b)
	assert.Equal(t, "pub", disc.ClientID)
}
