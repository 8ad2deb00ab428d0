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
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"

	"github.com/nimbusmq/nimbus-go/pkg/metrics"
	"github.com/nimbusmq/nimbus-go/pkg/packets"
)

// StartServer begins listening for incoming TCP connections on the specified address.
func (b *Broker) StartServer(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	defer listener.Close()
	log.Printf("[INFO] Broker listening on %s", addr)

	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
					log.Printf("[ERROR] Failed to accept connection: %v", err)
				}
				continue
			}
			go b.handleConnection(conn)
		}
	}()

	<-ctx.Done()
	log.Printf("[INFO] Listener is shutting down")
	return nil
}

// handleConnection manages a single client connection: it performs the
// authentication handshake, then reads packets and posts them to the engine
// as tasks until the client disconnects or a decode error occurs. Decode
// errors are terminal for the connection.
func (b *Broker) handleConnection(conn net.Conn) {
	metrics.ConnectionsTotal.Inc()
	defer conn.Close()
	log.Printf("[INFO] Accepted connection from %s", conn.RemoteAddr())

	reader := bufio.NewReader(conn)

	pkt, err := packets.Read(reader, b.key)
	if err != nil {
		log.Printf("[ERROR] Failed to read first packet from %s: %v", conn.RemoteAddr(), err)
		return
	}
	connect, ok := pkt.(*packets.Connect)
	if !ok {
		log.Printf("[ERROR] First packet from %s was not Connect", conn.RemoteAddr())
		return
	}

	clientID := string(connect.ClientID)

	if clientID == "" {
		log.Printf("[WARN] Connect from %s with empty client id", conn.RemoteAddr())
		metrics.AuthFailuresTotal.Inc()
		b.refuseConnection(conn, packets.IdentifierRejected)
		return
	}

	if connect.Login == nil || connect.Login.Password == nil {
		log.Printf("[WARN] Connect from %s without credentials", clientID)
		metrics.AuthFailuresTotal.Inc()
		b.refuseConnection(conn, packets.BadUsernameOrPassword)
		return
	}

	if !b.auth.Authenticate(connect.ClientID, connect.Login.Username, connect.Login.Password) {
		log.Printf("[WARN] Authentication failed for client %s", clientID)
		metrics.AuthFailuresTotal.Inc()
		b.refuseConnection(conn, packets.IdentifierRejected)
		return
	}

	b.mailbox.Send(Connect{ClientID: clientID, Conn: conn})

	for {
		pkt, err := packets.Read(reader, b.key)
		if err != nil {
			if err != io.EOF {
				log.Printf("[ERROR] Error reading packet from %s: %v", clientID, err)
			}
			break
		}
		metrics.PacketsReceivedTotal.WithLabelValues(packetName(pkt)).Inc()

		if _, ok := pkt.(*packets.Disconnect); ok {
			log.Printf("[INFO] Client %s sent Disconnect", clientID)
			break
		}

		switch p := pkt.(type) {
		case *packets.Subscribe:
			b.mailbox.Send(Subscribe{Packet: p, ClientID: clientID})
		case *packets.Unsubscribe:
			b.mailbox.Send(Unsubscribe{Packet: p, ClientID: clientID})
		case *packets.Publish:
			b.mailbox.Send(Publish{Packet: p, ClientID: clientID})
		case *packets.Pingreq:
			b.mailbox.Send(Ping{ClientID: clientID})
		default:
			log.Printf("[WARN] Unhandled packet %s from client %s", packetName(pkt), clientID)
		}
	}

	b.mailbox.Send(Disconnect{ClientID: clientID})
}

// refuseConnection writes a refusal Connack directly; the refused client
// never reaches the engine.
func (b *Broker) refuseConnection(w io.Writer, code packets.ConnectReturnCode) {
	ack := &packets.Connack{SessionPresent: false, ReturnCode: code}
	encoded, err := ack.Encode(b.key)
	if err != nil {
		log.Printf("[ERROR] Failed to encode refusal Connack: %v", err)
		return
	}
	if _, err := w.Write(encoded); err != nil {
		log.Printf("[ERROR] Failed to send refusal Connack: %v", err)
	}
}

func packetName(p packets.Packet) string {
	switch p.(type) {
	case *packets.Connect:
		return "Connect"
	case *packets.Connack:
		return "Connack"
	case *packets.Publish:
		return "Publish"
	case *packets.Puback:
		return "Puback"
	case *packets.Subscribe:
		return "Subscribe"
	case *packets.Suback:
		return "Suback"
	case *packets.Unsubscribe:
		return "Unsubscribe"
	case *packets.Unsuback:
		return "Unsuback"
	case *packets.Pingreq:
		return "Pingreq"
	case *packets.Pingresp:
		return "Pingresp"
	case *packets.Disconnect:
		return "Disconnect"
	default:
		return "Unknown"
	}
}
