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

package actor

import (
	"context"
	"errors"
	"sync"
)

// ErrMailboxClosed is returned by Receive once the mailbox is closed and
// every buffered message has been delivered.
var ErrMailboxClosed = errors.New("actor: mailbox closed")

// Actor defines the interface for an actor process.
// An actor is an entity that, in response to a message it receives,
// can concurrently:
//   - send a finite number of messages to other actors;
//   - create a finite number of new actors;
//   - designate the behavior to be used for the next message it receives.
type Actor interface {
	// Start is called when the actor is started.
	// It receives a context and a mailbox to receive messages.
	// The context controls the lifecycle of the actor, and the mailbox is
	// used to receive incoming messages. The method should block until the
	// actor is terminated. It returns an error if the actor fails to start
	// or terminates unexpectedly.
	Start(ctx context.Context, mb *Mailbox) error
}

// Mailbox is an unbounded message queue for an actor. Senders never block:
// messages are parked in an internal buffer and pumped into the delivery
// channel by a dedicated goroutine. The broker engine relies on this — a
// connection goroutine posting a task must never stall behind a slow engine.
type Mailbox struct {
	mu     sync.Mutex
	cond   *sync.Cond
	buf    []any
	closed bool

	out chan any
}

// NewMailbox creates a new unbounded mailbox and starts its pump goroutine.
// Close must be called when the mailbox is no longer needed so the pump can
// exit.
func NewMailbox() *Mailbox {
	mb := &Mailbox{out: make(chan any)}
	mb.cond = sync.NewCond(&mb.mu)
	go mb.pump()
	return mb
}

func (mb *Mailbox) pump() {
	for {
		mb.mu.Lock()
		for len(mb.buf) == 0 && !mb.closed {
			mb.cond.Wait()
		}
		if len(mb.buf) == 0 && mb.closed {
			mb.mu.Unlock()
			close(mb.out)
			return
		}
		msg := mb.buf[0]
		mb.buf = mb.buf[1:]
		mb.mu.Unlock()

		mb.out <- msg
	}
}

// Send puts a message into the mailbox. It never blocks. Messages sent after
// Close are dropped.
func (mb *Mailbox) Send(msg any) {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.buf = append(mb.buf, msg)
	mb.cond.Signal()
}

// Receive blocks until a message is received from the mailbox or the context
// is canceled. It returns ErrMailboxClosed once the mailbox is closed and
// drained.
func (mb *Mailbox) Receive(ctx context.Context) (any, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-mb.out:
		if !ok {
			return nil, ErrMailboxClosed
		}
		return msg, nil
	}
}

// Chan returns the delivery channel. This allows for more advanced use cases,
// such as selecting over the mailbox and a ticker at once. The channel is
// closed after Close once all buffered messages have been delivered.
func (mb *Mailbox) Chan() <-chan any {
	return mb.out
}

// Close stops accepting new messages. Messages already buffered are still
// delivered; afterwards the delivery channel is closed.
func (mb *Mailbox) Close() {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	if mb.closed {
		return
	}
	mb.closed = true
	mb.cond.Signal()
}
