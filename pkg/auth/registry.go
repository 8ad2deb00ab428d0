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

// Package auth is the broker's credential registry. Credentials load from a
// plain-text login file of "clientId = username = password" lines; runtime
// registrations are appended to the same file by a dedicated writer
// goroutine so the engine never blocks on disk.
//
// A stored password starting with "$2" is treated as a bcrypt hash; anything
// else is compared verbatim.
package auth

import (
	"bytes"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

type entry struct {
	username  []byte
	password  []byte
	connected bool
}

// Registry tracks every known client identity and its connected flag. An
// identity that is already connected cannot authenticate a second time.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*entry

	filePath string
	audit    chan string
	done     chan struct{}
}

// NewRegistry loads the login file (a missing or unreadable file yields an
// empty registry) and starts the audit writer. Close releases the writer.
func NewRegistry(loginFilePath string) *Registry {
	r := &Registry{
		clients:  loadLoginFile(loginFilePath),
		filePath: loginFilePath,
		audit:    make(chan string, 64),
		done:     make(chan struct{}),
	}
	go r.writeAudit()
	return r
}

func loadLoginFile(path string) map[string]*entry {
	clients := make(map[string]*entry)
	content, err := os.ReadFile(path)
	if err != nil {
		return clients
	}
	for _, line := range strings.Split(string(content), "\n") {
		parts := strings.Split(line, "=")
		if len(parts) != 3 {
			// Malformed lines are skipped, not fatal.
			continue
		}
		id := strings.TrimSpace(parts[0])
		clients[id] = &entry{
			username: []byte(strings.TrimSpace(parts[1])),
			password: []byte(strings.TrimSpace(parts[2])),
		}
	}
	return clients
}

func (r *Registry) writeAudit() {
	defer close(r.done)
	file, err := os.OpenFile(r.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		log.Printf("[ERROR] Failed to open login file %s: %v", r.filePath, err)
		for range r.audit {
			// Drain so Register never blocks.
		}
		return
	}
	defer file.Close()
	for line := range r.audit {
		if _, err := fmt.Fprintln(file, line); err != nil {
			log.Printf("[ERROR] Failed to write login file %s: %v", r.filePath, err)
		}
	}
}

// Register upserts an identity and appends it to the login file.
func (r *Registry) Register(clientID, username, password []byte) {
	r.mu.Lock()
	r.clients[string(clientID)] = &entry{
		username: append([]byte(nil), username...),
		password: append([]byte(nil), password...),
	}
	r.mu.Unlock()

	r.audit <- fmt.Sprintf("%s = %s = %s", clientID, username, password)
}

// Exists reports whether an identity is registered.
func (r *Registry) Exists(clientID []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[string(clientID)]
	return ok
}

// Authenticate validates credentials for an identity and, on success, marks
// it connected. It fails for unknown identities, identities that are already
// connected, and credential mismatches.
func (r *Registry) Authenticate(clientID, username, password []byte) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.clients[string(clientID)]
	if !ok || e.connected {
		return false
	}
	if !bytes.Equal(e.username, username) || !passwordMatches(e.password, password) {
		return false
	}
	e.connected = true
	return true
}

// Disconnect clears the connected flag. Unknown identities are ignored.
func (r *Registry) Disconnect(clientID []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.clients[string(clientID)]; ok {
		e.connected = false
	}
}

// Close stops the audit writer after flushing pending lines.
func (r *Registry) Close() {
	close(r.audit)
	<-r.done
}

func passwordMatches(stored, presented []byte) bool {
	if bytes.HasPrefix(stored, []byte("$2")) {
		return bcrypt.CompareHashAndPassword(stored, presented) == nil
	}
	return bytes.Equal(stored, presented)
}
