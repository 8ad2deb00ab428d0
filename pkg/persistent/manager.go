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

package persistent

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/nimbusmq/nimbus-go/pkg/actor"
)

// Snapshot asks the Manager to replace the backup file with these records.
type Snapshot struct {
	Records []Record
}

// Manager is the snapshot-writer actor. The broker engine builds records on
// its own goroutine and hands them off here, so backup I/O never stalls task
// processing.
type Manager struct {
	Path string
}

// NewManager creates a snapshot writer for the given backup file path.
func NewManager(path string) *Manager {
	return &Manager{Path: path}
}

// Start runs the writer loop until the context is canceled or the mailbox is
// closed. A failed write is logged and the loop continues; the next snapshot
// supersedes it anyway.
func (m *Manager) Start(ctx context.Context, mb *actor.Mailbox) error {
	log.Printf("[INFO] Persistence manager started for %s", m.Path)
	for {
		msg, err := mb.Receive(ctx)
		if err != nil {
			if err == actor.ErrMailboxClosed {
				return nil
			}
			return err
		}
		snapshot, ok := msg.(Snapshot)
		if !ok {
			log.Printf("[WARN] Persistence manager received unknown message type: %T", msg)
			continue
		}
		if err := Write(m.Path, snapshot.Records); err != nil {
			log.Printf("[ERROR] Failed to write backup: %v", err)
		}
	}
}

// Write replaces the backup file with the given records. The write goes to a
// temporary file first so a crash mid-write never truncates the previous
// snapshot.
func Write(path string, records []Record) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, EncodeRecords(records), 0o644); err != nil {
		return fmt.Errorf("persistent: write snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("persistent: replace snapshot: %w", err)
	}
	return nil
}

// Load reads and decodes the backup file. A missing file returns no records
// and no error.
func Load(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("persistent: read snapshot: %w", err)
	}
	return DecodeRecords(data), nil
}
