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

// Package persistent implements the broker's crash-recovery backup: a line
// oriented text snapshot of retained messages, offline queues and client
// subscriptions, plus the worker actor that writes snapshots off the engine
// goroutine.
//
// Each line is "TAG;HEX(key);HEX(value)". Message values are full encoded
// packets, already sealed under the broker key, so the backup file leaks no
// plaintext payloads.
package persistent

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Snapshot record tags.
const (
	// TagOfflineMessage keys a queued Publish by the recipient client id.
	TagOfflineMessage = "offline-message"
	// TagRetainedMessage keys a retained Publish by its encoded topic name.
	TagRetainedMessage = "retained-message"
	// TagClientSubscription keys one encoded topic filter by client id.
	TagClientSubscription = "client-subscription"
)

// Record is one snapshot line in decoded form.
type Record struct {
	Tag   string
	Key   []byte
	Value []byte
}

// EncodeRecords renders records to the backup file format, one line each
// with upper-case hex fields.
func EncodeRecords(records []Record) []byte {
	var sb strings.Builder
	for _, r := range records {
		fmt.Fprintf(&sb, "%s;%X;%X\n", r.Tag, r.Key, r.Value)
	}
	return []byte(sb.String())
}

// DecodeRecords parses a backup file. Malformed lines are skipped so a
// partially corrupted backup still restores everything readable.
func DecodeRecords(data []byte) []Record {
	var records []Record
	for _, line := range strings.Split(string(data), "\n") {
		parts := strings.Split(line, ";")
		if len(parts) != 3 {
			continue
		}
		key, err := hex.DecodeString(parts[1])
		if err != nil {
			continue
		}
		value, err := hex.DecodeString(parts[2])
		if err != nil {
			continue
		}
		records = append(records, Record{Tag: parts[0], Key: key, Value: value})
	}
	return records
}
