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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nimbusmq/nimbus-go/pkg/actor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordsRoundTrip(t *testing.T) {
	records := []Record{
		{Tag: TagOfflineMessage, Key: []byte("client-1"), Value: []byte{0x32, 0x06, 0xAB}},
		{Tag: TagRetainedMessage, Key: []byte{0x00, 0x03, 'a', '/', 'b'}, Value: []byte("sealed")},
		{Tag: TagClientSubscription, Key: []byte("client-1"), Value: []byte{0x00, 0x01, '#'}},
	}
	decoded := DecodeRecords(EncodeRecords(records))
	assert.Equal(t, records, decoded)
}

func TestEncodeRecordsFormat(t *testing.T) {
	records := []Record{{Tag: TagOfflineMessage, Key: []byte{0xAB}, Value: []byte{0x01, 0xFF}}}
	assert.Equal(t, "offline-message;AB;01FF\n", string(EncodeRecords(records)))
}

func TestDecodeRecordsSkipsMalformed(t *testing.T) {
	data := "offline-message;AB;01FF\n" +
		"garbage line\n" +
		"retained-message;ZZ;00\n" +
		"retained-message;00;ZZ\n" +
		"client-subscription;01;02\n" +
		"\n"
	records := DecodeRecords([]byte(data))
	require.Len(t, records, 2)
	assert.Equal(t, TagOfflineMessage, records[0].Tag)
	assert.Equal(t, TagClientSubscription, records[1].Tag)
}

func TestWriteAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.txt")
	records := []Record{{Tag: TagRetainedMessage, Key: []byte("k"), Value: []byte("v")}}

	require.NoError(t, Write(path, records))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, records, loaded)

	// No stray temporary file left behind.
	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestLoadMissingFile(t *testing.T) {
	records, err := Load(filepath.Join(t.TempDir(), "missing.txt"))
	assert.NoError(t, err)
	assert.Nil(t, records)
}

func TestManagerWritesSnapshots(t *testing.T) {
	path := filepath.Join(t.TempDir(), "backup.txt")
	m := NewManager(path)
	mb := actor.NewMailbox()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Start(ctx, mb) }()

	mb.Send(Snapshot{Records: []Record{{Tag: TagOfflineMessage, Key: []byte("c"), Value: []byte("m")}}})

	require.Eventually(t, func() bool {
		loaded, err := Load(path)
		return err == nil && len(loaded) == 1
	}, time.Second, 10*time.Millisecond)

	mb.Close()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("manager did not stop after mailbox close")
	}
}
