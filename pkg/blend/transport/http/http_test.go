// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package http

import (
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blendvc/blendvc/modules/blend/container"
	"github.com/blendvc/blendvc/pkg/blend/repo"
)

func testOptions(t *testing.T) repo.Options {
	t.Helper()
	tick := 0
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return repo.Options{
		Dir: t.TempDir(),
		Now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Minute)
		},
	}
}

func writeContainerFile(t *testing.T, dir, name string, payloads ...string) string {
	t.Helper()
	header := container.Header{PointerWidth: container.PointerWidth64, Endianness: container.LittleEndian, Version: [3]byte{'4', '0', '0'}}
	blocks := make([]container.Block, len(payloads))
	for i, p := range payloads {
		blocks[i] = container.Block{
			Code:    [4]byte{'D', 'A', 'T', 'A'},
			Address: uint64(0x1000 + i),
			DNA:     1,
			Count:   1,
			Payload: []byte(p),
		}
	}
	data, err := container.EncodeBytes(header, blocks)
	require.NoError(t, err)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestSyncOverHTTPRoundTrip(t *testing.T) {
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")

	server, err := repo.Init(testOptions(t), "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	client, err := repo.Init(testOptions(t), "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	f2 := writeContainerFile(t, workDir, "f2.blend", "a", "b")
	commit2, err := server.Commit(f2, "second snapshot")
	require.NoError(t, err)

	httpServer := NewServer("", server)
	ts := httptest.NewServer(httpServer)
	t.Cleanup(ts.Close)

	peer := NewClient(ts.URL)
	require.NoError(t, client.Sync(peer.Request))

	tip, err := client.LogCheckpoints("main")
	require.NoError(t, err)
	require.Equal(t, commit2.Hash, tip[0].Hash)
}

func TestSyncOverHTTPMalformedBodyIsBadRequest(t *testing.T) {
	workDir := t.TempDir()
	f1 := writeContainerFile(t, workDir, "f1.blend", "a")
	server, err := repo.Init(testOptions(t), "proj", f1)
	require.NoError(t, err)
	t.Cleanup(func() { _ = server.Close() })

	httpServer := NewServer("", server)
	ts := httptest.NewServer(httpServer)
	t.Cleanup(ts.Close)

	resp, err := ts.Client().Post(ts.URL+SyncPath, "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, 400, resp.StatusCode)
}
