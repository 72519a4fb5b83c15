package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSON = `{
  "uuid": "550e8400-e29b-41d4-a716-446655440000",
  "mac_address": "aa:bb:cc:dd:ee:ff",
  "password": "s3cret",
  "version": 1,
  "services": [
    {"id": 42, "name": "rtsp-cam-1", "address": "127.0.0.1:5000"}
  ]
}`

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "agent.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAndLookup(t *testing.T) {
	path := writeTemp(t, sampleJSON)
	store, err := Load(path)
	require.NoError(t, err)

	snap := store.Snapshot()
	assert.Equal(t, uint64(1), snap.Version())
	svc, ok := snap.Lookup(42)
	require.True(t, ok)
	assert.Equal(t, "127.0.0.1:5000", svc.Address)
	assert.True(t, svc.HasAddress())

	_, ok = snap.Lookup(9999)
	assert.False(t, ok)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	path := writeTemp(t, sampleJSON)
	store, err := Load(path)
	require.NoError(t, err)

	bumped := `{
  "uuid": "550e8400-e29b-41d4-a716-446655440000",
  "mac_address": "aa:bb:cc:dd:ee:ff",
  "password": "s3cret",
  "version": 2,
  "services": []
}`
	require.NoError(t, os.WriteFile(path, []byte(bumped), 0o600))
	require.NoError(t, store.Reload(path))
	assert.Equal(t, uint64(2), store.Snapshot().Version())
}

func TestInvalidUUIDRejected(t *testing.T) {
	path := writeTemp(t, `{"uuid":"not-a-uuid","mac_address":"aa:bb:cc:dd:ee:ff","services":[]}`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestScanningFlag(t *testing.T) {
	path := writeTemp(t, sampleJSON)
	store, err := Load(path)
	require.NoError(t, err)
	assert.False(t, store.Snapshot().Scanning())
	store.SetScanning(true)
	assert.True(t, store.Snapshot().Scanning())
}
