package authstore_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rijan-wa/gateway/internal/authstore"
)

func TestResolveCreatesDirectory(t *testing.T) {
	root := t.TempDir()
	s, err := authstore.New(root)
	require.NoError(t, err)

	dir, err := s.Resolve("tenant_1", "device_1")
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, filepath.Join(root, "tenant_1", "device_1"), dir)
}

func TestLegacyMigration(t *testing.T) {
	root := t.TempDir()
	legacy := filepath.Join(root, "device_1")
	require.NoError(t, os.MkdirAll(legacy, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(legacy, "creds.bin"), []byte("opaque"), 0o600))

	s, err := authstore.New(root)
	require.NoError(t, err)

	dir, err := s.Resolve("tenant_1", "device_1")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "tenant_1", "device_1"), dir)
	assert.NoDirExists(t, legacy)

	data, err := os.ReadFile(filepath.Join(dir, "creds.bin"))
	require.NoError(t, err)
	assert.Equal(t, "opaque", string(data))
}

func TestIdentityRoundTrip(t *testing.T) {
	s, err := authstore.New(t.TempDir())
	require.NoError(t, err)

	id, err := s.Identity("tenant_1", "device_1")
	require.NoError(t, err)
	assert.Nil(t, id)

	require.NoError(t, s.WriteIdentity("tenant_1", "device_1", authstore.Identity{JID: "6281234@s.whatsapp.net", Name: "Alice"}))

	got, err := s.Identity("tenant_1", "device_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "6281234@s.whatsapp.net", got.JID)
	assert.Equal(t, "Alice", got.Name)
}

func TestDeleteRemovesDirectory(t *testing.T) {
	s, err := authstore.New(t.TempDir())
	require.NoError(t, err)

	dir, err := s.Resolve("tenant_1", "device_1")
	require.NoError(t, err)

	require.NoError(t, s.Delete("tenant_1", "device_1"))
	assert.NoDirExists(t, dir)
}

func TestScanFindsCurrentAndLegacyLayouts(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "tenant_1", "device_1"), 0o700))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "device_legacy"), 0o700))

	s, err := authstore.New(root)
	require.NoError(t, err)

	found, err := s.Scan()
	require.NoError(t, err)
	assert.Len(t, found, 2)
}
